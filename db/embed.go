// Package db embeds the relational schema applied at startup.
package db

import _ "embed"

// Schema contains the DDL for every storefront table. Statements are
// idempotent so reapplying on boot is safe.
//
//go:embed migrations/001_schema.sql
var Schema string
