// Package mail sends transactional storefront email. Every caller treats
// delivery as fire-and-forget: failures are logged and never propagated into
// the request that triggered them.
package mail

import (
	"context"

	"go.uber.org/zap"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer is a Mailer that only logs. Used in local development and tests
// when no delivery provider is configured.
type LogMailer struct {
	lg *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(lg *zap.Logger) *LogMailer {
	return &LogMailer{lg: lg}
}

// Send logs the message instead of delivering it.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.lg.Info("mail suppressed (no provider configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
