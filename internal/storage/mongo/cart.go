// Package mongo provides the document-store cart repository. Carts are
// short-lived and document-shaped, so they live in MongoDB while durable
// entities stay relational.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/merchkit/storefront/internal/domain/cart"
	"github.com/merchkit/storefront/internal/domain/identity"
)

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	return client, nil
}

// cartDoc is the stored shape. Exactly one of UserID/SessionID is set,
// mirroring the owner identity.
type cartDoc struct {
	UserID    string      `bson:"user_id,omitempty"`
	SessionID string      `bson:"session_id,omitempty"`
	Items     []cart.Item `bson:"items"`
	CreatedAt time.Time   `bson:"created_at"`
	UpdatedAt time.Time   `bson:"updated_at"`
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository on a MongoDB collection.
type CartRepository struct {
	coll *mongo.Collection
}

// NewCartRepository returns a CartRepository over the "carts" collection of
// the given database.
func NewCartRepository(database *mongo.Database) *CartRepository {
	return &CartRepository{coll: database.Collection("carts")}
}

// EnsureIndexes creates the per-identity uniqueness indexes. Sparse so that
// user-owned carts don't collide on the absent session field and vice versa.
func (r *CartRepository) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true).SetSparse(true)
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: unique},
	})
	if err != nil {
		return fmt.Errorf("creating cart indexes: %w", err)
	}
	return nil
}

// ownerFilter is the single place that routes identity to a storage key.
// Every repository operation goes through it, so the user/session branch
// cannot drift between operations.
func ownerFilter(owner identity.Identity) bson.M {
	if uid, ok := owner.UserID(); ok {
		return bson.M{"user_id": uid}
	}
	sid, _ := owner.SessionID()
	return bson.M{"session_id": sid}
}

// Get returns the identity's cart or cart.ErrNotFound.
func (r *CartRepository) Get(ctx context.Context, owner identity.Identity) (*cart.Cart, error) {
	var doc cartDoc
	err := r.coll.FindOne(ctx, ownerFilter(owner)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart: %w", err)
	}

	return &cart.Cart{
		Owner:     owner,
		Items:     doc.Items,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Upsert creates or replaces the cart for c.Owner. Last write wins; there
// is no version guard on concurrent writers.
func (r *CartRepository) Upsert(ctx context.Context, c *cart.Cart) error {
	doc := cartDoc{
		Items:     c.Items,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if uid, ok := c.Owner.UserID(); ok {
		doc.UserID = uid
	} else if sid, ok := c.Owner.SessionID(); ok {
		doc.SessionID = sid
	}

	_, err := r.coll.ReplaceOne(ctx, ownerFilter(c.Owner), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting cart: %w", err)
	}
	return nil
}

// Delete removes the identity's cart. Deleting an absent cart is not an
// error.
func (r *CartRepository) Delete(ctx context.Context, owner identity.Identity) error {
	if _, err := r.coll.DeleteOne(ctx, ownerFilter(owner)); err != nil {
		return fmt.Errorf("deleting cart: %w", err)
	}
	return nil
}
