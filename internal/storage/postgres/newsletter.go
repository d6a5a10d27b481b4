package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const subscribeSQL = `INSERT INTO newsletter_subscribers (email, subscribed_at)
	VALUES ($1, $2)
	ON CONFLICT (email) DO NOTHING`

// NewsletterRepository stores newsletter subscriptions.
type NewsletterRepository struct {
	pool *pgxpool.Pool
}

// NewNewsletterRepository returns a NewsletterRepository that uses the given pool.
func NewNewsletterRepository(pool *pgxpool.Pool) *NewsletterRepository {
	return &NewsletterRepository{pool: pool}
}

// Subscribe records a subscriber. Re-subscribing is a no-op; it reports
// whether the email was newly added.
func (r *NewsletterRepository) Subscribe(ctx context.Context, email string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, subscribeSQL, email, at)
	if err != nil {
		return false, fmt.Errorf("subscribing %q: %w", email, err)
	}
	return tag.RowsAffected() > 0, nil
}
