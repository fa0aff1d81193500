// Package store adapts the external identity store (Postgres) for the two
// operations the pipeline needs: subscriber lookup per brand and notification
// writes. All other user/brand data stays outside this worker.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jws1910/saleworker/internal/salestate"
)

// PostgresStore implements salestate.SubscriberStore and
// salestate.NotificationSink on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ salestate.SubscriberStore = (*PostgresStore)(nil)
var _ salestate.NotificationSink = (*PostgresStore)(nil)

// NewPostgresStore creates a pooled store. Connections are established
// lazily, so a store can be constructed while the database is still coming
// up; runtime errors surface per query.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// SubscribersForBrand returns the identifiers of every user currently
// favoriting a brand.
func (s *PostgresStore) SubscribersForBrand(ctx context.Context, brandKey string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM brand_favorites WHERE brand_key = $1`,
		brandKey,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscribers for %s: %w", brandKey, err)
	}
	defer rows.Close()

	var subscribers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber row: %w", err)
		}
		subscribers = append(subscribers, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriber rows: %w", err)
	}
	return subscribers, nil
}

// WriteSaleNotification persists one notification record.
func (s *PostgresStore) WriteSaleNotification(ctx context.Context, n salestate.Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (user_id, brand_key, brand_name, sale_url, title, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.SubscriberID, n.BrandKey, n.BrandName, n.SaleURL, n.Title, n.Message, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification for %s/%s: %w", n.BrandKey, n.SubscriberID, err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
