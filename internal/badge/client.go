// Package badge adapts the access-control pass log: earliest and latest
// valid pass per badge asset and day.
package badge

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Asset identifiers in the pass log carry a reader-group prefix.
const assetPrefix = "I1."

// Client queries the badge-reader database.
type Client struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewClient constructs a Client.
func NewClient(pool *pgxpool.Pool, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{pool: pool, logger: logger}
}

// Arrival returns the earliest pass timestamp for the badge on the day.
func (c *Client) Arrival(ctx context.Context, day time.Time, badgeID string) (time.Time, bool, error) {
	return c.boundary(ctx, `SELECT min(event_time) FROM valid_pass WHERE asset_uid = $1 AND event_time >= $2 AND event_time < $3`, day, badgeID)
}

// Departure returns the latest pass timestamp for the badge on the day.
func (c *Client) Departure(ctx context.Context, day time.Time, badgeID string) (time.Time, bool, error) {
	return c.boundary(ctx, `SELECT max(event_time) FROM valid_pass WHERE asset_uid = $1 AND event_time >= $2 AND event_time < $3`, day, badgeID)
}

// boundary runs the aggregate with one transparent retry: the pass-log
// server is known to drop idle connections.
func (c *Client) boundary(ctx context.Context, query string, day time.Time, badgeID string) (time.Time, bool, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)
	asset := assetPrefix + badgeID

	var ts *time.Time
	err := c.pool.QueryRow(ctx, query, asset, from, to).Scan(&ts)
	if err != nil {
		c.logger.Warn("badge query failed, retrying once", slog.String("asset", asset), slog.Any("error", err))
		if err = c.pool.QueryRow(ctx, query, asset, from, to).Scan(&ts); err != nil {
			return time.Time{}, false, err
		}
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return *ts, true, nil
}
