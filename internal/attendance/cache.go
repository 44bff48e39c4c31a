package attendance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RosterCache keeps the who-is-present projection in Redis for a short
// window; the roster is queried on every lobby-display refresh and tolerates
// slightly stale data.
type RosterCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRosterCache constructs the cache. TTL defaults to one minute.
func NewRosterCache(client *redis.Client, ttl time.Duration) *RosterCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RosterCache{client: client, ttl: ttl}
}

func rosterKey(day time.Time) string {
	return "presenta:roster:" + day.Format("2006-01-02")
}

// Get returns the cached roster for the day, if any.
func (c *RosterCache) Get(ctx context.Context, day time.Time) ([]DeptRoster, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, rosterKey(day)).Bytes()
	if err != nil {
		return nil, false
	}
	var out []DeptRoster
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

// Set stores the roster for the day.
func (c *RosterCache) Set(ctx context.Context, day time.Time, rosters []DeptRoster) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(rosters)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, rosterKey(day), raw, c.ttl).Err()
}
