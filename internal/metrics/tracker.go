// Package metrics tracks pipeline outcome counters in Redis for the ops API.
package metrics

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/dealwatch/internal/logger"
)

const (
	keyPrefix = "dealwatch:metrics:"

	// counterTTL keeps counters from accumulating forever on an idle key.
	counterTTL = 30 * 24 * time.Hour
)

// Counter key suffixes, one per pipeline outcome.
const (
	keyDiscovered = "discovered"
	keyRefreshed  = "refreshed"
	keyPublished  = "published"
	keySkipped    = "skipped"
	keyErrors     = "errors"
)

// Stats is the aggregated counter snapshot.
type Stats struct {
	Discovered int64 `json:"discovered"`
	Refreshed  int64 `json:"refreshed"`
	Published  int64 `json:"published"`
	Skipped    int64 `json:"skipped"`
	Errors     int64 `json:"errors"`
}

// Tracker implements outcome counting on Redis. A counting failure is logged
// and swallowed: observability must never fail the pipeline.
type Tracker struct {
	client redis.UniversalClient
	logger logger.Logger
}

// NewTracker creates a tracker on an existing Redis client.
func NewTracker(client redis.UniversalClient, log logger.Logger) *Tracker {
	return &Tracker{client: client, logger: log}
}

// AddDiscovered counts newly inserted records.
func (t *Tracker) AddDiscovered(ctx context.Context, n int64) { t.add(ctx, keyDiscovered, n) }

// AddRefreshed counts records flipped back to pending by the refresh pass.
func (t *Tracker) AddRefreshed(ctx context.Context, n int64) { t.add(ctx, keyRefreshed, n) }

// AddPublished counts delivered announcements.
func (t *Tracker) AddPublished(ctx context.Context, n int64) { t.add(ctx, keyPublished, n) }

// AddSkipped counts probed identifiers that produced no record.
func (t *Tracker) AddSkipped(ctx context.Context, n int64) { t.add(ctx, keySkipped, n) }

// AddErrors counts aborted runs and delivery failures.
func (t *Tracker) AddErrors(ctx context.Context, n int64) { t.add(ctx, keyErrors, n) }

func (t *Tracker) add(ctx context.Context, key string, n int64) {
	if n == 0 {
		return
	}

	full := keyPrefix + key
	pipe := t.client.Pipeline()
	pipe.IncrBy(ctx, full, n)
	pipe.Expire(ctx, full, counterTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("failed to increment counter",
			logger.String("redis_key", full),
			logger.Error(err))
	}
}

// GetStats returns the current counter snapshot. Missing keys read as zero.
func (t *Tracker) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	targets := []struct {
		key  string
		dest *int64
	}{
		{keyDiscovered, &stats.Discovered},
		{keyRefreshed, &stats.Refreshed},
		{keyPublished, &stats.Published},
		{keySkipped, &stats.Skipped},
		{keyErrors, &stats.Errors},
	}

	for _, target := range targets {
		val, err := t.client.Get(ctx, keyPrefix+target.key).Int64()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		*target.dest = val
	}
	return &stats, nil
}
