package storefront

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/dealwatch/internal/logger"
)

// Fetcher is the raw catalog lookup the gateway wraps.
type Fetcher interface {
	AppDetails(ctx context.Context, appID int64, filters string) (*Details, error)
}

// Sleeper pauses between retry attempts. Injected so tests can assert on
// requested durations without waiting.
type Sleeper func(ctx context.Context, d time.Duration) error

// DefaultSleeper waits on a timer, honoring context cancellation.
func DefaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GatewayConfig holds retry and pacing options.
type GatewayConfig struct {
	RetryAttempts int           // total attempts per lookup
	RetryPeriod   time.Duration // fixed delay between attempts
	RateLimitRPS  float64       // outbound pacing; 0 disables the limiter
}

// Gateway wraps a Fetcher with bounded retry on rate exhaustion and polite
// outbound pacing. All external lookups of the pipeline go through one
// Gateway so the shared budget is spent from a single place.
type Gateway struct {
	client   Fetcher
	limiter  *rate.Limiter
	attempts int
	period   time.Duration
	sleep    Sleeper
	logger   logger.Logger
}

// NewGateway creates a gateway around client.
func NewGateway(client Fetcher, cfg GatewayConfig, log logger.Logger) *Gateway {
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	sleep := Sleeper(DefaultSleeper)

	return &Gateway{
		client:   client,
		limiter:  limiter,
		attempts: cfg.RetryAttempts,
		period:   cfg.RetryPeriod,
		sleep:    sleep,
		logger:   log,
	}
}

// WithSleeper replaces the inter-attempt sleeper. Test hook.
func (g *Gateway) WithSleeper(sleep Sleeper) *Gateway {
	g.sleep = sleep
	return g
}

// Fetch looks up one identifier, retrying only rate-exhaustion sentinels:
// up to the configured attempt count with a fixed delay between attempts.
// ErrMalformed and transport errors propagate immediately. When all attempts
// are exhausted the caller receives ErrRateLimited and must abandon its run.
func (g *Gateway) Fetch(ctx context.Context, appID int64, filters string) (*Details, error) {
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		details, err := g.client.AppDetails(ctx, appID, filters)
		if err == nil {
			return details, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}

		if attempt < g.attempts {
			g.logger.Warn("storefront rate budget exhausted, backing off",
				logger.Int64("app_id", appID),
				logger.Int("attempt", attempt),
				logger.Duration("retry_period", g.period))
			if sleepErr := g.sleep(ctx, g.period); sleepErr != nil {
				return nil, fmt.Errorf("retry backoff: %w", sleepErr)
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrRateLimited, g.attempts)
}
