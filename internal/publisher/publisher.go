// Package publisher announces pending catalog records to the channel,
// enriching each with descriptive and media lookups first.
package publisher

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/dealwatch/internal/domain"
	"github.com/jonesrussell/dealwatch/internal/logger"
	"github.com/jonesrussell/dealwatch/internal/storefront"
)

const (
	// minPerRun and maxPerRun bound the randomized per-run item count.
	minPerRun = 2
	maxPerRun = 5

	// minPacing and maxPacing bound the randomized pause between items,
	// keeping the destination channel from being burst.
	minPacing = 2700 * time.Second
	maxPacing = 7200 * time.Second

	// maxScreenshots is the number of screenshots attached per announcement.
	maxScreenshots = 3
)

// CatalogGateway is the retrying storefront gateway used for enrichment.
type CatalogGateway interface {
	Fetch(ctx context.Context, appID int64, filters string) (*storefront.Details, error)
}

// PendingStore selects and finalizes pending records.
type PendingStore interface {
	FetchOnePending(ctx context.Context) (*domain.CatalogRecord, error)
	MarkPublished(ctx context.Context, appID int64) error
}

// Announcer delivers one multi-attachment announcement to the channel.
type Announcer interface {
	Announce(ctx context.Context, a domain.Announcement) error
}

// Metrics counts publish outcomes.
type Metrics interface {
	AddPublished(ctx context.Context, n int64)
	AddErrors(ctx context.Context, n int64)
}

// Publisher drains pending records a few at a time, pacing itself between
// items. It holds the shared gate for the whole run, including the pacing
// sleeps, so the outer schedule must be longer than the worst-case run.
type Publisher struct {
	gate      *sync.Mutex
	gateway   CatalogGateway
	records   PendingStore
	announcer Announcer
	metrics   Metrics
	sleep     storefront.Sleeper
	pickCount func() int
	pacing    func() time.Duration
	tracer    trace.Tracer
	logger    logger.Logger
}

// New creates a publisher.
func New(
	gate *sync.Mutex,
	gateway CatalogGateway,
	records PendingStore,
	announcer Announcer,
	metrics Metrics,
	log logger.Logger,
) *Publisher {
	return &Publisher{
		gate:      gate,
		gateway:   gateway,
		records:   records,
		announcer: announcer,
		metrics:   metrics,
		sleep:     storefront.DefaultSleeper,
		pickCount: defaultPickCount,
		pacing:    defaultPacing,
		tracer:    otel.Tracer("publisher"),
		logger:    log,
	}
}

func defaultPickCount() int {
	return minPerRun + rand.Intn(maxPerRun-minPerRun+1)
}

func defaultPacing() time.Duration {
	return minPacing + time.Duration(rand.Int63n(int64(maxPacing-minPacing)+1))
}

// WithSleeper replaces the pacing sleeper. Test hook.
func (p *Publisher) WithSleeper(sleep storefront.Sleeper) *Publisher {
	p.sleep = sleep
	return p
}

// WithSchedule replaces the per-run count and pacing sources. Test hook.
func (p *Publisher) WithSchedule(pickCount func() int, pacing func() time.Duration) *Publisher {
	p.pickCount = pickCount
	p.pacing = pacing
	return p
}

// Run executes one publish pass: a randomized number of items, each enriched
// with two further catalog lookups and announced as one media group. A hard
// gateway error aborts the run with the current item left pending. A delivery
// failure is item-local: it consumes the iteration and the run moves on.
func (p *Publisher) Run(ctx context.Context) error {
	p.gate.Lock()
	defer p.gate.Unlock()

	runLog := p.logger.With(
		logger.String("job", "publish"),
		logger.String("run_id", uuid.NewString()),
	)

	count := p.pickCount()
	runLog.Info("publish run started", logger.Int("count", count))

	published := 0
	for i := 0; i < count; i++ {
		rec, err := p.records.FetchOnePending(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			runLog.Info("no pending records, ending run early",
				logger.Int("published", published))
			return nil
		}
		if err != nil {
			runLog.Error("failed to select pending record", logger.Error(err))
			return err
		}

		if err := p.publishOne(ctx, runLog, rec); err != nil {
			return err
		}
		published++

		if i < count-1 {
			delay := p.pacing()
			runLog.Debug("pacing before next announcement",
				logger.Duration("delay", delay))
			if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
				runLog.Warn("pacing interrupted, ending run", logger.Error(sleepErr))
				return sleepErr
			}
		}
	}

	runLog.Info("publish run completed", logger.Int("published", published))
	return nil
}

// publishOne enriches and announces a single record. A nil return means the
// iteration is consumed; only hard gateway errors propagate and abort the run.
func (p *Publisher) publishOne(ctx context.Context, runLog logger.Logger, rec *domain.CatalogRecord) error {
	ctx, span := p.tracer.Start(ctx, "publisher.announce",
		trace.WithAttributes(
			attribute.Int64("app_id", rec.AppID),
			attribute.Int("discount_percent", rec.DiscountPercent),
		))
	defer span.End()

	itemLog := runLog.With(logger.Int64("app_id", rec.AppID))

	basic, err := p.gateway.Fetch(ctx, rec.AppID, storefront.FiltersBasic)
	if err != nil {
		p.abort(ctx, itemLog, "descriptive lookup failed", err)
		return err
	}
	media, err := p.gateway.Fetch(ctx, rec.AppID, storefront.FiltersMedia)
	if err != nil {
		p.abort(ctx, itemLog, "media lookup failed", err)
		return err
	}

	if !basic.Available {
		// Delisted after discovery. The row must leave the pending pool or the
		// unordered selection re-picks it forever; mark it published so the
		// refresh pass owns it from here.
		itemLog.Warn("entity unavailable at publish time, retiring record unannounced")
		if markErr := p.records.MarkPublished(ctx, rec.AppID); markErr != nil {
			itemLog.Error("failed to retire unavailable record", logger.Error(markErr))
			return markErr
		}
		return nil
	}

	screenshots := media.Screenshots
	if len(screenshots) > maxScreenshots {
		screenshots = screenshots[:maxScreenshots]
	}

	announcement := domain.Announcement{
		AppID:       rec.AppID,
		CoverURL:    basic.HeaderImage,
		Caption:     BuildCaption(rec, basic.Name, basic.ShortDescription, media.Developers),
		Screenshots: screenshots,
	}

	if sendErr := p.announcer.Announce(ctx, announcement); sendErr != nil {
		// Item-local failure: the record stays pending for a later run.
		itemLog.Error("announcement delivery failed, record stays pending",
			logger.Error(sendErr))
		if p.metrics != nil {
			p.metrics.AddErrors(ctx, 1)
		}
		return nil
	}

	if markErr := p.records.MarkPublished(ctx, rec.AppID); markErr != nil {
		itemLog.Error("failed to mark record published", logger.Error(markErr))
		return markErr
	}

	if p.metrics != nil {
		p.metrics.AddPublished(ctx, 1)
	}
	itemLog.Info("record published",
		logger.Float64("price", rec.InitialPrice),
		logger.Float64("final_price", rec.FinalPrice()),
		logger.Int("discount_percent", rec.DiscountPercent))
	return nil
}

func (p *Publisher) abort(ctx context.Context, itemLog logger.Logger, msg string, err error) {
	if errors.Is(err, storefront.ErrMalformed) {
		itemLog.Error(msg+", aborting publish run", logger.Error(err))
	} else {
		itemLog.Warn(msg+", aborting publish run", logger.Error(err))
	}
	if p.metrics != nil {
		p.metrics.AddErrors(ctx, 1)
	}
}
