// Package scanner implements the discovery and refresh passes over the
// external catalog. Both hold the shared gate for their whole run because
// every external call spends the same rate budget.
package scanner

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/jonesrussell/dealwatch/internal/domain"
	"github.com/jonesrussell/dealwatch/internal/logger"
	"github.com/jonesrussell/dealwatch/internal/storefront"
)

// insertBatchSize bounds the transaction size of discovery inserts.
const insertBatchSize = 30

// CatalogGateway is the retrying storefront gateway the scanners call.
type CatalogGateway interface {
	Fetch(ctx context.Context, appID int64, filters string) (*storefront.Details, error)
}

// RecordStore is the record persistence surface the scanners need.
type RecordStore interface {
	InsertBatch(ctx context.Context, records []domain.CatalogRecord) error
	FetchStalePublished(ctx context.Context, limit int) ([]domain.CatalogRecord, error)
	UpdatePricing(ctx context.Context, appID int64, price float64, discountPercent int) error
}

// CursorStore is the durable scan high-water-mark.
type CursorStore interface {
	Get(ctx context.Context) (int64, error)
	Set(ctx context.Context, lastAppID int64) error
}

// Metrics counts pipeline outcomes. Implementations must never fail the run.
type Metrics interface {
	AddDiscovered(ctx context.Context, n int64)
	AddRefreshed(ctx context.Context, n int64)
	AddSkipped(ctx context.Context, n int64)
	AddErrors(ctx context.Context, n int64)
}

// Discovery probes successive identifiers forward from the durable cursor and
// persists newly found priced entries as pending records.
type Discovery struct {
	gate       *sync.Mutex
	gateway    CatalogGateway
	records    RecordStore
	cursor     CursorStore
	metrics    Metrics
	probeCount int64
	logger     logger.Logger
}

// NewDiscovery creates a discovery scanner probing probeCount ids per run.
func NewDiscovery(
	gate *sync.Mutex,
	gateway CatalogGateway,
	records RecordStore,
	cursor CursorStore,
	metrics Metrics,
	probeCount int64,
	log logger.Logger,
) *Discovery {
	return &Discovery{
		gate:       gate,
		gateway:    gateway,
		records:    records,
		cursor:     cursor,
		metrics:    metrics,
		probeCount: probeCount,
		logger:     log,
	}
}

// Run executes one discovery pass. The cursor advances to start+probeCount
// only when every probe in the window completed without a hard error; an
// aborted run leaves the cursor untouched so the same window is retried on
// the next invocation. Rows flushed before an abort stay committed; the
// insert is conflict-guarded, so a retried window cannot duplicate them.
func (d *Discovery) Run(ctx context.Context) error {
	d.gate.Lock()
	defer d.gate.Unlock()

	runLog := d.logger.With(
		logger.String("job", "discovery"),
		logger.String("run_id", uuid.NewString()),
	)

	start, err := d.cursor.Get(ctx)
	if err != nil {
		runLog.Error("failed to read scan cursor", logger.Error(err))
		return err
	}

	runLog.Info("discovery run started",
		logger.Int64("cursor", start),
		logger.Int64("probe_count", d.probeCount))

	batch := make([]domain.CatalogRecord, 0, insertBatchSize)
	inserted := 0
	skipped := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if insertErr := d.records.InsertBatch(ctx, batch); insertErr != nil {
			runLog.Error("failed to insert discovered records",
				logger.Int("batch_size", len(batch)),
				logger.Error(insertErr))
			return insertErr
		}
		inserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for id := start + 1; id <= start+d.probeCount; id++ {
		details, fetchErr := d.gateway.Fetch(ctx, id, storefront.FiltersPricing)
		if fetchErr != nil {
			d.abort(ctx, runLog, id, fetchErr)
			return fetchErr
		}

		if !details.Available {
			runLog.Debug("entity unavailable in region", logger.Int64("app_id", id))
			skipped++
			continue
		}
		if details.Price == nil {
			runLog.Debug("entity carries no pricing payload", logger.Int64("app_id", id))
			skipped++
			continue
		}

		rec, recErr := domain.NewCatalogRecord(id, details.Price.Initial, details.Price.DiscountPercent)
		if recErr != nil {
			runLog.Warn("discarding record with invalid pricing",
				logger.Int64("app_id", id),
				logger.Error(recErr))
			skipped++
			continue
		}

		batch = append(batch, *rec)
		if len(batch) == insertBatchSize {
			if flushErr := flush(); flushErr != nil {
				return flushErr
			}
		}
	}

	if flushErr := flush(); flushErr != nil {
		return flushErr
	}

	if cursorErr := d.cursor.Set(ctx, start+d.probeCount); cursorErr != nil {
		runLog.Error("failed to advance scan cursor", logger.Error(cursorErr))
		return cursorErr
	}

	if d.metrics != nil {
		d.metrics.AddDiscovered(ctx, int64(inserted))
		d.metrics.AddSkipped(ctx, int64(skipped))
	}

	runLog.Info("discovery run completed",
		logger.Int64("cursor", start+d.probeCount),
		logger.Int("inserted", inserted),
		logger.Int("skipped", skipped))
	return nil
}

func (d *Discovery) abort(ctx context.Context, runLog logger.Logger, id int64, err error) {
	if errors.Is(err, storefront.ErrMalformed) {
		runLog.Error("storefront contract changed, aborting discovery run",
			logger.Int64("app_id", id),
			logger.Error(err))
	} else {
		runLog.Warn("discovery run aborted, deferring window to next invocation",
			logger.Int64("app_id", id),
			logger.Error(err))
	}
	if d.metrics != nil {
		d.metrics.AddErrors(ctx, 1)
	}
}
