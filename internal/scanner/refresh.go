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

// Refresh re-queries published records past the staleness threshold and flips
// drifted ones back to pending so they get re-announced.
type Refresh struct {
	gate        *sync.Mutex
	gateway     CatalogGateway
	records     RecordStore
	metrics     Metrics
	updateLimit int
	logger      logger.Logger
}

// NewRefresh creates a refresh scanner handling at most updateLimit rows per run.
func NewRefresh(
	gate *sync.Mutex,
	gateway CatalogGateway,
	records RecordStore,
	metrics Metrics,
	updateLimit int,
	log logger.Logger,
) *Refresh {
	return &Refresh{
		gate:        gate,
		gateway:     gateway,
		records:     records,
		metrics:     metrics,
		updateLimit: updateLimit,
		logger:      log,
	}
}

// Run executes one refresh pass. A hard gateway error aborts the run and
// defers the remaining rows to the next invocation. Entities no longer
// available in the region are frozen in place: no mutation, no status flip.
func (r *Refresh) Run(ctx context.Context) error {
	r.gate.Lock()
	defer r.gate.Unlock()

	runLog := r.logger.With(
		logger.String("job", "refresh"),
		logger.String("run_id", uuid.NewString()),
	)

	stale, err := r.records.FetchStalePublished(ctx, r.updateLimit)
	if err != nil {
		runLog.Error("failed to select stale records", logger.Error(err))
		return err
	}

	if len(stale) == 0 {
		runLog.Info("no stale published records")
		return nil
	}

	runLog.Info("refresh run started", logger.Int("stale_count", len(stale)))

	updated := 0
	for i := range stale {
		rec := &stale[i]

		details, fetchErr := r.gateway.Fetch(ctx, rec.AppID, storefront.FiltersPricing)
		if fetchErr != nil {
			r.abort(ctx, runLog, rec.AppID, fetchErr)
			return fetchErr
		}

		if !details.Available {
			// Delisted in this region: deliberately frozen, not deleted.
			runLog.Debug("entity no longer available, freezing record",
				logger.Int64("app_id", rec.AppID))
			continue
		}
		if details.Price == nil {
			runLog.Debug("entity no longer priced, leaving record unchanged",
				logger.Int64("app_id", rec.AppID))
			continue
		}

		if rec.PricingEquals(details.Price.Initial, details.Price.DiscountPercent) {
			continue
		}

		newPrice := float64(details.Price.Initial) / domain.MinorUnitsPerUnit
		if updateErr := r.records.UpdatePricing(ctx, rec.AppID, newPrice, details.Price.DiscountPercent); updateErr != nil {
			runLog.Error("failed to update record pricing",
				logger.Int64("app_id", rec.AppID),
				logger.Error(updateErr))
			return updateErr
		}

		updated++
		// Counted per row so an abort later in the walk loses nothing.
		if r.metrics != nil {
			r.metrics.AddRefreshed(ctx, 1)
		}
		runLog.Info("record pricing drifted, queued for re-announcement",
			logger.Int64("app_id", rec.AppID),
			logger.Float64("price", newPrice),
			logger.Int("discount_percent", details.Price.DiscountPercent))
	}

	runLog.Info("refresh run completed",
		logger.Int("checked", len(stale)),
		logger.Int("updated", updated))
	return nil
}

func (r *Refresh) abort(ctx context.Context, runLog logger.Logger, id int64, err error) {
	if errors.Is(err, storefront.ErrMalformed) {
		runLog.Error("storefront contract changed, aborting refresh run",
			logger.Int64("app_id", id),
			logger.Error(err))
	} else {
		runLog.Warn("refresh run aborted, deferring remaining rows",
			logger.Int64("app_id", id),
			logger.Error(err))
	}
	if r.metrics != nil {
		r.metrics.AddErrors(ctx, 1)
	}
}
