package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/dealwatch/internal/domain"
)

// recordSelectList is the column list for SELECTs on catalog_records
// (single source for schema changes).
const recordSelectList = `app_id, discount_percent, initial_price, status, updated_at`

// staleInterval is the staleness threshold for refresh selection.
const staleInterval = `1 month`

// RecordRepository manages catalog records in PostgreSQL.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository creates a new repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// InsertBatch inserts newly discovered records in one statement. Re-probed
// identifiers are ignored so a retried scan window never duplicates rows.
func (r *RecordRepository) InsertBatch(ctx context.Context, records []domain.CatalogRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO catalog_records (app_id, discount_percent, initial_price, status, updated_at)
		VALUES (:app_id, :discount_percent, :initial_price, :status, :updated_at)
		ON CONFLICT (app_id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, query, records); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// FetchStalePublished returns up to limit published records whose last
// mutation is older than the staleness threshold. Ordering is left at the
// store default.
func (r *RecordRepository) FetchStalePublished(ctx context.Context, limit int) ([]domain.CatalogRecord, error) {
	query := `
		SELECT ` + recordSelectList + `
		FROM catalog_records
		WHERE status = $1
		  AND updated_at < NOW() - INTERVAL '` + staleInterval + `'
		LIMIT $2`

	records := []domain.CatalogRecord{}
	err := r.db.SelectContext(ctx, &records, query, domain.StatusPublished, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch stale published: %w", err)
	}
	return records, nil
}

// FetchOnePending returns an arbitrary pending record, or domain.ErrNotFound
// when none exists.
func (r *RecordRepository) FetchOnePending(ctx context.Context) (*domain.CatalogRecord, error) {
	query := `
		SELECT ` + recordSelectList + `
		FROM catalog_records
		WHERE status = $1
		LIMIT 1`

	var rec domain.CatalogRecord
	err := r.db.GetContext(ctx, &rec, query, domain.StatusPendingPublish)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch one pending: %w", err)
	}
	return &rec, nil
}

// execExpectOneRow runs an exec and returns domain.ErrNotFound when no row was affected
func (r *RecordRepository) execExpectOneRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdatePricing stores new price and discount for a record, flips it back to
// pending_publish and bumps updated_at. price is in currency units.
func (r *RecordRepository) UpdatePricing(ctx context.Context, appID int64, price float64, discountPercent int) error {
	query := `
		UPDATE catalog_records
		SET discount_percent = $2,
		    initial_price = $3,
		    status = $4,
		    updated_at = NOW()
		WHERE app_id = $1`
	if err := r.execExpectOneRow(ctx, query, appID, discountPercent, price, domain.StatusPendingPublish); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update pricing: %w", err)
	}
	return nil
}

// MarkPublished flips a record to published, touching nothing but status and
// updated_at.
func (r *RecordRepository) MarkPublished(ctx context.Context, appID int64) error {
	query := `
		UPDATE catalog_records
		SET status = $2,
		    updated_at = NOW()
		WHERE app_id = $1`
	if err := r.execExpectOneRow(ctx, query, appID, domain.StatusPublished); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

// Stats returns record counts by status for the ops API.
func (r *RecordRepository) Stats(ctx context.Context) (*domain.StoreStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending_publish') as pending,
			COUNT(*) FILTER (WHERE status = 'published') as published,
			COUNT(*) as total
		FROM catalog_records`

	var stats domain.StoreStats
	err := r.db.QueryRowContext(ctx, query).Scan(&stats.Pending, &stats.Published, &stats.Total)
	if err != nil {
		return nil, fmt.Errorf("get record stats: %w", err)
	}
	return &stats, nil
}

// Ping verifies database connectivity for health checks.
func (r *RecordRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
