package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// CursorRepository stores the discovery scan high-water-mark as a single
// durable row. The cursor is the highest identifier already probed; it is
// deliberately independent of the records table, because a probed id with no
// record (unavailable or unpriced entity) must still never be re-probed.
type CursorRepository struct {
	db *sqlx.DB
}

// NewCursorRepository creates a new repository.
func NewCursorRepository(db *sqlx.DB) *CursorRepository {
	return &CursorRepository{db: db}
}

// Get retrieves the current scan cursor. A missing row means the scan has
// never run and starts from identifier 1, so 0 is returned without error.
func (r *CursorRepository) Get(ctx context.Context) (int64, error) {
	var lastAppID int64
	query := `SELECT last_app_id FROM scan_cursor WHERE id = 1`

	err := r.db.GetContext(ctx, &lastAppID, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get cursor: %w", err)
	}
	return lastAppID, nil
}

// Set advances the scan cursor. Called only after a discovery run completed
// its full probe window without a hard error.
func (r *CursorRepository) Set(ctx context.Context, lastAppID int64) error {
	query := `
		INSERT INTO scan_cursor (id, last_app_id, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			last_app_id = EXCLUDED.last_app_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, lastAppID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update cursor: %w", err)
	}
	return nil
}
