package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements are applied in order on startup. All statements are
// idempotent so a restart never fails on an existing schema.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS catalog_records (
		app_id           BIGINT PRIMARY KEY,
		discount_percent INT NOT NULL,
		initial_price    NUMERIC(12,2) NOT NULL,
		status           TEXT NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_records_status_updated_at
		ON catalog_records (status, updated_at)`,
	`CREATE TABLE IF NOT EXISTS scan_cursor (
		id          INT PRIMARY KEY CHECK (id = 1),
		last_app_id BIGINT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the pipeline tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
