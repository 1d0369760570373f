package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/dealwatch/internal/database"
	"github.com/jonesrussell/dealwatch/internal/domain"
)

func newRecordRepo(t *testing.T) (*database.RecordRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	t.Cleanup(func() { db.Close() })

	return database.NewRecordRepository(sqlx.NewDb(db, "postgres")), mock
}

func recordColumns() []string {
	return []string{"app_id", "discount_percent", "initial_price", "status", "updated_at"}
}

func TestRecordRepository_InsertBatch(t *testing.T) {
	repo, mock := newRecordRepo(t)
	ctx := context.Background()

	records := []domain.CatalogRecord{
		{AppID: 5, DiscountPercent: 30, InitialPrice: 1500.0, Status: domain.StatusPendingPublish, UpdatedAt: time.Now()},
		{AppID: 6, DiscountPercent: 10, InitialPrice: 9.99, Status: domain.StatusPendingPublish, UpdatedAt: time.Now()},
	}

	testCases := []struct {
		name      string
		records   []domain.CatalogRecord
		setupMock func()
		wantErr   bool
	}{
		{
			name:    "inserts a batch in one statement",
			records: records,
			setupMock: func() {
				mock.ExpectExec("INSERT INTO catalog_records").
					WillReturnResult(sqlmock.NewResult(0, 2))
			},
			wantErr: false,
		},
		{
			name:      "empty batch issues no statement",
			records:   nil,
			setupMock: func() {},
			wantErr:   false,
		},
		{
			name:    "database error returns error",
			records: records,
			setupMock: func() {
				mock.ExpectExec("INSERT INTO catalog_records").
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			callErr := repo.InsertBatch(ctx, tc.records)
			if (callErr != nil) != tc.wantErr {
				t.Errorf("InsertBatch() error = %v, wantErr %v", callErr, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestRecordRepository_FetchOnePending(t *testing.T) {
	repo, mock := newRecordRepo(t)
	ctx := context.Background()

	testCases := []struct {
		name       string
		setupMock  func()
		wantAppID  int64
		wantErr    error
		wantAnyErr bool
	}{
		{
			name: "returns a pending record",
			setupMock: func() {
				rows := sqlmock.NewRows(recordColumns()).
					AddRow(int64(620), 30, 1500.0, string(domain.StatusPendingPublish), time.Now())
				mock.ExpectQuery("SELECT (.+) FROM catalog_records").
					WithArgs(string(domain.StatusPendingPublish)).
					WillReturnRows(rows)
			},
			wantAppID: 620,
		},
		{
			name: "no pending records returns ErrNotFound",
			setupMock: func() {
				mock.ExpectQuery("SELECT (.+) FROM catalog_records").
					WithArgs(string(domain.StatusPendingPublish)).
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "database error returns error",
			setupMock: func() {
				mock.ExpectQuery("SELECT (.+) FROM catalog_records").
					WithArgs(string(domain.StatusPendingPublish)).
					WillReturnError(sql.ErrConnDone)
			},
			wantAnyErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			rec, callErr := repo.FetchOnePending(ctx)

			switch {
			case tc.wantErr != nil:
				if !errors.Is(callErr, tc.wantErr) {
					t.Errorf("FetchOnePending() error = %v, want %v", callErr, tc.wantErr)
				}
			case tc.wantAnyErr:
				if callErr == nil {
					t.Error("FetchOnePending() expected error, got nil")
				}
			default:
				if callErr != nil {
					t.Fatalf("FetchOnePending() error = %v", callErr)
				}
				if rec.AppID != tc.wantAppID {
					t.Errorf("AppID = %d, want %d", rec.AppID, tc.wantAppID)
				}
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestRecordRepository_FetchStalePublished(t *testing.T) {
	repo, mock := newRecordRepo(t)
	ctx := context.Background()

	rows := sqlmock.NewRows(recordColumns()).
		AddRow(int64(10), 0, 25.0, string(domain.StatusPublished), time.Now().AddDate(0, -2, 0)).
		AddRow(int64(11), 50, 59.99, string(domain.StatusPublished), time.Now().AddDate(0, -3, 0))
	mock.ExpectQuery("SELECT (.+) FROM catalog_records").
		WithArgs(string(domain.StatusPublished), 100).
		WillReturnRows(rows)

	stale, err := repo.FetchStalePublished(ctx, 100)
	if err != nil {
		t.Fatalf("FetchStalePublished() error = %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("len = %d, want 2", len(stale))
	}
	if stale[0].AppID != 10 || stale[1].AppID != 11 {
		t.Errorf("unexpected app ids: %d, %d", stale[0].AppID, stale[1].AppID)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestRecordRepository_UpdatePricing(t *testing.T) {
	repo, mock := newRecordRepo(t)
	ctx := context.Background()

	testCases := []struct {
		name      string
		setupMock func()
		wantErr   error
	}{
		{
			name: "updates pricing and flips status back to pending",
			setupMock: func() {
				mock.ExpectExec("UPDATE catalog_records").
					WithArgs(int64(10), 0, 169.94, string(domain.StatusPendingPublish)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "missing record returns ErrNotFound",
			setupMock: func() {
				mock.ExpectExec("UPDATE catalog_records").
					WithArgs(int64(10), 0, 169.94, string(domain.StatusPendingPublish)).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			callErr := repo.UpdatePricing(ctx, 10, 169.94, 0)
			if tc.wantErr == nil && callErr != nil {
				t.Errorf("UpdatePricing() error = %v", callErr)
			}
			if tc.wantErr != nil && !errors.Is(callErr, tc.wantErr) {
				t.Errorf("UpdatePricing() error = %v, want %v", callErr, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestRecordRepository_MarkPublished(t *testing.T) {
	repo, mock := newRecordRepo(t)
	ctx := context.Background()

	testCases := []struct {
		name      string
		setupMock func()
		wantErr   bool
	}{
		{
			name: "marks a record published",
			setupMock: func() {
				mock.ExpectExec("UPDATE catalog_records").
					WithArgs(int64(620), string(domain.StatusPublished)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "missing record returns error",
			setupMock: func() {
				mock.ExpectExec("UPDATE catalog_records").
					WithArgs(int64(620), string(domain.StatusPublished)).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: true,
		},
		{
			name: "database error returns error",
			setupMock: func() {
				mock.ExpectExec("UPDATE catalog_records").
					WithArgs(int64(620), string(domain.StatusPublished)).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			callErr := repo.MarkPublished(ctx, 620)
			if (callErr != nil) != tc.wantErr {
				t.Errorf("MarkPublished() error = %v, wantErr %v", callErr, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestRecordRepository_Stats(t *testing.T) {
	repo, mock := newRecordRepo(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"pending", "published", "total"}).
		AddRow(int64(3), int64(12), int64(15))
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Pending != 3 || stats.Published != 12 || stats.Total != 15 {
		t.Errorf("Stats() = %+v, want {3 12 15}", stats)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}
