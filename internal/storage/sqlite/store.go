package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/ordercore/internal/event"
	"github.com/louisbranch/ordercore/internal/journal"
	"github.com/louisbranch/ordercore/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/ordercore/internal/storage"
	"github.com/louisbranch/ordercore/internal/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides a SQLite-backed store implementing all storage interfaces.
type Store struct {
	sqlDB         *sql.DB
	eventRegistry *event.Registry
}

// Open opens a SQLite order store at the provided path.
//
// The event registry is wired at open time so every appended event is
// validated in one place.
func Open(path string, registry *event.Registry) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("event registry is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{
		sqlDB:         sqlDB,
		eventRegistry: registry,
	}

	if err := runMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the underlying SQLite database. Close on a nil store is a
// no-op.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// runMigrations executes embedded SQL migrations. Files are applied in
// lexicographic order to make startup behavior deterministic.
func runMigrations(sqlDB *sql.DB) error {
	return sqlitemigrate.Apply(context.Background(), sqlDB, migrations.OrdersFS, "orders")
}

var _ storage.Store = (*Store)(nil)
var _ journal.Journal = (*Store)(nil)
