// Package sqlite implements the catalog event log and document projection on
// SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tellingsounds/lama/internal/platform/storage/sqlitemigrate"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
	"github.com/tellingsounds/lama/internal/services/catalog/storage/sqlite/migrations"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	_ storage.EventStore      = (*Store)(nil)
	_ storage.ProjectionStore = (*Store)(nil)
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// querier is the subset of *sql.DB and *sql.Tx the store issues statements on.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a SQLite database holding either the event log or the projection.
type Store struct {
	sqlDB *sql.DB
	q     querier
	inTx  bool
}

func (s *Store) withTx(tx *sql.Tx) *Store {
	cloned := *s
	cloned.q = tx
	cloned.inTx = true
	return &cloned
}

// OpenEvents opens the event log at path and applies its migrations.
func OpenEvents(ctx context.Context, path string) (*Store, error) {
	store, err := openStore(path)
	if err != nil {
		return nil, err
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, store.sqlDB, migrations.EventsFS, "events"); err != nil {
		_ = store.sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// OpenProjections opens the document projection at path and ensures its schema.
func OpenProjections(ctx context.Context, path string) (*Store, error) {
	store, err := openStore(path)
	if err != nil {
		return nil, err
	}
	if err := sqlitemigrate.ExecSchema(ctx, store.sqlDB, migrations.ProjectionsFS, "projections"); err != nil {
		_ = store.sqlDB.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database. It is nil-safe.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func openStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{sqlDB: sqlDB, q: sqlDB}, nil
}

// runTx runs fn in a transaction, or directly when s is already transactional.
func (s *Store) runTx(ctx context.Context, fn func(*Store) error) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if s.inTx {
		return fn(s)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(s.withTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
