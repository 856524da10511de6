// Package db implements the bucket store every NAPI entity lives in: a
// keyed JSON object store over SQLite with per-object etags, filtered
// queries over declared index fields, all-or-nothing batches and an integer
// gap scan for the IP allocator.
//
// One SQL table per bucket. Every row carries the object JSON, a fresh etag
// per write, and one real column per indexed field so filters and sorts run
// in the engine. Linearizable single-key writes and serializable batches
// follow from running every statement inside a transaction on a single
// connection.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/netfabric/napi/shared/logger"
)

// DefaultBusyTimeout is how long SQLite waits on a locked database before
// reporting SQLITE_BUSY.
const DefaultBusyTimeout = 5 * time.Second

// Store is a handle on the bucket store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string

	mu      sync.RWMutex
	buckets map[string]*bucketInfo
}

// Open opens (creating if needed) the bucket store at path. The special
// path ":memory:" opens a throwaway in-memory store.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", path, busyTimeout.Milliseconds())
	if path == ":memory:" {
		dsn = fmt.Sprintf("file::memory:?_busy_timeout=%d", busyTimeout.Milliseconds())
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket store %q: %w", path, err)
	}

	// A single connection serializes writers, which is what SQLite wants,
	// and keeps in-memory stores alive across calls.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	s := &Store{
		db:      sqlDB,
		path:    path,
		buckets: map[string]*bucketInfo{},
	}

	err = s.init(context.Background())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return s, nil
}

// init creates the bucket catalog and loads the schemas of any buckets that
// already exist.
func (s *Store) init(ctx context.Context) error {
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS napi_buckets (
    name         TEXT PRIMARY KEY,
    version      INTEGER NOT NULL,
    key_kind     TEXT NOT NULL,
    fields       TEXT NOT NULL,
    data_version INTEGER NOT NULL DEFAULT 0
)
`)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to initialize bucket catalog: %w", err)
	}

	return s.loadCatalog(ctx)
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the store is reachable. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// transaction runs f inside a database transaction, rolling back on error.
func (s *Store) transaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = f(tx)
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil && rbErr != sql.ErrTxDone {
			logger.Warn("Failed to rollback transaction", logger.Ctx{"err": rbErr, "reason": err})
		}

		return err
	}

	err = tx.Commit()
	if err == sql.ErrTxDone {
		err = nil
	}

	return err
}
