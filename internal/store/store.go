// Package store provides the embedded, transactional record store backing
// the application: SQLite in WAL mode behind database/sql, with typed
// tables declared by the migration registry.
//
// The store is deliberately dumb about the domain. It knows tables,
// records, predicates, and sync metadata; validation, authorization and
// referential cleanup live in the repository layer. Two rules it does
// enforce itself:
//
//   - all mutations happen inside Write, which serializes writers and
//     rejects nested calls with a TransactionError
//   - every mutating helper maintains the record's change marker and
//     sync status, so the change tracker can find dirty rows later
//
// Deleted records (sync_status = 'deleted') are invisible to normal
// reads but retained until a successful push purges them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"liftlog/internal/store/migrate"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned by Get when no live record has the given id.
var ErrNotFound = sql.ErrNoRows

// Store wraps the SQLite connection and the schema registry.
type Store struct {
	db     *sql.DB
	path   string
	reg    *migrate.Registry
	logger *log.Logger

	writeMu   sync.Mutex
	listeners listenerRegistry
}

// Option configures Open.
type Option func(*Store)

// WithRegistry overrides the migration registry (the application schema
// by default). Used by tests that need a reduced schema.
func WithRegistry(reg *migrate.Registry) Option {
	return func(s *Store) { s.reg = reg }
}

// WithLogger sets the store's logger. Defaults to stderr.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens (or creates) the database at path, applies any pending
// migrations, and returns a queryable store. The caller must Close it.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		db:     conn,
		path:   path,
		reg:    migrate.App(),
		logger: log.New(os.Stderr, "[store] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}

	// WAL gives concurrent readers during writes; the busy timeout keeps
	// a second process from failing fast on a locked file.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.db.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := s.reg.Apply(context.Background(), s.db, s.logger); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("warning: failed to checkpoint WAL: %v", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Registry returns the schema registry the store was opened with.
func (s *Store) Registry() *migrate.Registry { return s.reg }

// SchemaVersion reports the schema version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Get returns the live record with the given id. Records marked deleted
// are not visible here; use GetAny to see them.
func (s *Store) Get(ctx context.Context, table, id string) (Record, error) {
	return getRecord(ctx, s.db, s.reg, table, id, false)
}

// GetAny returns the record with the given id regardless of sync status.
func (s *Store) GetAny(ctx context.Context, table, id string) (Record, error) {
	return getRecord(ctx, s.db, s.reg, table, id, true)
}

// Query returns the live records of table matching q, in q's order.
// The result is fully materialized; re-running the same query is safe.
func (s *Store) Query(ctx context.Context, table string, q Query) ([]Record, error) {
	return queryRecords(ctx, s.db, s.reg, table, q)
}

// Count returns the number of live records of table matching conds.
func (s *Store) Count(ctx context.Context, table string, conds ...Cond) (int, error) {
	return countRecords(ctx, s.db, s.reg, table, conds, false)
}

// Subscribe registers fn to run after any committed write that touched
// table. The returned function unregisters it. Callbacks run on the
// writer's goroutine after the transaction commits; keep them short.
func (s *Store) Subscribe(table string, fn func(table string)) (unsubscribe func()) {
	return s.listeners.subscribe(table, fn)
}
