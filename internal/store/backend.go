// Package store implements the Rituo ledger on a relational database.
// SQLite (modernc.org/sqlite) is the embedded default; PostgreSQL (lib/pq)
// is selected with driver "postgres". Both run the same embedded goose
// migrations and the same SQL, rebound to the driver's placeholder style.
//
// The unique (task_id, completion_date) constraint is the final authority
// on "one completion row per task per day". Every write path treats a
// violation of it as "the row already exists", never as a fatal error.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// DatabaseFile is the SQLite file name inside the data directory.
const DatabaseFile = "rituo.db"

// sqlitePragmas enable cascades, WAL and a busy timeout on every connection.
const sqlitePragmas = "?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"

// pingRetries bounds the exponential backoff while the database comes up.
const pingRetries = 5

// Compile-time interface check.
var _ types.Ledger = (*Backend)(nil)

// Backend implements types.Ledger. It is safe for concurrent use; the
// mutex only guards the attach state, the database serializes writes.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.StoreConfig
	db       *sqlx.DB
	timeout  time.Duration
	now      func() time.Time
}

// NewBackend creates a detached backend. Call Attach before use.
func NewBackend() *Backend {
	return &Backend{now: time.Now}
}

// NewBackendFromDB wraps an already-open handle and marks it attached
// without running migrations. The driver name decides the placeholder
// style and the migration dialect.
func NewBackendFromDB(db *sqlx.DB, cfg types.StoreConfig) *Backend {
	return &Backend{
		attached: true,
		config:   cfg,
		db:       db,
		timeout:  cfg.QueryTimeout,
		now:      time.Now,
	}
}

// Attach opens the database described by cfg, waits for it to answer a
// ping and applies pending migrations. It returns ErrAlreadyAttached if
// called twice.
func (b *Backend) Attach(ctx context.Context, cfg types.StoreConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := open(cfg)
	if err != nil {
		return err
	}

	ping := func() error { return db.PingContext(ctx) }
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), pingRetries), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		db.Close()
		return fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	if err := migrate(ctx, db, cfg.Driver); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.config = cfg
	b.timeout = cfg.QueryTimeout
	b.attached = true
	return nil
}

// open creates the connection pool for cfg without touching the database.
func open(cfg types.StoreConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case types.DriverSQLite:
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := sqlx.Open("sqlite", filepath.Join(dataDir, DatabaseFile)+sqlitePragmas)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One writer at a time; a transaction owns the only connection.
		db.SetMaxOpenConns(1)
		return db, nil
	case types.DriverPostgres:
		db, err := sqlx.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	default:
		return nil, types.ErrDriverUnknown
	}
}

// Detach closes the connection pool. It is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	return nil
}

// Ping checks that the database still answers.
func (b *Backend) Ping(ctx context.Context) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return db.PingContext(ctx)
}

// Driver returns the configured driver name.
func (b *Backend) Driver() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.Driver
}

// handle returns the live pool or ErrStoreDetached.
func (b *Backend) handle() (*sqlx.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.db, nil
}

// withTimeout bounds ctx by the configured query timeout, if any.
func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// timestamp formats the current time for created_at columns.
func (b *Backend) timestamp() (time.Time, string) {
	now := b.now().UTC().Truncate(time.Second)
	return now, now.Format(time.RFC3339)
}

// newID generates a UUID v7 for entity IDs.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// parseTimestamp reads an RFC3339 created_at column.
func parseTimestamp(column, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", column, err)
	}
	return t, nil
}
