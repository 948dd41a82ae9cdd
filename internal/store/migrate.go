package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationResult reports one applied migration.
type MigrationResult struct {
	Version int64
	Path    string
}

// Migrate applies pending migrations on an attached backend and reports
// what ran. Already-applied versions are skipped.
func (b *Backend) Migrate(ctx context.Context) ([]MigrationResult, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	provider, err := newProvider(db, b.Driver())
	if err != nil {
		return nil, err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	out := make([]MigrationResult, 0, len(results))
	for _, r := range results {
		if r.Source == nil {
			continue
		}
		out = append(out, MigrationResult{Version: r.Source.Version, Path: r.Source.Path})
	}
	return out, nil
}

// migrate brings a freshly opened database to the latest schema.
func migrate(ctx context.Context, db *sqlx.DB, driver string) error {
	provider, err := newProvider(db, driver)
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// newProvider builds a goose provider over the embedded migrations. Each
// migration runs in its own transaction.
func newProvider(db *sqlx.DB, driver string) (*goose.Provider, error) {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations sub-fs: %w", err)
	}
	dialect := goose.DialectSQLite3
	if driver == types.DriverPostgres {
		dialect = goose.DialectPostgres
	}
	provider, err := goose.NewProvider(dialect, db.DB, sub)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider, nil
}

// SchemaVersion returns the highest applied migration version.
func (b *Backend) SchemaVersion(ctx context.Context) (int64, error) {
	db, err := b.handle()
	if err != nil {
		return 0, err
	}
	provider, err := newProvider(db, b.Driver())
	if err != nil {
		return 0, err
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
