// Package storage selects and opens the backend that persists accounts,
// sessions and revoked tokens.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cameronmore/authd/accounts"
	"github.com/cameronmore/authd/sessions"
	"github.com/cameronmore/authd/storage/bolt"
	"github.com/cameronmore/authd/storage/memory"
	"github.com/cameronmore/authd/storage/sqlstore"
	"github.com/cameronmore/authd/tokens"
)

// Store is everything the auth layer persists.
type Store interface {
	accounts.Store
	sessions.Store
	tokens.RevocationStore
	Close() error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*sqlstore.Store)(nil)
	_ Store = (*bolt.Store)(nil)
)

// ErrNoMigrations is returned by Migrate for drivers without a SQL schema.
var ErrNoMigrations = errors.New("driver has no migrations")

// Open returns the store for driver. SQL drivers are migrated on open.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "memory":
		return memory.New(), nil
	case "bolt":
		return bolt.Open(dsn)
	case "sqlite", "postgres", "mysql":
		d, err := sqlstore.ParseDialect(driver)
		if err != nil {
			return nil, err
		}
		return sqlstore.Open(ctx, d, dsn)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

// Migrate applies pending SQL migrations and returns the schema version.
func Migrate(ctx context.Context, driver, dsn string) (int64, error) {
	d, err := sqlstore.ParseDialect(driver)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", driver, ErrNoMigrations)
	}
	db, err := sqlstore.OpenDB(ctx, d, dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return sqlstore.Migrate(ctx, db, d)
}
