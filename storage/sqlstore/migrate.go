package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies every pending migration for the dialect and returns the
// resulting schema version.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) (int64, error) {
	dir, err := fs.Sub(migrations, "migrations/"+string(d))
	if err != nil {
		return 0, fmt.Errorf("loading %s migrations: %w", d, err)
	}
	provider, err := goose.NewProvider(d.gooseDialect(), db, dir)
	if err != nil {
		return 0, fmt.Errorf("creating migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return 0, fmt.Errorf("applying migrations: %w", err)
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
