package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dir is the embedded migrations directory.
const Dir = "migrations"

// Run executes a goose command ("up", "down", "status", "version", ...)
// against the embedded migrations.
func Run(ctx context.Context, db *sql.DB, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, Dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MaybeAutoRun applies pending migrations on boot when enabled.
func MaybeAutoRun(ctx context.Context, enabled bool, db *sql.DB, log *slog.Logger) error {
	if !enabled {
		return nil
	}
	log.Info("running goose migrations", "dir", Dir)
	if err := Run(ctx, db, "up"); err != nil {
		return err
	}
	log.Info("goose migrations completed")
	return nil
}
