package localstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies all pending schema migrations using goose's
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("localstore: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("localstore: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("localstore: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// ensureUserIDColumn implements spec §4.2's schema-evolution policy: a
// documents table that pre-dates user scoping is given a user_id column on
// startup rather than failing. Fresh stores created by runMigrations
// already have the column, so this is a no-op for them.
func ensureUserIDColumn(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA table_info(documents)`)
	if err != nil {
		return fmt.Errorf("localstore: inspecting documents schema: %w", err)
	}
	defer rows.Close()

	hasUserID := false

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			dfltValue  any
			primaryKey int
		)

		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &primaryKey); err != nil {
			return fmt.Errorf("localstore: scanning documents schema: %w", err)
		}

		if name == "user_id" {
			hasUserID = true
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("localstore: reading documents schema: %w", err)
	}

	if hasUserID {
		return nil
	}

	if _, err := db.ExecContext(ctx, `ALTER TABLE documents ADD COLUMN user_id TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("localstore: adding user_id column: %w", err)
	}

	return nil
}
