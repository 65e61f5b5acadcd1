// Package migrations applies the embedded SQLite schema in filename order.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
)

type migration struct {
	name string
	sql  string
}

// Run applies every migration in FS that is not yet recorded in
// schema_migrations. Each file runs in its own transaction together with
// its bookkeeping row.
func Run(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	pending, err := pendingMigrations(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		slog.Info("migration applied", "file", m.name)
	}
	return nil
}

func pendingMigrations(ctx context.Context, db *sql.DB) ([]migration, error) {
	names, err := fs.Glob(FS, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}
	slices.Sort(names)

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("get applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get applied migrations: %w", err)
	}

	var pending []migration
	for _, name := range names {
		if applied[name] {
			slog.Debug("migration already applied", "file", name)
			continue
		}
		content, err := fs.ReadFile(FS, path.Clean(name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		pending = append(pending, migration{name: name, sql: string(content)})
	}
	return pending, nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("execute sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", m.name); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}
