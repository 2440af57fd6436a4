package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; schema_migrations records the last
// applied version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS active_events (
		bucket      TEXT NOT NULL,
		signature   TEXT NOT NULL,
		title       TEXT NOT NULL,
		event_type  TEXT NOT NULL DEFAULT '',
		display_time TEXT NOT NULL DEFAULT '',
		date_start  TEXT NOT NULL,
		date_end    TEXT NOT NULL,
		urls        TEXT NOT NULL,
		source_rank INTEGER NOT NULL,
		PRIMARY KEY (bucket, signature)
	);
	CREATE TABLE IF NOT EXISTS archive_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		bucket      TEXT NOT NULL,
		signature   TEXT NOT NULL,
		title       TEXT NOT NULL,
		event_type  TEXT NOT NULL DEFAULT '',
		display_time TEXT NOT NULL DEFAULT '',
		date_start  TEXT NOT NULL,
		date_end    TEXT NOT NULL,
		urls        TEXT NOT NULL,
		source_rank INTEGER NOT NULL,
		archived_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		started_at      TEXT NOT NULL,
		finished_at     TEXT NOT NULL,
		raw_count       INTEGER NOT NULL,
		skipped_count   INTEGER NOT NULL,
		canonical_count INTEGER NOT NULL,
		new_count       INTEGER NOT NULL,
		archived_count  INTEGER NOT NULL
	);`,
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES (?)`, i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}
