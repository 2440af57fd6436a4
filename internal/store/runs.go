package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunRecord is the per-run metadata row kept alongside the event tables.
type RunRecord struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	RawCount       int
	SkippedCount   int
	CanonicalCount int
	NewCount       int
	ArchivedCount  int
}

// RecordRun appends one run's metadata.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
			(id, started_at, finished_at, raw_count, skipped_count, canonical_count, new_count, archived_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.FinishedAt.UTC().Format(time.RFC3339),
		rec.RawCount, rec.SkippedCount, rec.CanonicalCount, rec.NewCount, rec.ArchivedCount)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.ID, err)
	}
	return nil
}

// LastRun returns the most recently finished run, or nil when no run has
// completed yet.
func (s *Store) LastRun(ctx context.Context) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, raw_count, skipped_count, canonical_count, new_count, archived_count
		FROM runs
		ORDER BY finished_at DESC
		LIMIT 1`)

	var (
		rec      RunRecord
		started  string
		finished string
	)
	err := row.Scan(&rec.ID, &started, &finished,
		&rec.RawCount, &rec.SkippedCount, &rec.CanonicalCount, &rec.NewCount, &rec.ArchivedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load last run: %w", err)
	}

	if rec.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	if rec.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
		return nil, fmt.Errorf("parse finished_at %q: %w", finished, err)
	}
	return &rec, nil
}
