package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"afisz/internal/event"
	"afisz/internal/signature"
)

const dateLayout = "2006-01-02"

// LoadBucket reads every event of an active bucket, ordered by start date
// then title.
func (s *Store) LoadBucket(ctx context.Context, bucket string) ([]event.Canonical, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signature, title, event_type, display_time, date_start, date_end, urls, source_rank
		FROM active_events
		WHERE bucket = ?
		ORDER BY date_start, title`, bucket)
	if err != nil {
		return nil, fmt.Errorf("load bucket %s: %w", bucket, err)
	}
	defer rows.Close()

	var out []event.Canonical
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bucket %s: %w", bucket, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ReplaceBucket writes an active bucket in one transaction, discarding the
// previous contents entirely. Active buckets are replaced, never patched.
func (s *Store) ReplaceBucket(ctx context.Context, bucket string, events []event.Canonical) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace bucket %s: %w", bucket, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM active_events WHERE bucket = ?`, bucket); err != nil {
		return fmt.Errorf("clear bucket %s: %w", bucket, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO active_events
			(bucket, signature, title, event_type, display_time, date_start, date_end, urls, source_rank)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert for %s: %w", bucket, err)
	}
	defer stmt.Close()

	for _, ev := range events {
		urls, err := json.Marshal(ev.URLs)
		if err != nil {
			return fmt.Errorf("encode urls for %q: %w", ev.Title, err)
		}
		if _, err := stmt.ExecContext(ctx,
			bucket, string(ev.Signature), ev.Title, ev.EventType, ev.Time,
			ev.DateStart.Format(dateLayout), ev.DateEnd.Format(dateLayout),
			string(urls), ev.BestRank); err != nil {
			return fmt.Errorf("insert %q into %s: %w", ev.Title, bucket, err)
		}
	}
	return tx.Commit()
}

// Rollover moves active entries of bucket whose end date has passed into the
// archive and returns the archived delta. The transition is one-way; an
// archived entry never returns to the active table. Empty delta when nothing
// qualifies.
func (s *Store) Rollover(ctx context.Context, bucket string, now time.Time) ([]event.Canonical, error) {
	cutoff := now.UTC().Format(dateLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("rollover %s: %w", bucket, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT signature, title, event_type, display_time, date_start, date_end, urls, source_rank
		FROM active_events
		WHERE bucket = ? AND date_end < ?
		ORDER BY date_start, title`, bucket, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select expired in %s: %w", bucket, err)
	}
	var expired []event.Canonical
	for rows.Next() {
		ev, scanErr := scanEvent(rows)
		if scanErr != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired in %s: %w", bucket, scanErr)
		}
		expired = append(expired, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(expired) == 0 {
		return nil, tx.Commit()
	}

	archivedAt := now.UTC().Format(time.RFC3339)
	for _, ev := range expired {
		urls, err := json.Marshal(ev.URLs)
		if err != nil {
			return nil, fmt.Errorf("encode urls for %q: %w", ev.Title, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO archive_events
				(bucket, signature, title, event_type, display_time, date_start, date_end, urls, source_rank, archived_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			bucket, string(ev.Signature), ev.Title, ev.EventType, ev.Time,
			ev.DateStart.Format(dateLayout), ev.DateEnd.Format(dateLayout),
			string(urls), ev.BestRank, archivedAt); err != nil {
			return nil, fmt.Errorf("archive %q: %w", ev.Title, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM active_events WHERE bucket = ? AND date_end < ?`, bucket, cutoff); err != nil {
		return nil, fmt.Errorf("delete expired in %s: %w", bucket, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return expired, nil
}

// ArchiveCount reports how many entries the archive holds.
func (s *Store) ArchiveCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archive_events`).Scan(&n)
	return n, err
}

func scanEvent(rows *sql.Rows) (event.Canonical, error) {
	var (
		ev    event.Canonical
		sig   string
		start string
		end   string
		urls  string
	)
	if err := rows.Scan(&sig, &ev.Title, &ev.EventType, &ev.Time, &start, &end, &urls, &ev.BestRank); err != nil {
		return ev, err
	}
	ev.Signature = signature.Key(sig)

	var err error
	if ev.DateStart, err = time.ParseInLocation(dateLayout, start, time.UTC); err != nil {
		return ev, fmt.Errorf("parse date_start %q: %w", start, err)
	}
	if ev.DateEnd, err = time.ParseInLocation(dateLayout, end, time.UTC); err != nil {
		return ev, fmt.Errorf("parse date_end %q: %w", end, err)
	}
	if err := json.Unmarshal([]byte(urls), &ev.URLs); err != nil {
		return ev, fmt.Errorf("decode urls: %w", err)
	}
	return ev, nil
}
