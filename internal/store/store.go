// Package store persists canonical events between runs in SQLite. Active
// buckets are replaced wholesale at the end of each run; the archive only
// ever grows, fed by the rollover of expired active entries.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	appLog "afisz/internal/log"
)

// Bucket names for the active tables. The archive is shared.
const (
	BucketUpcoming = "upcoming"
	BucketOngoing  = "ongoing"
)

// Buckets lists every active bucket, in persistence order.
var Buckets = []string{BucketUpcoming, BucketOngoing}

// ErrLocked means another run holds the store. Concurrent runs against the
// same store are rejected rather than interleaved.
var ErrLocked = errors.New("store: already locked by another process")

// Store is the durable record of prior-run canonical events.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open locks dir for this run and opens (or creates) the event database in
// it. A database that cannot be opened or migrated is quarantined with a
// .corrupt suffix and recreated empty, so a damaged store degrades to a
// cold start instead of failing the run.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "afisz.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	dbPath := filepath.Join(dir, "events.db")
	db, err := openDB(dbPath)
	if err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%d", dbPath, time.Now().Unix())
		appLog.Warn("event store unreadable, quarantining and starting cold",
			"err", err, "path", dbPath, "quarantine", quarantine)
		if renameErr := os.Rename(dbPath, quarantine); renameErr != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("quarantine corrupt store: %w", renameErr)
		}
		db, err = openDB(dbPath)
		if err != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("recreate store: %w", err)
		}
	}

	return &Store{db: db, path: dbPath, lock: lock}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the database and the run lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
		s.db = nil
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
		s.lock = nil
	}
	return err
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}
