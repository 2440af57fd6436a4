package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afisz/internal/event"
	"afisz/internal/signature"
	"afisz/internal/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func canonical(title string, start, end time.Time) event.Canonical {
	return event.Canonical{
		Signature: signature.Compute(title),
		Title:     title,
		EventType: "Koncerty",
		Time:      "19:00",
		DateStart: start,
		DateEnd:   end,
		URLs:      []string{"https://example.pl/a", "https://example.pl/b"},
		BestRank:  1,
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReplaceAndLoadBucketRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	events := []event.Canonical{
		canonical("Koncert B", date(2025, 8, 20), date(2025, 8, 20)),
		canonical("Koncert A", date(2025, 8, 10), date(2025, 8, 12)),
	}
	require.NoError(t, s.ReplaceBucket(ctx, store.BucketUpcoming, events))

	got, err := s.LoadBucket(ctx, store.BucketUpcoming)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by start date; all fields round-trip.
	assert.Equal(t, "Koncert A", got[0].Title)
	assert.Equal(t, events[1], got[0])
	assert.Equal(t, events[0], got[1])

	// Buckets are independent.
	ongoing, err := s.LoadBucket(ctx, store.BucketOngoing)
	require.NoError(t, err)
	assert.Empty(t, ongoing)
}

func TestReplaceBucketDiscardsPreviousContents(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceBucket(ctx, store.BucketOngoing, []event.Canonical{
		canonical("Stara Wystawa", date(2025, 1, 1), date(2025, 6, 1)),
		canonical("Jeszcze Starsza", date(2024, 1, 1), date(2025, 3, 1)),
	}))
	require.NoError(t, s.ReplaceBucket(ctx, store.BucketOngoing, []event.Canonical{
		canonical("Nowa Wystawa", date(2025, 7, 1), date(2025, 12, 1)),
	}))

	got, err := s.LoadBucket(ctx, store.BucketOngoing)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Nowa Wystawa", got[0].Title)
}

func TestRolloverArchivesExpiredEntries(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	expired := canonical("Zakończony Festiwal", date(2025, 8, 1), date(2025, 8, 10))
	active := canonical("Trwający Festiwal", date(2025, 8, 1), date(2025, 8, 25))
	require.NoError(t, s.ReplaceBucket(ctx, store.BucketUpcoming, []event.Canonical{expired, active}))

	now := date(2025, 8, 20)
	delta, err := s.Rollover(ctx, store.BucketUpcoming, now)
	require.NoError(t, err)
	require.Len(t, delta, 1)
	assert.Equal(t, "Zakończony Festiwal", delta[0].Title)

	// The archived entry is gone from the diff baseline.
	remaining, err := s.LoadBucket(ctx, store.BucketUpcoming)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Trwający Festiwal", remaining[0].Title)

	n, err := s.ArchiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRolloverIsOneWayAndIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	expired := canonical("Miniony Koncert", date(2025, 8, 1), date(2025, 8, 10))
	require.NoError(t, s.ReplaceBucket(ctx, store.BucketUpcoming, []event.Canonical{expired}))

	now := date(2025, 8, 20)
	first, err := s.Rollover(ctx, store.BucketUpcoming, now)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A second pass finds nothing; the archived entry never returns.
	second, err := s.Rollover(ctx, store.BucketUpcoming, now)
	require.NoError(t, err)
	assert.Empty(t, second)

	remaining, err := s.LoadBucket(ctx, store.BucketUpcoming)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	n, err := s.ArchiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestArchiveOnlyGrows(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceBucket(ctx, store.BucketOngoing, []event.Canonical{
		canonical("Pierwszy", date(2025, 1, 1), date(2025, 2, 1)),
	}))
	_, err := s.Rollover(ctx, store.BucketOngoing, date(2025, 3, 1))
	require.NoError(t, err)

	require.NoError(t, s.ReplaceBucket(ctx, store.BucketOngoing, []event.Canonical{
		canonical("Drugi", date(2025, 3, 1), date(2025, 4, 1)),
	}))
	_, err = s.Rollover(ctx, store.BucketOngoing, date(2025, 5, 1))
	require.NoError(t, err)

	n, err := s.ArchiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRolloverEmptyStoreIsNoOp(t *testing.T) {
	s := openStore(t)

	delta, err := s.Rollover(context.Background(), store.BucketUpcoming, date(2025, 8, 20))
	require.NoError(t, err)
	assert.Empty(t, delta)
}

func TestOpenRejectsConcurrentRun(t *testing.T) {
	dir := t.TempDir()

	first, err := store.Open(dir)
	require.NoError(t, err)
	defer first.Close()

	_, err = store.Open(dir)
	assert.ErrorIs(t, err, store.ErrLocked)
}

func TestCorruptDatabaseIsQuarantined(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "events.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("definitely not sqlite"), 0o600))

	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	// Cold start: nothing persisted.
	got, err := s.LoadBucket(context.Background(), store.BucketOngoing)
	require.NoError(t, err)
	assert.Empty(t, got)

	// The damaged file is kept for inspection.
	matches, err := filepath.Glob(dbPath + ".corrupt-*")
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestRecordRunAndLastRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	last, err := s.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	rec := store.RunRecord{
		ID:             "run-1",
		StartedAt:      time.Date(2025, 8, 20, 6, 0, 0, 0, time.UTC),
		FinishedAt:     time.Date(2025, 8, 20, 6, 1, 0, 0, time.UTC),
		RawCount:       42,
		SkippedCount:   2,
		CanonicalCount: 38,
		NewCount:       3,
		ArchivedCount:  1,
	}
	require.NoError(t, s.RecordRun(ctx, rec))

	last, err = s.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, rec, *last)
}
