// Package pipeline orchestrates one full run: roll expired persisted events
// into the archive, fetch every source, reconcile, categorize, diff against
// the persisted baseline, then persist and render the fresh partition.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"afisz/internal/categorize"
	"afisz/internal/config"
	"afisz/internal/diff"
	"afisz/internal/event"
	appLog "afisz/internal/log"
	"afisz/internal/reconcile"
	"afisz/internal/render"
	"afisz/internal/source"
	"afisz/internal/store"
)

// Deps wires the pipeline's collaborators. Store and Adapters are built by
// the caller so tests can substitute fakes.
type Deps struct {
	Cfg      *config.Config
	Store    *store.Store
	Adapters []source.Adapter
	// Now supplies the current time; nil means time.Now.
	Now func() time.Time
	// DryRun skips rollover, persistence and rendering; the report still
	// carries what would have been written.
	DryRun bool
}

// Report is the outcome of one run, handed to the CLI and the status API.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	RawCount       int `json:"raw_count"`
	SkippedCount   int `json:"skipped_count"`
	CanonicalCount int `json:"canonical_count"`
	ArchivedCount  int `json:"archived_count"`

	// AdapterErrors maps source id → error text for sources that failed
	// this run. A failed source never aborts the run.
	AdapterErrors map[string]string `json:"adapter_errors,omitempty"`

	// NewItems maps diffed bucket → events absent from the baseline.
	NewItems map[string][]event.Canonical `json:"new_items"`

	Partition *categorize.Partition `json:"partition"`
}

// NewTotal counts new items across all diffed buckets.
func (r *Report) NewTotal() int {
	n := 0
	for _, items := range r.NewItems {
		n += len(items)
	}
	return n
}

// Run executes one pipeline pass.
func Run(ctx context.Context, deps Deps) (*Report, error) {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	rep := &Report{
		RunID:         uuid.NewString(),
		StartedAt:     now(),
		AdapterErrors: make(map[string]string),
		NewItems:      make(map[string][]event.Canonical),
	}
	appLog.Info("run starting", "run_id", rep.RunID, "sources", len(deps.Adapters), "dry_run", deps.DryRun)

	rules, err := categorize.NewRules(deps.Cfg.OngoingThresholdDays, deps.Cfg.TheaterMarker)
	if err != nil {
		return nil, err
	}

	// Expired persisted events leave the active buckets first; the reduced
	// stores are this run's diff baseline.
	if !deps.DryRun {
		for _, bucket := range store.Buckets {
			archived, err := deps.Store.Rollover(ctx, bucket, now())
			if err != nil {
				return nil, fmt.Errorf("rollover %s: %w", bucket, err)
			}
			rep.ArchivedCount += len(archived)
			if len(archived) > 0 {
				appLog.Info("rolled over expired events", "bucket", bucket, "count", len(archived))
			}
		}
	}

	raws := fetchAll(ctx, deps.Adapters, rep)
	rep.RawCount = len(raws)

	canonical, stats := reconcile.Reconcile(raws)
	rep.SkippedCount = stats.Skipped
	rep.CanonicalCount = len(canonical)

	partition := categorize.Categorize(reconcile.Events(canonical), rules)
	rep.Partition = partition

	for _, bucket := range deps.Cfg.DiffBuckets {
		baseline, err := deps.Store.LoadBucket(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("load baseline %s: %w", bucket, err)
		}
		rep.NewItems[bucket] = diff.DetectNew(bucketEvents(partition, bucket), baseline)
	}

	if !deps.DryRun {
		for _, bucket := range store.Buckets {
			if err := deps.Store.ReplaceBucket(ctx, bucket, bucketEvents(partition, bucket)); err != nil {
				return nil, fmt.Errorf("persist %s: %w", bucket, err)
			}
		}
		if err := render.WritePartition(deps.Cfg.OutputDir, partition, rep.NewItems); err != nil {
			return nil, err
		}
	}

	rep.FinishedAt = now()
	if !deps.DryRun {
		if err := deps.Store.RecordRun(ctx, store.RunRecord{
			ID:             rep.RunID,
			StartedAt:      rep.StartedAt,
			FinishedAt:     rep.FinishedAt,
			RawCount:       rep.RawCount,
			SkippedCount:   rep.SkippedCount,
			CanonicalCount: rep.CanonicalCount,
			NewCount:       rep.NewTotal(),
			ArchivedCount:  rep.ArchivedCount,
		}); err != nil {
			return nil, err
		}
	}

	appLog.Info("run finished",
		"run_id", rep.RunID,
		"raw", rep.RawCount,
		"skipped", rep.SkippedCount,
		"canonical", rep.CanonicalCount,
		"archived", rep.ArchivedCount,
		"new", rep.NewTotal(),
	)
	return rep, nil
}

// fetchAll runs every adapter concurrently. Arrival order is irrelevant to
// the reconciler, so results are appended as they complete; a failed source
// is reported and skipped.
func fetchAll(ctx context.Context, adapters []source.Adapter, rep *Report) []event.Raw {
	var (
		mu   sync.Mutex
		raws []event.Raw
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range adapters {
		g.Go(func() error {
			records, err := a.Fetch(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rep.AdapterErrors[a.ID()] = err.Error()
				appLog.Error("source fetch failed", err, "id", a.ID())
				return nil
			}
			raws = append(raws, records...)
			return nil
		})
	}
	_ = g.Wait() // adapter errors are collected, never propagated

	return raws
}

// bucketEvents maps a persisted bucket name onto the partition slice it
// stores: ongoing events on their own, everything else as upcoming.
func bucketEvents(p *categorize.Partition, bucket string) []event.Canonical {
	if bucket == store.BucketOngoing {
		return p.Ongoing
	}
	return p.Upcoming()
}
