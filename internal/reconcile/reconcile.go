// Package reconcile folds raw per-source observations into a canonical,
// duplicate-free event set keyed by title signature.
package reconcile

import (
	"afisz/internal/event"
	appLog "afisz/internal/log"
	"afisz/internal/signature"
)

// Stats summarizes one reconciliation pass. Skipped counts records rejected
// by validation; they are reported, never merged and never fatal.
type Stats struct {
	Total   int
	Merged  int // records folded into an already-seen signature
	Skipped int
}

// Reconcile folds records into a signature-keyed canonical set.
//
// The result does not depend on arrival order: scalar fields always end up
// coming from the record with the best (lowest) source rank, and the URL set
// is the union over all contributors. When two records of the same rank share
// a signature, the first one seen keeps its scalar fields and the later one
// only contributes its URL.
func Reconcile(records []event.Raw) (map[signature.Key]*event.Canonical, Stats) {
	out := make(map[signature.Key]*event.Canonical)
	var stats Stats

	for _, rec := range records {
		stats.Total++
		if err := rec.Validate(); err != nil {
			stats.Skipped++
			appLog.Warn("skipping malformed record",
				"reason", err,
				"source", rec.Source.ID,
				"title", rec.Title,
			)
			continue
		}

		sig := signature.Compute(rec.Title)
		existing, seen := out[sig]
		if !seen {
			out[sig] = event.FromRaw(rec)
			continue
		}

		stats.Merged++
		existing.AddURL(rec.URL)
		if rec.Source.Rank < existing.BestRank {
			existing.Title = rec.Title
			existing.EventType = rec.EventType
			existing.Time = rec.Time
			existing.DateStart = rec.DateStart
			existing.DateEnd = rec.DateEnd
			existing.BestRank = rec.Source.Rank
		}
	}

	return out, stats
}

// Events flattens a reconciled map into a slice of value copies for the
// stages downstream, which must not alias the fold's storage.
func Events(m map[signature.Key]*event.Canonical) []event.Canonical {
	out := make([]event.Canonical, 0, len(m))
	for _, c := range m {
		out = append(out, c.Clone())
	}
	return out
}
