// Package diff reports which events of the current run were not present in
// the previously persisted baseline.
package diff

import (
	"sort"

	"afisz/internal/event"
	"afisz/internal/signature"
)

// DetectNew returns the events of current whose signature does not occur in
// baseline, sorted by title ascending. An empty baseline is a cold start and
// reports every current event as new. Neither input is mutated.
func DetectNew(current, baseline []event.Canonical) []event.Canonical {
	seen := make(map[signature.Key]struct{}, len(baseline))
	for _, b := range baseline {
		seen[b.Signature] = struct{}{}
	}

	var out []event.Canonical
	for _, c := range current {
		if _, ok := seen[c.Signature]; ok {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}
