// Package event holds the record types the pipeline passes between stages:
// raw per-source observations and the reconciled canonical events.
package event

import (
	"errors"
	"sort"
	"strings"
	"time"

	"afisz/internal/signature"
)

// Source identifies one listing source. Rank is the declared merge priority:
// lower is better, and the order is total across all configured sources.
type Source struct {
	ID   string
	Name string
	Rank int
}

// Raw is a single unreconciled observation from one source. Adapters produce
// it and never touch it again; the reconciler consumes it exactly once.
type Raw struct {
	Source    Source
	Title     string
	EventType string // optional, e.g. "Festiwale"
	Time      string // optional free-form display hint, e.g. "19:00"
	DateStart time.Time
	DateEnd   time.Time
	URL       string
}

var (
	ErrEmptyTitle    = errors.New("event: empty title")
	ErrEmptyURL      = errors.New("event: empty url")
	ErrInvertedDates = errors.New("event: dateEnd before dateStart")
)

// Validate reports why a raw record must be skipped, or nil.
func (r Raw) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if r.URL == "" {
		return ErrEmptyURL
	}
	if r.DateEnd.Before(r.DateStart) {
		return ErrInvertedDates
	}
	return nil
}

// Canonical is the reconciled representation of one real-world event across
// sources. Scalar fields come from the best-ranked contributing record; URLs
// accumulate from every contributor.
type Canonical struct {
	Signature signature.Key
	Title     string
	EventType string
	Time      string
	DateStart time.Time
	DateEnd   time.Time
	URLs      []string // unique, sorted
	BestRank  int
}

// FromRaw seeds a canonical event from its first observation.
func FromRaw(r Raw) *Canonical {
	return &Canonical{
		Signature: signature.Compute(r.Title),
		Title:     r.Title,
		EventType: r.EventType,
		Time:      r.Time,
		DateStart: r.DateStart,
		DateEnd:   r.DateEnd,
		URLs:      []string{r.URL},
		BestRank:  r.Source.Rank,
	}
}

// AddURL inserts u into the URL set, keeping it sorted and duplicate-free.
func (c *Canonical) AddURL(u string) {
	i := sort.SearchStrings(c.URLs, u)
	if i < len(c.URLs) && c.URLs[i] == u {
		return
	}
	c.URLs = append(c.URLs, "")
	copy(c.URLs[i+1:], c.URLs[i:])
	c.URLs[i] = u
}

// SpanDays is the event's duration in whole days with inclusive semantics:
// a single-day event spans 0 days.
func (c *Canonical) SpanDays() int {
	start := midnight(c.DateStart)
	end := midnight(c.DateEnd)
	return int(end.Sub(start).Hours() / 24)
}

// Clone returns a deep copy so downstream stages can hold events without
// aliasing the reconciler's map values.
func (c *Canonical) Clone() Canonical {
	out := *c
	out.URLs = append([]string(nil), c.URLs...)
	return out
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
