// Package categorize partitions canonical events into the display buckets:
// theater listings, long-running ("ongoing") events, multi-day events, and
// single-day events grouped by date.
package categorize

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"afisz/internal/event"
)

// Category names one partition bucket.
type Category string

const (
	Theater  Category = "theater"
	Ongoing  Category = "ongoing"
	Multiday Category = "multiday"
	Daily    Category = "daily"
)

// OtherType labels the ongoing-view group for events without an event type.
const OtherType = "Inne"

// Rules carries the two knobs categorization depends on. Construct with
// NewRules so an invalid threshold never reaches the pipeline.
type Rules struct {
	// OngoingThresholdDays is the span above which an event is ongoing.
	OngoingThresholdDays int
	// TheaterMarker is the event type that forces the theater bucket,
	// compared case-insensitively.
	TheaterMarker string
}

// NewRules validates and returns categorization rules.
func NewRules(thresholdDays int, theaterMarker string) (Rules, error) {
	if thresholdDays < 0 {
		return Rules{}, fmt.Errorf("categorize: ongoing threshold must be >= 0, got %d", thresholdDays)
	}
	if strings.TrimSpace(theaterMarker) == "" {
		return Rules{}, errors.New("categorize: theater marker is empty")
	}
	return Rules{OngoingThresholdDays: thresholdDays, TheaterMarker: theaterMarker}, nil
}

// Partition is a total, disjoint grouping of a canonical set. Every event
// lands in exactly one bucket; buckets are sorted by start date then title
// so repeated runs over the same set render identically.
type Partition struct {
	Theater  []event.Canonical
	Ongoing  []event.Canonical
	Multiday []event.Canonical
	// Daily groups single-day events by their (midnight UTC) start date.
	Daily map[time.Time][]event.Canonical
}

// Categorize assigns each event to its bucket. Rule order matters: the
// theater marker overrides the duration rules even for very long runs, and
// the duration rules are exhaustive for any span >= 0.
func Categorize(events []event.Canonical, rules Rules) *Partition {
	p := &Partition{Daily: make(map[time.Time][]event.Canonical)}

	for _, ev := range events {
		switch c := rules.classify(ev); c {
		case Theater:
			p.Theater = append(p.Theater, ev)
		case Ongoing:
			p.Ongoing = append(p.Ongoing, ev)
		case Multiday:
			p.Multiday = append(p.Multiday, ev)
		case Daily:
			day := dateOnly(ev.DateStart)
			p.Daily[day] = append(p.Daily[day], ev)
		}
	}

	sortBucket(p.Theater)
	sortBucket(p.Ongoing)
	sortBucket(p.Multiday)
	for _, evs := range p.Daily {
		sortBucket(evs)
	}
	return p
}

func (r Rules) classify(ev event.Canonical) Category {
	if strings.EqualFold(strings.TrimSpace(ev.EventType), r.TheaterMarker) {
		return Theater
	}
	span := ev.SpanDays()
	switch {
	case span > r.OngoingThresholdDays:
		return Ongoing
	case span > 0:
		return Multiday
	default:
		return Daily
	}
}

// Len is the total number of partitioned events.
func (p *Partition) Len() int {
	n := len(p.Theater) + len(p.Ongoing) + len(p.Multiday)
	for _, evs := range p.Daily {
		n += len(evs)
	}
	return n
}

// Upcoming flattens the non-ongoing buckets into one slice, ordered by start
// date then title. This is the shape the upcoming store bucket persists.
func (p *Partition) Upcoming() []event.Canonical {
	out := make([]event.Canonical, 0, p.Len()-len(p.Ongoing))
	out = append(out, p.Theater...)
	out = append(out, p.Multiday...)
	for _, evs := range p.Daily {
		out = append(out, evs...)
	}
	sortBucket(out)
	return out
}

// DailyDates returns the daily-bucket keys in ascending order.
func (p *Partition) DailyDates() []time.Time {
	dates := make([]time.Time, 0, len(p.Daily))
	for d := range p.Daily {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// OngoingByType groups the ongoing bucket by event type for presentation.
// This is a view only: membership in the ongoing bucket never depends on the
// event type beyond the theater override.
func (p *Partition) OngoingByType() map[string][]event.Canonical {
	out := make(map[string][]event.Canonical)
	for _, ev := range p.Ongoing {
		t := strings.TrimSpace(ev.EventType)
		if t == "" {
			t = OtherType
		}
		out[t] = append(out[t], ev)
	}
	return out
}

func sortBucket(evs []event.Canonical) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].DateStart.Equal(evs[j].DateStart) {
			return evs[i].DateStart.Before(evs[j].DateStart)
		}
		return evs[i].Title < evs[j].Title
	})
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
