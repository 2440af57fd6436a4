// Package icsfeed ingests iCalendar subscription feeds and maps their events
// into raw event records.
package icsfeed

import (
	"context"
	"time"

	"afisz/internal/event"
)

// Options configures feed fetching and date interpretation.
type Options struct {
	// CacheDir is where per-URL HTTP cache state is kept.
	CacheDir string
	// Location is the display timezone for date math and time hints.
	Location *time.Location
	// HorizonDays bounds recurrence expansion; an unbounded recurring
	// listing gets its end synthesized at the horizon.
	HorizonDays int
	// Now supplies the current time; nil means time.Now.
	Now func() time.Time
}

// Adapter fetches and converts one ICS source.
type Adapter struct {
	src     event.Source
	url     string
	opts    Options
	fetcher *fetcher
}

// New builds an adapter for one feed URL.
func New(src event.Source, url string, opts Options) *Adapter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 400
	}
	return &Adapter{
		src:     src,
		url:     url,
		opts:    opts,
		fetcher: newFetcher(opts.CacheDir),
	}
}

func (a *Adapter) ID() string { return a.src.ID }

// Fetch downloads the feed (or reuses the cached body on 304/network
// failure) and converts it.
func (a *Adapter) Fetch(ctx context.Context) ([]event.Raw, error) {
	body, err := a.fetcher.fetch(ctx, a.src.ID, a.url)
	if err != nil {
		return nil, err
	}
	return ParseFeed(a.src, a.url, body, a.opts)
}
