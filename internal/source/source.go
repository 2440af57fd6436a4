// Package source turns configured listing sources into adapters the pipeline
// can fetch raw event records from. Adapters own everything site-shaped:
// transport, caching, and mapping feed entries into raw records. The core
// stages never see anything but the records.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"afisz/internal/config"
	"afisz/internal/event"
	"afisz/internal/source/icsfeed"
	"afisz/internal/source/webpage"
)

// ErrUnsupportedKind is returned for a source kind no adapter implements.
var ErrUnsupportedKind = errors.New("source: unsupported kind")

// Adapter fetches the raw event records of one source.
type Adapter interface {
	ID() string
	Fetch(ctx context.Context) ([]event.Raw, error)
}

// Options carries the environment adapters share.
type Options struct {
	// CacheDir is the base directory for per-source HTTP caches.
	CacheDir string
	// Location is the display timezone for date math and time hints.
	Location *time.Location
	// HorizonDays bounds recurrence expansion and synthesized end dates.
	HorizonDays int
	// Now supplies the current time; nil means time.Now.
	Now func() time.Time
}

// Build constructs one adapter per configured source.
func Build(sources []config.SourceConfig, opts Options) ([]Adapter, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	adapters := make([]Adapter, 0, len(sources))
	for _, sc := range sources {
		src := event.Source{ID: sc.ID, Name: sc.Name, Rank: sc.Rank}
		switch sc.Kind {
		case "ics":
			adapters = append(adapters, icsfeed.New(src, sc.URL, icsfeed.Options{
				CacheDir:    filepath.Join(opts.CacheDir, "ics"),
				Location:    opts.Location,
				HorizonDays: opts.HorizonDays,
				Now:         opts.Now,
			}))
		case "web":
			adapters = append(adapters, webpage.New(src, sc.URL, webpage.Options{
				Location: opts.Location,
			}))
		default:
			return nil, fmt.Errorf("%w: %q (source %q)", ErrUnsupportedKind, sc.Kind, sc.ID)
		}
	}
	return adapters, nil
}
