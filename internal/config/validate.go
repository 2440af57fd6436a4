package config

import (
	"fmt"
	"strings"
	"time"

	// Embedded zone database so timezone validation works on hosts
	// without system tzdata.
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

var knownDiffBuckets = map[string]bool{
	"upcoming": true,
	"ongoing":  true,
}

// Validate rejects configurations the pipeline must never run with. It is
// called at load time so a bad threshold or a broken source table fails the
// process before any scraping or store access happens.
func (c *Config) Validate() error {
	if c.OngoingThresholdDays < 0 {
		return fmt.Errorf("config: ongoing_threshold_days must be >= 0, got %d", c.OngoingThresholdDays)
	}
	if strings.TrimSpace(c.TheaterMarker) == "" {
		return fmt.Errorf("config: theater_marker is empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: invalid refresh schedule %q: %w", c.RefreshCron, err)
	}

	for _, b := range c.DiffBuckets {
		if !knownDiffBuckets[b] {
			return fmt.Errorf("config: unknown diff bucket %q", b)
		}
	}

	seenIDs := make(map[string]bool, len(c.Sources))
	seenRanks := make(map[int]bool, len(c.Sources))
	for i, src := range c.Sources {
		if strings.TrimSpace(src.ID) == "" {
			return fmt.Errorf("config: source %d has no id", i)
		}
		if seenIDs[src.ID] {
			return fmt.Errorf("config: duplicate source id %q", src.ID)
		}
		seenIDs[src.ID] = true

		switch src.Kind {
		case "ics", "web":
		default:
			return fmt.Errorf("config: source %q has unknown kind %q", src.ID, src.Kind)
		}

		if strings.TrimSpace(src.URL) == "" {
			return fmt.Errorf("config: source %q has no url", src.ID)
		}

		// Ranks declare the merge priority as an explicit total order;
		// a duplicate rank would make merging ambiguous.
		if src.Rank < 1 {
			return fmt.Errorf("config: source %q has rank %d, must be >= 1", src.ID, src.Rank)
		}
		if seenRanks[src.Rank] {
			return fmt.Errorf("config: duplicate rank %d on source %q", src.Rank, src.ID)
		}
		seenRanks[src.Rank] = true
	}

	return nil
}

// Location resolves the configured timezone. Validate guarantees it parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
