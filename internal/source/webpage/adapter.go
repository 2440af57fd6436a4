// Package webpage ingests listing pages that only materialize their content
// in a browser. It renders the page headlessly and reads the schema.org
// Event objects the page embeds as JSON-LD; no site-specific selectors are
// involved.
package webpage

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"afisz/internal/event"
	appLog "afisz/internal/log"
)

const defaultTimeout = 30 * time.Second

// collectJSONLD gathers every JSON-LD script body on the rendered page.
const collectJSONLD = `Array.from(document.querySelectorAll('script[type="application/ld+json"]')).map(s => s.textContent)`

// Options configures page rendering and date interpretation.
type Options struct {
	// Location is the display timezone for date math and time hints.
	Location *time.Location
	// Timeout bounds the whole navigate-and-extract operation.
	Timeout time.Duration
}

// Adapter renders one listing page per fetch.
type Adapter struct {
	src  event.Source
	url  string
	opts Options
}

// New builds an adapter for one listing URL.
func New(src event.Source, url string, opts Options) *Adapter {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Adapter{src: src, url: url, opts: opts}
}

func (a *Adapter) ID() string { return a.src.ID }

// Fetch launches headless Chromium, navigates to the listing page, waits for
// the document to settle, and decodes the embedded JSON-LD event objects.
func (a *Adapter) Fetch(ctx context.Context) ([]event.Raw, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var blocks []string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(a.url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(collectJSONLD, &blocks),
	)
	if err != nil {
		return nil, fmt.Errorf("webpage %s: render %s: %w", a.src.ID, a.url, err)
	}

	records := EventsFromJSONLD(a.src, a.url, blocks, a.opts.Location)
	appLog.Info("webpage converted", "id", a.src.ID, "blocks", len(blocks), "record_count", len(records))
	return records, nil
}
