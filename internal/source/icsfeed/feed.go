package icsfeed

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"afisz/internal/event"
	appLog "afisz/internal/log"
)

// ParseFeed converts an ICS payload into raw event records.
//
//   - Timezone handling is delegated to the library's VTIMEZONE/TZID logic.
//   - All-day events are detected from the DTSTART value form; their
//     exclusive DTEND is mapped back to the inclusive last day.
//   - RRULE events are collapsed to one record spanning the first to last
//     occurrence inside the horizon; an unbounded rule marks an indefinite
//     listing and gets its end synthesized at the horizon.
func ParseFeed(src event.Source, pageURL string, body []byte, opts Options) ([]event.Raw, error) {
	if len(body) == 0 {
		return nil, errors.New("icsfeed: empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID)
		return nil, err
	}

	now := opts.Now()
	horizonEnd := now.AddDate(0, 0, opts.HorizonDays)

	records := make([]event.Raw, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		rec, perr := convertVEvent(src, pageURL, ve, now, horizonEnd, opts.Location)
		if perr != nil {
			// Log and skip this event, but keep converting others.
			appLog.Warn("ics vevent skipped", "err", perr, "id", src.ID)
			continue
		}
		if rec == nil {
			continue // outside horizon or no occurrences left
		}
		records = append(records, *rec)
	}

	appLog.Info("ics feed converted", "id", src.ID, "record_count", len(records))
	return records, nil
}

func convertVEvent(src event.Source, pageURL string, ve *ical.VEvent, now, horizonEnd time.Time, loc *time.Location) (*event.Raw, error) {
	summary := ""
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		summary = p.Value
	}
	if strings.TrimSpace(summary) == "" {
		return nil, errors.New("missing SUMMARY")
	}

	start, err := ve.GetStartAt()
	if err != nil || start.IsZero() {
		return nil, errors.New("missing or invalid DTSTART")
	}
	end, _ := ve.GetEndAt()

	allDay := isAllDay(ve)

	var dateStart, dateEnd time.Time
	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil && rruleProp.Value != "" {
		dateStart, dateEnd, err = recurringSpan(rruleProp.Value, start, now, horizonEnd, loc)
		if err != nil {
			return nil, err
		}
		if dateStart.IsZero() {
			return nil, nil // no occurrences within the horizon
		}
	} else {
		dateStart = dayOf(start, loc)
		switch {
		case end.IsZero() || !end.After(start):
			dateEnd = dateStart
		case allDay:
			// DTEND is exclusive for all-day events.
			dateEnd = dayOf(end.AddDate(0, 0, -1), loc)
		default:
			dateEnd = dayOf(end, loc)
		}
		if dateEnd.Before(dateStart) {
			dateEnd = dateStart
		}
	}

	rec := event.Raw{
		Source:    src,
		Title:     summary,
		DateStart: dateStart,
		DateEnd:   dateEnd,
		URL:       pageURL,
	}

	// CATEGORIES, when the feed carries one, maps onto the event type.
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil && p.Value != "" {
		rec.EventType = strings.TrimSpace(strings.Split(p.Value, ",")[0])
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil && p.Value != "" {
		rec.URL = p.Value
	}
	if !allDay {
		rec.Time = start.In(loc).Format("15:04")
	}

	return &rec, nil
}

// recurringSpan collapses a recurring event into the date span covered by its
// occurrences between now and the horizon. Unbounded rules (no UNTIL, no
// COUNT) describe indefinite listings; their end is pinned to the horizon.
func recurringSpan(raw string, start, now, horizonEnd time.Time, loc *time.Location) (time.Time, time.Time, error) {
	r, err := rrule.StrToRRule(raw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	r.DTStart(start)

	from := dayOf(now, loc)
	occurrences := r.Between(from.In(start.Location()), horizonEnd.In(start.Location()), true)
	if len(occurrences) == 0 {
		return time.Time{}, time.Time{}, nil
	}

	first := dayOf(occurrences[0], loc)
	last := dayOf(occurrences[len(occurrences)-1], loc)

	unbounded := r.OrigOptions.Until.IsZero() && r.OrigOptions.Count == 0
	if unbounded {
		last = dayOf(horizonEnd, loc)
	}
	return first, last, nil
}

func isAllDay(ve *ical.VEvent) bool {
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return false
	}
	if params := dtStart.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(dtStart.Value, "T")
}

// dayOf truncates a timestamp to its calendar date in loc, represented as
// midnight UTC the way the core stages expect.
func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
