package icsfeed_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afisz/internal/event"
	"afisz/internal/source/icsfeed"
)

var testSource = event.Source{ID: "infokrakow", Name: "InfoKraków", Rank: 2}

const feedURL = "https://example.pl/events.ics"

func testOptions() icsfeed.Options {
	return icsfeed.Options{
		Location:    time.UTC,
		HorizonDays: 100,
		Now: func() time.Time {
			return time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
		},
	}
}

func calendar(vevents ...string) []byte {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//PL\r\n")
	for _, ve := range vevents {
		b.WriteString("BEGIN:VEVENT\r\n")
		b.WriteString(ve)
		b.WriteString("END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseFeedSimpleEvent(t *testing.T) {
	body := calendar(
		"UID:1@test\r\n" +
			"SUMMARY:Koncert Jazzowy\r\n" +
			"DTSTART:20250818T190000Z\r\n" +
			"DTEND:20250818T210000Z\r\n" +
			"CATEGORIES:Koncerty\r\n" +
			"URL:https://example.pl/koncert\r\n")

	records, err := icsfeed.ParseFeed(testSource, feedURL, body, testOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, testSource, rec.Source)
	assert.Equal(t, "Koncert Jazzowy", rec.Title)
	assert.Equal(t, "Koncerty", rec.EventType)
	assert.Equal(t, "19:00", rec.Time)
	assert.Equal(t, date(2025, 8, 18), rec.DateStart)
	assert.Equal(t, date(2025, 8, 18), rec.DateEnd)
	assert.Equal(t, "https://example.pl/koncert", rec.URL)
}

func TestParseFeedAllDayEndIsInclusive(t *testing.T) {
	// DTEND is exclusive in iCalendar; the record's last day is the 20th.
	body := calendar(
		"UID:2@test\r\n" +
			"SUMMARY:Weekend Zabytków\r\n" +
			"DTSTART;VALUE=DATE:20250818\r\n" +
			"DTEND;VALUE=DATE:20250821\r\n")

	records, err := icsfeed.ParseFeed(testSource, feedURL, body, testOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, date(2025, 8, 18), rec.DateStart)
	assert.Equal(t, date(2025, 8, 20), rec.DateEnd)
	assert.Empty(t, rec.Time, "all-day events carry no time hint")
	assert.Equal(t, feedURL, rec.URL, "falls back to the feed URL")
}

func TestParseFeedBoundedRecurrenceCollapsesToSpan(t *testing.T) {
	body := calendar(
		"UID:3@test\r\n" +
			"SUMMARY:Wieczór Kameralny\r\n" +
			"DTSTART:20250805T180000Z\r\n" +
			"DTEND:20250805T200000Z\r\n" +
			"RRULE:FREQ=WEEKLY;COUNT=4\r\n")

	records, err := icsfeed.ParseFeed(testSource, feedURL, body, testOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, date(2025, 8, 5), rec.DateStart)
	assert.Equal(t, date(2025, 8, 26), rec.DateEnd)
}

func TestParseFeedUnboundedRecurrenceSynthesizesHorizonEnd(t *testing.T) {
	body := calendar(
		"UID:4@test\r\n" +
			"SUMMARY:Zwiedzanie Podziemi\r\n" +
			"DTSTART:20250805T100000Z\r\n" +
			"DTEND:20250805T110000Z\r\n" +
			"RRULE:FREQ=DAILY\r\n")

	records, err := icsfeed.ParseFeed(testSource, feedURL, body, testOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, date(2025, 8, 5), rec.DateStart)
	// Indefinite listing: end pinned to now + horizon.
	assert.Equal(t, date(2025, 11, 9), rec.DateEnd)
}

func TestParseFeedSkipsEventsWithoutSummary(t *testing.T) {
	body := calendar(
		"UID:5@test\r\n"+
			"DTSTART:20250818T190000Z\r\n",
		"UID:6@test\r\n"+
			"SUMMARY:Poprawny\r\n"+
			"DTSTART:20250818T190000Z\r\n")

	records, err := icsfeed.ParseFeed(testSource, feedURL, body, testOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Poprawny", records[0].Title)
}

func TestParseFeedEmptyBody(t *testing.T) {
	_, err := icsfeed.ParseFeed(testSource, feedURL, nil, testOptions())
	assert.Error(t, err)
}
