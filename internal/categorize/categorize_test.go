package categorize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afisz/internal/categorize"
	"afisz/internal/event"
	"afisz/internal/signature"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func canonical(title, eventType string, start, end time.Time) event.Canonical {
	return event.Canonical{
		Signature: signature.Compute(title),
		Title:     title,
		EventType: eventType,
		DateStart: start,
		DateEnd:   end,
		URLs:      []string{"https://example.pl/" + title},
		BestRank:  1,
	}
}

func mustRules(t *testing.T) categorize.Rules {
	t.Helper()
	rules, err := categorize.NewRules(30, "Spektakle teatralne")
	require.NoError(t, err)
	return rules
}

func TestNewRulesRejectsNegativeThreshold(t *testing.T) {
	_, err := categorize.NewRules(-1, "Spektakle teatralne")
	assert.Error(t, err)
}

func TestNewRulesRejectsEmptyMarker(t *testing.T) {
	_, err := categorize.NewRules(30, "  ")
	assert.Error(t, err)
}

func TestSingleDayEventGoesDailyKeyedByStart(t *testing.T) {
	ev := canonical("Wernisaż", "", date(2025, 8, 18), date(2025, 8, 18))
	p := categorize.Categorize([]event.Canonical{ev}, mustRules(t))

	require.Len(t, p.Daily, 1)
	require.Len(t, p.Daily[date(2025, 8, 18)], 1)
	assert.Empty(t, p.Theater)
	assert.Empty(t, p.Ongoing)
	assert.Empty(t, p.Multiday)
}

func TestTheaterMarkerOverridesDuration(t *testing.T) {
	// 45-day span would be ongoing, but the marker wins.
	ev := canonical("Dziady", "Spektakle teatralne", date(2025, 9, 1), date(2025, 10, 15))
	p := categorize.Categorize([]event.Canonical{ev}, mustRules(t))

	require.Len(t, p.Theater, 1)
	assert.Empty(t, p.Ongoing)
}

func TestTheaterMarkerMatchesCaseInsensitively(t *testing.T) {
	ev := canonical("Wesele", "SPEKTAKLE TEATRALNE", date(2025, 9, 1), date(2025, 9, 1))
	p := categorize.Categorize([]event.Canonical{ev}, mustRules(t))
	assert.Len(t, p.Theater, 1)
}

func TestThresholdBoundary(t *testing.T) {
	// 30-day span stays multiday; 31 days crosses the threshold.
	atThreshold := canonical("Wystawa A", "", date(2025, 6, 1), date(2025, 7, 1))
	overThreshold := canonical("Wystawa B", "", date(2025, 6, 1), date(2025, 7, 2))

	p := categorize.Categorize([]event.Canonical{atThreshold, overThreshold}, mustRules(t))

	require.Len(t, p.Multiday, 1)
	assert.Equal(t, "Wystawa A", p.Multiday[0].Title)
	require.Len(t, p.Ongoing, 1)
	assert.Equal(t, "Wystawa B", p.Ongoing[0].Title)
}

func TestPartitionIsTotalAndDisjoint(t *testing.T) {
	events := []event.Canonical{
		canonical("Jazz Festival", "Festiwale", date(2025, 6, 30), date(2025, 9, 7)),
		canonical("Dziady", "Spektakle teatralne", date(2025, 9, 1), date(2025, 10, 15)),
		canonical("Weekend Zabytków", "", date(2025, 8, 16), date(2025, 8, 17)),
		canonical("Wernisaż", "", date(2025, 8, 18), date(2025, 8, 18)),
		canonical("Koncert", "Koncerty", date(2025, 8, 18), date(2025, 8, 18)),
		canonical("Kiermasz", "", date(2025, 8, 19), date(2025, 8, 19)),
	}

	p := categorize.Categorize(events, mustRules(t))
	require.Equal(t, len(events), p.Len())

	seen := make(map[signature.Key]int)
	for _, ev := range p.Theater {
		seen[ev.Signature]++
	}
	for _, ev := range p.Ongoing {
		seen[ev.Signature]++
	}
	for _, ev := range p.Multiday {
		seen[ev.Signature]++
	}
	for _, evs := range p.Daily {
		for _, ev := range evs {
			seen[ev.Signature]++
		}
	}

	require.Len(t, seen, len(events))
	for _, ev := range events {
		assert.Equal(t, 1, seen[ev.Signature], "event %q must land in exactly one bucket", ev.Title)
	}
}

func TestCategorizeIsIdempotent(t *testing.T) {
	events := []event.Canonical{
		canonical("Jazz Festival", "Festiwale", date(2025, 6, 30), date(2025, 9, 7)),
		canonical("Wernisaż", "", date(2025, 8, 18), date(2025, 8, 18)),
		canonical("Weekend Zabytków", "", date(2025, 8, 16), date(2025, 8, 17)),
	}
	rules := mustRules(t)

	first := categorize.Categorize(events, rules)
	second := categorize.Categorize(events, rules)
	assert.Equal(t, first, second)
}

func TestOngoingByTypeGroupsAndLabelsUntyped(t *testing.T) {
	events := []event.Canonical{
		canonical("Jazz Festival", "Festiwale", date(2025, 6, 30), date(2025, 9, 7)),
		canonical("Wystawa Wyspiański", "Wystawy", date(2025, 5, 1), date(2025, 12, 31)),
		canonical("Panorama", "", date(2025, 1, 1), date(2025, 12, 31)),
	}
	p := categorize.Categorize(events, mustRules(t))
	require.Len(t, p.Ongoing, 3)

	byType := p.OngoingByType()
	assert.Len(t, byType["Festiwale"], 1)
	assert.Len(t, byType["Wystawy"], 1)
	assert.Len(t, byType[categorize.OtherType], 1)
}

func TestUpcomingFlattensNonOngoingBuckets(t *testing.T) {
	events := []event.Canonical{
		canonical("Dziady", "Spektakle teatralne", date(2025, 9, 1), date(2025, 10, 15)),
		canonical("Weekend Zabytków", "", date(2025, 8, 16), date(2025, 8, 17)),
		canonical("Wernisaż", "", date(2025, 8, 18), date(2025, 8, 18)),
		canonical("Jazz Festival", "Festiwale", date(2025, 6, 30), date(2025, 9, 7)),
	}
	p := categorize.Categorize(events, mustRules(t))

	upcoming := p.Upcoming()
	require.Len(t, upcoming, 3)
	// Ordered by start date.
	assert.Equal(t, "Weekend Zabytków", upcoming[0].Title)
	assert.Equal(t, "Wernisaż", upcoming[1].Title)
	assert.Equal(t, "Dziady", upcoming[2].Title)
}
