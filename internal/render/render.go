// Package render serializes a category partition into markdown files, one
// per persisted bucket, plus the new-items section for diffed buckets.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"afisz/internal/categorize"
	"afisz/internal/event"
)

const dateLayout = "02.01.2006"

// WritePartition renders the partition into dir as ongoing.md and
// upcoming.md. newItems carries the per-bucket new-item lists to surface;
// missing buckets simply render without the section.
func WritePartition(dir string, p *categorize.Partition, newItems map[string][]event.Canonical) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure output dir: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "ongoing.md"), ongoingMarkdown(p, newItems["ongoing"])); err != nil {
		return fmt.Errorf("write ongoing.md: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "upcoming.md"), upcomingMarkdown(p, newItems["upcoming"])); err != nil {
		return fmt.Errorf("write upcoming.md: %w", err)
	}
	return nil
}

func ongoingMarkdown(p *categorize.Partition, newItems []event.Canonical) string {
	var b strings.Builder
	b.WriteString("# Wydarzenia długoterminowe\n")

	if len(newItems) > 0 {
		b.WriteString("\n## Nowości\n\n")
		b.WriteString(eventsTable(newItems))
		b.WriteString("\n")
	}

	byType := p.OngoingByType()
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		b.WriteString("\n## " + t + "\n\n")
		b.WriteString(eventsTable(byType[t]))
		b.WriteString("\n")
	}
	return b.String()
}

func upcomingMarkdown(p *categorize.Partition, newItems []event.Canonical) string {
	var b strings.Builder
	b.WriteString("# Wydarzenia nadchodzące\n")

	if len(newItems) > 0 {
		b.WriteString("\n## Nowości\n\n")
		b.WriteString(eventsTable(newItems))
		b.WriteString("\n")
	}
	if len(p.Theater) > 0 {
		b.WriteString("\n## Teatr\n\n")
		b.WriteString(eventsTable(p.Theater))
		b.WriteString("\n")
	}
	if len(p.Multiday) > 0 {
		b.WriteString("\n## Kilkudniowe\n\n")
		b.WriteString(eventsTable(p.Multiday))
		b.WriteString("\n")
	}
	if len(p.Daily) > 0 {
		b.WriteString("\n## Jednodniowe\n")
		for _, day := range p.DailyDates() {
			b.WriteString("\n### " + day.Format(dateLayout) + "\n\n")
			b.WriteString(eventsTable(p.Daily[day]))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func eventsTable(events []event.Canonical) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Tytuł", "Typ", "Termin", "Godzina"})
	for _, ev := range events {
		t.AppendRow(table.Row{titleCell(ev), ev.EventType, spanCell(ev), ev.Time})
	}
	return t.RenderMarkdown() + "\n"
}

// titleCell links the title to its first URL and appends the remaining
// sources as numbered links.
func titleCell(ev event.Canonical) string {
	if len(ev.URLs) == 0 {
		return ev.Title
	}
	cell := fmt.Sprintf("[%s](%s)", ev.Title, ev.URLs[0])
	for i, u := range ev.URLs[1:] {
		cell += fmt.Sprintf(" [[%d]](%s)", i+2, u)
	}
	return cell
}

func spanCell(ev event.Canonical) string {
	if ev.DateStart.Equal(ev.DateEnd) {
		return ev.DateStart.Format(dateLayout)
	}
	return ev.DateStart.Format(dateLayout) + " – " + ev.DateEnd.Format(dateLayout)
}

// writeAtomic writes via a temp file + rename so a crashed run never leaves
// a half-written file behind.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".afisz-render-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
