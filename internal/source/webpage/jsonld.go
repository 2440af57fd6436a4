package webpage

import (
	"encoding/json"
	"strings"
	"time"

	"afisz/internal/event"
	appLog "afisz/internal/log"
)

// ldNode is the subset of a schema.org node the conversion reads. @type may
// be a string or a list of strings depending on the generator.
type ldNode struct {
	Type      any      `json:"@type"`
	Graph     []ldNode `json:"@graph"`
	Name      string   `json:"name"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
	URL       string   `json:"url"`
	Genre     string   `json:"genre"`
}

// EventsFromJSONLD decodes JSON-LD payloads into raw event records. It
// accepts single objects, arrays, and @graph containers, and ignores every
// node that is not a schema.org Event (or one of its subtypes). Undecodable
// blocks are skipped; pages routinely mix well-formed and broken markup.
func EventsFromJSONLD(src event.Source, pageURL string, blocks []string, loc *time.Location) []event.Raw {
	var records []event.Raw
	for _, block := range blocks {
		nodes, err := decodeBlock(block)
		if err != nil {
			appLog.Debug("jsonld block skipped", "id", src.ID, "err", err)
			continue
		}
		for _, node := range nodes {
			if rec, ok := nodeToRecord(src, pageURL, node, loc); ok {
				records = append(records, rec)
			}
		}
	}
	return records
}

func decodeBlock(block string) ([]ldNode, error) {
	data := []byte(strings.TrimSpace(block))
	if len(data) == 0 {
		return nil, nil
	}

	// Either a single node ...
	var node ldNode
	if err := json.Unmarshal(data, &node); err == nil {
		if len(node.Graph) > 0 {
			return node.Graph, nil
		}
		return []ldNode{node}, nil
	}

	// ... or a top-level array of nodes.
	var nodes []ldNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func nodeToRecord(src event.Source, pageURL string, node ldNode, loc *time.Location) (event.Raw, bool) {
	if !isEventType(node.Type) {
		return event.Raw{}, false
	}
	if strings.TrimSpace(node.Name) == "" || node.StartDate == "" {
		return event.Raw{}, false
	}

	start, hasClock, ok := parseLDDate(node.StartDate, loc)
	if !ok {
		return event.Raw{}, false
	}
	end := start
	if node.EndDate != "" {
		if e, _, eok := parseLDDate(node.EndDate, loc); eok {
			end = e
		}
	}
	if end.Before(start) {
		return event.Raw{}, false
	}

	rec := event.Raw{
		Source:    src,
		Title:     node.Name,
		EventType: strings.TrimSpace(node.Genre),
		DateStart: dayOf(start, loc),
		DateEnd:   dayOf(end, loc),
		URL:       pageURL,
	}
	if node.URL != "" {
		rec.URL = node.URL
	}
	if hasClock {
		rec.Time = start.In(loc).Format("15:04")
	}
	return rec, true
}

// isEventType accepts "Event" and subtypes such as "TheaterEvent" or
// "MusicEvent", with @type given as a string or a list.
func isEventType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.HasSuffix(v, "Event")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.HasSuffix(s, "Event") {
				return true
			}
		}
	}
	return false
}

var ldDateLayouts = []struct {
	layout   string
	hasClock bool
}{
	{time.RFC3339, true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02", false},
}

func parseLDDate(s string, loc *time.Location) (time.Time, bool, bool) {
	s = strings.TrimSpace(s)
	for _, l := range ldDateLayouts {
		if t, err := time.ParseInLocation(l.layout, s, loc); err == nil {
			return t, l.hasClock, true
		}
	}
	return time.Time{}, false, false
}

// dayOf truncates a timestamp to its calendar date in loc, represented as
// midnight UTC the way the core stages expect.
func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
