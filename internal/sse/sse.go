// Package sse parses a buffered Server-Sent-Events body into individual
// events, tolerating malformed frames by skipping them rather than
// failing the whole parse.
package sse

import "strings"

// Event is one `event: <type>\ndata: <json>` frame.
type Event struct {
	Type string
	Data string
}

// Parse splits body on blank-line event delimiters and, within each
// event, collects the `event:` and `data:` lines. Events without a
// `data:` line are skipped. Multiple `data:` lines within one event are
// joined with newlines, per the SSE spec.
func Parse(body []byte) []Event {
	var events []Event

	for _, chunk := range strings.Split(normalizeNewlines(string(body)), "\n\n") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		var eventType string
		var dataLines []string

		for _, line := range strings.Split(chunk, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				eventType = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "event:"):
				eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data: "):
				dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			}
		}

		if len(dataLines) == 0 {
			continue
		}

		events = append(events, Event{Type: eventType, Data: strings.Join(dataLines, "\n")})
	}

	return events
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
