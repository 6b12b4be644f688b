// Package testutil provides shared test infrastructure: a fake model
// and embedder registered through genkit, an SSE stream parser, and a
// pgvector-enabled Postgres container.
package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// SSEEvent is one parsed server-sent event.
type SSEEvent struct {
	Type string
	Data string
}

// ParseSSE parses a raw SSE response body into events. Multiple data
// lines are joined with newlines, a blank line terminates an event,
// and comment lines (leading ":") are skipped. Events without an
// explicit type default to "message".
func ParseSSE(t *testing.T, body string) []SSEEvent {
	t.Helper()

	var (
		events    []SSEEvent
		current   SSEEvent
		dataLines []string
	)

	flush := func() {
		if current.Type == "" && len(dataLines) == 0 {
			return
		}
		if current.Type == "" {
			current.Type = "message"
		}
		current.Data = strings.Join(dataLines, "\n")
		events = append(events, current)
		current = SSEEvent{}
		dataLines = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			current.Type = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// comment, ignore
		default:
			t.Fatalf("unexpected SSE line: %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning SSE body: %v", err)
	}
	flush()

	return events
}

// EventsOfType returns all events with the given type, in order.
func EventsOfType(events []SSEEvent, eventType string) []SSEEvent {
	var out []SSEEvent
	for _, e := range events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
