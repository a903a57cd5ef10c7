package solver

import (
	"encoding/json"
	"strconv"
	"strings"
)

// EventKind tags one decoded stream event.
type EventKind int

const (
	// EventLog is a free-text log line.
	EventLog EventKind = iota
	// EventProgress carries a progress percentage.
	EventProgress
	// EventDone carries the terminal result payload.
	EventDone
)

// Event is one message from the generation stream, decoded once at the
// transport boundary. The wire framing is line-oriented text: "PROGRESS:"
// followed by a float, "DONE" followed by a JSON payload, anything else is a
// log line.
type Event struct {
	Kind     EventKind
	Progress float64
	Payload  json.RawMessage
	Line     string
}

const (
	progressPrefix = "PROGRESS:"
	donePrefix     = "DONE"
)

// DecodeEvent classifies a raw stream line. A malformed progress value
// degrades to a log line rather than poisoning the session.
func DecodeEvent(line string) Event {
	if strings.HasPrefix(line, donePrefix) {
		return Event{Kind: EventDone, Payload: json.RawMessage(line[len(donePrefix):])}
	}
	if strings.HasPrefix(line, progressPrefix) {
		v, err := strconv.ParseFloat(strings.TrimSpace(line[len(progressPrefix):]), 64)
		if err == nil {
			return Event{Kind: EventProgress, Progress: v}
		}
	}
	return Event{Kind: EventLog, Line: line}
}

// ProgressColor maps a progress percentage to its display bucket. Boundaries
// sit exactly at 30 and 70.
func ProgressColor(percent float64) string {
	switch {
	case percent < 30:
		return "red"
	case percent < 70:
		return "orange"
	default:
		return "green"
	}
}
