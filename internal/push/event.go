// Package push listens for backend change notifications and turns them into
// query cache invalidations.
package push

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"table-call/internal/querycache"
)

const (
	EventButtonCallChanged = "buttonCallChanged"
	EventTableChanged      = "tableChanged"
	EventFeedbackChanged   = "feedbackChanged"
)

var ErrMalformedEvent = errors.New("malformed push event")

// Event is one named change notification. The payload is kept only for
// logging; receivers refetch instead of applying it.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseEvent accepts {"event": name, "payload": ...} objects and
// ["name", payload] arrays.
func ParseEvent(data []byte) (Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Event{}, ErrMalformedEvent
	}

	switch data[0] {
	case '{':
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if ev.Name == "" {
			return Event{}, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
		}
		return ev, nil
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil || len(parts) == 0 {
			return Event{}, fmt.Errorf("%w: bad array frame", ErrMalformedEvent)
		}
		var ev Event
		if err := json.Unmarshal(parts[0], &ev.Name); err != nil || ev.Name == "" {
			return Event{}, fmt.Errorf("%w: bad event name", ErrMalformedEvent)
		}
		if len(parts) > 1 {
			ev.Payload = parts[1]
		}
		return ev, nil
	}
	return Event{}, fmt.Errorf("%w: unexpected frame %q", ErrMalformedEvent, truncate(data, 32))
}

// Bindings maps an event name to the cache key prefixes it invalidates.
type Bindings map[string][]querycache.Key

// For returns the prefixes bound to event. Names match case-insensitively
// since configuration keys arrive lowercased.
func (b Bindings) For(event string) ([]querycache.Key, bool) {
	if keys, ok := b[event]; ok {
		return keys, true
	}
	for name, keys := range b {
		if strings.EqualFold(name, event) {
			return keys, true
		}
	}
	return nil, false
}

func DefaultBindings() Bindings {
	return Bindings{
		EventButtonCallChanged: {{"/button-calls"}},
		EventTableChanged:      {{"/tables"}},
		EventFeedbackChanged:   {{"/tables/feedback"}},
	}
}

// ParseBindings converts configuration entries such as
// {"buttonCallChanged": ["/button-calls"]} into bindings. Segments of one key
// are separated by spaces.
func ParseBindings(raw map[string][]string) Bindings {
	if len(raw) == 0 {
		return DefaultBindings()
	}
	b := make(Bindings, len(raw))
	for event, keys := range raw {
		for _, k := range keys {
			if fields := strings.Fields(k); len(fields) > 0 {
				b[event] = append(b[event], querycache.Key(fields))
			}
		}
	}
	return b
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
