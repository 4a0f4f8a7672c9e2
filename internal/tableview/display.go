package tableview

import (
	"fmt"
	"strconv"

	"table-call/internal/backend"
)

type DisplayState string

const (
	// DisplayButton shows the plain call button: not queued, or nothing known.
	DisplayButton  DisplayState = "button"
	DisplayTurn    DisplayState = "your-turn"
	DisplayWaiting DisplayState = "waiting"
)

// Display is what the table page shows for one call type.
type Display struct {
	Type         backend.CallType `json:"type"`
	State        DisplayState     `json:"state"`
	Position     int              `json:"position,omitempty"`
	Ahead        int              `json:"ahead,omitempty"`
	Ordinal      string           `json:"ordinal,omitempty"`
	WaitingCount int              `json:"waitingCount,omitempty"`
	TotalActive  int              `json:"totalActive,omitempty"`
	Label        string           `json:"label"`
}

// DisplayFor maps the queue payload of one call type to its display.
// Position 1 is "your turn"; a larger position shows position-1 tables
// ahead. Anything else, including a missing payload, falls back to the
// plain button.
func DisplayFor(t backend.CallType, p backend.QueuePayload, known bool) Display {
	d := Display{Type: t, State: DisplayButton, Label: buttonLabel(t)}
	if !known || !p.IsQueued || p.Position < 1 {
		return d
	}

	d.Position = p.Position
	d.Ordinal = Ordinal(p.Position)
	d.WaitingCount = p.WaitingCount
	d.TotalActive = p.TotalActive

	if p.Position == 1 {
		d.State = DisplayTurn
		d.Label = "It's your turn, a staff member is on the way"
		return d
	}

	d.State = DisplayWaiting
	d.Ahead = p.Position - 1
	if d.Ahead == 1 {
		d.Label = "1 table ahead of you"
	} else {
		d.Label = fmt.Sprintf("%d tables ahead of you", d.Ahead)
	}
	return d
}

// Displays returns one display per patron call type, in a stable order.
func Displays(q backend.QueueResponse, known bool) []Display {
	out := make([]Display, 0, len(backend.CallTypes))
	for _, t := range backend.CallTypes {
		p, ok := q[t]
		out = append(out, DisplayFor(t, p, known && ok))
	}
	return out
}

func buttonLabel(t backend.CallType) string {
	switch t {
	case backend.GameMasterCall:
		return "Call a game master"
	case backend.OrderCall:
		return "Call a waiter"
	}
	return "Call a staff member"
}

// Ordinal formats n as an English ordinal: 1st, 2nd, 3rd, 4th, 11th, 21st.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
