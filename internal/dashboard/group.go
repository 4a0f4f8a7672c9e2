package dashboard

import (
	"fmt"
	"sort"
	"time"

	"table-call/internal/backend"
)

type Group string

const (
	GroupGameMasterAndTable Group = "gameMasterAndTable"
	GroupOrder              Group = "order"
)

// Groups lists the dashboard sections in display order.
var Groups = []Group{GroupGameMasterAndTable, GroupOrder}

func GroupOf(t backend.CallType) Group {
	if t == backend.OrderCall {
		return GroupOrder
	}
	return GroupGameMasterAndTable
}

func (g Group) Title() string {
	switch g {
	case GroupGameMasterAndTable:
		return "Game master & table"
	case GroupOrder:
		return "Order"
	}
	return string(g)
}

// Item is one open call with its elapsed time at snapshot time.
type Item struct {
	backend.ButtonCall
	Elapsed     time.Duration `json:"elapsed"`
	ElapsedText string        `json:"elapsedText"`
}

type Section struct {
	Group Group  `json:"group"`
	Title string `json:"title"`
	Calls []Item `json:"calls"`
}

// GroupCalls keeps the open calls of location and sorts each group by start
// time, oldest first.
func GroupCalls(calls []backend.ButtonCall, location int, now time.Time) []Section {
	byGroup := make(map[Group][]Item, len(Groups))
	for _, c := range calls {
		if c.Location != location || !c.Open() {
			continue
		}
		g := GroupOf(c.Type)
		d := Elapsed(c, now)
		byGroup[g] = append(byGroup[g], Item{ButtonCall: c, Elapsed: d, ElapsedText: FormatElapsed(d)})
	}

	sections := make([]Section, 0, len(Groups))
	for _, g := range Groups {
		items := byGroup[g]
		sort.SliceStable(items, func(i, j int) bool { return items[i].Elapsed > items[j].Elapsed })
		if items == nil {
			items = []Item{}
		}
		sections = append(sections, Section{Group: g, Title: g.Title(), Calls: items})
	}
	return sections
}

// Elapsed is the time since the call started, zero when the start cannot be
// parsed or lies in the future.
func Elapsed(c backend.ButtonCall, now time.Time) time.Duration {
	started, ok := c.Started(now.Location())
	if !ok || now.Before(started) {
		return 0
	}
	return now.Sub(started).Truncate(time.Second)
}

// FormatElapsed renders d as MM:SS, or H:MM:SS past one hour.
func FormatElapsed(d time.Duration) string {
	s := int(d / time.Second)
	if s < 0 {
		s = 0
	}
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}
