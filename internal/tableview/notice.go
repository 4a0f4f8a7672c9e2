package tableview

import (
	"sync"
	"time"
)

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient message; it dismisses itself after the view's
// notice TTL.
type Notice struct {
	ID      uint64      `json:"id"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

type notices struct {
	mu       sync.Mutex
	current  *Notice
	nextID   uint64
	timer    *time.Timer
	ttl      time.Duration
	onChange func()
}

// raise replaces the current notice and schedules its dismissal.
func (n *notices) raise(level NoticeLevel, msg string) Notice {
	n.mu.Lock()
	n.nextID++
	notice := Notice{ID: n.nextID, Level: level, Message: msg}
	n.current = &notice
	if n.timer != nil {
		n.timer.Stop()
	}
	id := notice.ID
	n.timer = time.AfterFunc(n.ttl, func() { n.dismiss(id) })
	n.mu.Unlock()

	n.onChange()
	return notice
}

func (n *notices) dismiss(id uint64) {
	n.mu.Lock()
	if n.current == nil || n.current.ID != id {
		n.mu.Unlock()
		return
	}
	n.current = nil
	n.mu.Unlock()

	n.onChange()
}

func (n *notices) get() *Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return nil
	}
	cp := *n.current
	return &cp
}

func (n *notices) stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
}
