package tableview

import (
	"sort"
	"sync"
	"time"

	"table-call/internal/backend"
)

// Control names one action button on the table page.
type Control string

const ControlFeedback Control = "feedback"

func CallControl(t backend.CallType) Control {
	return Control("call:" + string(t))
}

func CancelControl(t backend.CallType) Control {
	return Control("cancel:" + string(t))
}

type hold struct {
	timer *time.Timer
}

// cooldowns disables controls for a fixed window after use.
type cooldowns struct {
	mu       sync.Mutex
	held     map[Control]*hold
	onChange func()
}

func newCooldowns(onChange func()) *cooldowns {
	return &cooldowns{held: make(map[Control]*hold), onChange: onChange}
}

// acquire disables ctrl for d. It returns false when ctrl is already disabled.
func (c *cooldowns) acquire(ctrl Control, d time.Duration) bool {
	c.mu.Lock()
	if _, ok := c.held[ctrl]; ok {
		c.mu.Unlock()
		return false
	}
	h := &hold{}
	c.held[ctrl] = h
	h.timer = time.AfterFunc(d, func() { c.expire(ctrl, h) })
	c.mu.Unlock()

	c.onChange()
	return true
}

// release re-enables ctrl before its window is over.
func (c *cooldowns) release(ctrl Control) {
	c.mu.Lock()
	h, ok := c.held[ctrl]
	if ok {
		h.timer.Stop()
		delete(c.held, ctrl)
	}
	c.mu.Unlock()

	if ok {
		c.onChange()
	}
}

func (c *cooldowns) expire(ctrl Control, h *hold) {
	c.mu.Lock()
	current, ok := c.held[ctrl]
	if ok && current == h {
		delete(c.held, ctrl)
	}
	c.mu.Unlock()

	if ok && current == h {
		c.onChange()
	}
}

func (c *cooldowns) disabled(ctrl Control) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.held[ctrl]
	return ok
}

func (c *cooldowns) list() []Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Control, 0, len(c.held))
	for ctrl := range c.held {
		out = append(out, ctrl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *cooldowns) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ctrl, h := range c.held {
		h.timer.Stop()
		delete(c.held, ctrl)
	}
}
