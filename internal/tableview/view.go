// Package tableview is the request and queue client behind one mounted table
// page. A View submits calls and feedback for its table, keeps the queue
// status fresh through push driven invalidation and streams its state to
// subscribers until it is closed.
package tableview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"table-call/internal/backend"
	"table-call/internal/hub"
	"table-call/internal/push"
	"table-call/internal/querycache"
	"table-call/internal/tablecode"
)

var (
	ErrInvalidFeedback = errors.New("rating must be between 1 and 5 and comment must not be empty")
	ErrInvalidCallType = errors.New("invalid call type")
	ErrCoolingDown     = errors.New("control is cooling down")
	ErrClosed          = errors.New("view closed")
)

// Backend is the part of the backend API a table view needs.
type Backend interface {
	CreateCall(ctx context.Context, in backend.CallInput) (*backend.ButtonCall, error)
	CloseFromCustomer(ctx context.Context, in backend.CloseCallInput) (*backend.ButtonCall, error)
	GetQueue(ctx context.Context, location int, tableName string) (backend.QueueResponse, error)
	CreateFeedback(ctx context.Context, in backend.FeedbackInput) (*backend.Feedback, error)
}

type Options struct {
	// ID names the view. A random uuid is used when empty.
	ID string

	CallCooldown     time.Duration
	FeedbackCooldown time.Duration
	NoticeTTL        time.Duration

	Listener push.Listener
	Bindings push.Bindings

	Logger *slog.Logger
	Now    func() time.Time
}

func DefaultOptions() Options {
	return Options{
		CallCooldown:     3 * time.Second,
		FeedbackCooldown: 2 * time.Second,
		NoticeTTL:        3 * time.Second,
		Listener:         push.Nop{},
		Bindings:         push.DefaultBindings(),
		Logger:           slog.Default(),
		Now:              time.Now,
	}
}

func (o *Options) fill() {
	d := DefaultOptions()
	if o.CallCooldown <= 0 {
		o.CallCooldown = d.CallCooldown
	}
	if o.FeedbackCooldown <= 0 {
		o.FeedbackCooldown = d.FeedbackCooldown
	}
	if o.NoticeTTL <= 0 {
		o.NoticeTTL = d.NoticeTTL
	}
	if o.Listener == nil {
		o.Listener = d.Listener
	}
	if o.Bindings == nil {
		o.Bindings = d.Bindings
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.Now == nil {
		o.Now = d.Now
	}
}

// QueueKey is the cache key of the queue status of one table.
func QueueKey(t tablecode.Table) querycache.Key {
	return querycache.NewKey(backend.PathButtonCalls, "queue", t.Location, t.Name)
}

// State is the snapshot streamed to the table page.
type State struct {
	ViewID    string    `json:"viewId"`
	Location  int       `json:"location"`
	TableName string    `json:"tableName"`
	Queue     []Display `json:"queue"`
	Disabled  []Control `json:"disabled"`
	Notice    *Notice   `json:"notice,omitempty"`
}

type View struct {
	ID    string
	Table tablecode.Table

	backend Backend
	opts    Options
	logger  *slog.Logger

	cache *querycache.Cache
	queue *querycache.Query[backend.QueueResponse]
	conn  *push.Connection

	controls *cooldowns
	notices  *notices

	hub       *hub.Hub[State]
	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// Open mounts a view for table. The push connection is held until Close.
func Open(ctx context.Context, table tablecode.Table, b Backend, opts Options) *View {
	opts.fill()

	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	v := &View{
		ID:      opts.ID,
		Table:   table,
		backend: b,
		opts:    opts,
		hub:     hub.New[State](),
		done:    make(chan struct{}),
	}
	v.logger = opts.Logger.With("component", "tableview", "view", v.ID, "table", table.String())
	v.controls = newCooldowns(v.publish)
	v.notices = &notices{ttl: opts.NoticeTTL, onChange: v.publish}

	v.cache = querycache.New(v.logger)
	v.queue = querycache.NewQuery(v.cache, QueueKey(table), func(ctx context.Context) (backend.QueueResponse, error) {
		return b.GetQueue(ctx, table.Location, table.Name)
	})
	v.queue.Observe(func(backend.QueueResponse, error) { v.publish() })

	v.conn = push.Connect(ctx, opts.Listener, opts.Bindings, v.cache, v.logger)
	v.logger.Debug("View opened")
	return v
}

// SubmitCall asks staff for attention. The control stays disabled for the
// call cool-down after a successful submission and is released at once on
// failure so the patron can retry.
func (v *View) SubmitCall(ctx context.Context, t backend.CallType) error {
	if !t.Valid() {
		return ErrInvalidCallType
	}
	if v.isClosed() {
		return ErrClosed
	}
	ctrl := CallControl(t)
	if !v.controls.acquire(ctrl, v.opts.CallCooldown) {
		return ErrCoolingDown
	}

	_, err := v.backend.CreateCall(ctx, backend.CallInput{
		Location:  v.Table.Location,
		Type:      t,
		TableName: v.Table.Name,
		Hour:      backend.Hour(v.opts.Now()),
	})
	if err != nil {
		v.logger.Warn("Call failed", "type", t, "error", err)
		v.controls.release(ctrl)
		v.notices.raise(NoticeError, "Your request could not be sent, please try again")
		return fmt.Errorf("submit call: %w", err)
	}

	v.cache.Invalidate(QueueKey(v.Table))
	v.notices.raise(NoticeSuccess, "Your request has been sent")
	return nil
}

// CancelCall withdraws a queued call of type t.
func (v *View) CancelCall(ctx context.Context, t backend.CallType) error {
	if !t.Valid() {
		return ErrInvalidCallType
	}
	if v.isClosed() {
		return ErrClosed
	}
	ctrl := CancelControl(t)
	if !v.controls.acquire(ctrl, v.opts.CallCooldown) {
		return ErrCoolingDown
	}

	_, err := v.backend.CloseFromCustomer(ctx, backend.CloseCallInput{
		Location:  v.Table.Location,
		TableName: v.Table.Name,
		Hour:      backend.Hour(v.opts.Now()),
		Type:      t,
	})
	if err != nil {
		v.logger.Warn("Cancel failed", "type", t, "error", err)
		v.controls.release(ctrl)
		v.notices.raise(NoticeError, "Your request could not be cancelled, please try again")
		return fmt.Errorf("cancel call: %w", err)
	}

	v.cache.Invalidate(QueueKey(v.Table))
	v.notices.raise(NoticeSuccess, "Your request has been cancelled")
	return nil
}

// QueueStatus returns the display of every call type. A failed fetch is
// reported as no queue information.
func (v *View) QueueStatus(ctx context.Context) []Display {
	q, err := v.queue.Get(ctx)
	if err != nil {
		v.logger.Debug("Queue status unavailable", "error", err)
		return Displays(nil, false)
	}
	return Displays(q, true)
}

// ValidateFeedback checks a feedback form without sending it.
func ValidateFeedback(rating int, comment string) error {
	if rating < 1 || rating > 5 || strings.TrimSpace(comment) == "" {
		return ErrInvalidFeedback
	}
	return nil
}

// SubmitFeedback sends a rating. Invalid input raises a warning notice and
// never reaches the backend.
func (v *View) SubmitFeedback(ctx context.Context, rating int, comment string) error {
	if err := ValidateFeedback(rating, comment); err != nil {
		v.notices.raise(NoticeWarning, "Please pick a rating and write a comment")
		return err
	}
	if v.isClosed() {
		return ErrClosed
	}
	if !v.controls.acquire(ControlFeedback, v.opts.FeedbackCooldown) {
		return ErrCoolingDown
	}

	_, err := v.backend.CreateFeedback(ctx, backend.FeedbackInput{
		Location:   v.Table.Location,
		TableName:  v.Table.Name,
		StarRating: rating,
		Comment:    strings.TrimSpace(comment),
	})
	if err != nil {
		v.logger.Warn("Feedback failed", "error", err)
		v.controls.release(ControlFeedback)
		v.notices.raise(NoticeError, "Your feedback could not be sent, please try again")
		return fmt.Errorf("submit feedback: %w", err)
	}

	v.notices.raise(NoticeSuccess, "Thank you for your feedback")
	return nil
}

// Disabled reports whether ctrl is cooling down.
func (v *View) Disabled(ctrl Control) bool {
	return v.controls.disabled(ctrl)
}

// State returns the current snapshot without fetching.
func (v *View) State() State {
	snap, _ := v.cache.Peek(QueueKey(v.Table))
	q, _ := snap.Value.(backend.QueueResponse)
	known := q != nil && snap.Err == nil

	return State{
		ViewID:    v.ID,
		Location:  v.Table.Location,
		TableName: v.Table.Name,
		Queue:     Displays(q, known),
		Disabled:  v.controls.list(),
		Notice:    v.notices.get(),
	}
}

// Subscribe returns a channel receiving the latest state after every change.
// Slow readers only see the most recent state. The channel is closed when the
// view closes or cancel is called.
func (v *View) Subscribe() (<-chan State, func()) {
	ch := v.hub.Register()
	return ch, func() { v.hub.Unregister(ch) }
}

// Done is closed once the view is closed.
func (v *View) Done() <-chan struct{} {
	return v.done
}

// Close releases the push connection and stops every timer. Pending backend
// requests are not aborted; their results are dropped.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		v.closed = true
		v.mu.Unlock()
		v.hub.Close()

		v.conn.Close()
		v.cache.Close()
		v.controls.stop()
		v.notices.stop()
		close(v.done)
		v.logger.Debug("View closed")
	})
}

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *View) publish() {
	if v.isClosed() {
		return
	}
	v.hub.Broadcast(v.State())
}
