// Package dashboard keeps the live list of open calls of one location for
// the staff screen.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"table-call/internal/backend"
	"table-call/internal/hub"
	"table-call/internal/push"
	"table-call/internal/querycache"
)

var ErrCallNotFound = errors.New("call not found")

// Backend is the part of the backend API the dashboard needs.
type Backend interface {
	ListCalls(ctx context.Context, q backend.ListCallsQuery) ([]backend.ButtonCall, error)
	CloseFromPanel(ctx context.Context, in backend.CloseCallInput) (*backend.ButtonCall, error)
}

type Options struct {
	// Date is the day shown, YYYY-MM-DD. Empty means today.
	Date string
	Tick time.Duration

	Listener push.Listener
	Bindings push.Bindings
	Logger   *slog.Logger
	Now      func() time.Time
}

// ActiveKey is the cache key of the open calls of location on date.
func ActiveKey(location int, date string) querycache.Key {
	return querycache.NewKey(backend.PathButtonCalls, "active", location, date)
}

type Snapshot struct {
	Location  int       `json:"location"`
	Date      string    `json:"date"`
	Sections  []Section `json:"sections"`
	Total     int       `json:"total"`
	Available bool      `json:"available"`
	Now       time.Time `json:"now"`
}

type Board struct {
	Location int
	Date     string

	backend Backend
	opts    Options
	logger  *slog.Logger

	cache  *querycache.Cache
	active *querycache.Query[[]backend.ButtonCall]
	conn   *push.Connection
	hub    *hub.Hub[Snapshot]

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open mounts a dashboard for location. It ticks once per Tick until Close.
func Open(ctx context.Context, location int, b Backend, opts Options) *Board {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Listener == nil {
		opts.Listener = push.Nop{}
	}
	if opts.Bindings == nil {
		opts.Bindings = push.DefaultBindings()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Date == "" {
		opts.Date = backend.Date(opts.Now())
	}

	d := &Board{
		Location: location,
		Date:     opts.Date,
		backend:  b,
		opts:     opts,
		logger:   opts.Logger.With("component", "dashboard", "location", location),
		hub:      hub.New[Snapshot](),
		stop:     make(chan struct{}),
	}
	d.cache = querycache.New(d.logger)
	d.active = querycache.NewQuery(d.cache, ActiveKey(location, opts.Date), func(ctx context.Context) ([]backend.ButtonCall, error) {
		return b.ListCalls(ctx, backend.ListCallsQuery{Location: location, Date: opts.Date, Type: "active"})
	})
	d.active.Observe(func([]backend.ButtonCall, error) { d.publish() })
	d.conn = push.Connect(ctx, opts.Listener, opts.Bindings, d.cache, d.logger)

	d.wg.Add(1)
	go d.tick()
	return d
}

// Refresh loads the call list if it is stale and returns the snapshot.
func (d *Board) Refresh(ctx context.Context) (Snapshot, error) {
	_, err := d.active.Get(ctx)
	return d.Snapshot(), err
}

// Snapshot groups the cached calls against the current time.
func (d *Board) Snapshot() Snapshot {
	now := d.opts.Now()
	snap, _ := d.cache.Peek(d.active.Key())
	calls, _ := snap.Value.([]backend.ButtonCall)

	sections := GroupCalls(calls, d.Location, now)
	total := 0
	for _, s := range sections {
		total += len(s.Calls)
	}
	return Snapshot{
		Location:  d.Location,
		Date:      d.Date,
		Sections:  sections,
		Total:     total,
		Available: snap.Err == nil && calls != nil,
		Now:       now,
	}
}

// CloseCall resolves the open call of type t at tableName from the panel.
func (d *Board) CloseCall(ctx context.Context, tableName string, t backend.CallType) error {
	if err := CloseCall(ctx, d.backend, d.Location, tableName, t, d.opts.Now()); err != nil {
		return err
	}
	d.cache.Invalidate(d.active.Key())
	return nil
}

// CloseCall closes a call without a mounted board. Mounted boards learn about
// it from the push event the backend emits.
func CloseCall(ctx context.Context, b Backend, location int, tableName string, t backend.CallType, now time.Time) error {
	if !t.Valid() || tableName == "" {
		return fmt.Errorf("%w: %s %s", ErrCallNotFound, tableName, t)
	}

	_, err := b.CloseFromPanel(ctx, backend.CloseCallInput{
		Location:  location,
		TableName: tableName,
		Hour:      backend.Hour(now),
		Type:      t,
	})
	if err != nil {
		if backend.IsStatus(err, http.StatusNotFound) {
			return fmt.Errorf("%w: %v", ErrCallNotFound, err)
		}
		return fmt.Errorf("close call: %w", err)
	}
	return nil
}

// Subscribe streams snapshots: one per tick and one per list change.
func (d *Board) Subscribe() (<-chan Snapshot, func()) {
	ch := d.hub.Register()
	return ch, func() { d.hub.Unregister(ch) }
}

// Close stops the ticker and releases the push connection.
func (d *Board) Close() {
	d.closeOnce.Do(func() {
		close(d.stop)
		d.wg.Wait()
		d.conn.Close()
		d.cache.Close()
		d.hub.Close()
	})
}

func (d *Board) tick() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.publish()
		}
	}
}

func (d *Board) publish() {
	d.hub.Broadcast(d.Snapshot())
}
