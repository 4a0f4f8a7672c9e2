// Package querycache is a small key-addressed cache of backend reads.
//
// Entries carry a staleness bit. Invalidate marks every entry under the given
// key prefixes stale and refetches the ones somebody observes, once per entry.
// Results are applied in fetch start order, so a slow response never
// overwrites the result of a fetch that was started after it.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownKey = errors.New("query key not registered")
	ErrClosed     = errors.New("query cache closed")
)

// Key identifies a query by its segments, for example
// {"/button-calls", "queue", "2", "14"}.
type Key []string

func NewKey(segments ...any) Key {
	k := make(Key, len(segments))
	for i, s := range segments {
		k[i] = fmt.Sprint(s)
	}
	return k
}

func (k Key) String() string {
	return strings.Join(k, "\x1f")
}

// HasPrefix reports whether prefix matches the leading segments of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Fetcher performs the read behind a key.
type Fetcher func(ctx context.Context) (any, error)

// Snapshot is the observable state of one entry.
type Snapshot struct {
	Value     any
	Err       error
	Stale     bool
	UpdatedAt time.Time
}

type entry struct {
	key   Key
	fetch Fetcher
	Snapshot

	started     uint64 // generation of the last started fetch
	applied     uint64 // generation of the last applied result
	invalidated uint64 // last generation started before an invalidation

	observers map[uint64]func(Snapshot)
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextID  uint64
	group   singleflight.Group
	logger  *slog.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		entries: make(map[string]*entry),
		logger:  logger.With("component", "querycache"),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register binds fetch to key. A new entry starts stale. Registering an
// existing key replaces its fetcher and keeps the cached value.
func (c *Cache) Register(key Key, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key.String()]; ok {
		e.fetch = fetch
		return
	}
	c.entries[key.String()] = &entry{
		key:       key,
		fetch:     fetch,
		Snapshot:  Snapshot{Stale: true},
		observers: make(map[uint64]func(Snapshot)),
	}
}

// Get returns the cached value when it is fresh and fetches it otherwise.
// Concurrent Get calls for the same key share one fetch. The shared fetch
// outlives the caller that started it; each caller only stops waiting when
// its own ctx is done.
func (c *Cache) Get(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	e, ok := c.entries[key.String()]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if !e.Stale && e.Err == nil && e.applied > 0 {
		v := e.Value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan(key.String(), func() (any, error) {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(c.ctx, cancel)
		defer stop()
		return c.run(fctx, e)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Fetch reads key from its source regardless of staleness.
func (c *Cache) Fetch(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	e, ok := c.entries[key.String()]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return c.run(ctx, e)
}

// Peek returns the current snapshot of key without fetching.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{}, false
	}
	return e.Snapshot, true
}

// Invalidate marks every entry matching one of the prefixes stale and starts
// one background refetch for each matching entry that has observers. It
// returns the number of refetches started.
func (c *Cache) Invalidate(prefixes ...Key) int {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return 0
	}

	var refetch []*entry
	for _, e := range c.entries {
		if !matchesAny(e.key, prefixes) {
			continue
		}
		e.Stale = true
		e.invalidated = e.started
		if len(e.observers) > 0 {
			refetch = append(refetch, e)
		}
	}
	c.wg.Add(len(refetch))
	c.mu.Unlock()

	for _, e := range refetch {
		go func(e *entry) {
			defer c.wg.Done()
			if _, err := c.run(c.ctx, e); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Debug("Refetch failed", "key", e.key.String(), "error", err)
			}
		}(e)
	}
	return len(refetch)
}

// Observe calls fn with the entry snapshot after every applied fetch result.
// The returned function removes the observer.
func (c *Cache) Observe(key Key, fn func(Snapshot)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	c.nextID++
	id := c.nextID
	e.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(e.observers, id)
			c.mu.Unlock()
		})
	}, nil
}

// Close stops accepting invalidations and waits for running refetches.
// Get and Fetch return ErrClosed afterwards.
func (c *Cache) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Cache) run(ctx context.Context, e *entry) (any, error) {
	c.mu.Lock()
	e.started++
	gen := e.started
	fetch := e.fetch
	c.mu.Unlock()

	v, err := fetch(ctx)

	c.mu.Lock()
	if gen < e.applied || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// a newer fetch already landed, or this one was abandoned
		c.mu.Unlock()
		return v, err
	}
	e.applied = gen
	if err == nil {
		e.Value = v
	}
	e.Err = err
	// a fetch started before the last invalidation may carry pre-event data
	e.Stale = err != nil || gen <= e.invalidated
	e.UpdatedAt = c.now()

	snap := e.Snapshot
	observers := make([]func(Snapshot), 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return v, err
}

func matchesAny(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.HasPrefix(p) {
			return true
		}
	}
	return false
}
