package push

import (
	"context"
	"log/slog"
	"sync"

	"table-call/internal/querycache"
)

// Listener delivers backend events to handle until ctx is cancelled.
// Implementations reconnect on their own and only return once ctx is done
// or on a configuration error.
type Listener interface {
	Listen(ctx context.Context, handle func(Event)) error
}

// Invalidator is satisfied by *querycache.Cache.
type Invalidator interface {
	Invalidate(prefixes ...querycache.Key) int
}

// Connection is one view's hold on the push channel.
type Connection struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

// Connect starts l in the background, invalidating cache entries according
// to bindings for every event received. Close must be called to release it.
func Connect(ctx context.Context, l Listener, bindings Bindings, cache Invalidator, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "push")

	ctx, cancel := context.WithCancel(ctx)
	c := &Connection{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(c.done)
		err := l.Listen(ctx, func(ev Event) {
			prefixes, ok := bindings.For(ev.Name)
			if !ok {
				logger.Debug("Ignoring unbound event", "event", ev.Name)
				return
			}
			n := cache.Invalidate(prefixes...)
			logger.Debug("Push event", "event", ev.Name, "refetches", n)
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("Push listener stopped", "error", err)
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
		}
	}()
	return c
}

// Close stops the listener and waits for it to return. Safe to call more
// than once.
func (c *Connection) Close() {
	c.once.Do(c.cancel)
	<-c.done
}

// Done is closed once the listener has returned.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err returns the error the listener stopped with, if any.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Nop never delivers anything. Used when push is disabled.
type Nop struct{}

func (Nop) Listen(ctx context.Context, _ func(Event)) error {
	<-ctx.Done()
	return nil
}
