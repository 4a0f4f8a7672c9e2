package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(n *atomic.Int32, val any) Fetcher {
	return func(ctx context.Context) (any, error) {
		n.Add(1)
		return val, nil
	}
}

func TestKeyHasPrefix(t *testing.T) {
	k := NewKey("/button-calls", "queue", 2, "14")
	assert.Equal(t, Key{"/button-calls", "queue", "2", "14"}, k)
	assert.True(t, k.HasPrefix(Key{"/button-calls"}))
	assert.True(t, k.HasPrefix(Key{"/button-calls", "queue"}))
	assert.True(t, k.HasPrefix(Key{}))
	assert.False(t, k.HasPrefix(Key{"/button-calls", "active"}))
	assert.False(t, k.HasPrefix(Key{"/button"}))
	assert.False(t, Key{"a"}.HasPrefix(Key{"a", "b"}))
}

func TestGet_CachesUntilInvalidated(t *testing.T) {
	c := New(nil)
	defer c.Close()

	var n atomic.Int32
	key := NewKey("/tables", 1)
	c.Register(key, counter(&n, "v"))

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	}
	assert.EqualValues(t, 1, n.Load())

	// no observers: marked stale, not refetched
	assert.Equal(t, 0, c.Invalidate(Key{"/tables"}))
	snap, ok := c.Peek(key)
	require.True(t, ok)
	assert.True(t, snap.Stale)
	assert.EqualValues(t, 1, n.Load())

	_, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n.Load())
}

func TestGet_UnknownKey(t *testing.T) {
	c := New(nil)
	defer c.Close()

	_, err := c.Get(context.Background(), NewKey("nope"))
	assert.ErrorIs(t, err, ErrUnknownKey)
	_, err = c.Observe(NewKey("nope"), func(Snapshot) {})
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestGet_SharesConcurrentFetch(t *testing.T) {
	c := New(nil)
	defer c.Close()

	var n atomic.Int32
	release := make(chan struct{})
	key := NewKey("/button-calls", "queue", 1, "1")
	c.Register(key, func(ctx context.Context) (any, error) {
		n.Add(1)
		<-release
		return 42, nil
	})

	var wg sync.WaitGroup
	results := make([]any, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Get(context.Background(), key)
		}(i)
	}

	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, n.Load())
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestInvalidate_OneRefetchPerEntry(t *testing.T) {
	c := New(nil)
	defer c.Close()

	var queue, active, feedback atomic.Int32
	queueKey := NewKey("/button-calls", "queue", 2, "14")
	activeKey := NewKey("/button-calls", "active", 2)
	feedbackKey := NewKey("/tables", "feedback")
	c.Register(queueKey, counter(&queue, "q"))
	c.Register(activeKey, counter(&active, "a"))
	c.Register(feedbackKey, counter(&feedback, "f"))

	var notified atomic.Int32
	for i := 0; i < 3; i++ {
		_, err := c.Observe(queueKey, func(Snapshot) { notified.Add(1) })
		require.NoError(t, err)
	}
	_, err := c.Observe(feedbackKey, func(Snapshot) {})
	require.NoError(t, err)

	// overlapping prefixes still yield a single refetch per entry
	started := c.Invalidate(Key{"/button-calls"}, queueKey)
	assert.Equal(t, 1, started)

	require.Eventually(t, func() bool { return notified.Load() == 3 }, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, queue.Load())
	assert.EqualValues(t, 0, active.Load())
	assert.EqualValues(t, 0, feedback.Load())

	snap, _ := c.Peek(activeKey)
	assert.True(t, snap.Stale)
	snap, _ = c.Peek(queueKey)
	assert.False(t, snap.Stale)
	assert.Equal(t, "q", snap.Value)
}

func TestRun_StaleResponseDoesNotOverwriteNewer(t *testing.T) {
	c := New(nil)
	defer c.Close()

	var calls atomic.Int32
	slow := make(chan struct{})
	key := NewKey("/button-calls", "queue", 1, "1")
	c.Register(key, func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			<-slow
			return "old", nil
		}
		return "new", nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, _ := c.Fetch(context.Background(), key)
		assert.Equal(t, "old", v)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	v, err := c.Fetch(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	close(slow)
	<-done

	snap, _ := c.Peek(key)
	assert.Equal(t, "new", snap.Value)
}

func TestRun_ErrorKeepsValueAndStaysStale(t *testing.T) {
	c := New(nil)
	defer c.Close()

	fail := atomic.Bool{}
	key := NewKey("k")
	c.Register(key, func(ctx context.Context) (any, error) {
		if fail.Load() {
			return nil, errors.New("boom")
		}
		return "ok", nil
	})

	_, err := c.Get(context.Background(), key)
	require.NoError(t, err)

	fail.Store(true)
	_, err = c.Fetch(context.Background(), key)
	require.Error(t, err)

	snap, _ := c.Peek(key)
	assert.Equal(t, "ok", snap.Value)
	assert.EqualError(t, snap.Err, "boom")
	assert.True(t, snap.Stale)
}

func TestObserve_Cancel(t *testing.T) {
	c := New(nil)
	defer c.Close()

	var n atomic.Int32
	key := NewKey("k")
	c.Register(key, counter(&n, 1))

	cancel, err := c.Observe(key, func(Snapshot) {})
	require.NoError(t, err)
	cancel()
	cancel()

	assert.Equal(t, 0, c.Invalidate(key))
}

func TestClose_StopsRefetches(t *testing.T) {
	c := New(nil)

	var n atomic.Int32
	key := NewKey("k")
	c.Register(key, counter(&n, 1))
	_, err := c.Observe(key, func(Snapshot) {})
	require.NoError(t, err)

	c.Close()
	assert.Equal(t, 0, c.Invalidate(key))
	assert.EqualValues(t, 0, n.Load())

	_, err = c.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Fetch(context.Background(), key)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQuery_Typed(t *testing.T) {
	c := New(nil)
	defer c.Close()

	q := NewQuery(c, NewKey("typed"), func(ctx context.Context) ([]int, error) {
		return []int{1, 2}, nil
	})

	got := make(chan []int, 1)
	cancel := q.Observe(func(v []int, err error) { got <- v })
	defer cancel()

	v, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v)
	assert.Equal(t, []int{1, 2}, <-got)

	assert.Equal(t, 1, q.Invalidate())
	assert.Equal(t, []int{1, 2}, <-got)
}

func TestGet_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c := New(nil)
	defer c.Close()

	release := make(chan struct{})
	key := NewKey("/button-calls", "queue", 2, "14")
	c.Register(key, func(ctx context.Context) (any, error) {
		select {
		case <-release:
			return "queue", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	var seen []Snapshot
	var mu sync.Mutex
	_, err := c.Observe(key, func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	require.NoError(t, err)

	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	shortErr := make(chan error, 1)
	go func() {
		_, err := c.Get(short, key)
		shortErr <- err
	}()

	type result struct {
		v   any
		err error
	}
	long := make(chan result, 1)
	time.Sleep(2 * time.Millisecond)
	go func() {
		v, err := c.Get(context.Background(), key)
		long <- result{v, err}
	}()

	assert.ErrorIs(t, <-shortErr, context.DeadlineExceeded)
	time.Sleep(20 * time.Millisecond)
	close(release)

	res := <-long
	require.NoError(t, res.err)
	assert.Equal(t, "queue", res.v)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for _, s := range seen {
		assert.NoError(t, s.Err)
	}
	snap, _ := c.Peek(key)
	assert.False(t, snap.Stale)
	assert.NoError(t, snap.Err)
}

func TestInvalidate_DuringUnobservedFetchKeepsStale(t *testing.T) {
	c := New(nil)
	defer c.Close()

	var n atomic.Int32
	slow := make(chan struct{})
	key := NewKey("/tables", 1)
	c.Register(key, func(ctx context.Context) (any, error) {
		switch n.Add(1) {
		case 1:
			<-slow
			return "before", nil
		default:
			return "after", nil
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Fetch(context.Background(), key)
	}()
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, 0, c.Invalidate(Key{"/tables"}))
	close(slow)
	<-done

	snap, _ := c.Peek(key)
	assert.Equal(t, "before", snap.Value)
	assert.True(t, snap.Stale)

	v, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "after", v)
	assert.EqualValues(t, 2, n.Load())
}
