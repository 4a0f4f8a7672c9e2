package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-call/internal/backend"
	"table-call/internal/push"
)

type fakeBackend struct {
	mu      sync.Mutex
	calls   []backend.ButtonCall
	lists   int
	queries []backend.ListCallsQuery
	closed  []backend.CloseCallInput
	err     error
}

func (f *fakeBackend) ListCalls(ctx context.Context, q backend.ListCallsQuery) ([]backend.ButtonCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	f.queries = append(f.queries, q)
	return append([]backend.ButtonCall(nil), f.calls...), nil
}

func (f *fakeBackend) CloseFromPanel(ctx context.Context, in backend.CloseCallInput) (*backend.ButtonCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.closed = append(f.closed, in)
	kept := f.calls[:0]
	for _, c := range f.calls {
		if c.TableName == in.TableName && c.Type == in.Type {
			continue
		}
		kept = append(kept, c)
	}
	f.calls = kept
	return &backend.ButtonCall{TableName: in.TableName, FinishHour: in.Hour}, nil
}

func (f *fakeBackend) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

type pushListener struct{ events chan push.Event }

func (l pushListener) Listen(ctx context.Context, handle func(push.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-l.events:
			handle(ev)
		}
	}
}

var now = time.Date(2026, 10, 14, 18, 10, 30, 0, time.UTC)

func sampleCalls() []backend.ButtonCall {
	return []backend.ButtonCall{
		{ID: "1", Location: 1, TableName: "3", Date: "2026-10-14", Type: backend.GameMasterCall, StartHour: "18:05"},
		{ID: "2", Location: 1, TableName: "4", Date: "2026-10-14", Type: backend.OrderCall, StartHour: "18:09"},
		{ID: "3", Location: 1, TableName: "5", Date: "2026-10-14", Type: backend.TableCall, StartHour: "17:00"},
		{ID: "4", Location: 1, TableName: "6", Date: "2026-10-14", Type: backend.OrderCall, StartHour: "17:30", FinishHour: "17:45"},
		{ID: "5", Location: 2, TableName: "3", Date: "2026-10-14", Type: backend.OrderCall, StartHour: "18:00"},
	}
}

func TestGroupCalls(t *testing.T) {
	sections := GroupCalls(sampleCalls(), 1, now)
	require.Len(t, sections, 2)

	gm := sections[0]
	assert.Equal(t, GroupGameMasterAndTable, gm.Group)
	require.Len(t, gm.Calls, 2)
	// oldest first
	assert.Equal(t, "3", gm.Calls[0].ID)
	assert.Equal(t, "1:10:30", gm.Calls[0].ElapsedText)
	assert.Equal(t, "05:30", gm.Calls[1].ElapsedText)

	order := sections[1]
	assert.Equal(t, GroupOrder, order.Group)
	require.Len(t, order.Calls, 1)
	assert.Equal(t, "2", order.Calls[0].ID)
	assert.Equal(t, 90*time.Second, order.Calls[0].Elapsed)
}

func TestGroupCalls_Empty(t *testing.T) {
	sections := GroupCalls(nil, 1, now)
	require.Len(t, sections, 2)
	assert.NotNil(t, sections[0].Calls)
	assert.Empty(t, sections[1].Calls)
}

func TestElapsed(t *testing.T) {
	assert.Zero(t, Elapsed(backend.ButtonCall{Date: "2026-10-14", StartHour: "19:00"}, now))
	assert.Zero(t, Elapsed(backend.ButtonCall{Date: "bad", StartHour: "19:00"}, now))
	assert.Equal(t, 30*time.Second, Elapsed(backend.ButtonCall{Date: "2026-10-14", StartHour: "18:10"}, now))

	assert.Equal(t, "00:00", FormatElapsed(0))
	assert.Equal(t, "00:59", FormatElapsed(59*time.Second))
	assert.Equal(t, "59:59", FormatElapsed(time.Hour-time.Second))
	assert.Equal(t, "2:00:01", FormatElapsed(2*time.Hour+time.Second))
}

func openBoard(t *testing.T, b *fakeBackend, opts Options) *Board {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return now }
	}
	d := Open(context.Background(), 1, b, opts)
	t.Cleanup(d.Close)
	return d
}

func TestBoard_RefreshAndClose(t *testing.T) {
	b := &fakeBackend{calls: sampleCalls()}
	d := openBoard(t, b, Options{Tick: time.Hour})

	snap, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Available)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, "2026-10-14", snap.Date)
	assert.Equal(t, backend.ListCallsQuery{Location: 1, Date: "2026-10-14", Type: "active"}, b.queries[0])

	require.NoError(t, d.CloseCall(context.Background(), "4", backend.OrderCall))
	assert.Equal(t, "18:10", b.closed[0].Hour)

	require.Eventually(t, func() bool { return d.Snapshot().Total == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, b.listCount())
}

func TestBoard_CloseCallErrors(t *testing.T) {
	b := &fakeBackend{err: &backend.APIError{StatusCode: 404}}
	d := openBoard(t, b, Options{Tick: time.Hour})

	assert.ErrorIs(t, d.CloseCall(context.Background(), "4", backend.OrderCall), ErrCallNotFound)
	assert.ErrorIs(t, d.CloseCall(context.Background(), "", backend.OrderCall), ErrCallNotFound)
	assert.ErrorIs(t, d.CloseCall(context.Background(), "4", "NOPE"), ErrCallNotFound)
}

func TestBoard_TicksWithoutRefetching(t *testing.T) {
	b := &fakeBackend{calls: sampleCalls()}

	var mu sync.Mutex
	clock := now
	d := openBoard(t, b, Options{
		Tick: 10 * time.Millisecond,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
	})
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)

	ch, cancel := d.Subscribe()
	defer cancel()

	first := <-ch
	var later Snapshot
	require.Eventually(t, func() bool {
		later = <-ch
		return later.Now.After(first.Now)
	}, time.Second, time.Millisecond)

	assert.Greater(t, later.Sections[0].Calls[0].Elapsed, first.Sections[0].Calls[0].Elapsed)
	assert.Equal(t, 1, b.listCount())
}

func TestBoard_PushEventRefetches(t *testing.T) {
	b := &fakeBackend{calls: sampleCalls()}
	l := pushListener{events: make(chan push.Event)}
	d := openBoard(t, b, Options{Tick: time.Hour, Listener: l})

	_, err := d.Refresh(context.Background())
	require.NoError(t, err)

	b.mu.Lock()
	b.calls = b.calls[:1]
	b.mu.Unlock()

	l.events <- push.Event{Name: push.EventButtonCallChanged}
	require.Eventually(t, func() bool { return d.Snapshot().Total == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, b.listCount())
}

func TestActiveKeyMatchesButtonCallBinding(t *testing.T) {
	key := ActiveKey(1, "2026-10-14")
	for _, prefix := range push.DefaultBindings()[push.EventButtonCallChanged] {
		assert.True(t, key.HasPrefix(prefix))
	}
}
