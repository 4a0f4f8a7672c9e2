package tableview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-call/internal/backend"
	"table-call/internal/push"
	"table-call/internal/tablecode"
)

var table14 = tablecode.Table{Location: 2, Name: "14"}

func testOptions(l push.Listener) Options {
	return Options{
		CallCooldown:     150 * time.Millisecond,
		FeedbackCooldown: 100 * time.Millisecond,
		NoticeTTL:        100 * time.Millisecond,
		Listener:         l,
		Now: func() time.Time {
			return time.Date(2026, 10, 14, 18, 5, 0, 0, time.Local)
		},
	}
}

func openView(t *testing.T, b *fakeBackend, l push.Listener) *View {
	t.Helper()
	v := Open(context.Background(), table14, b, testOptions(l))
	t.Cleanup(v.Close)
	return v
}

func TestSubmitCall_CooldownAfterSuccess(t *testing.T) {
	b := &fakeBackend{}
	v := openView(t, b, nil)

	require.NoError(t, v.SubmitCall(context.Background(), backend.GameMasterCall))
	assert.True(t, v.Disabled(CallControl(backend.GameMasterCall)))
	assert.False(t, v.Disabled(CallControl(backend.OrderCall)))

	// a second click inside the window never reaches the backend
	err := v.SubmitCall(context.Background(), backend.GameMasterCall)
	assert.ErrorIs(t, err, ErrCoolingDown)
	calls, _, _, _ := b.counts()
	assert.Equal(t, 1, calls)

	assert.Equal(t, backend.CallInput{Location: 2, Type: backend.GameMasterCall, TableName: "14", Hour: "18:05"}, b.calls[0])

	// still disabled well inside the window
	time.Sleep(50 * time.Millisecond)
	assert.True(t, v.Disabled(CallControl(backend.GameMasterCall)))

	require.Eventually(t, func() bool {
		return !v.Disabled(CallControl(backend.GameMasterCall))
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, v.SubmitCall(context.Background(), backend.GameMasterCall))
}

func TestSubmitCall_FailureReleasesAndNotifies(t *testing.T) {
	b := &fakeBackend{callErr: &backend.APIError{StatusCode: 500}}
	v := openView(t, b, nil)

	err := v.SubmitCall(context.Background(), backend.OrderCall)
	require.Error(t, err)
	var apiErr *backend.APIError
	assert.True(t, errors.As(err, &apiErr))

	assert.False(t, v.Disabled(CallControl(backend.OrderCall)))
	notice := v.State().Notice
	require.NotNil(t, notice)
	assert.Equal(t, NoticeError, notice.Level)

	// notice dismisses itself
	require.Eventually(t, func() bool { return v.State().Notice == nil }, time.Second, 5*time.Millisecond)

	// retry is allowed right away
	b.set(func(f *fakeBackend) { f.callErr = nil })
	require.NoError(t, v.SubmitCall(context.Background(), backend.OrderCall))
}

func TestSubmitCall_InvalidType(t *testing.T) {
	b := &fakeBackend{}
	v := openView(t, b, nil)

	assert.ErrorIs(t, v.SubmitCall(context.Background(), "COFFEE"), ErrInvalidCallType)
	calls, _, _, _ := b.counts()
	assert.Zero(t, calls)
}

func TestCancelCall(t *testing.T) {
	b := &fakeBackend{}
	v := openView(t, b, nil)

	require.NoError(t, v.CancelCall(context.Background(), backend.GameMasterCall))
	assert.Equal(t, backend.CloseCallInput{Location: 2, TableName: "14", Hour: "18:05", Type: backend.GameMasterCall}, b.cancels[0])
	assert.ErrorIs(t, v.CancelCall(context.Background(), backend.GameMasterCall), ErrCoolingDown)
}

func TestSubmitFeedback_Gating(t *testing.T) {
	b := &fakeBackend{}
	v := openView(t, b, nil)

	for _, tc := range []struct {
		rating  int
		comment string
	}{
		{0, "nice"},
		{6, "nice"},
		{-1, "nice"},
		{4, ""},
		{4, "   \t\n"},
	} {
		err := v.SubmitFeedback(context.Background(), tc.rating, tc.comment)
		assert.ErrorIs(t, err, ErrInvalidFeedback)

		notice := v.State().Notice
		require.NotNil(t, notice)
		assert.Equal(t, NoticeWarning, notice.Level)
	}

	_, _, feedbacks, _ := b.counts()
	assert.Zero(t, feedbacks)
	assert.False(t, v.Disabled(ControlFeedback))

	require.Eventually(t, func() bool { return v.State().Notice == nil }, time.Second, 5*time.Millisecond)
}

func TestSubmitFeedback_Success(t *testing.T) {
	b := &fakeBackend{}
	v := openView(t, b, nil)

	require.NoError(t, v.SubmitFeedback(context.Background(), 5, "  great games  "))
	assert.Equal(t, backend.FeedbackInput{Location: 2, TableName: "14", StarRating: 5, Comment: "great games"}, b.feedbacks[0])
	assert.True(t, v.Disabled(ControlFeedback))
	assert.ErrorIs(t, v.SubmitFeedback(context.Background(), 5, "again"), ErrCoolingDown)

	require.Eventually(t, func() bool { return !v.Disabled(ControlFeedback) }, time.Second, 5*time.Millisecond)
}

func TestQueueStatus(t *testing.T) {
	b := &fakeBackend{queue: backend.QueueResponse{
		backend.GameMasterCall: {IsQueued: true, Position: 1, WaitingCount: 2, TotalActive: 3},
		backend.OrderCall:      {IsQueued: true, Position: 3, WaitingCount: 4, TotalActive: 4},
	}}
	v := openView(t, b, nil)

	displays := v.QueueStatus(context.Background())
	require.Len(t, displays, 2)
	assert.Equal(t, DisplayTurn, displays[0].State)
	assert.Equal(t, DisplayWaiting, displays[1].State)
	assert.Equal(t, 2, displays[1].Ahead)

	// cached until invalidated
	v.QueueStatus(context.Background())
	_, _, _, gets := b.counts()
	assert.Equal(t, 1, gets)
}

func TestQueueStatus_FailureFallsBackToButton(t *testing.T) {
	b := &fakeBackend{queueErr: backend.ErrUnavailable}
	v := openView(t, b, nil)

	for _, d := range v.QueueStatus(context.Background()) {
		assert.Equal(t, DisplayButton, d.State)
	}
}

func TestPushEvent_RefetchesOncePerEvent(t *testing.T) {
	b := &fakeBackend{queue: backend.QueueResponse{
		backend.GameMasterCall: {IsQueued: false},
	}}
	l := newChanListener()
	v := openView(t, b, l)

	// three subscribers on the same view
	var chans []<-chan State
	for i := 0; i < 3; i++ {
		ch, cancel := v.Subscribe()
		t.Cleanup(cancel)
		chans = append(chans, ch)
	}

	assert.Equal(t, DisplayButton, v.QueueStatus(context.Background())[0].State)
	_, _, _, gets := b.counts()
	require.Equal(t, 1, gets)

	b.set(func(f *fakeBackend) {
		f.queue = backend.QueueResponse{backend.GameMasterCall: {IsQueued: true, Position: 2, WaitingCount: 2}}
	})
	l.events <- push.Event{Name: push.EventButtonCallChanged}

	require.Eventually(t, func() bool {
		return v.State().Queue[0].State == DisplayWaiting
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	_, _, _, gets = b.counts()
	assert.Equal(t, 2, gets)

	for _, ch := range chans {
		select {
		case s := <-ch:
			assert.Equal(t, v.ID, s.ViewID)
		case <-time.After(time.Second):
			t.Fatal("subscriber got no state")
		}
	}

	// unbound events do nothing
	l.events <- push.Event{Name: "menuChanged"}
	time.Sleep(20 * time.Millisecond)
	_, _, _, gets = b.counts()
	assert.Equal(t, 2, gets)
}

func TestClose_ReleasesPushConnection(t *testing.T) {
	l := newChanListener()
	v := Open(context.Background(), table14, &fakeBackend{}, testOptions(l))
	ch, _ := v.Subscribe()

	require.Eventually(t, func() bool { return l.Active() == 1 }, time.Second, time.Millisecond)
	v.Close()
	v.Close()

	assert.Equal(t, 0, l.Active())
	_, open := <-ch
	assert.False(t, open)
	assert.ErrorIs(t, v.SubmitCall(context.Background(), backend.OrderCall), ErrClosed)

	ch2, _ := v.Subscribe()
	_, open = <-ch2
	assert.False(t, open)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	v := Open(context.Background(), table14, &fakeBackend{}, testOptions(nil))
	r.Add(v)

	got, ok := r.Get(v.ID)
	require.True(t, ok)
	assert.Same(t, v, got)

	r.Remove(v)
	_, ok = r.Get(v.ID)
	assert.False(t, ok)
	select {
	case <-v.Done():
	default:
		t.Fatal("view not closed on remove")
	}

	v2 := Open(context.Background(), table14, &fakeBackend{}, testOptions(nil))
	r.Add(v2)
	r.CloseAll()
	assert.Zero(t, r.Len())
	<-v2.Done()
}
