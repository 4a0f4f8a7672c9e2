package tableview

import (
	"context"
	"sync"

	"table-call/internal/backend"
	"table-call/internal/push"
)

type fakeBackend struct {
	mu sync.Mutex

	queue    backend.QueueResponse
	queueErr error
	callErr  error
	fbErr    error

	calls     []backend.CallInput
	cancels   []backend.CloseCallInput
	feedbacks []backend.FeedbackInput
	queueGets int
}

func (f *fakeBackend) CreateCall(ctx context.Context, in backend.CallInput) (*backend.ButtonCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &backend.ButtonCall{ID: "c1", Location: in.Location, TableName: in.TableName, Type: in.Type, StartHour: in.Hour}, nil
}

func (f *fakeBackend) CloseFromCustomer(ctx context.Context, in backend.CloseCallInput) (*backend.ButtonCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, in)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &backend.ButtonCall{ID: "c1", FinishHour: in.Hour}, nil
}

func (f *fakeBackend) GetQueue(ctx context.Context, location int, tableName string) (backend.QueueResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queueGets++
	if f.queueErr != nil {
		return nil, f.queueErr
	}
	out := backend.QueueResponse{}
	for k, v := range f.queue {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBackend) CreateFeedback(ctx context.Context, in backend.FeedbackInput) (*backend.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbacks = append(f.feedbacks, in)
	if f.fbErr != nil {
		return nil, f.fbErr
	}
	return &backend.Feedback{ID: 1, Location: in.Location, TableName: in.TableName, StarRating: in.StarRating}, nil
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeBackend) counts() (calls, cancels, feedbacks, queueGets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls), len(f.cancels), len(f.feedbacks), f.queueGets
}

// chanListener forwards events written to its channel.
type chanListener struct {
	events chan push.Event
	mu     sync.Mutex
	active int
}

func newChanListener() *chanListener {
	return &chanListener{events: make(chan push.Event)}
}

func (l *chanListener) Listen(ctx context.Context, handle func(push.Event)) error {
	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.active--
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-l.events:
			handle(ev)
		}
	}
}

func (l *chanListener) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
