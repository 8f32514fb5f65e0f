package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/interfaces"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []interfaces.Event
	seen   chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{seen: make(chan struct{}, 16)}
}

func (r *eventRecorder) handle(_ context.Context, event interfaces.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.seen <- struct{}{}
}

func (r *eventRecorder) wait(t *testing.T, n int) []interfaces.Event {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interfaces.Event(nil), r.events...)
}

func TestPublishReachesTypedSubscriber(t *testing.T) {
	s := NewService(common.GetLogger())
	defer s.Close()

	rec := newEventRecorder()
	s.Subscribe(interfaces.EventJobCreated, rec.handle)

	s.Publish(context.Background(), interfaces.Event{
		Type:  interfaces.EventJobCreated,
		JobID: "job-1",
	})

	events := rec.wait(t, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "job-1", events[0].JobID)
}

func TestPublishSkipsOtherTypes(t *testing.T) {
	s := NewService(common.GetLogger())
	defer s.Close()

	created := newEventRecorder()
	s.Subscribe(interfaces.EventJobCreated, created.handle)

	s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobFailed, JobID: "job-2"})
	s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobCreated, JobID: "job-3"})

	events := created.wait(t, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "job-3", events[0].JobID)
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	s := NewService(common.GetLogger())
	defer s.Close()

	rec := newEventRecorder()
	s.SubscribeAll(rec.handle)

	s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobCreated, JobID: "a"})
	s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventStepCompleted, JobID: "a"})
	s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobCompleted, JobID: "a"})

	events := rec.wait(t, 3)
	assert.Len(t, events, 3)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := NewService(common.GetLogger())
	defer s.Close()

	silenced := newEventRecorder()
	kept := newEventRecorder()
	id := s.Subscribe(interfaces.EventJobCreated, silenced.handle)
	s.Subscribe(interfaces.EventJobCreated, kept.handle)

	s.Unsubscribe(id)
	s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobCreated, JobID: "job-4"})

	kept.wait(t, 1)
	silenced.mu.Lock()
	defer silenced.mu.Unlock()
	assert.Empty(t, silenced.events)
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	s := NewService(common.GetLogger())

	rec := newEventRecorder()
	s.SubscribeAll(rec.handle)
	s.Close()

	s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobCreated, JobID: "job-5"})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Empty(t, rec.events)
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	s := NewService(common.GetLogger())
	defer s.Close()

	rec := newEventRecorder()
	s.Subscribe(interfaces.EventJobCreated, func(_ context.Context, _ interfaces.Event) {
		panic("handler bug")
	})
	s.Subscribe(interfaces.EventJobCreated, rec.handle)

	s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobCreated, JobID: "job-6"})

	events := rec.wait(t, 1)
	assert.Len(t, events, 1)
}
