package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/interfaces"
)

// wildcard receives every event regardless of type
const wildcard interfaces.EventType = "*"

type subscription struct {
	id      string
	handler interfaces.EventHandler
}

// Service is the in-process pub/sub bus. Handlers run on their own
// goroutines so a slow subscriber never stalls a publishing worker.
type Service struct {
	mu          sync.RWMutex
	subscribers map[interfaces.EventType][]subscription
	nextID      int
	closed      bool
	wg          sync.WaitGroup
	logger      arbor.ILogger
}

// NewService creates an event service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		subscribers: make(map[interfaces.EventType][]subscription),
		logger:      logger,
	}
}

// Subscribe registers a handler for one event type and returns its
// subscription id for later removal.
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) string {
	return s.add(eventType, handler)
}

// SubscribeAll registers a handler for every event type
func (s *Service) SubscribeAll(handler interfaces.EventHandler) string {
	return s.add(wildcard, handler)
}

func (s *Service) add(eventType interfaces.EventType, handler interfaces.EventHandler) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := fmt.Sprintf("sub-%d", s.nextID)
	s.subscribers[eventType] = append(s.subscribers[eventType], subscription{id: id, handler: handler})

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Str("subscription_id", id).
		Msg("Event handler subscribed")
	return id
}

// Unsubscribe removes a subscription by id
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for eventType, subs := range s.subscribers {
		for i, sub := range subs {
			if sub.id == id {
				s.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish fans the event out to type and wildcard subscribers asynchronously
func (s *Service) Publish(ctx context.Context, event interfaces.Event) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	handlers := make([]interfaces.EventHandler, 0, len(s.subscribers[event.Type])+len(s.subscribers[wildcard]))
	for _, sub := range s.subscribers[event.Type] {
		handlers = append(handlers, sub.handler)
	}
	for _, sub := range s.subscribers[wildcard] {
		handlers = append(handlers, sub.handler)
	}
	s.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	for _, handler := range handlers {
		s.wg.Add(1)
		go func(h interfaces.EventHandler) {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().
						Str("event_type", string(event.Type)).
						Str("panic", fmt.Sprintf("%v", r)).
						Msg("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

// Close waits for in-flight handlers and drops all subscriptions
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.subscribers = make(map[interfaces.EventType][]subscription)
	s.mu.Unlock()
	s.wg.Wait()
}
