package bus

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// simpleEvent is the Event implementation used by the race core.
type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
}

func (e simpleEvent) Type() string         { return e.typeStr }
func (e simpleEvent) Source() string       { return e.source }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Data() any            { return e.data }

// NewEvent creates a simple Event.
func NewEvent(typ, src string, data any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data}
}

type subscription struct {
	id        string
	eventType string
	handler   EventHandler
	active    bool
	cancel    func()
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active }
func (s *subscription) Cancel() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

type inMemoryBus struct {
	mu sync.RWMutex
	// handlers: eventType -> subscriptions in registration order
	handlers map[string][]*subscription
	metrics  Metrics
}

// New creates a new EventBus instance.
func New() EventBus {
	return &inMemoryBus{
		handlers: make(map[string][]*subscription),
	}
}

func (b *inMemoryBus) Publish(event Event) error {
	if event == nil {
		return nil
	}

	b.mu.RLock()
	direct := b.handlers[event.Type()]
	wild := b.handlers[Wildcard]
	handlers := make([]EventHandler, 0, len(direct)+len(wild))
	for _, s := range direct {
		handlers = append(handlers, s.handler)
	}
	for _, s := range wild {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	var all error
	for _, h := range handlers {
		if err := h(event); err != nil {
			all = errors.Join(all, err)
		}
	}

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(len(handlers))
	if all != nil {
		b.metrics.Errors++
	}
	b.mu.Unlock()

	return all
}

func (b *inMemoryBus) PublishBatch(events ...Event) error {
	var all error
	for _, e := range events {
		if err := b.Publish(e); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	if eventType == "" {
		return nil, errors.New("event type is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s := &subscription{id: uuid.NewString(), eventType: eventType, handler: handler, active: true}
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if !s.active {
			return
		}
		s.active = false
		list := b.handlers[eventType]
		for i, cur := range list {
			if cur == s {
				b.handlers[eventType] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		b.metrics.SubscribersActive--
	}
	b.handlers[eventType] = append(b.handlers[eventType], s)
	b.metrics.SubscribersActive++
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) Metrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}
