package bus

import "time"

// EventBus is an in-process, synchronous pub/sub bus. The race session
// publishes gameplay and terrain notifications on it; the host server and
// loggers subscribe.
//
// Handlers run in the publisher's goroutine in subscription order. Errors from
// multiple handlers are joined and returned from Publish. All methods are safe
// for concurrent use.
type EventBus interface {
	// Publish delivers the event to every active subscriber of event.Type().
	Publish(event Event) error
	// PublishBatch publishes events in order and joins their errors.
	PublishBatch(events ...Event) error
	// Subscribe registers a handler for one event type. The wildcard type "*"
	// receives every event.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels a Subscription. Nil is ignored.
	Unsubscribe(Subscription) error

	// Metrics returns a snapshot of the delivery counters.
	Metrics() Metrics
}

// Event is an immutable message transported by the bus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type EventHandler func(event Event) error

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}

// Wildcard subscribes to every event type.
const Wildcard = "*"

// Event types emitted by the race core.
const (
	TypeCheckpoint    = "race.checkpoint"
	TypePenalty       = "race.penalty"
	TypeFinish        = "race.finish"
	TypeState         = "race.state"
	TypePlanExhausted = "race.plan_exhausted"
	TypeTileReady     = "terrain.tile_ready"
	TypeTileEvicted   = "terrain.tile_evicted"
	TypeTileFailed    = "terrain.tile_failed"
)
