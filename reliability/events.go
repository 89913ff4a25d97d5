package reliability

import (
	"sync"
	"time"

	"github.com/jonwraymond/relguard/resilience"
)

// PressureEvent reports a named queue crossing into backpressure.
type PressureEvent struct {
	Queue string
	Level float64
	At    time.Time
}

// ReliefEvent reports a named queue dropping back below its low-water mark.
type ReliefEvent struct {
	Queue string
	At    time.Time
}

// ResourceAlertEvent wraps a ResourceAlert for subscribers.
type ResourceAlertEvent struct {
	Alert ResourceAlert
	At    time.Time
}

// CircuitStateChangeEvent reports a per-key circuit breaker transition.
type CircuitStateChangeEvent struct {
	Key  string
	From resilience.State
	To   resilience.State
	At   time.Time
}

// AlertFiredEvent wraps a fired Alert for subscribers.
type AlertFiredEvent struct {
	Alert Alert
	At    time.Time
}

// eventSubscriberBuffer is the per-subscriber channel buffer depth. Slow
// subscribers are dropped from, not allowed to stall, the publisher.
const eventSubscriberBuffer = 32

// eventBus fans each event type out to an arbitrary number of subscribers
// through bounded buffered channels. A publish that would block a given
// subscriber's channel is simply skipped for that subscriber.
type eventBus[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

func newEventBus[T any]() *eventBus[T] {
	return &eventBus[T]{subs: make(map[int]chan T)}
}

// subscribe registers a new receive-only channel and returns it along with
// an unsubscribe function that closes and removes it.
func (b *eventBus[T]) subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan T, eventSubscriberBuffer)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// publish delivers event to every current subscriber without blocking; a
// subscriber whose buffer is full misses this event rather than stalling
// the producer goroutine.
func (b *eventBus[T]) publish(event T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// eventBuses groups the five event-type buses the manager exposes.
type eventBuses struct {
	pressure      *eventBus[PressureEvent]
	relief        *eventBus[ReliefEvent]
	resourceAlert *eventBus[ResourceAlertEvent]
	circuitChange *eventBus[CircuitStateChangeEvent]
	alertFired    *eventBus[AlertFiredEvent]
}

func newEventBuses() *eventBuses {
	return &eventBuses{
		pressure:      newEventBus[PressureEvent](),
		relief:        newEventBus[ReliefEvent](),
		resourceAlert: newEventBus[ResourceAlertEvent](),
		circuitChange: newEventBus[CircuitStateChangeEvent](),
		alertFired:    newEventBus[AlertFiredEvent](),
	}
}
