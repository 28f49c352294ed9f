// Package eventbus implements the in-process publish/subscribe fabric that
// couples scenarios, metrics, hosts and the mixer. Dispatch is best-effort
// and asynchronous: Emit schedules one goroutine per subscriber and returns
// without waiting for any of them.
package eventbus

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Event is the record delivered to subscribers.
type Event struct {
	Name   string
	Data   map[string]any
	Source string
}

// Handler processes one delivered Event. Errors and panics inside a Handler
// are caught and logged; they never propagate to the emitter or to sibling
// handlers.
type Handler func(Event)

// Subscription identifies one registered handler so it can be unsubscribed.
type Subscription struct {
	name string
	id   uint64
}

type subscriber struct {
	id      uint64
	once    bool
	handler Handler
}

// Bus is a named pub/sub fabric. The zero value is not usable; construct
// with New.
type Bus struct {
	log zerolog.Logger

	mu          sync.Mutex
	subscribers map[string][]subscriber
	nextID      uint64
}

// New creates an empty Bus logging through log.
func New(log zerolog.Logger) *Bus {
	return &Bus{
		log:         log.With().Str("component", "eventbus").Logger(),
		subscribers: make(map[string][]subscriber),
	}
}

// Subscribe registers handler for name. If once is true the subscription is
// removed before handler is invoked for the first matching event.
// Subscribe/Unsubscribe are serialized against each other.
func (b *Bus) Subscribe(name string, handler Handler, once bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscribers[name] = append(b.subscribers[name], subscriber{id: id, once: once, handler: handler})
	return Subscription{name: name, id: id}
}

// Unsubscribe removes a previously registered subscription. It is a no-op if
// the subscription is already gone.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.name]
	for i, s := range subs {
		if s.id == sub.id {
			b.subscribers[sub.name] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[sub.name]) == 0 {
		delete(b.subscribers, sub.name)
	}
}

// Emit builds an Event and dispatches it to a snapshot of the current
// subscribers for name. Subscriptions added during dispatch do not see this
// event. Emit does not block on delivery: each handler runs in its own
// goroutine.
func (b *Bus) Emit(name string, data map[string]any, source string) {
	event := Event{Name: name, Data: data, Source: source}

	b.mu.Lock()
	snapshot := make([]subscriber, len(b.subscribers[name]))
	copy(snapshot, b.subscribers[name])
	b.mu.Unlock()

	b.log.Debug().Str("event", name).Str("source", source).Int("subscribers", len(snapshot)).Msg("emitting event")

	for _, s := range snapshot {
		s := s
		if s.once {
			b.Unsubscribe(Subscription{name: name, id: s.id})
		}
		go b.dispatch(event, s.handler)
	}
}

func (b *Bus) dispatch(event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("event", event.Name).Str("source", event.Source).
				Interface("panic", r).Msg("recovered panic in event callback")
		}
	}()
	handler(event)
}

// HostStartedPayload builds the well-known payload for the host_started /
// host_stopped events.
func HostStartedPayload(labels map[string]string) map[string]any {
	return map[string]any{"labels": labels}
}

// MetricsPushedPayload builds the well-known payload for the metrics_pushed
// event.
func MetricsPushedPayload(job string, hosts []string, metricsCount int) map[string]any {
	return map[string]any{"job": job, "hosts": hosts, "metrics_count": metricsCount}
}

// FeatureTogglePayload builds the well-known payload for feature_on /
// feature_off events.
func FeatureTogglePayload(timestamp any) map[string]any {
	return map[string]any{"timestamp": timestamp}
}

// String satisfies fmt.Stringer for readable log lines.
func (e Event) String() string {
	return fmt.Sprintf("%s/%s", e.Name, e.Source)
}
