package thought

import (
	"sort"
	"sync"

	"github.com/relaybot/relay/pkg/state"
)

// EventName is one of the observer events the orchestrator emits.
type EventName string

const (
	EventHear       EventName = "hear"
	EventListen     EventName = "listen"
	EventUnderstand EventName = "understand"
	EventRespond    EventName = "respond"
	EventRemember   EventName = "remember"
	EventMatch      EventName = "match"
	EventNoMatch    EventName = "nomatch"
)

// Observer is called when a subscribed event fires.
type Observer func(st *state.State)

// EventBus is a simple type-keyed multicast registry observers attach
// to, grounded on the same registration-order callback-list shape used
// throughout the framework's other registries.
type EventBus struct {
	mu        sync.RWMutex
	observers map[EventName][]Observer
}

// NewEventBus constructs an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{observers: make(map[EventName][]Observer)}
}

// On registers an observer for an event, in call order.
func (b *EventBus) On(event EventName, obs Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[event] = append(b.observers[event], obs)
}

// Emit calls every observer registered for event with st, in
// registration order, synchronously on the caller's goroutine: Emit
// returns only after every observer has returned.
func (b *EventBus) Emit(event EventName, st *state.State) {
	b.mu.RLock()
	obs := append([]Observer(nil), b.observers[event]...)
	b.mu.RUnlock()
	for _, o := range obs {
		o(st)
	}
}

// Events returns the known event names in a stable order, for
// introspection/status reporting.
func Events() []string {
	names := []string{
		string(EventHear), string(EventListen), string(EventUnderstand),
		string(EventRespond), string(EventRemember), string(EventMatch), string(EventNoMatch),
	}
	sort.Strings(names)
	return names
}
