package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Event is an inbound event as delivered to handlers.
type Event struct {
	Name string
	Room string
	Data json.RawMessage
}

// Handler is a callback invoked for each dispatched event.
type Handler func(Event)

type subscription struct {
	id uint64
	fn Handler
}

// Dispatcher fans inbound events out to every handler registered for the
// event name, in registration order. A handler that panics is recovered and
// logged so the remaining handlers in the same dispatch still run.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string][]subscription
	nextID   uint64
	logger   zerolog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]subscription),
		logger:   logger,
	}
}

// On registers a handler for the named event, appended after any existing
// handlers. The returned disposer removes exactly this registration; calling
// it more than once is a no-op.
func (d *Dispatcher) On(event string, fn Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.handlers[event] = append(d.handlers[event], subscription{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.off(event, id)
	}
}

func (d *Dispatcher) off(event string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.handlers[event]
	for i, sub := range subs {
		if sub.id == id {
			d.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(d.handlers[event]) == 0 {
		delete(d.handlers, event)
	}
}

// Dispatch invokes every handler currently registered for the event name, in
// registration order. Handlers registered or removed during the dispatch do
// not affect the in-flight fan-out.
func (d *Dispatcher) Dispatch(evt Event) {
	d.mu.Lock()
	subs := d.handlers[evt.Name]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	d.mu.Unlock()

	for _, sub := range snapshot {
		d.invoke(sub, evt)
	}
}

func (d *Dispatcher) invoke(sub subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("event", evt.Name).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	sub.fn(evt)
}

// HandlerCount returns the number of handlers registered for an event name.
func (d *Dispatcher) HandlerCount(event string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[event])
}

// Clear removes every registration. Used on teardown so handlers cannot
// leak across sessions.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[string][]subscription)
}
