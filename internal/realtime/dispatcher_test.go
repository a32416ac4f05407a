package realtime

import (
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
)

// TestDispatcherFanOut tests that every handler for an event runs, and that
// handlers for other events do not.
func TestDispatcherFanOut(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	var calls []string
	d.On("tick", func(Event) { calls = append(calls, "a") })
	d.On("tick", func(Event) { calls = append(calls, "b") })
	d.On("tock", func(Event) { calls = append(calls, "c") })

	d.Dispatch(Event{Name: "tick"})

	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Errorf("expected [a b], got %v", calls)
	}
}

// TestDispatcherRegistrationOrder tests that handlers run in the order they
// were registered.
func TestDispatcherRegistrationOrder(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	var order []int
	for i := 0; i < 10; i++ {
		n := i
		d.On("tick", func(Event) { order = append(order, n) })
	}

	d.Dispatch(Event{Name: "tick"})

	for i, n := range order {
		if n != i {
			t.Fatalf("handlers ran out of order: %v", order)
		}
	}
}

// TestDispatcherDisposer tests removal via the disposer, including that
// calling it twice does not remove an unrelated registration.
func TestDispatcherDisposer(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	var aCalls, bCalls int
	disposeA := d.On("tick", func(Event) { aCalls++ })
	d.On("tick", func(Event) { bCalls++ })

	disposeA()
	disposeA() // second call is a no-op

	d.Dispatch(Event{Name: "tick"})

	if aCalls != 0 {
		t.Errorf("disposed handler was invoked %d times", aCalls)
	}
	if bCalls != 1 {
		t.Errorf("surviving handler invoked %d times, expected 1", bCalls)
	}
	if d.HandlerCount("tick") != 1 {
		t.Errorf("expected 1 handler, got %d", d.HandlerCount("tick"))
	}
}

// TestDispatcherPanicIsolation tests that a panicking handler does not stop
// the handlers registered after it.
func TestDispatcherPanicIsolation(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	var after bool
	d.On("tick", func(Event) { panic("boom") })
	d.On("tick", func(Event) { after = true })

	d.Dispatch(Event{Name: "tick"})

	if !after {
		t.Error("handler after the panicking one did not run")
	}
}

// TestDispatcherConcurrentDispatch tests that dispatching from multiple
// goroutines does not lose invocations.
func TestDispatcherConcurrentDispatch(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	var mu sync.Mutex
	count := 0
	d.On("tick", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(Event{Name: "tick"})
		}()
	}
	wg.Wait()

	if count != 50 {
		t.Errorf("expected 50 invocations, got %d", count)
	}
}

// TestDispatcherCountProperty tests that after any mix of registrations and
// disposals the handler count matches and a dispatch reaches exactly the
// surviving handlers.
func TestDispatcherCountProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("surviving handlers all run exactly once", prop.ForAll(
		func(registered int, disposed int) bool {
			if disposed > registered {
				disposed = registered
			}

			d := NewDispatcher(zerolog.Nop())

			var mu sync.Mutex
			calls := 0
			disposers := make([]func(), registered)
			for i := 0; i < registered; i++ {
				disposers[i] = d.On("tick", func(Event) {
					mu.Lock()
					calls++
					mu.Unlock()
				})
			}
			for i := 0; i < disposed; i++ {
				disposers[i]()
			}

			if d.HandlerCount("tick") != registered-disposed {
				return false
			}

			d.Dispatch(Event{Name: "tick"})
			return calls == registered-disposed
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
