// Package feed provides thin consumer facades over the realtime client:
// an alert feed and a metrics snapshot, the two always-on dashboard streams.
package feed

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/opspulse/pulsefeed/internal/model"
	"github.com/opspulse/pulsefeed/internal/realtime"
)

// AlertRoom is the room alert events are scoped to.
const AlertRoom = "alerts"

// EventAlertRaised is the event name carrying a model.Alert payload.
const EventAlertRaised = "alerts:raised"

// Source is the slice of the realtime client the facades need.
type Source interface {
	Subscribe(event string, fn realtime.Handler) func()
	JoinRoom(room string) func()
}

// Alerts keeps a bounded, newest-last list of alerts received while mounted.
// Multiple widgets can each hold their own Alerts facade; the shared room
// refcounting keeps the underlying membership alive until the last closes.
type Alerts struct {
	limit  int
	logger zerolog.Logger

	mu     sync.Mutex
	alerts []model.Alert
	onNew  func(model.Alert)

	disposers []func()
}

// NewAlerts joins the alerts room and starts collecting. limit caps the
// retained list; non-positive means 100.
func NewAlerts(src Source, limit int, logger zerolog.Logger) *Alerts {
	if limit <= 0 {
		limit = 100
	}
	a := &Alerts{limit: limit, logger: logger}
	a.disposers = append(a.disposers,
		src.JoinRoom(AlertRoom),
		src.Subscribe(EventAlertRaised, a.onAlert),
	)
	return a
}

// SetOnNew sets a callback invoked for each alert as it arrives.
func (a *Alerts) SetOnNew(fn func(model.Alert)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onNew = fn
}

// Recent returns a copy of the retained alerts, oldest first.
func (a *Alerts) Recent() []model.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Alert, len(a.alerts))
	copy(out, a.alerts)
	return out
}

// Close leaves the room and removes the subscription. Idempotent.
func (a *Alerts) Close() {
	for _, dispose := range a.disposers {
		dispose()
	}
}

func (a *Alerts) onAlert(evt realtime.Event) {
	var alert model.Alert
	if err := json.Unmarshal(evt.Data, &alert); err != nil {
		a.logger.Debug().Err(err).Msg("dropping malformed alert")
		return
	}

	a.mu.Lock()
	a.alerts = append(a.alerts, alert)
	if len(a.alerts) > a.limit {
		a.alerts = a.alerts[len(a.alerts)-a.limit:]
	}
	onNew := a.onNew
	a.mu.Unlock()

	if onNew != nil {
		onNew(alert)
	}
}
