// Package track provides the task-execution tracker facade: a small state
// machine layered over the realtime client that folds a topic's
// start/progress/complete/error events into a single run status.
package track

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/opspulse/pulsefeed/internal/model"
	"github.com/opspulse/pulsefeed/internal/realtime"
)

// Feed is the slice of the realtime client the tracker needs.
type Feed interface {
	Subscribe(event string, fn realtime.Handler) func()
	JoinRoom(room string) func()
}

// Tracker follows one task topic. Runs move Idle → Running on start, stay
// Running on progress updates, and end in Completed or Errored. A new start
// event begins a fresh run, discarding the previous progress.
type Tracker struct {
	topic  string
	logger zerolog.Logger

	mu       sync.Mutex
	status   model.RunStatus
	progress int
	stage    string
	lastErr  string

	disposers []func()
}

// NewTracker joins the topic's room and subscribes to its lifecycle events.
// Call Close when the consumer goes away.
func NewTracker(feed Feed, topic string, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		topic:  topic,
		status: model.RunStatusIdle,
		logger: logger,
	}

	t.disposers = append(t.disposers,
		feed.JoinRoom(topic),
		feed.Subscribe(topic+":start", t.onStart),
		feed.Subscribe(topic+":progress", t.onProgress),
		feed.Subscribe(topic+":complete", t.onComplete),
		feed.Subscribe(topic+":error", t.onError),
	)
	return t
}

// Close leaves the room and removes every subscription. Idempotent.
func (t *Tracker) Close() {
	for _, dispose := range t.disposers {
		dispose()
	}
}

// Status returns the current run status.
func (t *Tracker) Status() model.RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Progress returns the last reported progress value (0-100 by convention).
func (t *Tracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Stage returns the last reported stage label.
func (t *Tracker) Stage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// Err returns the error message of an errored run, or "".
func (t *Tracker) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Tracker) onStart(realtime.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = model.RunStatusRunning
	t.progress = 0
	t.stage = ""
	t.lastErr = ""
}

func (t *Tracker) onProgress(evt realtime.Event) {
	var p model.TaskProgress
	if err := json.Unmarshal(evt.Data, &p); err != nil {
		t.logger.Debug().Err(err).Str("topic", t.topic).Msg("dropping malformed progress event")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != model.RunStatusRunning {
		return
	}
	// Producers should report non-decreasing progress, but a regressing
	// value is accepted as the new truth rather than rejected.
	t.progress = p.Progress
	if p.Stage != "" {
		t.stage = p.Stage
	}
}

func (t *Tracker) onComplete(realtime.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != model.RunStatusRunning {
		return
	}
	t.status = model.RunStatusCompleted
	t.progress = 100
}

func (t *Tracker) onError(evt realtime.Event) {
	var te model.TaskError
	if err := json.Unmarshal(evt.Data, &te); err != nil {
		t.logger.Debug().Err(err).Str("topic", t.topic).Msg("malformed error event")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != model.RunStatusRunning {
		return
	}
	t.status = model.RunStatusErrored
	t.lastErr = te.Message
}
