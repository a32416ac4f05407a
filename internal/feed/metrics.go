package feed

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/opspulse/pulsefeed/internal/model"
	"github.com/opspulse/pulsefeed/internal/realtime"
)

// MetricsRoom is the room metric updates are scoped to.
const MetricsRoom = "metrics"

// EventMetricUpdate is the event name carrying a model.MetricSample payload.
const EventMetricUpdate = "metrics:update"

// Metrics tracks the latest sample per series for gauge-style widgets.
type Metrics struct {
	logger zerolog.Logger

	mu     sync.Mutex
	latest map[string]model.MetricSample

	disposers []func()
}

// NewMetrics joins the metrics room and starts tracking.
func NewMetrics(src Source, logger zerolog.Logger) *Metrics {
	m := &Metrics{
		latest: make(map[string]model.MetricSample),
		logger: logger,
	}
	m.disposers = append(m.disposers,
		src.JoinRoom(MetricsRoom),
		src.Subscribe(EventMetricUpdate, m.onSample),
	)
	return m
}

// Latest returns the last sample seen for a series.
func (m *Metrics) Latest(series string) (model.MetricSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sample, ok := m.latest[series]
	return sample, ok
}

// Snapshot returns a copy of the latest sample per series.
func (m *Metrics) Snapshot() map[string]model.MetricSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.MetricSample, len(m.latest))
	for k, v := range m.latest {
		out[k] = v
	}
	return out
}

// Close leaves the room and removes the subscription. Idempotent.
func (m *Metrics) Close() {
	for _, dispose := range m.disposers {
		dispose()
	}
}

func (m *Metrics) onSample(evt realtime.Event) {
	var sample model.MetricSample
	if err := json.Unmarshal(evt.Data, &sample); err != nil {
		m.logger.Debug().Err(err).Msg("dropping malformed metric sample")
		return
	}
	if sample.Series == "" {
		return
	}

	m.mu.Lock()
	m.latest[sample.Series] = sample
	m.mu.Unlock()
}
