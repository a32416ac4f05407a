package feed

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/opspulse/pulsefeed/internal/model"
	"github.com/opspulse/pulsefeed/internal/realtime"
)

// fakeSource routes subscriptions through a real dispatcher and counts room
// references so a test can drive the facades directly.
type fakeSource struct {
	dispatch *realtime.Dispatcher
	joined   map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		dispatch: realtime.NewDispatcher(zerolog.Nop()),
		joined:   make(map[string]int),
	}
}

func (s *fakeSource) Subscribe(event string, fn realtime.Handler) func() {
	return s.dispatch.On(event, fn)
}

func (s *fakeSource) JoinRoom(room string) func() {
	s.joined[room]++
	return func() { s.joined[room]-- }
}

func (s *fakeSource) emit(event string, payload any) {
	data, _ := json.Marshal(payload)
	s.dispatch.Dispatch(realtime.Event{Name: event, Data: data})
}

// TestAlertsCollects tests that alerts accumulate oldest-first and reach the
// OnNew callback.
func TestAlertsCollects(t *testing.T) {
	src := newFakeSource()
	alerts := NewAlerts(src, 10, zerolog.Nop())
	defer alerts.Close()

	if src.joined[AlertRoom] != 1 {
		t.Error("alerts facade did not join the alerts room")
	}

	var notified []model.Alert
	alerts.SetOnNew(func(a model.Alert) { notified = append(notified, a) })

	src.emit(EventAlertRaised, model.Alert{ID: "a1", Severity: "warning", Message: "disk 80%"})
	src.emit(EventAlertRaised, model.Alert{ID: "a2", Severity: "critical", Message: "disk full"})

	recent := alerts.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(recent))
	}
	if recent[0].ID != "a1" || recent[1].ID != "a2" {
		t.Errorf("alerts out of order: %v", recent)
	}
	if len(notified) != 2 {
		t.Errorf("expected 2 callback invocations, got %d", len(notified))
	}
}

// TestAlertsBounded tests that the retained list keeps only the newest
// entries once the limit is hit.
func TestAlertsBounded(t *testing.T) {
	src := newFakeSource()
	alerts := NewAlerts(src, 3, zerolog.Nop())
	defer alerts.Close()

	for i := 1; i <= 5; i++ {
		src.emit(EventAlertRaised, model.Alert{ID: fmt.Sprintf("a%d", i)})
	}

	recent := alerts.Recent()
	if len(recent) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(recent))
	}
	for i, want := range []string{"a3", "a4", "a5"} {
		if recent[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, recent[i].ID)
		}
	}
}

// TestAlertsDropsMalformed tests that unparseable alert payloads are skipped.
func TestAlertsDropsMalformed(t *testing.T) {
	src := newFakeSource()
	alerts := NewAlerts(src, 10, zerolog.Nop())
	defer alerts.Close()

	src.dispatch.Dispatch(realtime.Event{Name: EventAlertRaised, Data: json.RawMessage("not json")})
	src.emit(EventAlertRaised, model.Alert{ID: "a1"})

	if got := len(alerts.Recent()); got != 1 {
		t.Errorf("expected 1 alert, got %d", got)
	}
}

// TestAlertsClose tests that closing releases the room reference and stops
// collection.
func TestAlertsClose(t *testing.T) {
	src := newFakeSource()
	alerts := NewAlerts(src, 10, zerolog.Nop())
	alerts.Close()

	if src.joined[AlertRoom] != 0 {
		t.Error("alerts facade did not leave the room on close")
	}

	src.emit(EventAlertRaised, model.Alert{ID: "a1"})
	if len(alerts.Recent()) != 0 {
		t.Error("closed facade still collecting alerts")
	}
}

// TestMetricsLatestPerSeries tests that the newest sample wins per series and
// series stay independent.
func TestMetricsLatestPerSeries(t *testing.T) {
	src := newFakeSource()
	metrics := NewMetrics(src, zerolog.Nop())
	defer metrics.Close()

	if src.joined[MetricsRoom] != 1 {
		t.Error("metrics facade did not join the metrics room")
	}

	src.emit(EventMetricUpdate, model.MetricSample{Series: "cpu", Value: 41})
	src.emit(EventMetricUpdate, model.MetricSample{Series: "cpu", Value: 87})
	src.emit(EventMetricUpdate, model.MetricSample{Series: "mem", Value: 52, Unit: "percent"})

	cpu, ok := metrics.Latest("cpu")
	if !ok || cpu.Value != 87 {
		t.Errorf("expected cpu=87, got %v ok=%v", cpu.Value, ok)
	}
	mem, ok := metrics.Latest("mem")
	if !ok || mem.Value != 52 || mem.Unit != "percent" {
		t.Errorf("unexpected mem sample: %+v ok=%v", mem, ok)
	}

	snapshot := metrics.Snapshot()
	if len(snapshot) != 2 {
		t.Errorf("expected 2 series, got %d", len(snapshot))
	}

	if _, ok := metrics.Latest("disk"); ok {
		t.Error("unknown series reported a sample")
	}
}

// TestMetricsIgnoresUnnamedSeries tests that samples without a series name
// are dropped.
func TestMetricsIgnoresUnnamedSeries(t *testing.T) {
	src := newFakeSource()
	metrics := NewMetrics(src, zerolog.Nop())
	defer metrics.Close()

	src.emit(EventMetricUpdate, model.MetricSample{Value: 10})

	if len(metrics.Snapshot()) != 0 {
		t.Error("unnamed sample was retained")
	}
}

// TestFacadesShareRoomRefcount tests the point of the shared registry: two
// facades over one source hold the room until the last one closes.
func TestFacadesShareRoomRefcount(t *testing.T) {
	src := newFakeSource()

	a := NewAlerts(src, 10, zerolog.Nop())
	b := NewAlerts(src, 10, zerolog.Nop())

	if src.joined[AlertRoom] != 2 {
		t.Fatalf("expected 2 references, got %d", src.joined[AlertRoom])
	}

	a.Close()
	if src.joined[AlertRoom] != 1 {
		t.Errorf("expected 1 reference after first close, got %d", src.joined[AlertRoom])
	}

	// The surviving facade still receives alerts.
	src.emit(EventAlertRaised, model.Alert{ID: "a1", RaisedAt: time.Now()})
	if len(b.Recent()) != 1 {
		t.Error("surviving facade stopped receiving alerts")
	}

	b.Close()
	if src.joined[AlertRoom] != 0 {
		t.Errorf("expected 0 references, got %d", src.joined[AlertRoom])
	}
}
