package wire

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestFrameRejectsEmptyEvent tests that frames without an event name cannot
// be built, encoded or decoded.
func TestFrameRejectsEmptyEvent(t *testing.T) {
	if _, err := NewFrame("", nil); err != ErrEmptyEvent {
		t.Errorf("NewFrame with empty event: expected ErrEmptyEvent, got %v", err)
	}

	f := Frame{Event: ""}
	if _, err := f.Encode(); err != ErrEmptyEvent {
		t.Errorf("Encode with empty event: expected ErrEmptyEvent, got %v", err)
	}

	if _, err := Decode([]byte(`{"data":{"x":1}}`)); err != ErrEmptyEvent {
		t.Errorf("Decode with empty event: expected ErrEmptyEvent, got %v", err)
	}
}

// TestDecodeRejectsMalformedJSON tests that invalid payloads fail cleanly.
func TestDecodeRejectsMalformedJSON(t *testing.T) {
	for _, raw := range []string{"", "not json", `[1,2,3]`, `{"event":`} {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Errorf("Decode(%q): expected error, got nil", raw)
		}
	}
}

// TestControlFrames tests join/leave construction and room extraction.
func TestControlFrames(t *testing.T) {
	join := JoinFrame("metrics")
	if !join.IsControl() {
		t.Error("join frame should be a control frame")
	}
	room, err := join.ControlRoom()
	if err != nil {
		t.Fatalf("failed to extract room from join frame: %v", err)
	}
	if room != "metrics" {
		t.Errorf("expected room 'metrics', got %q", room)
	}

	leave := LeaveFrame("alerts")
	if leave.Event != EventLeave {
		t.Errorf("expected event %q, got %q", EventLeave, leave.Event)
	}
	room, err = leave.ControlRoom()
	if err != nil {
		t.Fatalf("failed to extract room from leave frame: %v", err)
	}
	if room != "alerts" {
		t.Errorf("expected room 'alerts', got %q", room)
	}

	// A control frame with an empty room is malformed.
	bad := Frame{Event: EventJoin, Data: json.RawMessage(`{"room":""}`)}
	if _, err := bad.ControlRoom(); err == nil {
		t.Error("expected error for control frame with empty room")
	}

	// Application frames are never control frames.
	app, _ := NewFrame("alerts:raised", map[string]string{"message": "disk full"})
	if app.IsControl() {
		t.Error("application frame should not be a control frame")
	}
}

// TestFrameRoundTripProperty tests that any frame with a non-empty event name
// survives an encode/decode cycle with event, room and payload intact.
func TestFrameRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("frames preserve event, room and payload", prop.ForAll(
		func(event, room, payload string) bool {
			if event == "" {
				event = "tick"
			}

			f, err := NewFrame(event, payload)
			if err != nil {
				return false
			}
			f.Room = room

			raw, err := f.Encode()
			if err != nil {
				return false
			}

			parsed, err := Decode(raw)
			if err != nil {
				return false
			}
			if parsed.Event != event || parsed.Room != room {
				return false
			}

			var got string
			if err := json.Unmarshal(parsed.Data, &got); err != nil {
				return false
			}
			return got == payload
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
