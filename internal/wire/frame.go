// Package wire defines the JSON frame format shared by the client and the
// relay, including the control events used for room membership.
package wire

import (
	"encoding/json"
	"errors"
)

// Reserved lifecycle event names. These are dispatched locally by the client
// core and never travel over the wire from the relay.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

// Control event names sent by the client.
const (
	EventJoin  = "join"
	EventLeave = "leave"
)

// ErrEmptyEvent is returned when a frame has no event name.
var ErrEmptyEvent = errors.New("frame has empty event name")

// Frame is a single message on the wire.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Room  string          `json:"room,omitempty"`
}

// RoomData is the payload of join/leave control frames.
type RoomData struct {
	Room string `json:"room"`
}

// NewFrame builds a frame with an arbitrary JSON-marshalable payload.
func NewFrame(event string, payload any) (Frame, error) {
	if event == "" {
		return Frame{}, ErrEmptyEvent
	}
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Frame{}, err
		}
		data = b
	}
	return Frame{Event: event, Data: data}, nil
}

// JoinFrame builds the control frame announcing interest in a room.
func JoinFrame(room string) Frame {
	data, _ := json.Marshal(RoomData{Room: room})
	return Frame{Event: EventJoin, Data: data}
}

// LeaveFrame builds the control frame withdrawing interest in a room.
func LeaveFrame(room string) Frame {
	data, _ := json.Marshal(RoomData{Room: room})
	return Frame{Event: EventLeave, Data: data}
}

// Encode serializes the frame to JSON.
func (f Frame) Encode() ([]byte, error) {
	if f.Event == "" {
		return nil, ErrEmptyEvent
	}
	return json.Marshal(f)
}

// Decode parses a raw websocket payload into a Frame. Frames without an
// event name are rejected so the caller can drop them in one place.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, err
	}
	if f.Event == "" {
		return Frame{}, ErrEmptyEvent
	}
	return f, nil
}

// IsControl reports whether the frame is a join/leave control frame.
func (f Frame) IsControl() bool {
	return f.Event == EventJoin || f.Event == EventLeave
}

// ControlRoom extracts the room name from a join/leave frame.
func (f Frame) ControlRoom() (string, error) {
	var rd RoomData
	if err := json.Unmarshal(f.Data, &rd); err != nil {
		return "", err
	}
	if rd.Room == "" {
		return "", errors.New("control frame has empty room")
	}
	return rd.Room, nil
}
