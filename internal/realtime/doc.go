// Package realtime implements the client side of the pulsefeed event layer.
//
// The package implements:
//   - Transport: dials and owns the physical websocket connection
//   - Client: connection lifecycle state machine with backoff reconnection
//   - Rooms: refcounted room membership with join/leave wire traffic
//   - Dispatcher: ordered per-event fan-out with handler failure isolation
//
// Key behaviors:
//   - One persistent connection multiplexes all subscribers
//   - Rooms are rejoined automatically after a reconnect
//   - Sends while not connected are dropped, never queued
//   - Lifecycle changes surface as connect/disconnect/connect_error events
//     through the same subscribe contract as application events
package realtime
