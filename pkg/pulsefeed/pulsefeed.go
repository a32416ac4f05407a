package pulsefeed

import (
	"github.com/opspulse/pulsefeed/internal/realtime"
	"github.com/opspulse/pulsefeed/internal/wire"
)

// Re-export types from internal/realtime for external use
type (
	Client          = realtime.Client
	Options         = realtime.Options
	ConnectionState = realtime.ConnectionState
	Event           = realtime.Event
	Handler         = realtime.Handler
	Transport       = realtime.Transport
	Conn            = realtime.Conn
)

// Connection states.
const (
	StateDisconnected = realtime.StateDisconnected
	StateConnecting   = realtime.StateConnecting
	StateConnected    = realtime.StateConnected
	StateReconnecting = realtime.StateReconnecting
	StateErrored      = realtime.StateErrored
)

// Lifecycle event names dispatched by the client.
const (
	EventConnect      = wire.EventConnect
	EventDisconnect   = wire.EventDisconnect
	EventConnectError = wire.EventConnectError
)

// New creates a disconnected client.
func New(opts Options) *Client {
	return realtime.New(opts)
}
