package realtime

// ConnectionState represents the current state of the client connection.
type ConnectionState int

const (
	// StateDisconnected means the client is not connected and not trying to be.
	StateDisconnected ConnectionState = iota

	// StateConnecting means the client is establishing the initial connection.
	StateConnecting

	// StateConnected means the connection is open and rooms are synced.
	StateConnected

	// StateReconnecting means the connection dropped unexpectedly and the
	// client is retrying with backoff.
	StateReconnecting

	// StateErrored means the last connection attempt failed terminally;
	// a manual Connect is required to retry.
	StateErrored
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}
