package model

import "errors"

var (
	// ErrTokenRequired is returned when a connection is attempted without an auth token.
	ErrTokenRequired = errors.New("auth token is required")

	// ErrClientClosed is returned when an operation is attempted on a closed client.
	ErrClientClosed = errors.New("client is closed")

	// ErrUnauthorized is returned when the relay rejects a token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRoomRequired is returned when a room-scoped operation is missing the room name.
	ErrRoomRequired = errors.New("room is required")
)
