package server

import "errors"

var (
	// ErrUsernameRejected is returned when a register frame carries an empty
	// username or one already claimed by another connection.
	ErrUsernameRejected = errors.New("username rejected")
	// ErrNotRegistered is returned when a connection without a claimed
	// username sends a chat message.
	ErrNotRegistered = errors.New("connection is not registered")
	// ErrRelayClosed is returned when handing work to a relay that has shut down.
	ErrRelayClosed = errors.New("relay is shut down")
)
