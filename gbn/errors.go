package gbn

import "errors"

var (
	// ErrInvalidConfig indicates an option value outside its allowed range.
	ErrInvalidConfig = errors.New("gbn: invalid config")

	// ErrInvalidParams indicates a window size or unit count outside [1, 255].
	ErrInvalidParams = errors.New("gbn: invalid session parameters")

	// ErrInvalidTransition is returned when an event is not allowed in the current session state.
	ErrInvalidTransition = errors.New("gbn: invalid state transition")

	// ErrEndpointClosed indicates the endpoint's inbound channel was closed mid-session.
	ErrEndpointClosed = errors.New("gbn: endpoint closed")

	// ErrNoPeer is returned by a listening endpoint asked to send before any datagram arrived.
	ErrNoPeer = errors.New("gbn: no peer address")
)
