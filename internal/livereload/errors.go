package livereload

import "errors"

var (
	// ErrSessionSend is returned when a frame cannot be written to a session.
	ErrSessionSend = errors.New("session send failed")

	// ErrHandshake is returned when the greeting cannot be delivered.
	ErrHandshake = errors.New("handshake failed")

	// ErrFrame is returned when processing an inbound frame fails.
	ErrFrame = errors.New("frame processing failed")
)
