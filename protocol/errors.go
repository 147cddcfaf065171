package protocol

import "errors"

// Error kinds surfaced by the protocol core. Fallible operations wrap
// one of these so callers can classify failures with errors.Is.
var (
	// ErrMalformedFrame reports a frame that is too short, fails the
	// checksum fold, or carries an unexpected opcode.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrTimeout reports that no qualifying response arrived within
	// the deadline. The core never retries on its own.
	ErrTimeout = errors.New("response timeout")

	// ErrTransportClosed reports that the underlying byte stream is
	// closed, failed, or was never connected.
	ErrTransportClosed = errors.New("transport closed")
)
