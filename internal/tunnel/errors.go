package tunnel

import (
	"errors"
	"fmt"
)

// ErrClientClosed is returned by Connect on a closed client.
// Closed is terminal; create a new Client to reconnect.
var ErrClientClosed = errors.New("tunnel client closed")

// ErrNotConnected is returned when a frame cannot be sent because no
// transport is open.
var ErrNotConnected = errors.New("not connected")

// ConnectionError wraps transport failures that the client retries
// with backoff: dial errors, premature closes, connect timeouts.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthError indicates the relay rejected the tunnel credentials.
// It is fatal: the client never retries it.
type AuthError struct {
	Status int
	Reason string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("relay rejected credentials (status %d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("relay rejected credentials: %s", e.Reason)
}

// ProtocolError marks a malformed inbound frame. The frame is dropped
// and logged; the session continues.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
