// Package core defines the seams between the coordinator and its
// collaborators: the transport a session speaks over and the durable
// store behind it. Adapters own the concrete ends.
package core

import "errors"

// Frame is a serialized event ready for the wire.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Transport is one user's live connection. TrySend must never block:
// a full buffer returns ErrBackpressure and the frame is dropped for
// that slow consumer only.
// Owned by the adapter; the adapter must Close() it.
type Transport interface {
	TrySend(Frame) error
	Close()
}
