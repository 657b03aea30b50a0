package core

import "errors"

// Frame is one encoded message ready for the wire.
type Frame []byte

// ConnID identifies one live channel connection.
type ConnID string

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts the messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking. A full queue yields ErrBackpressure.
	TrySend(f Frame) error
	Close()
}
