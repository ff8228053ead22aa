package core

import "errors"

// Frame is a raw encoded message ready to be written to the transport.
type Frame []byte

var (
	// ErrBackpressure is returned by TrySend when the outbound queue is full.
	ErrBackpressure = errors.New("backpressure")
	// ErrConnClosed is returned by TrySend after Close.
	ErrConnClosed = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
//
// TrySend must never block on network I/O.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
