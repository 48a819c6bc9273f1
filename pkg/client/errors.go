package client

import "errors"

// Errors returned by the client facade. Transport-level failures (dial
// errors, device-not-found) are wrapped and surfaced by Connect; everything
// below is owned by the client itself.
var (
	// ErrNotConnected indicates an operation that requires an established
	// connection was called while disconnected.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates Connect was called while a connection
	// is established or being established.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrTimeout indicates a synchronous call did not receive its response
	// within the deadline.
	ErrTimeout = errors.New("timed out waiting for response")

	// ErrSendFailed indicates the outbound write for this caller's frame
	// failed. It is surfaced only to the caller that issued the frame.
	ErrSendFailed = errors.New("send failed")

	// ErrConnectionClosed indicates an outstanding synchronous call was
	// invalidated by shutdown or transport loss.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrQueueFull indicates the bounded send queue rejected the frame.
	// The frame was not enqueued; the caller may retry.
	ErrQueueFull = errors.New("send queue full")
)
