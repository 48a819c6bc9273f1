// Package ringchan provides a bounded channel-like buffer used as the event
// queue between the receiver loop and the dispatcher.
package ringchan

import "sync/atomic"

// RingChannel wraps a buffered channel so producers never block: when the
// buffer is full an insert either fails (TrySend) or evicts the oldest
// element (ForceSend). Consumers range over C() like a normal channel.
type RingChannel[T any] struct {
	ch      chan T
	written atomic.Int64
	dropped atomic.Int64
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel. Consumers can range over
// it until Close.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// TrySend attempts to insert without blocking. Returns false if the buffer
// is full; the drop is counted.
func (rc *RingChannel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		rc.written.Add(1)
		return true
	default:
		rc.dropped.Add(1)
		return false
	}
}

// ForceSend always succeeds, evicting the oldest element if needed.
// Returns whether an eviction happened.
func (rc *RingChannel[T]) ForceSend(v T) bool {
	evicted := false
	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch:
			rc.dropped.Add(1)
			evicted = true
		default:
		}
		rc.ch <- v
	}
	rc.written.Add(1)
	return evicted
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Dropped returns how many elements were rejected or evicted so far.
func (rc *RingChannel[T]) Dropped() int64 {
	return rc.dropped.Load()
}

// Written returns how many elements were accepted so far.
func (rc *RingChannel[T]) Written() int64 {
	return rc.written.Load()
}

// Close closes the underlying channel. Sending after Close panics.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}
