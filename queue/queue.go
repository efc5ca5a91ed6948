// Package queue implements a lock-free, bounded, non-blocking broadcast
// ring buffer: one Sender publishes values of type T to any number of
// independent Receivers, each observing a prefix of the published
// sequence. A Receiver that polls fast enough observes every item; a
// slow Receiver silently skips the oldest items it hasn't read yet
// once the Sender laps it.
//
// This is a broadcast, not a work queue: every live Receiver sees every
// item it doesn't skip, not a load-balanced subset.
package queue

// New creates a ring of the given capacity and returns the Sender/
// Receiver pair bound to it. capacity must be at least 1 and less than
// 2^63 so write/read index subtraction stays well-defined under
// unsigned wraparound.
func New[T any](capacity uint64) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		panic("queue: capacity must be at least 1")
	}
	if capacity >= 1<<63 {
		panic("queue: capacity too large")
	}

	c := newChannel[T](capacity)
	return &Sender[T]{c: c}, newReceiver(c, c.writeIndex())
}
