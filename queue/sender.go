package queue

import "sync"

// Sender is the exclusive producer handle for one Channel. It must not
// be cloned; pass it by reference or move ownership of the value
// instead. Closing it with Close wakes every parked Receiver so pending
// Recv calls observe termination. There is no implicit close: a Sender
// that is simply no longer used leaves the channel open.
type Sender[T any] struct {
	c        *channel[T]
	closeOne sync.Once
}

// Broadcast publishes value to every live Receiver. It never blocks
// and never fails except when there are no subscribers, in which case
// the value is returned via *DisconnectedError[T] so the caller can
// retry or drop it deliberately.
func (s *Sender[T]) Broadcast(value T) error {
	return s.c.broadcast(value)
}

// SubscriberCount reports the current number of live Receivers. It is
// a point-in-time estimate: receivers may be concurrently cloned or
// dropped.
func (s *Sender[T]) SubscriberCount() int64 {
	return s.c.subscriberCount()
}

// Close marks the sender gone and wakes every parked receiver. Safe to
// call more than once; only the first call has effect.
func (s *Sender[T]) Close() {
	s.closeOne.Do(s.c.closeTx)
}
