package queue

import "errors"

// ErrQueueEmpty is returned by TryRecv when no new item is available yet.
// It is transient: the same receiver may succeed on a later call.
var ErrQueueEmpty = errors.New("queue: empty")

// ErrProducerGone is returned by Recv/TryRecv once the sender has closed
// and the receiver has drained every item it published. It is terminal
// for that receiver.
var ErrProducerGone = errors.New("queue: producer gone")

// DisconnectedError is returned by Broadcast when there are no live
// receivers. It carries the value back so the caller can retry, log it,
// or drop it deliberately instead of losing it silently.
type DisconnectedError[T any] struct {
	Value T
}

func (e *DisconnectedError[T]) Error() string {
	return "queue: no subscribers"
}
