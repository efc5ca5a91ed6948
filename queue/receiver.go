package queue

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// Receiver is a cloneable consumer handle with its own read index. A
// Receiver is not safe for concurrent use by multiple goroutines;
// clone it once per consumer goroutine instead.
type Receiver[T any] struct {
	c       *channel[T]
	ri      uint64
	skipped atomic.Uint64

	closeOne sync.Once
}

// newReceiver is used by both New and Clone; ri is the read index the
// new handle starts at.
func newReceiver[T any](c *channel[T], ri uint64) *Receiver[T] {
	return &Receiver[T]{c: c, ri: ri}
}

// TryRecv returns the next item without blocking: the item, or
// ErrQueueEmpty if the receiver is caught up and the sender is still
// open, or ErrProducerGone if it's caught up and the sender has
// closed.
func (r *Receiver[T]) TryRecv() (T, error) {
	h, newR, skippedDelta, err := r.c.recvAt(r.ri)
	if err != nil {
		var zero T
		return zero, err
	}
	r.ri = newR
	if skippedDelta > 0 {
		r.skipped.Add(skippedDelta)
	}
	return *h, nil
}

// Recv blocks until an item is available, the sender closes, or ctx is
// done. It follows an arm/recheck/wait protocol so a broadcast that
// lands between the first TryRecv and the wait is never
// missed: the listener channel returned by wake.listen is captured
// before the recheck, so any notifyAll issued after that point (which
// is after the corresponding wi increment) is guaranteed to close it.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	if v, err := r.TryRecv(); err != ErrQueueEmpty {
		return v, err
	}

	for {
		woken := r.c.wake.listen()

		if v, err := r.TryRecv(); err != ErrQueueEmpty {
			return v, err
		}

		select {
		case <-woken:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// All returns a range-over-func iterator that calls Recv until it
// returns ErrProducerGone or ctx is done, yielding each item in order.
func (r *Receiver[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := r.Recv(ctx)
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Len estimates the number of items currently available to this
// receiver, clamped to the ring's capacity.
func (r *Receiver[T]) Len() uint64 {
	w := r.c.writeIndex()
	if w <= r.ri {
		return 0
	}
	n := w - r.ri
	if n > r.c.capacity {
		return r.c.capacity
	}
	return n
}

// SkippedItemsSize returns the cumulative number of items this
// receiver was fast-forwarded past because the publisher lapped it.
func (r *Receiver[T]) SkippedItemsSize() uint64 {
	return r.skipped.Load()
}

// Clone returns a new Receiver that observes only items published
// from this moment forward, with an independent read index and skip
// counter isolated from the original.
func (r *Receiver[T]) Clone() *Receiver[T] {
	r.c.register()
	return newReceiver(r.c, r.c.writeIndex())
}

// Close deregisters the receiver. Safe to call more than once; only
// the first call decrements the subscriber count.
func (r *Receiver[T]) Close() {
	r.closeOne.Do(r.c.deregister)
}
