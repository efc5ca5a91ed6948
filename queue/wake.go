package queue

import "sync"

// wakeRegistry is the multi-consumer notification primitive backing
// blocking Recv: listen() arms a one-shot waiter, notifyAll() wakes
// every waiter armed strictly before the call. It carries no payload,
// so receivers still have to re-poll recvAt after waking.
//
// Implemented as a channel that gets swapped out (and the old one
// closed) on every notify. A waiter that armed before the swap holds
// the old channel and observes it close; one that arms after holds the
// new channel and isn't woken by this notify. This is the same
// lost-wakeup-free shape as sync.Cond, built from a channel so it
// composes with select (context cancellation, timeouts) the way a
// condition variable can't.
type wakeRegistry struct {
	mu sync.Mutex
	ch chan struct{}
}

func newWakeRegistry() *wakeRegistry {
	return &wakeRegistry{ch: make(chan struct{})}
}

// listen arms a waiter. The returned channel closes on the next
// notifyAll.
func (w *wakeRegistry) listen() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ch
}

// notifyAll wakes every waiter armed since the previous notifyAll.
func (w *wakeRegistry) notifyAll() {
	w.mu.Lock()
	old := w.ch
	w.ch = make(chan struct{})
	w.mu.Unlock()
	close(old)
}
