package queue

import "sync/atomic"

// slot is a single ring cell holding either nothing or one payload
// handle. store/load are lock-free: a writer installs a new handle with
// a single atomic swap, a reader observes either the old or the new
// handle, never a partially constructed one. The previous handle is
// simply dropped on overwrite; it stays alive as long as anyone (a
// slot, or a receiver mid-return) still holds the *T, and is collected
// once nothing does.
type slot[T any] struct {
	p atomic.Pointer[T]
}

// store atomically replaces the slot's contents with h.
func (s *slot[T]) store(h *T) {
	s.p.Store(h)
}

// load returns the slot's current contents, or nil if never written.
func (s *slot[T]) load() *T {
	return s.p.Load()
}
