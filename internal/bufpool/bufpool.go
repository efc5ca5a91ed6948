// Package bufpool provides pooled byte buffers for encoding outgoing
// websocket frame headers and payloads without allocating per write.
package bufpool

import "sync"

// Pool buckets buffers into three size classes to keep reuse effective
// without rounding every allocation up to the largest class.
type Pool struct {
	small  sync.Pool // 4KB
	medium sync.Pool // 16KB
	large  sync.Pool // 64KB
}

// New builds a Pool. Pools are cheap; one per wsfeed server is enough.
func New() *Pool {
	return &Pool{
		small:  sync.Pool{New: func() any { b := make([]byte, 0, 4096); return &b }},
		medium: sync.Pool{New: func() any { b := make([]byte, 0, 16384); return &b }},
		large:  sync.Pool{New: func() any { b := make([]byte, 0, 65536); return &b }},
	}
}

// Get returns a buffer with at least the requested capacity.
func (p *Pool) Get(size int) *[]byte {
	pool := p.poolFor(size)
	buf, _ := pool.Get().(*[]byte)
	if buf == nil || cap(*buf) < size {
		b := make([]byte, 0, size)
		buf = &b
	}
	return buf
}

// Put returns a buffer to its size class after clearing it. Buffers
// larger than 64KB are not pooled.
func (p *Pool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	*buf = (*buf)[:0]
	switch size := cap(*buf); {
	case size <= 4096:
		p.small.Put(buf)
	case size <= 16384:
		p.medium.Put(buf)
	case size <= 65536:
		p.large.Put(buf)
	}
}

func (p *Pool) poolFor(size int) *sync.Pool {
	switch {
	case size <= 4096:
		return &p.small
	case size <= 16384:
		return &p.medium
	default:
		return &p.large
	}
}
