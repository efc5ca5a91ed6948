// Package ratelimit throttles ingestion throughput with a token-bucket
// limiter guarding the one ingestion source feeding the ring.
//
// This never throttles a subscriber's Recv — only the publish side is
// shaped; per-subscriber backpressure stays out of scope.
package ratelimit

import "golang.org/x/time/rate"

// IngestLimiter is a token-bucket limiter wrapping golang.org/x/time/rate.
type IngestLimiter struct {
	limiter *rate.Limiter
}

// New builds a limiter allowing perSecond sustained events with a burst
// of up to burst.
func New(perSecond int, burst int) *IngestLimiter {
	return &IngestLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow reports whether an ingested message may be broadcast now. A
// false result means the caller should drop the message and count it
// as rate-limited, never block the ingestion goroutine.
func (l *IngestLimiter) Allow() bool {
	return l.limiter.Allow()
}
