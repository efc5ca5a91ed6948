package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(1, 5)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(), "call %d should be allowed within burst", i)
	}
}

func TestAllowRejectsBeyondBurst(t *testing.T) {
	l := New(0, 1)

	assert.True(t, l.Allow(), "first call consumes the only token")
	assert.False(t, l.Allow(), "second call should be rejected with no refill rate")
}
