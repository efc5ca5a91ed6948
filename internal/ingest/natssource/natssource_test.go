package natssource

import (
	"context"
	"testing"

	"github.com/adred-codev/broadcastqueue/internal/ingest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(ingest.Tick) error { return nil }

func TestRunWrapsConnectErrorWithURL(t *testing.T) {
	s := &Source{
		URL:     "not-a-valid-nats-url",
		Subject: "market.>",
		Logger:  zerolog.Nop(),
	}

	err := s.Run(context.Background(), noopBroadcaster{})
	assert.ErrorContains(t, err, "connect to nats")
	assert.ErrorContains(t, err, s.URL)
}
