package kafkasource

import (
	"context"
	"testing"

	"github.com/adred-codev/broadcastqueue/internal/ingest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(ingest.Tick) error { return nil }

func TestRunRequiresAtLeastOneBroker(t *testing.T) {
	s := &Source{Topic: "ticks", Logger: zerolog.Nop()}

	err := s.Run(context.Background(), noopBroadcaster{})
	assert.ErrorContains(t, err, "broker")
}

func TestRunRequiresTopic(t *testing.T) {
	s := &Source{Brokers: []string{"localhost:9092"}, Logger: zerolog.Nop()}

	err := s.Run(context.Background(), noopBroadcaster{})
	assert.ErrorContains(t, err, "topic")
}
