// Package kafkasource feeds the broadcast ring from a Kafka/Redpanda
// topic, an alternate ingestion path to natssource.
package kafkasource

import (
	"context"
	"fmt"
	"time"

	"github.com/adred-codev/broadcastqueue/internal/ingest"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Source consumes a Kafka/Redpanda topic and forwards every record to
// a Broadcaster.
type Source struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	Logger        zerolog.Logger

	Allow func() bool
}

// Run connects to the brokers, consumes the topic from the latest
// offset, and blocks forwarding records until ctx is done.
func (s *Source) Run(ctx context.Context, out ingest.Broadcaster) error {
	if len(s.Brokers) == 0 {
		return fmt.Errorf("kafkasource: at least one broker is required")
	}
	if s.Topic == "" {
		return fmt.Errorf("kafkasource: topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.Brokers...),
		kgo.ConsumerGroup(s.ConsumerGroup),
		kgo.ConsumeTopics(s.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.FetchMaxWait(500*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}
	defer client.Close()

	s.Logger.Info().Strs("brokers", s.Brokers).Str("topic", s.Topic).Msg("kafka ingestion started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		for _, fetchErr := range fetches.Errors() {
			s.Logger.Error().Err(fetchErr.Err).Str("topic", fetchErr.Topic).Int32("partition", fetchErr.Partition).Msg("kafka fetch error")
		}

		fetches.EachRecord(func(record *kgo.Record) {
			if s.Allow != nil && !s.Allow() {
				return
			}
			if err := out.Broadcast(ingest.Tick{Subject: record.Topic, Data: record.Value}); err != nil {
				s.Logger.Debug().Err(err).Str("topic", record.Topic).Msg("broadcast dropped, no subscribers")
			}
		})
	}
}
