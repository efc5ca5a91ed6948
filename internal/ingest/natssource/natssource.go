// Package natssource feeds the broadcast ring from a NATS subject.
package natssource

import (
	"context"
	"fmt"
	"time"

	"github.com/adred-codev/broadcastqueue/internal/ingest"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Source subscribes to one NATS subject and forwards every message to
// a Broadcaster.
type Source struct {
	URL     string
	Subject string
	Logger  zerolog.Logger

	// Allow gates each incoming message; a false result drops it
	// without broadcasting. Optional; nil means no rate limiting.
	Allow func() bool
}

// Run connects to NATS, subscribes, and blocks forwarding messages
// until ctx is done or the connection is permanently lost.
func (s *Source) Run(ctx context.Context, out ingest.Broadcaster) error {
	closed := make(chan struct{})
	nc, err := nats.Connect(s.URL,
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	)
	if err != nil {
		return fmt.Errorf("connect to nats at %s: %w", s.URL, err)
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, 1024)
	sub, err := nc.ChanSubscribe(s.Subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.Subject, err)
	}
	defer sub.Unsubscribe()

	s.Logger.Info().Str("url", s.URL).Str("subject", s.Subject).Msg("nats ingestion started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return fmt.Errorf("nats connection to %s closed", s.URL)
		case msg := <-msgs:
			if s.Allow != nil && !s.Allow() {
				continue
			}
			if err := out.Broadcast(ingest.Tick{Subject: msg.Subject, Data: msg.Data}); err != nil {
				s.Logger.Debug().Err(err).Str("subject", msg.Subject).Msg("broadcast dropped, no subscribers")
			}
		}
	}
}
