// Package ingest defines the common contract both upstream broker
// adapters implement: pump raw ticks into the one Sender that feeds
// the broadcast ring.
package ingest

import "context"

// Tick is the payload type marketfeed broadcasts: one market-data or
// telemetry update, still carrying the raw upstream bytes so wsfeed
// can forward them without re-encoding.
type Tick struct {
	Subject string // upstream subject/topic this came from
	Data    []byte // raw payload, forwarded as-is to websocket clients
}

// Broadcaster is the subset of *queue.Sender[Tick] an ingestion source
// needs. Defined here, not imported from queue, so queue stays
// unaware of the domain type Tick.
type Broadcaster interface {
	Broadcast(Tick) error
}

// Source consumes an upstream broker and publishes each message to a
// Broadcaster until ctx is done or the connection fails.
type Source interface {
	Run(ctx context.Context, out Broadcaster) error
}
