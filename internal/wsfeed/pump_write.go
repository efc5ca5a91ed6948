package wsfeed

import (
	"context"
	"errors"
	"time"

	"github.com/adred-codev/broadcastqueue/queue"
	"github.com/gobwas/ws"
)

// slowLogThreshold is how many skipped items a receiver must
// accumulate since writePump's last warning before it logs another
// one, so warnings are sampled rather than logged for every skip.
const slowLogThreshold = 100

// writePump pumps c.recv to the browser until the sender closes, the
// context set by readPump's cancel fires, or a write fails. There is
// no per-client send channel to batch from: every item comes straight
// out of Recv's arm/recheck/wait protocol, one at a time, in ring order.
func (s *Server) writePump(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		for {
			select {
			case <-ticker.C:
				c.raw.SetWriteDeadline(time.Now().Add(writeWait))
				if err := s.writeFrame(c, ws.OpPing, nil); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	defer func() { <-pingDone }()

	var lastSkipped, countedSkipped uint64
	for {
		v, err := c.recv.Recv(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrProducerGone) && ctx.Err() == nil {
				s.logger.Debug().Err(err).Msg("receiver recv error")
			}
			return
		}

		skipped := c.recv.SkippedItemsSize()
		if s.metrics != nil && skipped > countedSkipped {
			s.metrics.SkippedItemsTotal.Add(float64(skipped - countedSkipped))
			countedSkipped = skipped
		}
		if skipped-lastSkipped >= slowLogThreshold {
			delta := skipped - lastSkipped
			s.logger.Warn().
				Uint64("skipped_total", skipped).
				Uint64("skipped_since_last_log", delta).
				Msg("receiver falling behind publisher, items skipped")
			lastSkipped = skipped
		}

		if !matchesSubject(c.subjectFilt, v.Subject) {
			continue
		}

		c.raw.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.writeFrame(c, ws.OpText, v.Data); err != nil {
			return
		}
	}
}
