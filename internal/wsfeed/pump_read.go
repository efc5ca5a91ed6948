package wsfeed

import (
	"context"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// readPump drains whatever the browser sends. The ring feed is
// publish-only from the server's side, so this exists only to notice
// the connection closing or going dead.
func (s *Server) readPump(c *conn, cancel context.CancelFunc) {
	defer cancel()

	c.raw.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, op, err := wsutil.ReadClientData(c.raw)
		if err != nil {
			return
		}
		c.raw.SetReadDeadline(time.Now().Add(pongWait))
		if op == ws.OpClose {
			return
		}
	}
}
