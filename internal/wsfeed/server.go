// Package wsfeed serves the broadcast ring to browsers over WebSocket.
// Every connection owns one queue.Receiver[ingest.Tick]; there is no
// per-client send buffer to overflow and nothing to disconnect over
// when a client falls behind, since the ring already absorbs slow
// readers by skipping instead of buffering and later disconnecting.
package wsfeed

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adred-codev/broadcastqueue/internal/auth"
	"github.com/adred-codev/broadcastqueue/internal/bufpool"
	"github.com/adred-codev/broadcastqueue/internal/ingest"
	"github.com/adred-codev/broadcastqueue/internal/logging"
	"github.com/adred-codev/broadcastqueue/internal/metrics"
	"github.com/adred-codev/broadcastqueue/queue"
	"github.com/gobwas/ws"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ConnAdmitter gates new connections under resource pressure, matching
// sysmonitor.Monitor.ShouldRejectConnections without importing that
// package here.
type ConnAdmitter interface {
	ShouldRejectConnections() bool
}

// Server upgrades incoming HTTP requests to WebSocket connections and
// pumps ring items to each one until the sender closes or the client
// disconnects.
type Server struct {
	recv       *queue.Receiver[ingest.Tick]
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	admitter   ConnAdmitter
	maxConns   int
	bufs       *bufpool.Pool
	tokens     *auth.Manager // nil means subscriptions are unauthenticated

	mu       sync.Mutex
	conns    map[*conn]struct{}
	closing  atomic.Bool

	wg sync.WaitGroup
}

// conn is one live client: its own receiver clone, its raw connection,
// and its idempotent close.
type conn struct {
	recv        *queue.Receiver[ingest.Tick]
	raw         net.Conn
	subjectFilt string // "" means no filtering; else a plain string-prefix match on the subject
	closeOnce   sync.Once
}

// New builds a Server that hands every accepted connection a clone of
// recv. Clones start future-only, so a client connecting mid-stream
// sees only what's broadcast from that point on. tokens is optional;
// a nil Manager leaves the websocket endpoint unauthenticated.
func New(recv *queue.Receiver[ingest.Tick], m *metrics.Metrics, admitter ConnAdmitter, maxConns int, logger zerolog.Logger, tokens *auth.Manager) *Server {
	return &Server{
		recv:     recv,
		logger:   logger.With().Str("component", "wsfeed").Logger(),
		metrics:  m,
		admitter: admitter,
		maxConns: maxConns,
		bufs:     bufpool.New(),
		tokens:   tokens,
		conns:    make(map[*conn]struct{}),
	}
}

// Handler returns the http.HandlerFunc to mount at the websocket path.
func (s *Server) Handler() http.HandlerFunc {
	return s.handleWebSocket
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.closing.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	if s.admitter != nil && s.admitter.ShouldRejectConnections() {
		s.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("connection rejected: cpu pressure")
		http.Error(w, "server overloaded", http.StatusServiceUnavailable)
		return
	}

	s.mu.Lock()
	if len(s.conns) >= s.maxConns {
		s.mu.Unlock()
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	subjectFilt := r.URL.Query().Get("subject")
	if s.tokens != nil {
		claims, err := s.tokens.Authenticate(r)
		if err != nil {
			s.logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket auth rejected")
			http.Error(w, "unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}
		// A token scoped to a subject overrides whatever the client asked for.
		if claims.Subject != "" {
			subjectFilt = claims.Subject
		}
	}

	raw, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &conn{
		recv:        s.recv.Clone(),
		raw:         raw,
		subjectFilt: subjectFilt,
	}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ConnectionsTotal.Inc()
		s.metrics.SubscribersActive.Inc()
	}

	s.wg.Add(1)
	go s.serve(c)
}

func (s *Server) serve(c *conn) {
	defer s.wg.Done()
	defer logging.RecoverPanic(s.logger, "wsfeed.serve", nil)
	defer s.drop(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer logging.RecoverPanic(s.logger, "wsfeed.readPump", nil)
		s.readPump(c, cancel)
	}()
	s.writePump(ctx, c)
}

func (s *Server) drop(c *conn) {
	c.closeOnce.Do(func() {
		c.raw.Close()
		c.recv.Close()
		if s.metrics != nil {
			s.metrics.SubscribersActive.Dec()
			s.metrics.DisconnectsTotal.WithLabelValues("closed").Inc()
		}
	})

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Shutdown stops accepting connections and closes every live one.
// There is no per-client send buffer to drain, so closing the raw
// connections is enough to unblock every writePump immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		s.drop(c)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wsfeed shutdown: %w", ctx.Err())
	}
}

// writeFrame encodes a single WebSocket frame (header + payload) into
// a pooled buffer and issues one Write, instead of the header-then-
// payload pair wsutil.WriteServerMessage would otherwise do against
// the raw connection. The buffer is returned to the pool before
// writeFrame returns.
func (s *Server) writeFrame(c *conn, op ws.OpCode, payload []byte) error {
	buf := s.bufs.Get(len(payload) + 14) // 14 bytes covers the largest frame header
	defer s.bufs.Put(buf)

	*buf = (*buf)[:0]
	if err := ws.WriteHeader(sliceWriter{buf}, ws.Header{
		Fin:    true,
		OpCode: op,
		Length: int64(len(payload)),
	}); err != nil {
		return err
	}
	*buf = append(*buf, payload...)

	_, err := c.raw.Write(*buf)
	return err
}

// sliceWriter lets ws.WriteHeader append directly into a pooled
// []byte instead of allocating its own bytes.Buffer.
type sliceWriter struct {
	buf *[]byte
}

func (w sliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

func matchesSubject(filter, subject string) bool {
	if filter == "" {
		return true
	}
	return strings.HasPrefix(subject, filter)
}
