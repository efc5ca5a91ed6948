// Command loadgen opens many concurrent WebSocket connections against
// marketfeed and reports throughput: connections established, messages
// received, and bytes transferred, ramped up over time and sustained
// for a configurable duration.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

type config struct {
	url             string
	healthURL       string
	connections     int
	rampRate        int
	durationSec     int
	reportInterval  int
	subjectFilter   string
}

type stats struct {
	active     atomic.Int64
	created    atomic.Int64
	failed     atomic.Int64
	received   atomic.Int64
	bytesTotal atomic.Int64
}

func main() {
	cfg := parseFlags()

	log.Printf("loadgen: target=%d connections, ramp=%d/sec, duration=%ds, url=%s",
		cfg.connections, cfg.rampRate, cfg.durationSec, cfg.url)

	if err := checkHealth(cfg.healthURL); err != nil {
		log.Printf("warning: initial health check failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("shutdown signal received")
		cancel()
	}()

	st := &stats{}
	go report(ctx, st, time.Duration(cfg.reportInterval)*time.Second)

	rampUp(ctx, cfg, st)

	select {
	case <-time.After(time.Duration(cfg.durationSec) * time.Second):
	case <-ctx.Done():
	}

	log.Printf("final: created=%d active=%d failed=%d received=%d bytes=%d",
		st.created.Load(), st.active.Load(), st.failed.Load(), st.received.Load(), st.bytesTotal.Load())
}

func parseFlags() *config {
	cfg := &config{}
	flag.StringVar(&cfg.url, "url", envOr("LOADGEN_URL", "ws://localhost:3002/ws"), "marketfeed websocket URL")
	flag.StringVar(&cfg.healthURL, "health", envOr("LOADGEN_HEALTH_URL", "http://localhost:3002/health"), "marketfeed health URL")
	flag.IntVar(&cfg.connections, "connections", 100, "target concurrent connections")
	flag.IntVar(&cfg.rampRate, "ramp-rate", 20, "connections opened per second")
	flag.IntVar(&cfg.durationSec, "duration", 60, "sustain duration in seconds")
	flag.IntVar(&cfg.reportInterval, "report-interval", 5, "report interval in seconds")
	flag.StringVar(&cfg.subjectFilter, "subject", "", "optional subject-prefix filter, appended as ?subject=")
	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func checkHealth(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func rampUp(ctx context.Context, cfg *config, st *stats) {
	ticker := time.NewTicker(time.Second / time.Duration(max(1, cfg.rampRate)))
	defer ticker.Stop()

	var wg sync.WaitGroup
	for i := 0; i < cfg.connections; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			id := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				runConnection(ctx, id, cfg, st)
			}()
		}
	}
}

func runConnection(ctx context.Context, id int, cfg *config, st *stats) {
	url := cfg.url
	if cfg.subjectFilter != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "subject=" + cfg.subjectFilter
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		st.failed.Add(1)
		return
	}
	defer conn.Close()

	st.created.Add(1)
	st.active.Add(1)
	defer st.active.Add(-1)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		st.received.Add(1)
		st.bytesTotal.Add(int64(len(data)))
	}
}

func report(ctx context.Context, st *stats, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("active=%d created=%d failed=%d received=%d bytes=%d",
				st.active.Load(), st.created.Load(), st.failed.Load(), st.received.Load(), st.bytesTotal.Load())
		}
	}
}
