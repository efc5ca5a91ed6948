// Command marketfeed runs the broadcast ring as a standalone service:
// it ingests from NATS or Kafka and fans every tick out to any number
// of WebSocket subscribers.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/adred-codev/broadcastqueue/internal/auth"
	"github.com/adred-codev/broadcastqueue/internal/config"
	"github.com/adred-codev/broadcastqueue/internal/ingest"
	"github.com/adred-codev/broadcastqueue/internal/ingest/kafkasource"
	"github.com/adred-codev/broadcastqueue/internal/ingest/natssource"
	"github.com/adred-codev/broadcastqueue/internal/logging"
	"github.com/adred-codev/broadcastqueue/internal/metrics"
	"github.com/adred-codev/broadcastqueue/internal/ratelimit"
	"github.com/adred-codev/broadcastqueue/internal/sysmonitor"
	"github.com/adred-codev/broadcastqueue/internal/wsfeed"
	"github.com/adred-codev/broadcastqueue/queue"
	"github.com/prometheus/client_golang/prometheus"

	_ "go.uber.org/automaxprocs"
)

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides MF_LOG_LEVEL)")
	flag.Parse()

	bootLogger := logging.New("info", "console")
	cfg, err := config.Load(&bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("starting marketfeed")
	cfg.LogFields(logger)

	m := metrics.New(prometheus.DefaultRegisterer)

	monitor, err := sysmonitor.New(sysmonitor.Thresholds{
		PausePercent:  cfg.CPUPausePct,
		RejectPercent: cfg.CPURejectPct,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize resource monitor")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor.Run(rootCtx, cfg.MetricsInterval)

	sender, receiver := queue.New[ingest.Tick](cfg.RingCapacity)
	defer sender.Close()

	limiter := ratelimit.New(cfg.IngestRatePerSec, cfg.IngestBurst)

	allow := func() bool {
		if monitor.ShouldPauseIngestion() {
			return false
		}
		if !limiter.Allow() {
			m.IngestRateLimited.Inc()
			return false
		}
		return true
	}

	var source ingest.Source
	switch cfg.IngestSource {
	case "kafka":
		source = &kafkasource.Source{
			Brokers:       splitBrokers(cfg.KafkaBrokers),
			Topic:         cfg.KafkaTopic,
			ConsumerGroup: cfg.ConsumerGroup,
			Logger:        logger,
			Allow:         allow,
		}
	default:
		source = &natssource.Source{
			URL:     cfg.NATSURL,
			Subject: cfg.NATSSubject,
			Logger:  logger,
			Allow:   allow,
		}
	}

	broadcaster := &meteredBroadcaster{sender: sender, metrics: m, source: cfg.IngestSource}

	ingestDone := make(chan error, 1)
	go func() {
		defer logging.RecoverPanic(logger, "ingest.Run", nil)
		ingestDone <- source.Run(rootCtx, broadcaster)
	}()

	var tokens *auth.Manager
	if cfg.RequireAuth {
		tokens = auth.NewManager(cfg.JWTSecret, cfg.JWTTokenTTL)
	}
	feed := wsfeed.New(receiver, m, monitor, cfg.MaxConnections, logger, tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", feed.Handler())
	mux.HandleFunc("/health", handleHealth)
	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("websocket server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("websocket server error")
		}
	}()
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	go sampleResourceMetrics(rootCtx, monitor, m, cfg.MetricsInterval)

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-ingestDone:
		logger.Error().Err(err).Msg("ingestion source exited, shutting down")
	}
	// Cancel rootCtx on either path so the monitor and metrics sampler exit.
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := feed.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("wsfeed shutdown did not complete cleanly")
	}
	sender.Close()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
	monitor.Wait()

	logger.Info().Msg("marketfeed stopped")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func sampleResourceMetrics(ctx context.Context, monitor *sysmonitor.Monitor, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CPUUsagePercent.Set(monitor.CPUPercent())
			m.MemoryUsageBytes.Set(float64(monitor.MemoryBytes()))
			if monitor.ShouldPauseIngestion() {
				m.IngestPausedGauge.Set(1)
			} else {
				m.IngestPausedGauge.Set(0)
			}
		}
	}
}

// meteredBroadcaster adapts *queue.Sender[ingest.Tick] to ingest.Broadcaster
// while updating Prometheus counters, so neither ingestion source needs
// to know about metrics.
type meteredBroadcaster struct {
	sender  *queue.Sender[ingest.Tick]
	metrics *metrics.Metrics
	source  string
}

func (b *meteredBroadcaster) Broadcast(t ingest.Tick) error {
	err := b.sender.Broadcast(t)
	b.metrics.IngestMessages.WithLabelValues(b.source).Inc()
	if err != nil {
		b.metrics.BroadcastsFailed.Inc()
		return err
	}
	b.metrics.BroadcastsTotal.Inc()
	return nil
}
