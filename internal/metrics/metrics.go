// Package metrics exposes marketfeed's Prometheus metrics, grouped
// into a Metrics struct built once in main and threaded through
// explicitly rather than registered via package-level vars and init().
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge marketfeed reports.
type Metrics struct {
	BroadcastsTotal    prometheus.Counter
	BroadcastsFailed   prometheus.Counter // NoSubscribers
	SubscribersActive  prometheus.Gauge
	ConnectionsTotal   prometheus.Counter
	DisconnectsTotal   *prometheus.CounterVec
	SkippedItemsTotal  prometheus.Counter
	IngestRateLimited  prometheus.Counter
	IngestMessages     *prometheus.CounterVec // by source: nats, kafka
	CPUUsagePercent    prometheus.Gauge
	MemoryUsageBytes   prometheus.Gauge
	IngestPausedGauge  prometheus.Gauge
}

// New builds and registers every metric against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_broadcasts_total",
			Help: "Total number of values broadcast into the ring.",
		}),
		BroadcastsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_broadcasts_failed_total",
			Help: "Broadcasts that failed because there were no subscribers.",
		}),
		SubscribersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketfeed_subscribers_active",
			Help: "Current number of live receivers (websocket clients).",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_connections_total",
			Help: "Total websocket connections accepted.",
		}),
		DisconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_disconnects_total",
			Help: "Websocket disconnects by reason.",
		}, []string{"reason"}),
		SkippedItemsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_skipped_items_total",
			Help: "Cumulative items skipped across all receivers because the ring lapped them.",
		}),
		IngestRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketfeed_ingest_rate_limited_total",
			Help: "Upstream messages dropped by the ingestion-side rate limiter.",
		}),
		IngestMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_ingest_messages_total",
			Help: "Upstream messages passed to the ring after ingestion gating, by source.",
		}, []string{"source"}),
		CPUUsagePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketfeed_cpu_usage_percent",
			Help: "Current process CPU usage percentage.",
		}),
		MemoryUsageBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketfeed_memory_usage_bytes",
			Help: "Current process memory usage in bytes.",
		}),
		IngestPausedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketfeed_ingest_paused",
			Help: "1 if ingestion is currently paused due to resource pressure, else 0.",
		}),
	}

	reg.MustRegister(
		m.BroadcastsTotal, m.BroadcastsFailed, m.SubscribersActive,
		m.ConnectionsTotal, m.DisconnectsTotal, m.SkippedItemsTotal,
		m.IngestRateLimited, m.IngestMessages, m.CPUUsagePercent,
		m.MemoryUsageBytes, m.IngestPausedGauge,
	)
	return m
}

// Handler serves /metrics for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}
