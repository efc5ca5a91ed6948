// Package config loads and validates marketfeed's runtime configuration
// from environment variables, with an optional .env file for local
// development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds marketfeed's full runtime configuration.
type Config struct {
	// Server basics
	Addr string `env:"MF_ADDR" envDefault:":3002"`

	// Ingestion source selection
	IngestSource  string `env:"MF_INGEST_SOURCE" envDefault:"nats"` // "nats" or "kafka"
	NATSURL       string `env:"MF_NATS_URL" envDefault:"nats://localhost:4222"`
	NATSSubject   string `env:"MF_NATS_SUBJECT" envDefault:"market.>"`
	KafkaBrokers  string `env:"MF_KAFKA_BROKERS" envDefault:"localhost:19092"`
	KafkaTopic    string `env:"MF_KAFKA_TOPIC" envDefault:"market-ticks"`
	ConsumerGroup string `env:"MF_CONSUMER_GROUP" envDefault:"marketfeed"`

	// Ring capacity for the broadcast channel feeding every subscriber.
	RingCapacity uint64 `env:"MF_RING_CAPACITY" envDefault:"1024"`

	// Capacity and safety
	MaxConnections int     `env:"MF_MAX_CONNECTIONS" envDefault:"500"`
	CPURejectPct   float64 `env:"MF_CPU_REJECT_PCT" envDefault:"75.0"`
	CPUPausePct    float64 `env:"MF_CPU_PAUSE_PCT" envDefault:"80.0"`

	// Ingestion rate limiting (golang.org/x/time/rate token bucket)
	IngestRatePerSec int `env:"MF_INGEST_RATE_PER_SEC" envDefault:"2000"`
	IngestBurst      int `env:"MF_INGEST_BURST" envDefault:"200"`

	// Monitoring
	MetricsAddr     string        `env:"MF_METRICS_ADDR" envDefault:":9090"`
	MetricsInterval time.Duration `env:"MF_METRICS_INTERVAL" envDefault:"15s"`

	// Logging
	LogLevel  string `env:"MF_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"MF_LOG_FORMAT" envDefault:"json"`

	// Subscriber token authentication. Disabled by default: the ring
	// broadcasts publicly unless an operator opts in.
	RequireAuth bool          `env:"MF_REQUIRE_AUTH" envDefault:"false"`
	JWTSecret   string        `env:"MF_JWT_SECRET" envDefault:""`
	JWTTokenTTL time.Duration `env:"MF_JWT_TOKEN_TTL" envDefault:"1h"`
}

// Load reads configuration from an optional .env file and the
// environment, then validates it. Priority: env vars > .env file >
// struct defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.Info().Msg("no .env file found, using environment variables only")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for internally inconsistent or
// out-of-range values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("MF_ADDR is required")
	}
	if c.IngestSource != "nats" && c.IngestSource != "kafka" {
		return fmt.Errorf("MF_INGEST_SOURCE must be nats or kafka, got %q", c.IngestSource)
	}
	if c.RingCapacity < 1 {
		return fmt.Errorf("MF_RING_CAPACITY must be > 0, got %d", c.RingCapacity)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("MF_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.CPURejectPct < 0 || c.CPURejectPct > 100 {
		return fmt.Errorf("MF_CPU_REJECT_PCT must be 0-100, got %.1f", c.CPURejectPct)
	}
	if c.CPUPausePct < c.CPURejectPct {
		return fmt.Errorf("MF_CPU_PAUSE_PCT (%.1f) must be >= MF_CPU_REJECT_PCT (%.1f)", c.CPUPausePct, c.CPURejectPct)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("MF_LOG_LEVEL must be one of debug,info,warn,error, got %q", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("MF_LOG_FORMAT must be one of json,console, got %q", c.LogFormat)
	}
	if c.RequireAuth && c.JWTSecret == "" {
		return fmt.Errorf("MF_JWT_SECRET is required when MF_REQUIRE_AUTH=true")
	}
	return nil
}

// LogFields logs the configuration with structured fields.
func (c *Config) LogFields(logger zerolog.Logger) {
	logger.Info().
		Str("addr", c.Addr).
		Str("ingest_source", c.IngestSource).
		Uint64("ring_capacity", c.RingCapacity).
		Int("max_connections", c.MaxConnections).
		Float64("cpu_reject_pct", c.CPURejectPct).
		Float64("cpu_pause_pct", c.CPUPausePct).
		Int("ingest_rate_per_sec", c.IngestRatePerSec).
		Int("ingest_burst", c.IngestBurst).
		Dur("metrics_interval", c.MetricsInterval).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Bool("require_auth", c.RequireAuth).
		Msg("marketfeed configuration loaded")
}
