// Package sysmonitor periodically samples process CPU and memory usage
// and exposes whether ingestion should pause or reject new websocket
// connections. It never touches queue.Sender.Broadcast directly: the
// ring stays non-blocking regardless of resource pressure; this only
// gates the upstream ingestion loop and connection acceptance.
package sysmonitor

import (
	"context"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// Thresholds configures when ingestion pauses and when new connections
// are rejected, as percentages of allotted CPU.
type Thresholds struct {
	PausePercent  float64
	RejectPercent float64
}

// Monitor samples CPU/memory on an interval and keeps the latest
// reading available to any number of readers without blocking them.
type Monitor struct {
	proc       *process.Process
	thresholds Thresholds
	logger     zerolog.Logger

	cpuPercent  atomic.Uint64 // float64 bits
	memoryBytes atomic.Uint64
	memoryLimit int64

	wg sync.WaitGroup
}

// New builds a Monitor bound to the current process.
func New(thresholds Thresholds, logger zerolog.Logger) (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Monitor{
		proc:        proc,
		thresholds:  thresholds,
		logger:      logger.With().Str("component", "sysmonitor").Logger(),
		memoryLimit: memoryLimit(),
	}, nil
}

// Run samples on interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		m.sample()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Monitor) sample() {
	cpuPct, err := m.proc.CPUPercent()
	if err == nil {
		m.cpuPercent.Store(math.Float64bits(cpuPct))
	}
	memInfo, err := m.proc.MemoryInfo()
	if err == nil && memInfo != nil {
		m.memoryBytes.Store(memInfo.RSS)
	}
}

// CPUPercent returns the most recent CPU usage sample.
func (m *Monitor) CPUPercent() float64 {
	return math.Float64frombits(m.cpuPercent.Load())
}

// MemoryBytes returns the most recent RSS sample.
func (m *Monitor) MemoryBytes() int64 {
	return int64(m.memoryBytes.Load())
}

// MemoryLimit returns the container memory limit detected at startup,
// or 0 if none was found.
func (m *Monitor) MemoryLimit() int64 {
	return m.memoryLimit
}

// ShouldPauseIngestion reports whether CPU usage has crossed the pause
// threshold. marketfeed's ingestion gate drops incoming broker messages
// without broadcasting them while this holds; an in-flight Broadcast is
// never blocked by it.
func (m *Monitor) ShouldPauseIngestion() bool {
	return m.CPUPercent() >= m.thresholds.PausePercent
}

// ShouldRejectConnections reports whether CPU usage has crossed the
// reject threshold; new websocket connections should be refused.
func (m *Monitor) ShouldRejectConnections() bool {
	return m.CPUPercent() >= m.thresholds.RejectPercent
}

// Wait blocks until the sampling goroutine has exited.
func (m *Monitor) Wait() {
	m.wg.Wait()
}
