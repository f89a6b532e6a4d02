package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicoegiaian/heatfield/internal/config"
)

// Monitor periodically logs an engine status snapshot for debug panels
// and log-based dashboards. The interval comes from monitor.interval; a
// zero or negative interval disables it.
type Monitor struct {
	engine   *Engine
	logger   zerolog.Logger
	interval time.Duration

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewMonitor creates a new status monitor for the engine.
func NewMonitor(engine *Engine, logger zerolog.Logger) *Monitor {
	return &Monitor{
		engine:   engine,
		logger:   logger,
		interval: config.GetDuration("monitor.interval"),
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

// Start starts the status monitor goroutine. Starting a running or
// disabled monitor is a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.isRunning || m.interval <= 0 {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = true
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.isRunning = false
			m.mu.Unlock()
		}()

		for {
			select {
			case <-m.stopChan:
				return
			default:
				time.Sleep(m.interval)

				status := m.engine.Status()
				m.logger.Debug().
					Int("sessions", status.Sessions).
					Int("inFlightBuilds", status.InFlightBuilds).
					Int("pendingUpdates", status.PendingUpdates).
					Int("geocodeCacheSize", status.GeocodeCacheSize).
					Float64("lastBuildMs", status.LastBuildMs).
					Msg("Engine status")
			}
		}
	}()

	return nil
}

// Stop stops the status monitor.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isRunning {
		close(m.stopChan)
	}
}
