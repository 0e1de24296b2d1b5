package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type check struct {
	name     string
	pinger   Pinger
	critical bool
}

// Monitor pings registered components on an interval. IsOnline considers
// critical components only.
type Monitor struct {
	checks  []check
	pending func() int

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		interval: interval,
		timeout:  3 * time.Second,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Register adds a component. Call before Start.
func (m *Monitor) Register(name string, p Pinger, critical bool) {
	if p == nil {
		return
	}
	m.checks = append(m.checks, check{name: name, pinger: p, critical: critical})
}

// TrackOutbox reports the outbox backlog in every status.
func (m *Monitor) TrackOutbox(pending func() int) {
	m.pending = pending
}

func (m *Monitor) Start() {
	m.Refresh()
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.checks {
		if c.critical && !m.status.Components[c.name] {
			return false
		}
	}
	return true
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	components := make(map[string]bool, len(m.status.Components))
	for k, v := range m.status.Components {
		components[k] = v
	}
	status := m.status
	status.Components = components
	return status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once.
func (m *Monitor) Refresh() {
	status := Status{
		Components: make(map[string]bool, len(m.checks)),
		LastCheck:  time.Now(),
	}
	for _, c := range m.checks {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		err := c.pinger.Ping(ctx)
		cancel()
		if err != nil {
			m.logger.Warn("health check failed", zap.String("component", c.name), zap.Error(err))
		}
		status.Components[c.name] = err == nil
	}
	if m.pending != nil {
		status.Outbox = m.pending()
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}
