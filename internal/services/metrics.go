package services

import (
	"sync/atomic"
	"time"
)

// Metrics holds process-wide counters reported by /stats and /health.
type Metrics struct {
	startedAt   time.Time
	connections atomic.Int64
	messages    atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

func (m *Metrics) IncConnections() {
	m.connections.Add(1)
}

func (m *Metrics) IncMessages() {
	m.messages.Add(1)
}

func (m *Metrics) Connections() int64 {
	return m.connections.Load()
}

func (m *Metrics) Messages() int64 {
	return m.messages.Load()
}

func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startedAt).Round(time.Second)
}
