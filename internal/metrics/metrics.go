package metrics

import (
	"sync"
	"time"
)

// Counter names tracked by the service
const (
	PaymentsSettled      = "payments_settled"
	PaymentsVerified     = "payments_verified"
	PaymentsMismatched   = "payments_amount_mismatch"
	WebhooksReceived     = "webhooks_received"
	WebhooksIgnored      = "webhooks_ignored"
	WebhooksRejected     = "webhooks_signature_rejected"
	SweepRecovered       = "sweep_recovered"
	RegistrationsCreated = "registrations_created"
)

// Metrics is a lightweight in-process counter collector exposed at /metrics
type Metrics struct {
	mu        sync.RWMutex
	counters  map[string]int64
	gauges    map[string]int64
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:  make(map[string]int64),
		gauges:    make(map[string]int64),
		startTime: time.Now(),
	}
}

// IncrCounter increments a counter by one
func (m *Metrics) IncrCounter(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

// SetGauge sets a point-in-time value
func (m *Metrics) SetGauge(name string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// Snapshot returns a copy of all metric values plus process uptime
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, value := range m.counters {
		counters[name] = value
	}
	gauges := make(map[string]int64, len(m.gauges))
	for name, value := range m.gauges {
		gauges[name] = value
	}

	return map[string]interface{}{
		"counters":       counters,
		"gauges":         gauges,
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
	}
}
