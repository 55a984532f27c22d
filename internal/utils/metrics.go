// internal/utils/metrics.go
package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds in-process counters and duration histograms.
type Metrics struct {
	mu         sync.RWMutex
	counters   map[string]*int64
	histograms map[string]*histogram
}

type histogram struct {
	mu    sync.Mutex
	count int64
	sum   int64
	min   int64
	max   int64
}

// HistogramSummary is a point-in-time view of one histogram, in milliseconds.
type HistogramSummary struct {
	Count int64 `json:"count"`
	Sum   int64 `json:"sum_ms"`
	Min   int64 `json:"min_ms"`
	Max   int64 `json:"max_ms"`
}

// MetricsSnapshot is returned by Metrics.Snapshot.
type MetricsSnapshot struct {
	Counters   map[string]int64            `json:"counters"`
	Histograms map[string]HistogramSummary `json:"histograms"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		counters:   make(map[string]*int64),
		histograms: make(map[string]*histogram),
	}
}

func (m *Metrics) counter(name string) *int64 {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[name]; !ok {
		c = new(int64)
		m.counters[name] = c
	}
	return c
}

// Inc adds one to the named counter.
func (m *Metrics) Inc(name string) {
	atomic.AddInt64(m.counter(name), 1)
}

// Counter reads the named counter.
func (m *Metrics) Counter(name string) int64 {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(c)
}

// Observe records d in the named histogram.
func (m *Metrics) Observe(name string, d time.Duration) {
	v := d.Milliseconds()

	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if h, ok = m.histograms[name]; !ok {
			h = &histogram{min: v, max: v}
			m.histograms[name] = h
		}
		m.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	if v < h.min {
		h.min = v
	}
	if v > h.max {
		h.max = v
	}
}

// Snapshot copies every metric.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		Counters:   make(map[string]int64, len(m.counters)),
		Histograms: make(map[string]HistogramSummary, len(m.histograms)),
	}
	for name, c := range m.counters {
		snap.Counters[name] = atomic.LoadInt64(c)
	}
	for name, h := range m.histograms {
		h.mu.Lock()
		snap.Histograms[name] = HistogramSummary{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
		h.mu.Unlock()
	}
	return snap
}
