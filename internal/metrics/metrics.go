package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metric is a single counter or gauge value with its labels.
type Metric struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Labels     map[string]string `json:"labels,omitempty"`
	LastUpdate time.Time         `json:"last_update"`
}

// TimerMetric aggregates observed durations for one timer.
type TimerMetric struct {
	Count   int64   `json:"count"`
	SumMs   float64 `json:"sum_ms"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
	AvgMs   float64 `json:"avg_ms"`
}

// Registry manages all metrics in memory
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Metric
	gauges    map[string]*Metric
	timers    map[string]*TimerMetric
	startTime time.Time
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Metric),
		gauges:    make(map[string]*Metric),
		timers:    make(map[string]*TimerMetric),
		startTime: time.Now(),
	}
}

var defaultRegistry = NewRegistry()

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		fmt.Fprintf(&sb, ",%s=%s", k, labels[k])
	}
	return sb.String()
}

// IncrementCounter adds one to the named counter in the default registry.
func IncrementCounter(name string, labels map[string]string) {
	defaultRegistry.AddToCounter(name, 1, labels)
}

// AddToCounter adds delta to the named counter in the default registry.
func AddToCounter(name string, delta float64, labels map[string]string) {
	defaultRegistry.AddToCounter(name, delta, labels)
}

// SetGauge sets the named gauge in the default registry.
func SetGauge(name string, value float64, labels map[string]string) {
	defaultRegistry.SetGauge(name, value, labels)
}

// ObserveTimer records a duration against the named timer in the default
// registry.
func ObserveTimer(name string, d time.Duration) {
	defaultRegistry.ObserveTimer(name, d)
}

// Snapshot returns the default registry contents for the metrics endpoint.
func Snapshot() map[string]interface{} {
	return defaultRegistry.Snapshot()
}

// AddToCounter adds delta to a counter, creating it if absent.
func (r *Registry) AddToCounter(name string, delta float64, labels map[string]string) {
	key := metricKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.counters[key]
	if !ok {
		m = &Metric{Name: name, Labels: labels}
		r.counters[key] = m
	}
	m.Value += delta
	m.LastUpdate = time.Now()
}

// SetGauge sets a gauge to value, creating it if absent.
func (r *Registry) SetGauge(name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.gauges[key]
	if !ok {
		m = &Metric{Name: name, Labels: labels}
		r.gauges[key] = m
	}
	m.Value = value
	m.LastUpdate = time.Now()
}

// ObserveTimer records one duration sample.
func (r *Registry) ObserveTimer(name string, d time.Duration) {
	ms := float64(d.Milliseconds())
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[name]
	if !ok {
		t = &TimerMetric{MinMs: ms, MaxMs: ms}
		r.timers[name] = t
	}
	t.Count++
	t.SumMs += ms
	if ms < t.MinMs {
		t.MinMs = ms
	}
	if ms > t.MaxMs {
		t.MaxMs = ms
	}
	t.AvgMs = t.SumMs / float64(t.Count)
}

// Snapshot returns a copy of all metrics plus process uptime.
func (r *Registry) Snapshot() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counters := make([]Metric, 0, len(r.counters))
	for _, m := range r.counters {
		counters = append(counters, *m)
	}
	gauges := make([]Metric, 0, len(r.gauges))
	for _, m := range r.gauges {
		gauges = append(gauges, *m)
	}
	timers := make(map[string]TimerMetric, len(r.timers))
	for name, t := range r.timers {
		timers[name] = *t
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(r.startTime).Seconds(),
		"counters":       counters,
		"gauges":         gauges,
		"timers":         timers,
	}
}
