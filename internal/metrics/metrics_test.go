package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCounter(snapshot map[string]interface{}, name string, labels map[string]string) *Metric {
	counters := snapshot["counters"].([]Metric)
	key := metricKey(name, labels)
	for i := range counters {
		if metricKey(counters[i].Name, counters[i].Labels) == key {
			return &counters[i]
		}
	}
	return nil
}

func TestCounterAccumulates(t *testing.T) {
	r := NewRegistry()

	r.AddToCounter("requests", 1, nil)
	r.AddToCounter("requests", 1, nil)
	r.AddToCounter("requests", 3, nil)

	m := findCounter(r.Snapshot(), "requests", nil)
	require.NotNil(t, m)
	assert.Equal(t, float64(5), m.Value)
}

func TestCounterLabelsAreSeparateSeries(t *testing.T) {
	r := NewRegistry()

	r.AddToCounter("translations", 1, map[string]string{"outcome": "ok"})
	r.AddToCounter("translations", 1, map[string]string{"outcome": "failed"})
	r.AddToCounter("translations", 1, map[string]string{"outcome": "ok"})

	snapshot := r.Snapshot()
	ok := findCounter(snapshot, "translations", map[string]string{"outcome": "ok"})
	failed := findCounter(snapshot, "translations", map[string]string{"outcome": "failed"})

	require.NotNil(t, ok)
	require.NotNil(t, failed)
	assert.Equal(t, float64(2), ok.Value)
	assert.Equal(t, float64(1), failed.Value)
}

func TestGaugeOverwrites(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("backlog", 10, nil)
	r.SetGauge("backlog", 3, nil)

	gauges := r.Snapshot()["gauges"].([]Metric)
	require.Len(t, gauges, 1)
	assert.Equal(t, float64(3), gauges[0].Value)
}

func TestTimerAggregates(t *testing.T) {
	r := NewRegistry()

	r.ObserveTimer("latency", 10*time.Millisecond)
	r.ObserveTimer("latency", 30*time.Millisecond)
	r.ObserveTimer("latency", 20*time.Millisecond)

	timers := r.Snapshot()["timers"].(map[string]TimerMetric)
	tm, ok := timers["latency"]
	require.True(t, ok)
	assert.Equal(t, int64(3), tm.Count)
	assert.Equal(t, float64(10), tm.MinMs)
	assert.Equal(t, float64(30), tm.MaxMs)
	assert.Equal(t, float64(20), tm.AvgMs)
}

func TestMetricKeyDeterministic(t *testing.T) {
	a := metricKey("m", map[string]string{"b": "2", "a": "1"})
	b := metricKey("m", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.AddToCounter("concurrent", 1, nil)
				r.ObserveTimer("concurrent_timer", time.Millisecond)
				_ = r.Snapshot()
			}
		}()
	}
	wg.Wait()

	m := findCounter(r.Snapshot(), "concurrent", nil)
	require.NotNil(t, m)
	assert.Equal(t, float64(1000), m.Value)
}
