package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_IncrementCounter(t *testing.T) {
	registry := NewRegistry()

	registry.IncrementCounter("test_counter", nil, "Test counter")
	labels := map[string]string{"status": "success"}
	registry.IncrementCounter("test_counter", labels, "Test counter")
	registry.IncrementCounter("test_counter", labels, "Test counter")

	counters := registry.GetAllMetrics().Counters
	require.Contains(t, counters, "test_counter")
	assert.Equal(t, 1.0, counters["test_counter"].Value)
	require.Contains(t, counters, "test_counter_status:success")
	assert.Equal(t, 2.0, counters["test_counter_status:success"].Value)
	assert.Equal(t, Counter, counters["test_counter"].Type)
}

func TestRegistry_AddToCounter(t *testing.T) {
	registry := NewRegistry()

	registry.AddToCounter("test_add_counter", 5.5, nil, "Test add counter")
	registry.AddToCounter("test_add_counter", 2.5, nil, "Test add counter")

	assert.Equal(t, 8.0, registry.CounterValue("test_add_counter", nil))
	assert.Zero(t, registry.CounterValue("missing", nil))
}

func TestRegistry_LabelOrderDoesNotMatter(t *testing.T) {
	registry := NewRegistry()

	registry.IncrementCounter("c", map[string]string{"a": "1", "b": "2"}, "")
	registry.IncrementCounter("c", map[string]string{"b": "2", "a": "1"}, "")

	counters := registry.GetAllMetrics().Counters
	require.Len(t, counters, 1)
	assert.Equal(t, 2.0, counters["c_a:1_b:2"].Value)
}

func TestRegistry_RecordTimer(t *testing.T) {
	registry := NewRegistry()

	for i := 1; i <= 20; i++ {
		registry.RecordTimer("poll", time.Duration(i)*time.Millisecond, nil, "Poll duration")
	}

	timer := registry.GetAllMetrics().Timers["poll"]
	assert.Equal(t, int64(20), timer.Count)
	assert.InDelta(t, 1.0, timer.Min, 0.001)
	assert.InDelta(t, 20.0, timer.Max, 0.001)
	assert.InDelta(t, 10.5, timer.Average, 0.001)
	assert.InDelta(t, 20.0, timer.P95, 0.001)
	assert.Equal(t, "poll", timer.Name)
}

func TestRegistry_SetGauge(t *testing.T) {
	registry := NewRegistry()

	registry.SetGauge("fired", 3, nil, "Fired events")
	registry.SetGauge("fired", 5, nil, "Fired events")

	gauge := registry.GetAllMetrics().Gauges["fired"]
	assert.Equal(t, 5.0, gauge.Value)
	assert.Equal(t, Gauge, gauge.Type)
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	registry := NewRegistry()
	registry.IncrementCounter("c", nil, "")

	snap := registry.GetAllMetrics()
	registry.IncrementCounter("c", nil, "")

	assert.Equal(t, 1.0, snap.Counters["c"].Value)
	assert.Equal(t, 2.0, registry.CounterValue("c", nil))
}

func TestRegistry_Reset(t *testing.T) {
	registry := NewRegistry()
	registry.IncrementCounter("c", nil, "")
	registry.Reset()

	assert.Empty(t, registry.GetAllMetrics().Counters)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.IncrementCounter("concurrent", nil, "")
			registry.RecordTimer("concurrent_timer", time.Millisecond, nil, "")
			_ = registry.GetAllMetrics()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50.0, registry.CounterValue("concurrent", nil))
}

func TestGlobalRegistry(t *testing.T) {
	GetRegistry().Reset()
	defer GetRegistry().Reset()

	IncrementCounter(AlertsSent, map[string]string{"type": "rain"}, "Alerts sent")
	AddToCounter(AlertsSent, 2, map[string]string{"type": "rain"}, "Alerts sent")
	RecordTimer(FeedPollDuration, time.Millisecond, nil, "Feed poll duration")
	SetGauge(StoreFiredEvents, 4, nil, "Fired events")

	snap := GetAllMetrics()
	assert.Equal(t, 3.0, snap.Counters["alerts_sent_total_type:rain"].Value)
	assert.Contains(t, snap.Timers, FeedPollDuration)
	assert.Equal(t, 4.0, snap.Gauges[StoreFiredEvents].Value)
}
