package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/arnavsood/typedcache/metrics"
)

func TestCollector_ObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(metrics.WithRegistry(reg))

	collector.ObserveOperation("users", "get", 5*time.Millisecond, nil)
	collector.ObserveOperation("users", "get", 5*time.Millisecond, nil)
	collector.ObserveOperation("users", "set", 5*time.Millisecond, errors.New("boom"))

	assertCounter(t, reg, "typedcache_operations_total", map[string]string{
		"map": "users", "op": "get", "outcome": "ok",
	}, 2)
	assertCounter(t, reg, "typedcache_operations_total", map[string]string{
		"map": "users", "op": "set", "outcome": "error",
	}, 1)
	assertHistogramCount(t, reg, "typedcache_operation_duration_seconds", map[string]string{
		"map": "users", "op": "get",
	}, 2)
}

func TestCollector_ObserveReapEviction(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(metrics.WithRegistry(reg))

	collector.ObserveReapEviction("sessions", 3)
	collector.ObserveReapEviction("sessions", 2)

	assertCounter(t, reg, "typedcache_reap_evictions_total", map[string]string{"map": "sessions"}, 5)
}

func TestCollector_ObserveBatchEmission(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(metrics.WithRegistry(reg))

	collector.ObserveBatchEmission("orders", 12)
	collector.ObserveBatchEmission("orders", 3)

	assertCounter(t, reg, "typedcache_batch_emissions_total", map[string]string{"map": "orders"}, 2)
	assertHistogramCount(t, reg, "typedcache_batch_entries", map[string]string{"map": "orders"}, 2)
}

func TestCollectorOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(
		metrics.WithRegistry(reg),
		metrics.WithNamespace("myapp"),
		metrics.WithSubsystem("cache"),
		metrics.WithBuckets([]float64{.001, .01, .1}),
	)

	collector.ObserveOperation("k1", "get", time.Millisecond, nil)

	assertCounter(t, reg, "myapp_cache_operations_total", map[string]string{
		"map": "k1", "op": "get", "outcome": "ok",
	}, 1)
	assertHistogramCount(t, reg, "myapp_cache_operation_duration_seconds", map[string]string{
		"map": "k1", "op": "get",
	}, 1)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func assertCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string, want float64) {
	t.Helper()
	val := gatherMetricValue(t, reg, name, labels, func(m *dto.Metric) float64 {
		return m.GetCounter().GetValue()
	})
	if val != want {
		t.Errorf("%s%v = %v, want %v", name, labels, val, want)
	}
}

func assertHistogramCount(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string, want uint64) {
	t.Helper()
	val := gatherMetricValue(t, reg, name, labels, func(m *dto.Metric) float64 {
		return float64(m.GetHistogram().GetSampleCount())
	})
	if uint64(val) != want {
		t.Errorf("%s%v sample_count = %v, want %v", name, labels, uint64(val), want)
	}
}

func gatherMetricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string, extract func(*dto.Metric) float64) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return extract(m)
			}
		}
	}
	if len(labels) > 0 {
		return 0
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	pairs := m.GetLabel()
	if len(pairs) < len(want) {
		return false
	}
	for _, lp := range pairs {
		if v, ok := want[lp.GetName()]; ok && v != lp.GetValue() {
			return false
		}
	}
	return true
}
