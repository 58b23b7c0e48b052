// Package metrics provides Prometheus instrumentation for typedcache map
// engines.
//
// Attach a Collector to a registry and every map it creates reports
// operation counts, latency, reap evictions, and batch emissions:
//
//	collector := metrics.NewCollector()
//	registry := typedcache.NewRegistry(backend, typedcache.WithMetrics(collector))
//
// All metrics are partitioned by map name. Operation counts carry an
// additional "op" label (get / set / clear) and an "outcome" label
// (ok / error).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds Prometheus metric vectors for map-engine instrumentation.
// It satisfies typedcache.MetricsRecorder structurally; importing
// typedcache here is unnecessary.
type Collector struct {
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	reapEvictions    *prometheus.CounterVec
	batchEmissions   *prometheus.CounterVec
	batchSize        *prometheus.HistogramVec
}

type collectorConfig struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer
	buckets   []float64
}

// CollectorOption configures a Collector.
type CollectorOption func(*collectorConfig)

// WithNamespace sets the Prometheus metric namespace (prefix).
func WithNamespace(ns string) CollectorOption {
	return func(c *collectorConfig) { c.namespace = ns }
}

// WithSubsystem sets the Prometheus metric subsystem.
func WithSubsystem(sub string) CollectorOption {
	return func(c *collectorConfig) { c.subsystem = sub }
}

// WithRegistry registers metrics with the given Registerer instead of
// prometheus.DefaultRegisterer.
func WithRegistry(r prometheus.Registerer) CollectorOption {
	return func(c *collectorConfig) { c.registry = r }
}

// WithBuckets sets custom histogram buckets for operation latency.
func WithBuckets(b []float64) CollectorOption {
	return func(c *collectorConfig) { c.buckets = b }
}

var defaultBuckets = []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25}

var batchSizeBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500}

// NewCollector creates a Collector and registers its metrics.
//
// Metrics registered:
//   - {namespace}_operations_total              counter   (map, op, outcome)
//   - {namespace}_operation_duration_seconds     histogram (map, op)
//   - {namespace}_reap_evictions_total           counter   (map)
//   - {namespace}_batch_emissions_total          counter   (map)
//   - {namespace}_batch_entries                  histogram (map)
//
// Default namespace is "typedcache".
func NewCollector(opts ...CollectorOption) *Collector {
	cfg := &collectorConfig{
		namespace: "typedcache",
		registry:  prometheus.DefaultRegisterer,
		buckets:   defaultBuckets,
	}
	for _, o := range opts {
		o(cfg)
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "operations_total",
		Help:      "Total caller-initiated map operations partitioned by map, op, and outcome.",
	}, []string{"map", "op", "outcome"})

	operationLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "operation_duration_seconds",
		Help:      "Latency of Get/Set/Clear calls in seconds.",
		Buckets:   cfg.buckets,
	}, []string{"map", "op"})

	reapEvictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "reap_evictions_total",
		Help:      "Total entries evicted by the idle-TTL reaper, partitioned by map.",
	}, []string{"map"})

	batchEmissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "batch_emissions_total",
		Help:      "Total non-empty batch-update dispatches, partitioned by map.",
	}, []string{"map"})

	batchSize := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "batch_entries",
		Help:      "Number of entries carried by each batch-update dispatch.",
		Buckets:   batchSizeBuckets,
	}, []string{"map"})

	cfg.registry.MustRegister(operations, operationLatency, reapEvictions, batchEmissions, batchSize)

	return &Collector{
		operations:       operations,
		operationLatency: operationLatency,
		reapEvictions:    reapEvictions,
		batchEmissions:   batchEmissions,
		batchSize:        batchSize,
	}
}

// ObserveOperation records one caller-initiated Get/Set/Clear call.
func (c *Collector) ObserveOperation(mapName, op string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.operations.WithLabelValues(mapName, op, outcome).Inc()
	c.operationLatency.WithLabelValues(mapName, op).Observe(duration.Seconds())
}

// ObserveReapEviction records one reaper tick that evicted count entries.
func (c *Collector) ObserveReapEviction(mapName string, count int) {
	c.reapEvictions.WithLabelValues(mapName).Add(float64(count))
}

// ObserveBatchEmission records one non-empty batch-update dispatch.
func (c *Collector) ObserveBatchEmission(mapName string, count int) {
	c.batchEmissions.WithLabelValues(mapName).Inc()
	c.batchSize.WithLabelValues(mapName).Observe(float64(count))
}
