package typedcache

import "time"

// MetricsRecorder receives instrumentation events from a MapEngine. It is
// satisfied structurally by metrics.Collector; engines configured without
// one use noopMetricsRecorder.
type MetricsRecorder interface {
	// ObserveOperation records one caller-initiated Get/Set/Clear, its
	// latency, and whether it failed.
	ObserveOperation(mapName, op string, duration time.Duration, err error)

	// ObserveReapEviction records one reaper tick that evicted count entries.
	ObserveReapEviction(mapName string, count int)

	// ObserveBatchEmission records one non-empty batch-update dispatch.
	ObserveBatchEmission(mapName string, count int)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) ObserveOperation(string, string, time.Duration, error) {}
func (noopMetricsRecorder) ObserveReapEviction(string, int)                       {}
func (noopMetricsRecorder) ObserveBatchEmission(string, int)                      {}
