// Package metrics provides Prometheus collectors for the connector layer.
//
// # Overview
//
// The metrics package tracks:
//   - registered connector handles
//   - open containers and object handles per kind
//   - routed callback counts and latencies per connector and operation
//   - container context stack depth per role
//
// # Basic Usage
//
//	timer := metrics.NewTimer("native.dataset.write")
//	err := cls.Dataset.Write(ctx, raw, data, req)
//	metrics.ObserveDispatch("native", "dataset.write", err, timer.Stop())
//
// All collectors are registered with the default Prometheus registry via
// promauto at package initialization.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegisteredConnectors tracks live connector handles.
	//
	// Example:
	//	metrics.RegisteredConnectors.Inc()
	RegisteredConnectors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hvol_registered_connectors",
			Help: "Number of live connector handles",
		},
	)

	// OpenContainers tracks containers with a non-zero count.
	// Labels: connector
	OpenContainers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hvol_open_containers",
			Help: "Number of open containers",
		},
		[]string{"connector"},
	)

	// OpenObjects tracks live object handles.
	// Labels: kind (file/group/datatype/dataset/map/attr)
	OpenObjects = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hvol_open_objects",
			Help: "Number of live object handles",
		},
		[]string{"kind"},
	)

	// DispatchTotal counts routed callbacks.
	// Labels: connector, operation, status (success/failure)
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hvol_dispatch_total",
			Help: "Total number of routed connector callbacks",
		},
		[]string{"connector", "operation", "status"},
	)

	// DispatchLatency tracks the distribution of callback latencies in nanoseconds.
	// Labels: connector, operation
	DispatchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "hvol_dispatch_latency_nanoseconds",
			Help: "Routed callback latency in nanoseconds",
			Buckets: []float64{
				100,    // 100ns - in-memory lookups
				1000,   // 1μs
				10000,  // 10μs
				100000, // 100μs - compressed payloads
				1e6,    // 1ms
				1e7,    // 10ms - snapshot flushes
				1e8,    // 100ms
				1e9,    // 1s
			},
		},
		[]string{"connector", "operation"},
	)

	// ContextDepth tracks how many container contexts are stacked per role.
	// Labels: role (primary/source/destination)
	ContextDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hvol_context_depth",
			Help: "Number of container contexts currently stacked",
		},
		[]string{"role"},
	)
)

// ObserveDispatch records the outcome and latency of one routed callback
func ObserveDispatch(connector, operation string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	DispatchTotal.WithLabelValues(connector, operation, status).Inc()
	DispatchLatency.WithLabelValues(connector, operation).Observe(float64(d.Nanoseconds()))
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
