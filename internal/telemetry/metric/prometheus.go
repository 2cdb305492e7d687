package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/stashkv/internal/expiry"
)

const namespace = "stashkv"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Expiry metrics
	SweepsTotal   *prometheus.CounterVec
	SweptRecords  *prometheus.CounterVec
	SweepFailures *prometheus.CounterVec
	WorkerHealth  *prometheus.GaugeVec
}

// NewRegistry creates a registry with the Go and process collectors and
// every stashkv metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Storage operations by namespace, operation and outcome.",
		}, []string{"namespace", "op", "outcome"}),

		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Storage operation latency including hooks.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"namespace", "op"}),

		SweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "sweeps_total",
			Help:      "Expiry sweeps by namespace and outcome.",
		}, []string{"namespace", "outcome"}),

		SweptRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "deleted_records_total",
			Help:      "Expired records removed by sweeps.",
		}, []string{"namespace"}),

		SweepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "delete_failures_total",
			Help:      "Expired records whose deletion failed during a sweep.",
		}, []string{"namespace"}),

		WorkerHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "worker_health",
			Help:      "Worker health: 0 uninitialized, 1 initializing, 2 healthy, 3 degraded, 4 failed.",
		}, []string{"namespace"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.OperationsTotal,
		r.OperationDuration,
		r.SweepsTotal,
		r.SweptRecords,
		r.SweepFailures,
		r.WorkerHealth,
	)
	return r
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registerer exposes the registry to components that register their
// own collectors, such as the badger engine.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// ObserveOperation records one pipeline invocation.
func (r *Registry) ObserveOperation(ns, op, outcome string, elapsed time.Duration) {
	r.OperationsTotal.WithLabelValues(ns, op, outcome).Inc()
	r.OperationDuration.WithLabelValues(ns, op).Observe(elapsed.Seconds())
}

// ObserveSweep implements expiry.Observer.
func (r *Registry) ObserveSweep(ns string, res expiry.SweepResult, err error) {
	if err != nil {
		r.SweepsTotal.WithLabelValues(ns, OutcomeError).Inc()
		return
	}
	r.SweepsTotal.WithLabelValues(ns, OutcomeOK).Inc()
	r.SweptRecords.WithLabelValues(ns).Add(float64(res.Deleted))
	if res.Failed > 0 {
		r.SweepFailures.WithLabelValues(ns).Add(float64(res.Failed))
	}
}

// ObserveHealth implements expiry.Observer.
func (r *Registry) ObserveHealth(ns string, h expiry.Health) {
	r.WorkerHealth.WithLabelValues(ns).Set(float64(h))
}

var _ expiry.Observer = (*Registry)(nil)
