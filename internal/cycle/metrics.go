package cycle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives one observation per engine operation.
type Recorder interface {
	// ObserveOperation records an operation ("pickup", "takeover", "return")
	// with its outcome: "ok", a domain Kind, or "error".
	ObserveOperation(op, outcome string, d time.Duration)
	// ObserveWarning records an advisory warning attached to a return.
	ObserveWarning(w Warning)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, time.Duration) {}
func (nopRecorder) ObserveWarning(Warning)                         {}

// PromRecorder records engine operations in Prometheus metrics.
type PromRecorder struct {
	ops      *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	warnings *prometheus.CounterVec
}

// NewPromRecorder registers the engine metrics on reg. A nil registerer
// defaults to the global Prometheus registerer; collectors that are already
// registered are reused.
func NewPromRecorder(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetyard_cycle_operations_total",
		Help: "Cycle engine operations by type and outcome",
	}, []string{"operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetyard_cycle_operation_seconds",
		Help:    "Cycle engine operation latency including lock wait",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	warnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetyard_return_warnings_total",
		Help: "Advisory warnings attached to returns",
	}, []string{"warning"})

	if err := reg.Register(ops); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		ops = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(latency); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		latency = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	if err := reg.Register(warnings); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		warnings = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &PromRecorder{ops: ops, latency: latency, warnings: warnings}, nil
}

func (r *PromRecorder) ObserveOperation(op, outcome string, d time.Duration) {
	r.ops.WithLabelValues(op, outcome).Inc()
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

func (r *PromRecorder) ObserveWarning(w Warning) {
	r.warnings.WithLabelValues(string(w)).Inc()
}
