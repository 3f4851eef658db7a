// Package prom exports machinery call metrics to Prometheus.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/machinery-rpc/machinery/pkg/machinery"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// CallObserver exports per-service call counts and latencies.
type CallObserver struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewCallObserver registers call metrics on the registry.
func NewCallObserver(reg prometheus.Registerer) *CallObserver {
	o := &CallObserver{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "machinery_calls_total",
			Help: "Calls handled by service and result.",
		}, []string{"service", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "machinery_call_duration_seconds",
			Help:    "Time spent in the dispatch handler.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
	}
	reg.MustRegister(o.calls, o.latency)
	return o
}

// Call implements machinery.Observer.
func (o *CallObserver) Call(name string, result machinery.CallResult, d time.Duration) {
	if result == machinery.CallResultUnknownFunction {
		// unknown keys come from the client and would grow the label set without bound
		name = ""
	}
	o.calls.WithLabelValues(name, string(result)).Inc()
	if result != machinery.CallResultBadRequest {
		o.latency.WithLabelValues(name).Observe(d.Seconds())
	}
}

var _ machinery.Observer = (*CallObserver)(nil)
