// Package metrics exposes Prometheus instruments for the obligation engine
// and its HTTP surface. Engine instruments can also be mirrored on an
// OpenTelemetry meter.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agency"

// Metrics owns a private registry so several instances can coexist in tests
type Metrics struct {
	Registry *prometheus.Registry

	batchOperations *prometheus.CounterVec
	batchItems      *prometheus.CounterVec
	sweepRuns       *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpInFlight    prometheus.Gauge

	otel *otelInstruments
}

// New creates the instruments. withRuntime adds the Go and process collectors.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		batchOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "obligation",
			Name:      "batch_operations_total",
			Help:      "Engine batch operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		batchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "obligation",
			Name:      "batch_items_total",
			Help:      "Items touched by engine batches, split into affected and failed.",
		}, []string{"operation", "result"}),
		sweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "obligation",
			Name:      "sweep_runs_total",
			Help:      "Periodic sweep runs by result.",
		}, []string{"result"}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "obligation",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one periodic sweep.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}
}

// ObserveBatch records one finished engine batch
func (m *Metrics) ObserveBatch(ctx context.Context, operation, outcome string, affected, failed int) {
	m.batchOperations.WithLabelValues(operation, outcome).Inc()
	if affected > 0 {
		m.batchItems.WithLabelValues(operation, "affected").Add(float64(affected))
	}
	if failed > 0 {
		m.batchItems.WithLabelValues(operation, "failed").Add(float64(failed))
	}
	if m.otel != nil {
		m.otel.observeBatch(ctx, operation, outcome, affected, failed)
	}
}

// ObserveSweep records one periodic sweep
func (m *Metrics) ObserveSweep(ctx context.Context, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.sweepRuns.WithLabelValues(result).Inc()
	m.sweepDuration.Observe(d.Seconds())
	if m.otel != nil {
		m.otel.observeSweep(ctx, d, result)
	}
}

// ObserveHTTP records one served request. route is the matched pattern, not
// the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// InFlight adjusts the in-flight request gauge by delta
func (m *Metrics) InFlight(delta float64) {
	m.httpInFlight.Add(delta)
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
