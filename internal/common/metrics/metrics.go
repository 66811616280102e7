package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alchemy"

// Metrics holds Prometheus metrics for a service
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	StatusChanges    *prometheus.CounterVec
	TrackedByKind    *prometheus.GaugeVec
	ArchiveWrites    *prometheus.CounterVec
}

// NewMetrics creates the metric set on its own registry, so several
// instances can coexist in tests.
func NewMetrics(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		StatusChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "competition_status_changes_total",
				Help:      "Competition status transitions by the kind entered",
			},
			[]string{"kind"},
		),
		TrackedByKind: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "competitions_tracked",
				Help:      "Tracked competitions by current status kind",
			},
			[]string{"kind"},
		),
		ArchiveWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "competition_archive_writes_total",
				Help:      "Final status archive writes by result",
			},
			[]string{"result"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordStatusChange counts a transition into kind.
func (m *Metrics) RecordStatusChange(kind string) {
	m.StatusChanges.WithLabelValues(kind).Inc()
}

// SetTracked replaces the per-kind gauge values. Kinds absent from counts
// are reset to zero.
func (m *Metrics) SetTracked(kinds []string, counts map[string]int) {
	for _, k := range kinds {
		m.TrackedByKind.WithLabelValues(k).Set(float64(counts[k]))
	}
}

// RecordArchiveWrite counts an archive attempt.
func (m *Metrics) RecordArchiveWrite(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ArchiveWrites.WithLabelValues(result).Inc()
}
