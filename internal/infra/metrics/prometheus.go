// Package metrics exposes engine activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"rewardnet/internal/domain/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rewardnet"

// Metrics implements service.NetworkMetrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	placements        *prometheus.CounterVec
	placementAttempts prometheus.Histogram
	slotConflicts     prometheus.Counter
	distributions     *prometheus.CounterVec
	credits           *prometheus.CounterVec
	creditedPoints    *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates the collectors and registers them together with the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "results_total",
			Help:      "Placement calls by outcome.",
		}, []string{"result"}),
		placementAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "attempts",
			Help:      "Breadth-first scans needed per successful placement.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		}),
		slotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "slot_conflicts_total",
			Help:      "Conditional slot writes lost to a concurrent placement.",
		}),
		distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commission",
			Name:      "distributions_total",
			Help:      "Distribution calls by outcome.",
		}, []string{"result"}),
		credits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commission",
			Name:      "credits_total",
			Help:      "Ledger entries created per level.",
		}, []string{"level"}),
		creditedPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commission",
			Name:      "points_total",
			Help:      "Points credited per level.",
		}, []string{"level"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.placements,
		m.placementAttempts,
		m.slotConflicts,
		m.distributions,
		m.credits,
		m.creditedPoints,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// NewNetworkMetrics exposes Metrics through the domain interface.
func NewNetworkMetrics(m *Metrics) service.NetworkMetrics {
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObservePlacement(result string, attempts int) {
	m.placements.WithLabelValues(result).Inc()
	if result == service.PlacementResultPlaced && attempts > 0 {
		m.placementAttempts.Observe(float64(attempts))
	}
}

func (m *Metrics) ObserveSlotConflict() {
	m.slotConflicts.Inc()
}

func (m *Metrics) ObserveDistribution(result string) {
	m.distributions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCredit(level int, points int64) {
	label := strconv.Itoa(level)
	m.credits.WithLabelValues(label).Inc()
	m.creditedPoints.WithLabelValues(label).Add(float64(points))
}

// ObserveHTTPRequest records one served request. route is the registered path template.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
