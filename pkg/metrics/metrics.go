// Package metrics defines the Prometheus metric collectors used across
// ScriptSight and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	PagesLoadedTotal     *prometheus.CounterVec
	CollectionPageCount  *prometheus.GaugeVec
	ActiveCollections    prometheus.Gauge
	ExportsTotal         *prometheus.CounterVec
	ExportPagesTotal     prometheus.Counter
	ExportDuration       prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogue_queries_total",
				Help: "Total catalogue queries by result type (hit, miss, zero_result, error).",
			},
			[]string{"result_type"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalogue_query_latency_seconds",
				Help:    "Catalogue query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalogue_query_results_count",
				Help:    "Number of pages returned per catalogue query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		PagesLoadedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogue_pages_loaded_total",
				Help: "Total page records loaded by collection.",
			},
			[]string{"collection"},
		),
		CollectionPageCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "collection_page_count",
				Help: "Number of page records per collection.",
			},
			[]string{"collection"},
		),
		ActiveCollections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_collections",
				Help: "Number of loaded collections.",
			},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exports_total",
				Help: "Total export runs by status.",
			},
			[]string{"status"},
		),
		ExportPagesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "export_pages_total",
				Help: "Total page images written by export runs.",
			},
		),
		ExportDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "export_duration_seconds",
				Help:    "Export run duration in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.PagesLoadedTotal,
		m.CollectionPageCount,
		m.ActiveCollections,
		m.ExportsTotal,
		m.ExportPagesTotal,
		m.ExportDuration,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
