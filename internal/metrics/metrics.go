// Package metrics exposes Prometheus instruments for the download service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name
const Namespace = "ytdl"

// Extraction outcomes
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
	OutcomeMissing = "missing"
)

// DownloadMetrics captures extraction gateway activity.
type DownloadMetrics interface {
	ObserveExtraction(mode, outcome string, durationSeconds float64)
	SetDownloadsInFlight(n int)
}

// ReaperMetrics captures retention sweeps.
type ReaperMetrics interface {
	ObserveSweep(deleted, failed, skipped int, durationSeconds float64)
	IncSweepErrors()
}

// HTTPMetrics captures request metrics for the API.
type HTTPMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements all metric interfaces without emitting anything.
type Noop struct{}

func (Noop) ObserveExtraction(string, string, float64)      {}
func (Noop) SetDownloadsInFlight(int)                       {}
func (Noop) ObserveSweep(int, int, int, float64)            {}
func (Noop) IncSweepErrors()                                {}
func (Noop) ObserveRequest(string, string, string, float64) {}

// Prom implements all metric interfaces on a private registry.
type Prom struct {
	registry *prometheus.Registry

	extractions        *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	inFlight           prometheus.Gauge

	filesReaped   *prometheus.CounterVec
	sweeps        prometheus.Counter
	sweepErrors   prometheus.Counter
	sweepDuration prometheus.Histogram

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewProm registers the service instruments, plus Go runtime and process
// collectors, on a new registry.
func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction calls by mode and outcome",
		}, []string{"mode", "outcome"}),
		extractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Extraction latency by mode",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_in_flight",
			Help:      "Downloads currently holding a slot",
		}),
		filesReaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_files_total",
			Help:      "Files evaluated by the reaper by result",
		}, []string{"result"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_sweeps_total",
			Help:      "Completed reaper sweeps",
		}),
		sweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_sweep_errors_total",
			Help:      "Reaper sweeps aborted by an error",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reaper_sweep_duration_seconds",
			Help:      "Reaper sweep latency",
			Buckets:   prometheus.DefBuckets,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.extractions, p.extractionDuration, p.inFlight,
		p.filesReaped, p.sweeps, p.sweepErrors, p.sweepDuration,
		p.requests, p.latency,
	)
	return p
}

func (p *Prom) ObserveExtraction(mode, outcome string, durationSeconds float64) {
	p.extractions.WithLabelValues(mode, outcome).Inc()
	p.extractionDuration.WithLabelValues(mode).Observe(durationSeconds)
}

func (p *Prom) SetDownloadsInFlight(n int) {
	p.inFlight.Set(float64(n))
}

func (p *Prom) ObserveSweep(deleted, failed, skipped int, durationSeconds float64) {
	p.filesReaped.WithLabelValues("deleted").Add(float64(deleted))
	p.filesReaped.WithLabelValues("failed").Add(float64(failed))
	p.filesReaped.WithLabelValues("skipped").Add(float64(skipped))
	p.sweeps.Inc()
	p.sweepDuration.Observe(durationSeconds)
}

func (p *Prom) IncSweepErrors() {
	p.sweepErrors.Inc()
}

func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

// Handler returns an HTTP handler for /metrics.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry.
func (p *Prom) Registry() *prometheus.Registry {
	return p.registry
}
