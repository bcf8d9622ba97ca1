package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enhanceReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slideforge",
			Name:      "enhance_requests_total",
			Help:      "Total enhancement service requests by kind and result",
		},
		[]string{"kind", "result"},
	)

	enhanceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slideforge",
			Name:      "enhance_request_duration_seconds",
			Help:      "Duration of enhancement service requests by kind",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	pagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slideforge",
			Name:      "pages_processed_total",
			Help:      "Pages processed by operation and result",
		},
		[]string{"op", "result"},
	)

	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slideforge",
			Name:      "retries_total",
			Help:      "Total number of per-page retries inside batch operations",
		},
	)

	batchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slideforge",
			Name:      "batch_runs_total",
			Help:      "Batch operations by op and outcome (clean, partial)",
		},
		[]string{"op", "outcome"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "slideforge",
			Name:      "active_sessions",
			Help:      "Number of live sessions in the registry",
		},
	)

	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slideforge",
			Name:      "exports_total",
			Help:      "Document exports by format and result",
		},
		[]string{"format", "result"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(enhanceReqs, enhanceLatency, pagesProcessed, retriesTotal, batchRuns, activeSessions, exportsTotal)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveEnhance(kind, result string, dur time.Duration) {
	enhanceReqs.WithLabelValues(kind, result).Inc()
	enhanceLatency.WithLabelValues(kind).Observe(dur.Seconds())
}

func IncPage(op, result string) { pagesProcessed.WithLabelValues(op, result).Inc() }
func IncRetry()                 { retriesTotal.Inc() }

func IncBatch(op string, partial bool) {
	outcome := "clean"
	if partial {
		outcome = "partial"
	}
	batchRuns.WithLabelValues(op, outcome).Inc()
}

func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }

func IncExport(format, result string) { exportsTotal.WithLabelValues(format, result).Inc() }
