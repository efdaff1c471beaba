// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal            *prometheus.CounterVec
	lotsExtractedTotal    prometheus.Counter
	lotsSkippedTotal      *prometheus.CounterVec
	rowsAppendedTotal     prometheus.Counter
	activeWorkers         prometheus.Gauge
	rateLimitDelaySeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. Safe to call multiple times; observation
// helpers are no-ops until it runs so library tests need no setup.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pages_total",
				Help: "Pages fetched, labeled by kind (listing/detail) and status.",
			},
			[]string{"kind", "status"},
		)

		lotsExtractedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_lots_extracted_total",
				Help: "Lots successfully extracted into records.",
			},
		)

		lotsSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_lots_skipped_total",
				Help: "Lots skipped, labeled by reason (fetch/parse/empty).",
			},
			[]string{"reason"},
		)

		rowsAppendedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_rows_appended_total",
				Help: "Rows appended to the primary sheet.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_workers",
				Help: "Workers currently processing a shard.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts one fetched page.
func ObservePage(kind, status string) {
	if pagesTotal != nil {
		pagesTotal.WithLabelValues(kind, status).Inc()
	}
}

// ObserveExtracted counts one successfully extracted lot.
func ObserveExtracted() {
	if lotsExtractedTotal != nil {
		lotsExtractedTotal.Inc()
	}
}

// ObserveSkipped counts one skipped lot with its reason.
func ObserveSkipped(reason string) {
	if lotsSkippedTotal != nil {
		lotsSkippedTotal.WithLabelValues(reason).Inc()
	}
}

// ObserveRowsAppended counts rows written by the export sink.
func ObserveRowsAppended(n int) {
	if rowsAppendedTotal != nil && n > 0 {
		rowsAppendedTotal.Add(float64(n))
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ObserveRateLimitDelay records how long a fetch waited for a token.
func ObserveRateLimitDelay(domain string, d time.Duration) {
	if rateLimitDelaySeconds != nil {
		rateLimitDelaySeconds.WithLabelValues(domain).Observe(d.Seconds())
	}
}
