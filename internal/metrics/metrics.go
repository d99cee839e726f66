// Package metrics exposes Prometheus collectors for the catalog crawler.
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
	pagesFetchedTotal    *prometheus.CounterVec
	fetchDurationSeconds prometheus.Histogram
	extractRecordsTotal  *prometheus.CounterVec
	productsAccepted     prometheus.Counter
	productsRejected     *prometheus.CounterVec
	pageFailuresTotal    prometheus.Counter
	sessionsRotatedTotal prometheus.Counter
	frontierDepthGauge   prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopharvest_pages_fetched_total",
				Help: "Total pages fetched, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shopharvest_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		extractRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopharvest_extract_records_total",
				Help: "Raw records extracted, labeled by winning strategy.",
			},
			[]string{"strategy"},
		)

		productsAccepted = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shopharvest_products_accepted_total",
				Help: "Canonical products accepted into the sink.",
			},
		)

		productsRejected = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopharvest_products_rejected_total",
				Help: "Products rejected before the sink, labeled by reason.",
			},
			[]string{"reason"},
		)

		pageFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shopharvest_page_failures_total",
				Help: "Pages that exhausted their retry budget.",
			},
		)

		sessionsRotatedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shopharvest_sessions_rotated_total",
				Help: "Fetch sessions retired after crossing a rotation threshold.",
			},
		)

		frontierDepthGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shopharvest_frontier_depth",
				Help: "Tasks currently queued on the frontier.",
			},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one page fetch and its latency.
func ObserveFetch(outcome string, duration time.Duration) {
	pagesFetchedTotal.WithLabelValues(outcome).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveExtraction records raw records yielded by a strategy.
func ObserveExtraction(strategy string, records int) {
	if records > 0 {
		extractRecordsTotal.WithLabelValues(strategy).Add(float64(records))
	}
}

// ObserveAccepted increments the accepted-product counter.
func ObserveAccepted() {
	productsAccepted.Inc()
}

// ObserveRejected increments the rejection counter for the given reason.
func ObserveRejected(reason string) {
	productsRejected.WithLabelValues(reason).Inc()
}

// ObservePageFailure increments the terminal page failure counter.
func ObservePageFailure() {
	pageFailuresTotal.Inc()
}

// ObserveSessionRotation increments the session rotation counter.
func ObserveSessionRotation() {
	sessionsRotatedTotal.Inc()
}

// SetFrontierDepth records the current frontier depth.
func SetFrontierDepth(depth int) {
	frontierDepthGauge.Set(float64(depth))
}
