// Package metrics exposes Prometheus collectors for the RSS pipeline service.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedFetchesTotal           *prometheus.CounterVec
	queueEntriesUpsertedTotal  prometheus.Counter
	contentFetchesTotal        *prometheus.CounterVec
	webhookDeliveriesTotal     *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		feedFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rss_feed_fetches_total",
				Help: "Total number of feed fetch attempts, labeled by group and outcome.",
			},
			[]string{"group", "outcome"},
		)

		queueEntriesUpsertedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rss_queue_entries_upserted_total",
				Help: "Total number of queue entries written by the feed ingestor.",
			},
		)

		contentFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rss_content_fetches_total",
				Help: "Total number of content fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		webhookDeliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rss_webhook_deliveries_total",
				Help: "Total number of webhook notification attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveFeedFetch records one feed fetch attempt.
func ObserveFeedFetch(group, outcome string) {
	if feedFetchesTotal == nil {
		return
	}
	feedFetchesTotal.WithLabelValues(group, outcome).Inc()
}

// AddQueueEntriesUpserted records entries written by the ingestor.
func AddQueueEntriesUpserted(n int) {
	if queueEntriesUpsertedTotal == nil || n <= 0 {
		return
	}
	queueEntriesUpsertedTotal.Add(float64(n))
}

// ObserveContentFetch records one content fetch attempt by outcome
// (saved, status_only, api_error, persist_error).
func ObserveContentFetch(outcome string) {
	if contentFetchesTotal == nil {
		return
	}
	contentFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveWebhookDelivery records one webhook notification attempt.
func ObserveWebhookDelivery(outcome string) {
	if webhookDeliveriesTotal == nil {
		return
	}
	webhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
