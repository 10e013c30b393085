// Package metrics holds the Prometheus collectors shared by the HTTP layer,
// the link service and the dispatch scheduler. Labels are kept to small
// fixed sets so cardinality stays bounded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequests counts requests by method, route pattern, and status code.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPLatency records request duration in seconds by method and route pattern.
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	LinksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "links_created_total",
			Help: "Number of callback links issued.",
		},
	)

	// Redemptions is labelled by result: first_visit, repeat_visit, invalid,
	// missing_state, backend_unavailable.
	Redemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_redemptions_total",
			Help: "Link redemptions by result.",
		},
		[]string{"result"},
	)

	DispatchScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_scheduled_total",
			Help: "Callback jobs handed to the scheduler.",
		},
	)

	DispatchPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_pending",
			Help: "Callback jobs waiting for their delay to elapse.",
		},
	)

	// DispatchOutcomes is labelled by result: 2xx, 4xx, 5xx, other, failed, dropped.
	DispatchOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_outcomes_total",
			Help: "Callback delivery attempts by outcome.",
		},
		[]string{"result"},
	)

	VisitsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dedup_records_purged_total",
			Help: "Expired dedup records removed by the janitor.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests, HTTPLatency, HTTPInflight,
		LinksCreated, Redemptions,
		DispatchScheduled, DispatchPending, DispatchOutcomes,
		VisitsPurged,
	)
}
