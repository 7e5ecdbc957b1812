package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_batch_runs_total",
			Help: "Batch presence refresh runs by outcome (completed, aborted)",
		},
		[]string{"outcome"},
	)

	BatchUsersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_batch_users_total",
			Help: "Users processed by batch runs, labelled success or the failure kind",
		},
		[]string{"result"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beacon_batch_duration_seconds",
			Help:    "Duration of batch presence refresh runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_upstream_requests_total",
			Help: "Requests to the presence API by endpoint and status code",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_upstream_request_duration_seconds",
			Help:    "Latency of presence API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
