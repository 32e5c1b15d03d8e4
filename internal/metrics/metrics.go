package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_backend_requests_total",
		Help: "Backend API calls made by the console, by method and status code.",
	}, []string{"method", "status"})

	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_backend_request_duration_seconds",
		Help:    "Latency of backend API calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_session_transitions_total",
		Help: "Session lifecycle transitions, by event.",
	}, []string{"event"})
)
