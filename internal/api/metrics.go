// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package api

import "github.com/prometheus/client_golang/prometheus"

// Requests is the counter for completed API requests.
// Use RegisterMetrics to register this with a Prometheus registry.
var Requests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hearthd_api_requests_total",
		Help: "Total number of API requests by method, route, and status",
	},
	[]string{"method", "route", "status"},
)

// RequestDuration is the histogram of API request latency.
// Use RegisterMetrics to register this with a Prometheus registry.
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "hearthd_api_request_duration_seconds",
		Help:    "API request latency in seconds by method and route",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// RegisterMetrics registers api package metrics with the given
// Prometheus registry. This must be called at startup to make metrics
// available on /metrics. Panics if registration fails (following
// prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Requests)
	reg.MustRegister(RequestDuration)
}

// RecordRequest increments the request counter for one completed request.
func RecordRequest(method, route, status string) {
	Requests.WithLabelValues(method, route, status).Inc()
}

// RecordRequestDuration observes one request's latency.
func RecordRequestDuration(method, route string, seconds float64) {
	RequestDuration.WithLabelValues(method, route).Observe(seconds)
}
