// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package recorder

import "github.com/prometheus/client_golang/prometheus"

// StatesRecorded counts state rows accepted for persistence, labeled by domain.
// Use RegisterMetrics to register this with a Prometheus registry.
var StatesRecorded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hearthd_recorder_states_recorded_total",
		Help: "Total number of state rows accepted by the recorder by domain",
	},
	[]string{"domain"},
)

// StatesDropped counts state events dropped before persistence, labeled by reason.
// Use RegisterMetrics to register this with a Prometheus registry.
var StatesDropped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hearthd_recorder_states_dropped_total",
		Help: "Total number of state events the recorder dropped by reason",
	},
	[]string{"reason"},
)

// Flushes counts batch flushes by status.
// Use RegisterMetrics to register this with a Prometheus registry.
var Flushes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hearthd_recorder_flushes_total",
		Help: "Total number of recorder batch flushes by status",
	},
	[]string{"status"},
)

// FlushDuration observes how long batch flushes take.
// Use RegisterMetrics to register this with a Prometheus registry.
var FlushDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "hearthd_recorder_flush_duration_seconds",
		Help:    "Duration of recorder batch flushes in seconds",
		Buckets: prometheus.DefBuckets,
	},
)

// StatesPurged counts rows removed by purges.
// Use RegisterMetrics to register this with a Prometheus registry.
var StatesPurged = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "hearthd_recorder_states_purged_total",
		Help: "Total number of state rows removed by purges",
	},
)

// RegisterMetrics registers all recorder metrics with the given registry.
// Panics if a metric is already registered (indicates a programming error,
// as this should only be called once at startup).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		StatesRecorded,
		StatesDropped,
		Flushes,
		FlushDuration,
		StatesPurged,
	)
}

// RecordStateRecorded increments the recorded counter for a domain.
func RecordStateRecorded(domain string) {
	StatesRecorded.WithLabelValues(domain).Inc()
}

// RecordStateDropped increments the dropped counter for a reason.
func RecordStateDropped(reason string) {
	StatesDropped.WithLabelValues(reason).Inc()
}

// RecordFlush observes one flush with its status and duration.
func RecordFlush(status string, seconds float64) {
	Flushes.WithLabelValues(status).Inc()
	FlushDuration.Observe(seconds)
}

// RecordStatesPurged adds purged rows to the purge counter.
func RecordStatesPurged(count int64) {
	StatesPurged.Add(float64(count))
}
