// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package core

import "github.com/prometheus/client_golang/prometheus"

// StateChanges is the counter for state_changed transitions.
// Use RegisterMetrics to register this with a Prometheus registry.
var StateChanges = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hearthd_state_changes_total",
		Help: "Total number of state_changed transitions",
	},
	[]string{"domain"},
)

// StateReports is the counter for same-value writes resolved on the
// state_reported fast path.
// Use RegisterMetrics to register this with a Prometheus registry.
var StateReports = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hearthd_state_reports_total",
		Help: "Total number of writes that carried unchanged state and attributes",
	},
	[]string{"domain"},
)

// StateRemoves is the counter for entity removals.
// Use RegisterMetrics to register this with a Prometheus registry.
var StateRemoves = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hearthd_state_removes_total",
		Help: "Total number of entity removals",
	},
	[]string{"domain"},
)

// InvalidEntityIDs is the counter for writes rejected on identifier
// validation.
// Use RegisterMetrics to register this with a Prometheus registry.
var InvalidEntityIDs = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "hearthd_invalid_entity_ids_total",
		Help: "Total number of writes rejected for a malformed entity ID",
	},
)

// States is the gauge of entities currently holding a state.
// Use RegisterMetrics to register this with a Prometheus registry.
var States = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "hearthd_states",
		Help: "Number of entities currently holding a state",
	},
)

// EventsFired is the counter for events published on the bus.
// Use RegisterMetrics to register this with a Prometheus registry.
var EventsFired = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hearthd_bus_events_fired_total",
		Help: "Total number of events fired on the bus",
	},
	[]string{"type"},
)

// EventsDropped is the counter for events dropped on full subscriber
// buffers.
// Use RegisterMetrics to register this with a Prometheus registry.
var EventsDropped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hearthd_bus_events_dropped_total",
		Help: "Total number of events dropped because a subscriber buffer was full",
	},
	[]string{"type"},
)

// RegisterMetrics registers core package metrics with the given
// Prometheus registry. This must be called at startup to make metrics
// available on /metrics. Panics if registration fails (following
// prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(StateChanges)
	reg.MustRegister(StateReports)
	reg.MustRegister(StateRemoves)
	reg.MustRegister(InvalidEntityIDs)
	reg.MustRegister(States)
	reg.MustRegister(EventsFired)
	reg.MustRegister(EventsDropped)
}

// RecordStateChanged increments the state_changed counter for a domain.
func RecordStateChanged(domain string) {
	StateChanges.WithLabelValues(domain).Inc()
}

// RecordStateReported increments the fast-path counter for a domain.
func RecordStateReported(domain string) {
	StateReports.WithLabelValues(domain).Inc()
}

// RecordStateRemoved increments the removal counter for a domain.
func RecordStateRemoved(domain string) {
	StateRemoves.WithLabelValues(domain).Inc()
}

// RecordInvalidEntityID increments the rejected-write counter.
func RecordInvalidEntityID() {
	InvalidEntityIDs.Inc()
}

// RecordStateCount sets the current entity count gauge.
func RecordStateCount(n int) {
	States.Set(float64(n))
}

// RecordEventFired increments the fired counter for an event type.
func RecordEventFired(eventType string) {
	EventsFired.WithLabelValues(eventType).Inc()
}

// RecordEventDropped increments the dropped counter for an event type.
func RecordEventDropped(eventType string) {
	EventsDropped.WithLabelValues(eventType).Inc()
}
