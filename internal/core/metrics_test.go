// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package core

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)

	// Counters without observations yet need a touch to show up.
	RecordStateChanged("light")
	RecordStateReported("light")
	RecordStateRemoved("light")
	RecordInvalidEntityID()
	RecordStateCount(1)
	RecordEventFired("state_changed")
	RecordEventDropped("state_changed")

	families, err := reg.Gather()
	require.NoError(t, err)

	registered := make(map[string]bool)
	for _, family := range families {
		registered[family.GetName()] = true
	}

	for _, name := range []string{
		"hearthd_state_changes_total",
		"hearthd_state_reports_total",
		"hearthd_state_removes_total",
		"hearthd_invalid_entity_ids_total",
		"hearthd_states",
		"hearthd_bus_events_fired_total",
		"hearthd_bus_events_dropped_total",
	} {
		assert.True(t, registered[name], "metric %q should be registered", name)
	}
}

func TestRecordHelpersIncrement(t *testing.T) {
	before := testutil.ToFloat64(StateChanges.WithLabelValues("climate"))
	RecordStateChanged("climate")
	assert.Equal(t, before+1, testutil.ToFloat64(StateChanges.WithLabelValues("climate")))

	before = testutil.ToFloat64(EventsDropped.WithLabelValues("scene_applied"))
	RecordEventDropped("scene_applied")
	assert.Equal(t, before+1, testutil.ToFloat64(EventsDropped.WithLabelValues("scene_applied")))

	RecordStateCount(17)
	assert.Equal(t, float64(17), testutil.ToFloat64(States))
}
