// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package entityfilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearthd/internal/entityfilter"
	"github.com/hearthd/hearthd/pkg/errutil"
)

func mustFilter(t *testing.T, cfg entityfilter.Config) *entityfilter.Filter {
	t.Helper()
	f, err := entityfilter.New(cfg)
	require.NoError(t, err)
	return f
}

func TestFilterNoRules(t *testing.T) {
	f := mustFilter(t, entityfilter.Config{})
	assert.True(t, f.Empty())
	assert.True(t, f.Matches("light.kitchen"))
	assert.True(t, f.Matches("sensor.anything"))
}

func TestFilterIncludeOnly(t *testing.T) {
	f := mustFilter(t, entityfilter.Config{
		IncludeDomains:     []string{"light"},
		IncludeEntities:    []string{"sensor.front_door"},
		IncludeEntityGlobs: []string{"binary_sensor.door_*"},
	})
	assert.False(t, f.Empty())

	assert.True(t, f.Matches("light.kitchen"), "domain include")
	assert.True(t, f.Matches("sensor.front_door"), "entity include")
	assert.True(t, f.Matches("binary_sensor.door_back"), "glob include")
	assert.False(t, f.Matches("sensor.other"))
	assert.False(t, f.Matches("binary_sensor.window_front"))
}

func TestFilterExcludeOnly(t *testing.T) {
	f := mustFilter(t, entityfilter.Config{
		ExcludeDomains:     []string{"automation"},
		ExcludeEntities:    []string{"sensor.noisy"},
		ExcludeEntityGlobs: []string{"sensor.debug_*"},
	})

	assert.True(t, f.Matches("light.kitchen"))
	assert.False(t, f.Matches("automation.morning"), "domain exclude")
	assert.False(t, f.Matches("sensor.noisy"), "entity exclude")
	assert.False(t, f.Matches("sensor.debug_loop"), "glob exclude")
	assert.True(t, f.Matches("sensor.useful"))
}

func TestFilterIncludeAndExclude(t *testing.T) {
	t.Run("include domains lead", func(t *testing.T) {
		f := mustFilter(t, entityfilter.Config{
			IncludeDomains:     []string{"light"},
			IncludeEntities:    []string{"sensor.keep"},
			ExcludeEntities:    []string{"light.spam"},
			ExcludeEntityGlobs: []string{"light.closet_*"},
		})

		assert.True(t, f.Matches("light.kitchen"))
		assert.True(t, f.Matches("sensor.keep"), "entity include always wins")
		assert.False(t, f.Matches("light.spam"), "entity exclude vetoes the domain")
		assert.True(t, f.Matches("light.closet_top"),
			"glob excludes only guard glob includes, not domain includes")
		assert.False(t, f.Matches("sensor.other"))
	})

	t.Run("include globs guarded by exclude globs", func(t *testing.T) {
		f := mustFilter(t, entityfilter.Config{
			IncludeEntityGlobs: []string{"sensor.*"},
			ExcludeEntityGlobs: []string{"sensor.weather_*"},
		})

		assert.True(t, f.Matches("sensor.temperature"))
		assert.False(t, f.Matches("sensor.weather_wind"))
		assert.False(t, f.Matches("light.kitchen"))
	})

	t.Run("exclude domains with entity rescues", func(t *testing.T) {
		f := mustFilter(t, entityfilter.Config{
			IncludeEntities: []string{"automation.keep"},
			ExcludeDomains:  []string{"automation"},
			ExcludeEntities: []string{"sensor.noisy"},
		})

		assert.True(t, f.Matches("automation.keep"), "entity include rescues excluded domain")
		assert.False(t, f.Matches("automation.other"))
		assert.False(t, f.Matches("sensor.noisy"))
		assert.True(t, f.Matches("sensor.useful"), "not excluded, passes")
	})

	t.Run("entity lists only make an allowlist", func(t *testing.T) {
		f := mustFilter(t, entityfilter.Config{
			IncludeEntities: []string{"light.keep"},
			ExcludeEntities: []string{"light.keep", "light.drop"},
		})

		assert.True(t, f.Matches("light.keep"), "include list decides, excludes moot")
		assert.False(t, f.Matches("light.drop"))
		assert.False(t, f.Matches("light.other"))
	})
}

func TestFilterBadGlob(t *testing.T) {
	_, err := entityfilter.New(entityfilter.Config{
		IncludeEntityGlobs: []string{"sensor.[unclosed"},
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_ENTITY_GLOB")
	errutil.AssertErrorContext(t, err, "pattern", "sensor.[unclosed")
}
