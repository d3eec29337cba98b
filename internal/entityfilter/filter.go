// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

// Package entityfilter decides which entities a consumer (the recorder,
// mainly) should see, from include/exclude lists of domains, entity IDs,
// and glob patterns.
package entityfilter

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/hearthd/hearthd/internal/entityid"
)

// Config lists the filter rules. All lists may be empty.
type Config struct {
	IncludeDomains     []string `koanf:"include_domains"`
	IncludeEntities    []string `koanf:"include_entities"`
	IncludeEntityGlobs []string `koanf:"include_entity_globs"`
	ExcludeDomains     []string `koanf:"exclude_domains"`
	ExcludeEntities    []string `koanf:"exclude_entities"`
	ExcludeEntityGlobs []string `koanf:"exclude_entity_globs"`
}

// Filter matches entity IDs against precompiled rules. Safe for
// concurrent use.
type Filter struct {
	includeDomains  map[string]struct{}
	includeEntities map[string]struct{}
	includeGlobs    []glob.Glob
	excludeDomains  map[string]struct{}
	excludeEntities map[string]struct{}
	excludeGlobs    []glob.Glob

	haveInclude bool
	haveExclude bool
}

// New compiles a filter. Glob patterns use '*' wildcards with '.' as
// the separator, e.g. "sensor.weather_*".
func New(cfg Config) (*Filter, error) {
	includeGlobs, err := compileGlobs(cfg.IncludeEntityGlobs)
	if err != nil {
		return nil, err
	}
	excludeGlobs, err := compileGlobs(cfg.ExcludeEntityGlobs)
	if err != nil {
		return nil, err
	}

	f := &Filter{
		includeDomains:  toSet(cfg.IncludeDomains),
		includeEntities: toSet(cfg.IncludeEntities),
		includeGlobs:    includeGlobs,
		excludeDomains:  toSet(cfg.ExcludeDomains),
		excludeEntities: toSet(cfg.ExcludeEntities),
		excludeGlobs:    excludeGlobs,
	}
	f.haveInclude = len(f.includeDomains) > 0 || len(f.includeEntities) > 0 || len(f.includeGlobs) > 0
	f.haveExclude = len(f.excludeDomains) > 0 || len(f.excludeEntities) > 0 || len(f.excludeGlobs) > 0
	return f, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.In("entityfilter").
				Code("INVALID_ENTITY_GLOB").
				With("pattern", pattern).
				Wrap(err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// Empty reports whether the filter carries no rules (and so passes
// everything).
func (f *Filter) Empty() bool {
	return !f.haveInclude && !f.haveExclude
}

// Matches reports whether entityID passes the filter.
//
// With rules on only one side the answer is plain: included, or not
// excluded. With rules on both sides the include side leads:
//   - an include-domain or include-glob rule set makes domain/glob
//     membership the ticket in, with entity and glob excludes able to
//     veto glob matches but a matching include domain overriding
//     exclude domains;
//   - exclude domains/globs without include domains/globs drop their
//     matches unless the entity is included by name;
//   - include entities alone make the entity list the whole allowlist.
func (f *Filter) Matches(entityID string) bool {
	switch {
	case !f.haveInclude && !f.haveExclude:
		return true
	case f.haveInclude && !f.haveExclude:
		return f.included(entityID)
	case !f.haveInclude && f.haveExclude:
		return !f.excluded(entityID)
	}

	domain, _, _ := entityid.Cut(entityID)

	if len(f.includeDomains) > 0 || len(f.includeGlobs) > 0 {
		if _, ok := f.includeEntities[entityID]; ok {
			return true
		}
		if _, ok := f.excludeEntities[entityID]; ok {
			return false
		}
		if _, ok := f.includeDomains[domain]; ok {
			return true
		}
		return matchesAny(f.includeGlobs, entityID) &&
			!matchesAny(f.excludeGlobs, entityID)
	}

	if len(f.excludeDomains) > 0 || len(f.excludeGlobs) > 0 {
		_, domainExcluded := f.excludeDomains[domain]
		if domainExcluded || matchesAny(f.excludeGlobs, entityID) {
			_, ok := f.includeEntities[entityID]
			return ok
		}
		_, ok := f.excludeEntities[entityID]
		return !ok
	}

	// Only entity lists on both sides: the include list decides and
	// entity excludes are moot.
	_, ok := f.includeEntities[entityID]
	return ok
}

func (f *Filter) included(entityID string) bool {
	if _, ok := f.includeEntities[entityID]; ok {
		return true
	}
	domain, _, _ := entityid.Cut(entityID)
	if _, ok := f.includeDomains[domain]; ok {
		return true
	}
	return matchesAny(f.includeGlobs, entityID)
}

func (f *Filter) excluded(entityID string) bool {
	if _, ok := f.excludeEntities[entityID]; ok {
		return true
	}
	domain, _, _ := entityid.Cut(entityID)
	if _, ok := f.excludeDomains[domain]; ok {
		return true
	}
	return matchesAny(f.excludeGlobs, entityID)
}

func matchesAny(globs []glob.Glob, entityID string) bool {
	for _, g := range globs {
		if g.Match(entityID) {
			return true
		}
	}
	return false
}
