// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

// Package scene loads scene manifests, named sets of entity states
// declared in YAML, and applies them to the state machine.
package scene

import (
	"github.com/Masterminds/semver/v3"
	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/hearthd/hearthd/internal/core"
	"github.com/hearthd/hearthd/internal/entityid"
)

// maxNameLength is the maximum allowed length for scene names.
const maxNameLength = 64

// Manifest represents one scene file.
type Manifest struct {
	Name       string                 `yaml:"name" json:"name" jsonschema:"minLength=1,maxLength=64"`
	Icon       string                 `yaml:"icon,omitempty" json:"icon,omitempty"`
	MinVersion string                 `yaml:"min_version,omitempty" json:"min_version,omitempty"`
	Entities   map[string]EntityState `yaml:"entities" json:"entities"`
}

// EntityState is the target state for one entity. In YAML it is either
// a bare scalar (the state value) or a mapping with a state key whose
// remaining keys become attributes.
type EntityState struct {
	State      string
	Attributes map[string]any

	hasState bool
}

// NewEntityState builds the mapping form programmatically.
func NewEntityState(state string, attributes map[string]any) EntityState {
	return EntityState{State: state, Attributes: attributes, hasState: true}
}

// UnmarshalYAML accepts the scalar and mapping manifest forms.
func (e *EntityState) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var state string
		if err := value.Decode(&state); err != nil {
			return err
		}
		e.State = state
		e.hasState = true
		return nil
	case yaml.MappingNode:
		var doc struct {
			State      *string        `yaml:"state"`
			Attributes map[string]any `yaml:",inline"`
		}
		if err := value.Decode(&doc); err != nil {
			return err
		}
		if doc.State != nil {
			e.State = *doc.State
			e.hasState = true
		}
		e.Attributes = doc.Attributes
		return nil
	default:
		return oops.Code("SCENE_INVALID").
			With("line", value.Line).
			Errorf("entity state must be a scalar or a mapping")
	}
}

// scalarStateSchemas lists the JSON types a bare state value may take.
func scalarStateSchemas() []*jsonschema.Schema {
	return []*jsonschema.Schema{
		{Type: "string"},
		{Type: "number"},
		{Type: "boolean"},
	}
}

// JSONSchema describes the scalar-or-mapping shape for the generated
// manifest schema.
func (EntityState) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("state", &jsonschema.Schema{OneOf: scalarStateSchemas()})
	mapping := &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   []string{"state"},
	}
	return &jsonschema.Schema{OneOf: append(scalarStateSchemas(), mapping)}
}

// ParseManifest parses one scene document: schema validation first,
// then unmarshalling. Semantic checks live in Validate.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, oops.Code("SCENE_INVALID").Errorf("scene manifest is empty")
	}
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code("SCENE_INVALID").Wrap(err)
	}
	return &m, nil
}

// Validate checks manifest semantics: the name, the minimum engine
// version, and every entity's identifier and state.
//
// engineVersion is compared against min_version when both parse as
// semantic versions; development builds ("dev", empty) skip the check.
func (m *Manifest) Validate(engineVersion string) error {
	if m.Name == "" {
		return oops.Code("SCENE_INVALID").Errorf("scene name is required")
	}
	if len(m.Name) > maxNameLength {
		return oops.Code("SCENE_INVALID").
			With("scene", m.Name).
			With("max_length", maxNameLength).
			Errorf("scene name is too long")
	}

	if m.MinVersion != "" {
		minVer, err := semver.NewVersion(m.MinVersion)
		if err != nil {
			return oops.Code("SCENE_INVALID").
				With("scene", m.Name).
				With("min_version", m.MinVersion).
				Wrap(err)
		}
		if engineVer, err := semver.NewVersion(engineVersion); err == nil {
			if engineVer.LessThan(minVer) {
				return oops.Code("SCENE_INVALID").
					With("scene", m.Name).
					With("min_version", m.MinVersion).
					With("engine_version", engineVersion).
					Errorf("scene requires a newer engine")
			}
		}
	}

	for id, target := range m.Entities {
		if len(id) > core.MaxEntityIDLength || !entityid.Valid(id) {
			return oops.Code("SCENE_INVALID").
				With("scene", m.Name).
				With("entity_id", id).
				Wrap(entityid.ErrInvalidEntityID)
		}
		if !target.hasState {
			return oops.Code("SCENE_INVALID").
				With("scene", m.Name).
				With("entity_id", id).
				Errorf("entity has no state")
		}
		if err := core.ValidateState(target.State); err != nil {
			return oops.With("scene", m.Name).
				With("entity_id", id).
				Wrap(err)
		}
	}
	return nil
}
