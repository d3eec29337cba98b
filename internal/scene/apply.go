// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package scene

import (
	"context"
	"slices"

	"github.com/samber/oops"

	"github.com/hearthd/hearthd/internal/attrval"
	"github.com/hearthd/hearthd/internal/core"
)

// Apply writes every entity state in the manifest to the machine.
// Entities are applied in sorted order and all writes share one origin
// context, so consumers can group the resulting events by activation.
// The first failure stops the apply; the count reports how many
// entities were written before it.
func (m *Manifest) Apply(ctx context.Context, machine *core.Machine) (int, error) {
	ids := make([]string, 0, len(m.Entities))
	for id := range m.Entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	sceneCtx := core.NewContext()
	applied := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return applied, oops.With("scene", m.Name).Wrap(err)
		}

		target := m.Entities[id]
		attributes, err := attrval.MapFromNative(target.Attributes)
		if err != nil {
			return applied, oops.With("scene", m.Name).
				With("entity_id", id).
				Wrap(err)
		}
		if _, err := machine.Set(id, target.State, attributes, core.WithContext(sceneCtx)); err != nil {
			return applied, oops.With("scene", m.Name).
				With("entity_id", id).
				Wrap(err)
		}
		applied++
	}
	return applied, nil
}
