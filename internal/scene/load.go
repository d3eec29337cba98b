// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package scene

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// Load reads, parses, and validates one scene manifest file.
func Load(path, engineVersion string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("SCENE_INVALID").
			With("path", path).
			Wrap(err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	if err := m.Validate(engineVersion); err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return m, nil
}

// LoadDir loads every .yaml and .yml manifest in dir, in file name
// order. A missing directory yields no scenes rather than an error.
// Scene names must be unique across the directory.
func LoadDir(dir, engineVersion string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("SCENE_INVALID").
			With("dir", dir).
			Wrap(err)
	}

	var manifests []*Manifest
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		m, err := Load(path, engineVersion)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[m.Name]; ok {
			return nil, oops.Code("SCENE_INVALID").
				With("scene", m.Name).
				With("path", path).
				With("previous_path", prev).
				Errorf("scene name is already used")
		}
		seen[m.Name] = path
		manifests = append(manifests, m)
	}
	return manifests, nil
}
