// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package scene

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id manifests may reference.
const SchemaID = "https://hearthd.dev/schemas/scene.schema.json"

// GenerateSchema generates the JSON Schema for scene manifest files.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Manifest{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Hearthd Scene Manifest"
	schema.Description = "Schema for scene manifest files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCENE_INVALID").Wrap(err)
	}
	return data, nil
}

// compiledSchema compiles the generated schema once per process.
var compiledSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, oops.Code("SCENE_INVALID").Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("scene.schema.json", schemaData); err != nil {
		return nil, oops.Code("SCENE_INVALID").Wrap(err)
	}
	return c.Compile("scene.schema.json")
})

// ValidateSchema validates a YAML scene document against the manifest
// schema, before any unmarshalling.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return oops.Code("SCENE_INVALID").Errorf("scene manifest is empty")
	}

	var yamlData any
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return oops.Code("SCENE_INVALID").Wrap(err)
	}

	// Round-trip through JSON so the validator only sees the value
	// types json.Unmarshal produces.
	jsonBytes, err := json.Marshal(yamlData)
	if err != nil {
		return oops.Code("SCENE_INVALID").Wrap(err)
	}
	var jsonData any
	if err := json.Unmarshal(jsonBytes, &jsonData); err != nil {
		return oops.Code("SCENE_INVALID").Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return oops.Code("SCENE_INVALID").Wrap(err)
	}
	if err := sch.Validate(jsonData); err != nil {
		return oops.Code("SCENE_INVALID").Wrap(err)
	}
	return nil
}
