package structured

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/JaimeStill/creditread/internal/formats"
)

// shapeDocument renders the JSON Schema a response must satisfy before
// its fields are read. It constrains structure only: a root object whose
// list fields are arrays of objects. Value types are left to validation so
// a wrong-typed field becomes a defect, not a retry.
func shapeDocument(schema formats.Schema) map[string]any {
	properties := make(map[string]any)
	for _, f := range schema.Fields {
		if f.Kind != formats.KindList {
			continue
		}
		properties[f.Name] = map[string]any{
			"type":  []string{"array", "null"},
			"items": map[string]any{"type": "object"},
		}
	}

	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": properties,
	}
}

func compileShape(schema formats.Schema) (*jsonschema.Schema, error) {
	b, err := json.Marshal(shapeDocument(schema))
	if err != nil {
		return nil, fmt.Errorf("marshal shape: %w", err)
	}

	url := fmt.Sprintf("creditread://shapes/%s.json", schema.Format)

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add shape: %w", err)
	}

	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile shape: %w", err)
	}
	return compiled, nil
}
