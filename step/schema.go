package step

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaSet holds one compiled JSON Schema per Tool-layer operation name,
// used to validate a tool_call decision's Args before execution. Compilation
// happens once at startup; Validate is then cheap per call, grounded on the
// same compile-then-validate shape the teacher uses for tool payloads
// (registry.validatePayloadJSONAgainstSchema).
type SchemaSet struct {
	schemas map[string]*jsonschema.Schema
}

// CompileSchemas compiles one schema document per tool name. docs maps a
// tool name ("db_read", "db_create", ...) to its raw JSON Schema.
func CompileSchemas(docs map[string]json.RawMessage) (*SchemaSet, error) {
	set := &SchemaSet{schemas: make(map[string]*jsonschema.Schema, len(docs))}
	for tool, raw := range docs {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal schema for %s: %w", tool, err)
		}
		c := jsonschema.NewCompiler()
		resourceID := tool + ".json"
		if err := c.AddResource(resourceID, doc); err != nil {
			return nil, fmt.Errorf("add schema resource for %s: %w", tool, err)
		}
		compiled, err := c.Compile(resourceID)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", tool, err)
		}
		set.schemas[tool] = compiled
	}
	return set, nil
}

// Validate checks args against the tool's compiled schema. A tool with no
// registered schema is treated as unconstrained.
func (s *SchemaSet) Validate(tool string, args json.RawMessage) error {
	schema, ok := s.schemas[tool]
	if !ok {
		return nil
	}
	var doc any
	if err := json.Unmarshal(args, &doc); err != nil {
		return fmt.Errorf("unmarshal args: %w", err)
	}
	return schema.Validate(doc)
}
