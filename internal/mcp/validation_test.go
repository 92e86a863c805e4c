package mcp

import (
	"encoding/json"
	"testing"
)

func TestValidateParamsAgainstSchemaFlagsUnknownFields(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
		},
	}
	warnings := ValidateParamsAgainstSchema(json.RawMessage(`{"url":"https://x","typo":1}`), schema)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
}

func TestValidateParamsAgainstSchemaAcceptsKnownFieldsOnly(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
		},
	}
	warnings := ValidateParamsAgainstSchema(json.RawMessage(`{"url":"https://x"}`), schema)
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
}

func TestValidateParamsAgainstSchemaIgnoresEmptyData(t *testing.T) {
	if warnings := ValidateParamsAgainstSchema(nil, map[string]any{}); warnings != nil {
		t.Errorf("warnings = %v, want nil for empty data", warnings)
	}
}

func TestValidateParamsAgainstSchemaIgnoresMissingPropertiesMap(t *testing.T) {
	warnings := ValidateParamsAgainstSchema(json.RawMessage(`{"a":1}`), map[string]any{})
	if warnings != nil {
		t.Errorf("warnings = %v, want nil when schema has no properties map", warnings)
	}
}
