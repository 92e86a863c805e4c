// Package examples ships a handful of minimal registry.Tool
// implementations — browser_navigate, browser_screenshot, and
// browser_evaluate. They exist only to prove the Tool contract is
// exercised end to end (spec.md §1): real navigate/screenshot/evaluate
// behavior lives in an external collaborator process, not here.
package examples

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/brennhill/browsergate/internal/registry"
)

// schemaReflector mirrors the grafana-mcp-grafana tool-conversion
// reflector settings: anonymous, dereferenced, no $ref indirection, so
// the resulting schema is a single flat object suitable for dropping
// straight into registry.Schema.Properties.
var schemaReflector = jsonschema.Reflector{
	Anonymous:                 true,
	AssignAnchor:              false,
	AllowAdditionalProperties: false,
	RequiredFromJSONSchemaTags: true,
	DoNotReference:            true,
}

// schemaFromStruct reflects a params struct (its fields tagged with
// `json` and `jsonschema` struct tags) into a registry.Schema. The
// invopop/jsonschema reflector produces an ordered-map-backed
// *jsonschema.Schema; round-tripping through JSON collapses it into
// the plain map[string]any registry.Schema expects.
func schemaFromStruct(v any) registry.Schema {
	reflected := schemaReflector.Reflect(v)
	raw, err := json.Marshal(reflected)
	if err != nil {
		return registry.Schema{Type: "object", Properties: map[string]any{}}
	}

	var decoded struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return registry.Schema{Type: "object", Properties: map[string]any{}}
	}
	if decoded.Properties == nil {
		decoded.Properties = map[string]any{}
	}
	return registry.Schema{
		Type:       decoded.Type,
		Properties: decoded.Properties,
		Required:   decoded.Required,
	}
}
