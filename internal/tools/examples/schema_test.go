package examples

import "testing"

func TestSchemaFromStructReflectsFieldNames(t *testing.T) {
	schema := schemaFromStruct(NavigateParams{})
	if schema.Type != "object" {
		t.Fatalf("Type = %q, want object", schema.Type)
	}
	if _, ok := schema.Properties["url"]; !ok {
		t.Fatalf("Properties = %v, want a url entry", schema.Properties)
	}
	if _, ok := schema.Properties["timeoutMs"]; !ok {
		t.Fatalf("Properties = %v, want a timeoutMs entry", schema.Properties)
	}
}
