package mcp

import (
	"encoding/json"
	"testing"
)

func TestTruncateLeavesShortStringsUnchanged(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate(short) = %q, want unchanged", got)
	}
}

func TestTruncateShortensLongStringsWithEllipsis(t *testing.T) {
	got := Truncate("0123456789", 5)
	if len(got) != 5 || got != "01..." {
		t.Errorf("Truncate(long, 5) = %q, want \"01...\"", got)
	}
}

func TestSafeMarshalFallsBackOnUnmarshalableValue(t *testing.T) {
	got := SafeMarshal(make(chan int), `{"fallback":true}`)
	if string(got) != `{"fallback":true}` {
		t.Errorf("SafeMarshal fallback = %s, want the fallback literal", got)
	}
}

func TestLenientUnmarshalIgnoresMalformedArgs(t *testing.T) {
	var v map[string]any
	LenientUnmarshal(json.RawMessage(`not json`), &v)
	if v != nil {
		t.Errorf("LenientUnmarshal should leave v untouched on parse failure, got %#v", v)
	}
}

func TestAppendWarningsToResponseAddsATextBlock(t *testing.T) {
	resp := successEnvelope(1, MCPToolResult{Content: []MCPContentBlock{{Type: "text", Text: "ok"}}})
	out := AppendWarningsToResponse(resp, []string{"unknown parameter 'foo' (ignored)"})

	var result MCPToolResult
	if err := json.Unmarshal(out.Result, &result); err != nil {
		t.Fatalf("result did not parse: %v", err)
	}
	if len(result.Content) != 2 {
		t.Fatalf("content = %+v, want original block plus a warnings block", result.Content)
	}
	if result.Content[1].Text != "_warnings: unknown parameter 'foo' (ignored)" {
		t.Errorf("warning text = %q", result.Content[1].Text)
	}
}

func TestAppendWarningsToResponseIsNoOpWhenEmpty(t *testing.T) {
	resp := successEnvelope(1, MCPToolResult{Content: []MCPContentBlock{{Type: "text", Text: "ok"}}})
	out := AppendWarningsToResponse(resp, nil)
	if string(out.Result) != string(resp.Result) {
		t.Error("AppendWarningsToResponse should leave resp untouched when warnings is empty")
	}
}
