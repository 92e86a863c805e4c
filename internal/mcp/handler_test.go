package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/brennhill/browsergate/internal/registry"
)

type stubTool struct {
	name     string
	endpoint string
	requires bool
	retry    bool
}

func (s stubTool) Name() string        { return s.name }
func (s stubTool) Endpoint() string    { return s.endpoint }
func (s stubTool) Description() string { return "a stub tool" }
func (s stubTool) Schema() registry.Schema {
	return registry.Schema{
		Type:                 "object",
		Properties:           map[string]any{"url": map[string]any{"type": "string"}},
		AdditionalProperties: false,
	}
}
func (s stubTool) Capabilities() registry.Capabilities {
	return registry.Capabilities{RequiresAuth: s.requires, Retryable: s.retry, TimeoutMs: 1000}
}
func (s stubTool) Execute(ctx context.Context, params map[string]any) (registry.Result, error) {
	return registry.Ok(map[string]any{"text": "hello"}), nil
}
func (s stubTool) Validate(params map[string]any) registry.ValidationResult {
	return registry.ValidationResult{Valid: true}
}
func (s stubTool) GetStatus() registry.Status {
	return registry.Status{Healthy: true}
}

func newTestHandler() (*Handler, *registry.Registry) {
	reg := registry.New()
	_ = reg.Register(stubTool{name: "browser_navigate", endpoint: "/tools/browser_navigate", retry: true})
	_ = reg.Register(stubTool{name: "browser_evaluate", endpoint: "/tools/browser_evaluate", retry: true})
	return NewHandler(reg, "browsergate", "0.1.0", nil), reg
}

func mustResp(t *testing.T, raw []byte) JSONRPCResponse {
	t.Helper()
	var resp JSONRPCResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("response did not parse as JSON-RPC: %v\nraw: %s", err, raw)
	}
	return resp
}

func TestToolsRequireInitializeFirst(t *testing.T) {
	h, _ := newTestHandler()
	resp := mustResp(t, h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)))
	if resp.Error == nil || resp.Error.Code != CodeServerNotInitialized {
		t.Fatalf("expected -32099 before initialize, got %+v", resp.Error)
	}
}

func TestInitializeTransitionsToReady(t *testing.T) {
	h, _ := newTestHandler()
	resp := mustResp(t, h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`)))
	if resp.Error != nil {
		t.Fatalf("initialize failed: %+v", resp.Error)
	}
	if h.State() != StateReady {
		t.Fatalf("state = %v, want READY", h.State())
	}

	var result MCPInitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("bad initialize result: %v", err)
	}
	if result.ProtocolVersion != serverProtocolVersion {
		t.Errorf("ProtocolVersion = %q, want %q", result.ProtocolVersion, serverProtocolVersion)
	}
	if result.Capabilities.Prompts == nil || result.Capabilities.Logging == nil {
		t.Error("expected prompts and logging capabilities to be present")
	}
}

func TestToolsListAfterInitializeListsHealthyTools(t *testing.T) {
	h, _ := newTestHandler()
	h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))

	resp := mustResp(t, h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)))
	if resp.Error != nil {
		t.Fatalf("tools/list failed: %+v", resp.Error)
	}
	var result MCPToolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("bad tools/list result: %v", err)
	}
	if len(result.Tools) != 2 {
		t.Fatalf("len(tools) = %d, want 2", len(result.Tools))
	}
	var evaluate *MCPTool
	for i := range result.Tools {
		if result.Tools[i].Name == "browser_evaluate" {
			evaluate = &result.Tools[i]
		}
	}
	if evaluate == nil {
		t.Fatal("browser_evaluate missing from tools/list")
	}
	if evaluate.Title != "Browser Evaluate" {
		t.Errorf("Title = %q, want %q", evaluate.Title, "Browser Evaluate")
	}
	if evaluate.Annotations["warning"] == "" {
		t.Error("expected browser_evaluate to carry the arbitrary-JS warning annotation")
	}
}

func TestToolsCallRoutesAndShapesTextContent(t *testing.T) {
	h, _ := newTestHandler()
	h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))

	resp := mustResp(t, h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"browser_navigate","arguments":{"url":"https://example.com"}}}`)))
	if resp.Error != nil {
		t.Fatalf("tools/call failed: %+v", resp.Error)
	}
	var result MCPToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("bad tools/call result: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success result")
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hello" {
		t.Errorf("content = %+v, want text block \"hello\"", result.Content)
	}
}

func TestToolsCallAppendsWarningForUnknownArgument(t *testing.T) {
	h, _ := newTestHandler()
	h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))

	resp := mustResp(t, h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"browser_navigate","arguments":{"url":"https://example.com","typo_param":true}}}`)))
	if resp.Error != nil {
		t.Fatalf("tools/call failed: %+v", resp.Error)
	}
	var result MCPToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("bad tools/call result: %v", err)
	}
	if len(result.Content) != 2 {
		t.Fatalf("content = %+v, want a result block plus a warnings block", result.Content)
	}
	if !strings.Contains(result.Content[1].Text, "typo_param") {
		t.Errorf("warning block = %q, want it to name the unknown parameter", result.Content[1].Text)
	}
}

func TestToolsCallUnknownToolIsInvalidParams(t *testing.T) {
	h, _ := newTestHandler()
	h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))

	resp := mustResp(t, h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"does_not_exist"}}`)))
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected -32602 for unknown tool, got %+v", resp.Error)
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	h, _ := newTestHandler()
	resp := mustResp(t, h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"bogus/method"}`)))
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected -32601, got %+v", resp.Error)
	}
}

func TestMalformedJSONReturnsParseError(t *testing.T) {
	h, _ := newTestHandler()
	resp := mustResp(t, h.HandleRaw(context.Background(), []byte(`{not json`)))
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Fatalf("expected -32700, got %+v", resp.Error)
	}
	if resp.ID != nil {
		t.Errorf("parse error response id = %v, want nil", resp.ID)
	}
}

func TestInvalidRequestShapeReturnsInvalidRequest(t *testing.T) {
	h, _ := newTestHandler()
	resp := mustResp(t, h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"1.0","id":1,"method":"initialize"}`)))
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected -32600 for bad jsonrpc version, got %+v", resp.Error)
	}
}

func TestNotificationProducesNoResponse(t *testing.T) {
	h, _ := newTestHandler()
	h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	out := h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","method":"initialized"}`))
	if out != nil {
		t.Errorf("expected nil response for a notification, got %s", out)
	}
}

func TestListToolsMatchesToolsListHealthyFilter(t *testing.T) {
	h, _ := newTestHandler()
	summaries := h.ListTools()
	if len(summaries) != 2 {
		t.Fatalf("len(ListTools()) = %d, want 2", len(summaries))
	}
}

func TestExecuteToolRoutesByResolvedEndpoint(t *testing.T) {
	h, _ := newTestHandler()
	result := h.ExecuteTool(context.Background(), "browser_navigate", map[string]any{"url": "https://example.com"})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestExecuteToolUnknownNameIsValidationFailure(t *testing.T) {
	h, _ := newTestHandler()
	result := h.ExecuteTool(context.Background(), "does_not_exist", nil)
	if result.Success || result.ErrorType != registry.ErrValidation {
		t.Fatalf("expected VALIDATION failure, got %+v", result)
	}
}

func TestShutdownRejectsSubsequentCalls(t *testing.T) {
	h, _ := newTestHandler()
	h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	resp := mustResp(t, h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"shutdown"}`)))
	if resp.Error != nil {
		t.Fatalf("shutdown failed: %+v", resp.Error)
	}
	if h.State() != StateShutDown {
		t.Fatalf("state = %v, want SHUT_DOWN", h.State())
	}

	resp = mustResp(t, h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)))
	if resp.Error == nil || resp.Error.Code != CodeServerNotInitialized {
		t.Fatalf("expected error calling tools/list after shutdown, got %+v", resp.Error)
	}
}
