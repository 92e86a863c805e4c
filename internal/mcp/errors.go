// errors.go — JSON-RPC protocol error codes and the structured error
// embedding used inside tool-call results.
package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/brennhill/browsergate/internal/registry"
)

// JSON-RPC 2.0 protocol error codes (spec.md §4.2). These are used for
// failures in the envelope itself — malformed JSON, a request shape
// the spec doesn't recognize, an unknown method, bad params, or a call
// made before initialize completes. A failing tool execution is NOT
// one of these: per the MCP convention, it's a normal JSON-RPC success
// response whose result carries isError:true (see shapeToolResult).
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternalError        = -32603
	CodeServerNotInitialized = -32099
)

// StructuredError is the self-describing error object embedded as the
// text content of a failing tool result. Every field tells the caller
// what went wrong and whether retrying is worthwhile, without a
// separate lookup table.
type StructuredError struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	Retry        string `json:"retry"`
	Retryable    bool   `json:"retryable"`
	RetryAfterMs int    `json:"retry_after_ms,omitempty"`
	Param        string `json:"param,omitempty"`
	Hint         string `json:"hint,omitempty"`
}

// retryAfterForType gives a default backoff suggestion per error type
// (spec.md §7: recoverable types carry a retry hint, others don't).
func retryAfterForType(t registry.ErrorType) int {
	switch t {
	case registry.ErrTimeout:
		return 2000
	case registry.ErrConnection:
		return 1000
	case registry.ErrRateLimit:
		return 5000
	default:
		return 0
	}
}

// StructuredErrorResponse builds the MCPToolResult for a failing tool
// call from a registry.ErrorContext, matching the error taxonomy the
// registry and the MCP layer share.
func StructuredErrorResponse(ec *registry.ErrorContext, opts ...func(*StructuredError)) MCPToolResult {
	se := StructuredError{
		Error:        string(ec.Type),
		Message:      ec.Message,
		Retryable:    ec.Recoverable,
		RetryAfterMs: retryAfterForType(ec.Type),
	}
	if se.Retryable {
		se.Retry = "Retry the call; this condition is expected to clear."
	} else {
		se.Retry = "Do not retry without changing the input or configuration."
	}
	for _, opt := range opts {
		opt(&se)
	}

	seJSON, _ := json.Marshal(se) // StructuredError has no unsupported field types
	text := fmt.Sprintf("Error: %s — %s\n%s", se.Error, se.Retry, string(seJSON))

	return MCPToolResult{
		Content: []MCPContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

// WithParam attaches the offending parameter name to a StructuredError.
func WithParam(p string) func(*StructuredError) {
	return func(se *StructuredError) { se.Param = p }
}

// WithHint attaches a human-readable hint to a StructuredError.
func WithHint(h string) func(*StructuredError) {
	return func(se *StructuredError) { se.Hint = h }
}

// ProtocolError builds the json-rpc top-level error object for a
// protocol-level failure (not a tool result).
func ProtocolError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}
