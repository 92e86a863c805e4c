// Package registry holds the Tool contract and the Tool Registry: the
// single routing authority every MCP and HTTP ingress path converges
// on (spec.md §2, §4.1).
package registry

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// ErrorType is the tagged taxonomy every error crossing a component
// boundary carries (spec.md §3.4). It is a field, not an exception
// hierarchy — recoverability rides along with it.
type ErrorType string

const (
	ErrValidation     ErrorType = "VALIDATION"
	ErrExecution      ErrorType = "EXECUTION"
	ErrTimeout        ErrorType = "TIMEOUT"
	ErrConnection     ErrorType = "CONNECTION"
	ErrAuthentication ErrorType = "AUTHENTICATION"
	ErrRateLimit      ErrorType = "RATE_LIMIT"
	ErrInternal       ErrorType = "INTERNAL"
)

// recoverableTypes are the error types spec.md §7 marks retryable.
var recoverableTypes = map[ErrorType]bool{
	ErrTimeout:    true,
	ErrConnection: true,
	ErrRateLimit:  true,
}

// ErrorContext is the structured error payload carried by a failing
// Result.
type ErrorContext struct {
	Type        ErrorType      `json:"type"`
	Message     string         `json:"message"`
	Code        string         `json:"code,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Recoverable bool           `json:"recoverable"`
}

// NewErrorContext builds an ErrorContext, deriving Recoverable from the
// error type's default per spec.md §7.
func NewErrorContext(t ErrorType, message string) *ErrorContext {
	return &ErrorContext{
		Type:        t,
		Message:     message,
		Timestamp:   time.Now(),
		Recoverable: recoverableTypes[t],
	}
}

// WithDetails attaches a details map and returns the same context for
// chaining.
func (e *ErrorContext) WithDetails(details map[string]any) *ErrorContext {
	e.Details = details
	return e
}

// WithCode attaches a code and returns the same context for chaining.
func (e *ErrorContext) WithCode(code string) *ErrorContext {
	e.Code = code
	return e
}

// Result is the uniform shape returned by Tool.execute and by the
// Registry itself when routing fails (spec.md §3.3).
type Result struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorType ErrorType      `json:"errorType,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Ok builds a successful Result.
func Ok(data any) Result {
	return Result{Success: true, Data: data, Timestamp: time.Now()}
}

// Fail builds a failing Result from an ErrorContext.
func Fail(ec *ErrorContext) Result {
	return Result{
		Success:   false,
		Error:     ec.Message,
		ErrorType: ec.Type,
		Metadata:  map[string]any{"code": ec.Code, "details": ec.Details, "recoverable": ec.Recoverable},
		Timestamp: time.Now(),
	}
}

// ValidationResult is returned by Tool.Validate.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Status is returned by Tool.GetStatus.
type Status struct {
	Healthy         bool      `json:"healthy"`
	LastUsed        time.Time `json:"lastUsed,omitempty"`
	ExecutionCount  int64     `json:"executionCount"`
	AvgExecutionMs  float64   `json:"avgExecutionTime"`
	ErrorRate       float64   `json:"errorRate"`
}

// Capabilities describes a tool's contract-level behavior flags
// (spec.md §3.1).
type Capabilities struct {
	Async         bool `json:"async"`
	TimeoutMs     int  `json:"timeout_ms"`
	Retryable     bool `json:"retryable"`
	Batchable     bool `json:"batchable"`
	RequiresAuth  bool `json:"requiresAuth"`
}

// defaultTimeoutMs is applied when a tool declares no TimeoutMs
// (spec.md §5: "default 30000 ms if unspecified").
const defaultTimeoutMs = 30000

// Timeout returns the tool's configured timeout, or the 30s default.
func (c Capabilities) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return defaultTimeoutMs * time.Millisecond
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Schema is the JSON-Schema-shaped input descriptor a tool declares
// (spec.md §3.1).
type Schema struct {
	Type                 string         `json:"type"`
	Properties           map[string]any `json:"properties"`
	Required             []string       `json:"required,omitempty"`
	AdditionalProperties bool           `json:"additionalProperties"`
}

// AsMap renders the schema the way the MCP wire format and the
// mcp package's ValidateParamsAgainstSchema helper expect.
func (s Schema) AsMap() map[string]any {
	m := map[string]any{
		"type":                 s.Type,
		"properties":           s.Properties,
		"additionalProperties": s.AdditionalProperties,
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	return m
}

// Tool is the capability set every registered plugin must satisfy:
// polymorphic over {execute, validate, status} (spec.md §9). Tool
// *implementations* are out of scope for this server — navigate,
// screenshot, evaluate, and friends are external collaborators that
// merely have to honor this interface; internal/tools/examples ships
// a few minimal ones to exercise the fabric end to end.
type Tool interface {
	Name() string
	Endpoint() string
	Description() string
	Schema() Schema
	Capabilities() Capabilities

	Execute(ctx context.Context, params map[string]any) (Result, error)
	Validate(params map[string]any) ValidationResult
	GetStatus() Status
}

// Category derives the tool category from the name prefix before the
// first underscore, or "general" if there is none (spec.md §3.1).
func Category(name string) string {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return "general"
	}
	return name[:idx]
}

// DecodeParams is a convenience for Tool implementations that want a
// typed params struct instead of working with the map[string]any the
// Execute/Validate contract passes. It round-trips through JSON so the
// struct's `json` tags apply the same as they would to any other
// payload.
func DecodeParams(params map[string]any, v any) error {
	if len(params) == 0 {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
