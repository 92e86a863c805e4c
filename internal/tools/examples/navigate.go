package examples

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/brennhill/browsergate/internal/registry"
)

// NavigateParams is the browser_navigate input shape.
type NavigateParams struct {
	URL       string `json:"url" jsonschema:"required,description=Absolute URL to navigate the page to"`
	TimeoutMs int    `json:"timeoutMs,omitempty" jsonschema:"description=Navigation timeout in milliseconds"`
}

// Navigate is a reference registry.Tool: it validates that params look
// like a navigable URL and reports success without driving any real
// browser. An actual implementation lives in an external collaborator
// process (spec.md §1).
type Navigate struct {
	executions int64
	failures   int64
}

// NewNavigate constructs the browser_navigate example tool.
func NewNavigate() *Navigate { return &Navigate{} }

func (n *Navigate) Name() string     { return "browser_navigate" }
func (n *Navigate) Endpoint() string { return "/tools/browser_navigate" }
func (n *Navigate) Description() string {
	return "Navigates the active page to the given URL."
}

func (n *Navigate) Schema() registry.Schema {
	s := schemaFromStruct(NavigateParams{})
	s.Required = []string{"url"}
	return s
}

func (n *Navigate) Capabilities() registry.Capabilities {
	return registry.Capabilities{TimeoutMs: 30000, Retryable: true}
}

func (n *Navigate) Validate(params map[string]any) registry.ValidationResult {
	var p NavigateParams
	if err := registry.DecodeParams(params, &p); err != nil {
		return registry.ValidationResult{Valid: false, Errors: []string{"params did not match browser_navigate schema: " + err.Error()}}
	}
	if p.URL == "" {
		return registry.ValidationResult{Valid: false, Errors: []string{"url is required"}}
	}
	parsed, err := url.Parse(p.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return registry.ValidationResult{Valid: false, Errors: []string{"url must be an absolute http(s) URL"}}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return registry.ValidationResult{Valid: false, Errors: []string{"url scheme must be http or https"}}
	}
	return registry.ValidationResult{Valid: true}
}

func (n *Navigate) Execute(ctx context.Context, params map[string]any) (registry.Result, error) {
	n.executions++
	if vr := n.Validate(params); !vr.Valid {
		n.failures++
		return registry.Fail(registry.NewErrorContext(registry.ErrValidation, vr.Errors[0])), nil
	}
	var p NavigateParams
	_ = registry.DecodeParams(params, &p)
	return registry.Ok(map[string]any{
		"text": fmt.Sprintf("navigated to %s", p.URL),
		"url":  p.URL,
	}), nil
}

func (n *Navigate) GetStatus() registry.Status {
	var errRate float64
	if n.executions > 0 {
		errRate = float64(n.failures) / float64(n.executions)
	}
	return registry.Status{
		Healthy:        true,
		LastUsed:       time.Now(),
		ExecutionCount: n.executions,
		ErrorRate:      errRate,
	}
}
