package examples

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brennhill/browsergate/internal/registry"
)

// EvaluateParams is the browser_evaluate input shape.
type EvaluateParams struct {
	Script string `json:"script" jsonschema:"required,description=JavaScript expression to evaluate in the page context"`
}

// bannedSubstrings lists a handful of obviously hostile patterns (the
// sanitizer's string step strips only the <script one); Validate rejects them
// outright rather than silently sanitizing, since browser_evaluate
// runs arbitrary script by design and deserves a harder gate.
var bannedSubstrings = []string{"<script", "document.cookie", "eval("}

// Evaluate is a reference registry.Tool standing in for arbitrary
// script execution. Capabilities().RequiresAuth is true and the MCP
// handler layers an explicit warning annotation onto this tool's
// tools/list entry (spec.md §4.2).
type Evaluate struct {
	executions int64
	failures   int64
}

// NewEvaluate constructs the browser_evaluate example tool.
func NewEvaluate() *Evaluate { return &Evaluate{} }

func (e *Evaluate) Name() string     { return "browser_evaluate" }
func (e *Evaluate) Endpoint() string { return "/tools/browser_evaluate" }
func (e *Evaluate) Description() string {
	return "Evaluates a JavaScript expression in the page context and returns its result."
}

func (e *Evaluate) Schema() registry.Schema {
	s := schemaFromStruct(EvaluateParams{})
	s.Required = []string{"script"}
	return s
}

func (e *Evaluate) Capabilities() registry.Capabilities {
	return registry.Capabilities{TimeoutMs: 10000, RequiresAuth: true}
}

func (e *Evaluate) Validate(params map[string]any) registry.ValidationResult {
	var p EvaluateParams
	if err := registry.DecodeParams(params, &p); err != nil {
		return registry.ValidationResult{Valid: false, Errors: []string{"params did not match browser_evaluate schema: " + err.Error()}}
	}
	if strings.TrimSpace(p.Script) == "" {
		return registry.ValidationResult{Valid: false, Errors: []string{"script is required"}}
	}
	lower := strings.ToLower(p.Script)
	for _, banned := range bannedSubstrings {
		if strings.Contains(lower, banned) {
			return registry.ValidationResult{Valid: false, Errors: []string{"script contains a disallowed pattern: " + banned}}
		}
	}
	return registry.ValidationResult{Valid: true}
}

func (e *Evaluate) Execute(ctx context.Context, params map[string]any) (registry.Result, error) {
	e.executions++
	vr := e.Validate(params)
	if !vr.Valid {
		e.failures++
		return registry.Fail(registry.NewErrorContext(registry.ErrValidation, vr.Errors[0])), nil
	}
	var p EvaluateParams
	_ = registry.DecodeParams(params, &p)
	return registry.Ok(map[string]any{
		"text": fmt.Sprintf("evaluated: %s", p.Script),
	}), nil
}

func (e *Evaluate) GetStatus() registry.Status {
	var errRate float64
	if e.executions > 0 {
		errRate = float64(e.failures) / float64(e.executions)
	}
	return registry.Status{Healthy: true, LastUsed: time.Now(), ExecutionCount: e.executions, ErrorRate: errRate}
}
