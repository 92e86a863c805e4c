package examples

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/brennhill/browsergate/internal/registry"
)

// ScreenshotParams is the browser_screenshot input shape.
type ScreenshotParams struct {
	FullPage bool   `json:"fullPage,omitempty" jsonschema:"description=Capture the full scrollable page instead of the viewport"`
	Format   string `json:"format,omitempty" jsonschema:"enum=png,enum=jpeg,description=Image encoding"`
}

// onePixelPNG is a minimal valid 1x1 transparent PNG, stood in for the
// bytes a real screenshot would capture.
const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNk+A8AAQUBAScY42YAAAAASUVORK5CYII="

// Screenshot is a reference registry.Tool returning a fixed 1x1 PNG
// so callers can exercise the MCP image content-block shaping path
// without a real browser attached.
type Screenshot struct {
	executions int64
}

// NewScreenshot constructs the browser_screenshot example tool.
func NewScreenshot() *Screenshot { return &Screenshot{} }

func (s *Screenshot) Name() string     { return "browser_screenshot" }
func (s *Screenshot) Endpoint() string { return "/tools/browser_screenshot" }
func (s *Screenshot) Description() string {
	return "Captures a screenshot of the active page."
}

func (s *Screenshot) Schema() registry.Schema {
	return schemaFromStruct(ScreenshotParams{})
}

func (s *Screenshot) Capabilities() registry.Capabilities {
	return registry.Capabilities{TimeoutMs: 15000, Retryable: true}
}

func (s *Screenshot) Validate(params map[string]any) registry.ValidationResult {
	var p ScreenshotParams
	if err := registry.DecodeParams(params, &p); err != nil {
		return registry.ValidationResult{Valid: false, Errors: []string{"params did not match browser_screenshot schema: " + err.Error()}}
	}
	if p.Format != "" && p.Format != "png" && p.Format != "jpeg" {
		return registry.ValidationResult{Valid: false, Errors: []string{"format must be png or jpeg"}}
	}
	return registry.ValidationResult{Valid: true}
}

func (s *Screenshot) Execute(ctx context.Context, params map[string]any) (registry.Result, error) {
	s.executions++
	if vr := s.Validate(params); !vr.Valid {
		return registry.Fail(registry.NewErrorContext(registry.ErrValidation, vr.Errors[0])), nil
	}
	if _, err := base64.StdEncoding.DecodeString(onePixelPNG); err != nil {
		return registry.Fail(registry.NewErrorContext(registry.ErrInternal, "failed to decode placeholder screenshot")), nil
	}
	return registry.Ok(map[string]any{"screenshot": onePixelPNG}), nil
}

func (s *Screenshot) GetStatus() registry.Status {
	return registry.Status{Healthy: true, LastUsed: time.Now(), ExecutionCount: s.executions}
}
