package qualitygate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brennhill/browsergate/internal/registry"
)

type gateTool struct {
	name        string
	endpoint    string
	description string
	execDelay   time.Duration
	execFail    bool
	validateAll bool // always reports Valid:true, regardless of input — the "no real validation" case
}

func (g gateTool) Name() string        { return g.name }
func (g gateTool) Endpoint() string    { return g.endpoint }
func (g gateTool) Description() string { return g.description }
func (g gateTool) Schema() registry.Schema {
	return registry.Schema{Type: "object", Properties: map[string]any{}}
}
func (g gateTool) Capabilities() registry.Capabilities { return registry.Capabilities{} }
func (g gateTool) Execute(ctx context.Context, params map[string]any) (registry.Result, error) {
	if g.execDelay > 0 {
		time.Sleep(g.execDelay)
	}
	if g.execFail {
		return registry.Fail(registry.NewErrorContext(registry.ErrExecution, "boom")), nil
	}
	return registry.Ok(map[string]any{"ok": true}), nil
}
func (g gateTool) Validate(params map[string]any) registry.ValidationResult {
	if g.validateAll {
		return registry.ValidationResult{Valid: true}
	}
	if _, dangerous := dangerousParams[firstKey(params)]; dangerous {
		return registry.ValidationResult{Valid: false, Errors: []string{"rejected dangerous parameter"}}
	}
	return registry.ValidationResult{Valid: true}
}
func (g gateTool) GetStatus() registry.Status { return registry.Status{Healthy: true} }

func firstKey(m map[string]any) string {
	for k := range m {
		return k
	}
	return ""
}

func validTool() gateTool {
	return gateTool{name: "browser_navigate", endpoint: "/tools/browser_navigate", description: "navigates"}
}

func TestInterfaceComplianceValidToolScoresFull(t *testing.T) {
	result := InterfaceCompliance(validTool())
	require.True(t, result.Valid)
	require.Equal(t, 100.0, result.Score)
	require.Empty(t, result.Errors)
}

func TestInterfaceComplianceFlagsEmptyName(t *testing.T) {
	tool := validTool()
	tool.name = ""
	result := InterfaceCompliance(tool)
	require.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
}

func TestInterfaceComplianceFlagsEndpointNotStartingWithSlash(t *testing.T) {
	tool := validTool()
	tool.endpoint = "tools/browser_navigate"
	result := InterfaceCompliance(tool)
	require.False(t, result.Valid)
}

func TestPerformanceFastExecutionScores95(t *testing.T) {
	result := Performance(context.Background(), validTool(), nil)
	require.True(t, result.Valid)
	require.Equal(t, 95.0, result.Score)
}

func TestPerformanceFailingExecutionFailsGate(t *testing.T) {
	tool := validTool()
	tool.execFail = true
	result := Performance(context.Background(), tool, nil)
	require.False(t, result.Valid)
	require.Equal(t, 0.0, result.Score)
}

func TestSecurityRejectsDangerousParamsScoresFull(t *testing.T) {
	result := Security(validTool())
	require.True(t, result.Valid)
	require.Equal(t, 100.0, result.Score)
}

func TestSecurityPenalizesToolThatAcceptsEverything(t *testing.T) {
	tool := validTool()
	tool.validateAll = true
	result := Security(tool)
	require.False(t, result.Valid)
	require.Less(t, result.Score, 100.0)
	require.NotEmpty(t, result.Errors)
}

func TestRunAveragesScoresAndAndsValidity(t *testing.T) {
	result := Run(context.Background(), validTool(), nil)
	require.True(t, result.Valid)
	require.InDelta(t, 98.3, result.Score, 1.0)
}

func TestRunFailsCompositeWhenAnyGateFails(t *testing.T) {
	tool := validTool()
	tool.validateAll = true
	result := Run(context.Background(), tool, nil)
	require.False(t, result.Valid)
}
