package foundation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brennhill/browsergate/internal/registry"
	"github.com/brennhill/browsergate/internal/tools/examples"
)

// stubTool is a minimal registry.Tool whose health is configurable,
// used to exercise GetHealth's aggregation rule.
type stubTool struct {
	name    string
	healthy bool
}

func (s stubTool) Name() string        { return s.name }
func (s stubTool) Endpoint() string    { return "/tools/" + s.name }
func (s stubTool) Description() string { return "stub" }
func (s stubTool) Schema() registry.Schema {
	return registry.Schema{Type: "object", Properties: map[string]any{}}
}
func (s stubTool) Capabilities() registry.Capabilities { return registry.Capabilities{} }
func (s stubTool) Execute(ctx context.Context, params map[string]any) (registry.Result, error) {
	return registry.Ok(map[string]any{}), nil
}
func (s stubTool) Validate(params map[string]any) registry.ValidationResult {
	return registry.ValidationResult{Valid: true}
}
func (s stubTool) GetStatus() registry.Status { return registry.Status{Healthy: s.healthy} }

func TestNewConstructsAllComponents(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	require.NotNil(t, f.Logger)
	require.NotNil(t, f.Registry)
	require.NotNil(t, f.Handler)
	require.NotNil(t, f.Bridge)
	require.Nil(t, f.Monitor, "monitor should not be constructed unless enabled")
}

func TestNewWithMetricsEnabledConstructsMonitor(t *testing.T) {
	f, err := New(Config{EnableMetrics: true})
	require.NoError(t, err)
	require.NotNil(t, f.Monitor)
}

func TestRegisterToolMakesItDiscoverable(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, f.RegisterTool(examples.NewNavigate()))

	_, ok := f.Registry.GetTool("browser_navigate")
	require.True(t, ok)
}

func TestStartWithoutHTTPPortLeavesBridgeUnstarted(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)

	require.NoError(t, f.Start(context.Background()))
	defer f.Stop(context.Background())

	require.False(t, f.Bridge.GetStatus().Running)
}

func TestStartWithHTTPPortStartsBridge(t *testing.T) {
	f, err := New(Config{HTTPPort: 18351})
	require.NoError(t, err)

	require.NoError(t, f.Start(context.Background()))
	defer f.Stop(context.Background())

	require.True(t, f.Bridge.GetStatus().Running)
}

func TestStartTwiceReturnsAlreadyStarted(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)

	require.NoError(t, f.Start(context.Background()))
	defer f.Stop(context.Background())

	require.ErrorIs(t, f.Start(context.Background()), ErrAlreadyStarted)
}

func TestStopWithoutStartIsNoOp(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, f.Stop(context.Background()))
}

func TestStopIsIdempotent(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))
	require.NoError(t, f.Stop(context.Background()))
	require.NoError(t, f.Stop(context.Background()))
}

func TestGetHealthHealthyWhenNoToolsRegistered(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	health := f.GetHealth(context.Background())
	require.True(t, health.Healthy)
}

func TestGetHealthReflectsUnhealthyTool(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, f.RegisterTool(stubTool{name: "browser_broken", healthy: false}))

	health := f.GetHealth(context.Background())
	require.False(t, health.Healthy)
}
