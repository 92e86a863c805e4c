// Package foundation assembles Logger, Metrics, Monitor, Registry,
// HTTP Bridge, and MCP Handler into the one object a CLI entrypoint
// drives: construction, start/stop lifecycle, and health aggregation
// (spec.md §4.6).
package foundation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brennhill/browsergate/internal/httpbridge"
	"github.com/brennhill/browsergate/internal/logging"
	"github.com/brennhill/browsergate/internal/mcp"
	"github.com/brennhill/browsergate/internal/metrics"
	"github.com/brennhill/browsergate/internal/qualitygate"
	"github.com/brennhill/browsergate/internal/registry"
)

// Config enumerates the four knobs spec.md §4.6 names, plus the
// feature toggles §4.6 reserves for tying into monitor construction.
type Config struct {
	LogLevel         string
	ServerName       string
	ServerVersion    string
	HTTPPort         int // 0 means "bridge is not started"
	EnableMetrics    bool
	EnableMonitoring bool
	LogFilePath      string
}

func (c Config) withDefaults() Config {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ServerName == "" {
		c.ServerName = "browsergate"
	}
	if c.ServerVersion == "" {
		c.ServerVersion = "0.1.0"
	}
	return c
}

// ErrAlreadyStarted is returned by Start on a Foundation that is
// already running (spec.md §4.6: "start() is idempotent in the sense
// that a second call on a started instance raises 'already started'").
var ErrAlreadyStarted = errors.New("foundation: already started")

// Foundation is the assembled, lifecycle-managed set of components
// (spec.md glossary: "Foundation").
type Foundation struct {
	cfg Config

	Logger   *zap.Logger
	Monitor  *metrics.Collector
	Registry *registry.Registry
	Handler  *mcp.Handler
	Bridge   *httpbridge.Bridge

	mu      sync.Mutex
	started bool
}

// New constructs every component and wires them together, but does
// not start the bridge or the registry's background health loop —
// call Start for that.
func New(cfg Config) (*Foundation, error) {
	cfg = cfg.withDefaults()

	log, err := logging.New(logging.Config{LogLevel: cfg.LogLevel, FilePath: cfg.LogFilePath})
	if err != nil {
		return nil, fmt.Errorf("foundation: failed to construct logger: %w", err)
	}

	var monitor *metrics.Collector
	if cfg.EnableMetrics || cfg.EnableMonitoring {
		monitor = metrics.New()
	}

	regOpts := []registry.Option{registry.WithLogger(log)}
	if monitor != nil {
		regOpts = append(regOpts, registry.WithMonitor(monitor))
	}
	reg := registry.New(regOpts...)

	handler := mcp.NewHandler(reg, cfg.ServerName, cfg.ServerVersion, log)

	bridgeOpts := []httpbridge.Option{httpbridge.WithLogger(log)}
	if monitor != nil {
		bridgeOpts = append(bridgeOpts, httpbridge.WithMonitor(monitor))
	}
	bridge := httpbridge.New(reg, handler, bridgeOpts...)

	return &Foundation{
		cfg:      cfg,
		Logger:   log,
		Monitor:  monitor,
		Registry: reg,
		Handler:  handler,
		Bridge:   bridge,
	}, nil
}

// RegisterTool registers t with the underlying Registry before Start,
// so it is discoverable the moment the bridge/MCP surface comes up,
// then runs the quality-gate evaluation (spec.md §4.7) out-of-band and
// logs its score. The gate never affects registration's outcome — a
// low score is logged, not rejected.
func (f *Foundation) RegisterTool(t registry.Tool) error {
	if err := f.Registry.Register(t); err != nil {
		return err
	}

	result := qualitygate.Run(context.Background(), t, map[string]any{})
	f.Logger.Info("foundation: quality gate evaluated",
		zap.String("tool", t.Name()),
		zap.Bool("valid", result.Valid),
		zap.Float64("score", result.Score),
		zap.Strings("errors", result.Errors))
	return nil
}

// Start brings up the registry's background health loop and, if
// cfg.HTTPPort is non-zero, the HTTP Bridge (spec.md §4.6: "if
// omitted, bridge is not started"). Calling Start twice on an already
// started Foundation returns ErrAlreadyStarted.
func (f *Foundation) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return ErrAlreadyStarted
	}

	f.Registry.StartHealthLoop(ctx)

	if f.cfg.HTTPPort != 0 {
		if err := f.Bridge.Start(f.cfg.HTTPPort); err != nil {
			f.Registry.Stop()
			return fmt.Errorf("foundation: failed to start http bridge: %w", err)
		}
	}

	f.started = true
	f.Logger.Info("foundation: started",
		zap.String("serverName", f.cfg.ServerName),
		zap.String("serverVersion", f.cfg.ServerVersion),
		zap.Int("httpPort", f.cfg.HTTPPort))
	return nil
}

// Stop is idempotent: calling it when not started is a no-op (spec.md
// §4.6). It stops the registry's health loop and, if running, the
// HTTP Bridge, waiting for in-flight handlers (spec.md §5's
// cancellation contract).
func (f *Foundation) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return nil
	}

	f.Registry.Stop()
	err := f.Bridge.Stop(ctx)
	f.started = false
	f.Logger.Info("foundation: stopped")
	return err
}

// Health is the foundation-level aggregate GetHealth returns.
type Health struct {
	Healthy  bool                   `json:"healthy"`
	Registry registry.HealthSummary `json:"registry"`
	Bridge   httpbridge.Status      `json:"bridge"`
}

// GetHealth aggregates registry health and bridge status, marking the
// foundation healthy iff every component reports healthy (spec.md
// §4.6). A bridge that was never started (httpPort omitted) is
// treated as healthy — it has no failure mode to report.
func (f *Foundation) GetHealth(ctx context.Context) Health {
	regHealth := f.Registry.GetHealth(ctx)
	bridgeStatus := f.Bridge.GetStatus()

	healthy := regHealth.TotalTools == regHealth.HealthyTools
	if bridgeStatus.Running {
		healthy = healthy && bridgeStatus.ErrorRate < 1.0
	}

	return Health{Healthy: healthy, Registry: regHealth, Bridge: bridgeStatus}
}

// Uptime is a convenience for callers that only need the bridge's
// reported uptime without the full Health aggregate.
func (f *Foundation) Uptime() time.Duration {
	return time.Duration(f.Bridge.GetStatus().UptimeMs) * time.Millisecond
}
