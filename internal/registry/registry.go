package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brennhill/browsergate/internal/buffers"
	"github.com/brennhill/browsergate/internal/sanitize"
)

// Monitor is the narrow metrics surface the Registry needs. It is
// defined here (rather than imported from internal/metrics) so this
// package has no dependency on the concrete Prometheus wiring — any
// collector satisfying this shape can be plugged in, and a nil Monitor
// is a safe no-op.
type Monitor interface {
	IncCounter(name string, tags map[string]string)
	ObserveTiming(name string, ms float64, tags map[string]string)
}

type nopMonitor struct{}

func (nopMonitor) IncCounter(string, map[string]string)             {}
func (nopMonitor) ObserveTiming(string, float64, map[string]string) {}

// HistoryLimit is the default capacity of the completed-request ring
// each Registry keeps (spec.md §4.1).
const HistoryLimit = 500

// healthRefreshInterval is the background cadence of the cache refresh
// loop (spec.md §4.1: "every 60 seconds").
const healthRefreshInterval = 60 * time.Second

// healthStaleAfter is how old the last full health refresh may be
// before GetHealth forces a synchronous one instead of serving the
// cache (spec.md §4.1: "if now − lastHealthCheck > 30s, first refresh").
const healthStaleAfter = 30 * time.Second

// RequestRecord is one entry in the completed-request ring: a finished
// Route call, success or failure (spec.md §3.2).
type RequestRecord struct {
	ToolName   string
	Endpoint   string
	Success    bool
	ErrorType  ErrorType
	DurationMs int64
	Timestamp  time.Time
}

// healthEntry is one cached per-tool health observation.
type healthEntry struct {
	status  Status
	healthy bool
}

// ToolSummary is the read-only view of a registered tool returned by
// Discover/ListTools/GetToolsByCategory — no execute/validate methods,
// just metadata (spec.md §4.1).
type ToolSummary struct {
	Name         string         `json:"name"`
	Endpoint     string         `json:"endpoint"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Schema       map[string]any `json:"schema"`
	Capabilities Capabilities   `json:"capabilities"`
	Healthy      bool           `json:"healthy"`
}

// HealthSummary is the aggregate view returned by GetHealth (spec.md
// §4.1).
type HealthSummary struct {
	TotalTools         int       `json:"totalTools"`
	HealthyTools       int       `json:"healthyTools"`
	LastHealthCheck    time.Time `json:"lastHealthCheck"`
	AverageResponseTime float64  `json:"averageResponseTime"`
}

// Statistics is the aggregate counters view returned by GetStatistics.
type Statistics struct {
	ToolCount         int     `json:"toolCount"`
	RequestCount      int64   `json:"requestCount"`
	ErrorCount        int64   `json:"errorCount"`
	ErrorRate         float64 `json:"errorRate"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
}

// DiscoverFilter narrows Discover results. A zero-value filter matches
// everything. Capability matches if Capabilities()[Capability] is
// true — only "async", "retryable", "batchable", and "requiresAuth"
// are meaningful keys (spec.md §4.1).
type DiscoverFilter struct {
	Category    string
	Capability  string
	HealthyOnly bool
}

// Registry is the single routing authority: every MCP and HTTP ingress
// path looks tools up and calls them through here (spec.md §2, §4.1).
// The three indexes, insertion order, and healthCache are guarded by
// one RWMutex since register/unregister always mutate them together.
type Registry struct {
	log     *zap.Logger
	monitor Monitor

	mu         sync.RWMutex
	byName     map[string]Tool
	byEndpoint map[string]Tool
	byCategory map[string]map[string]struct{}
	order      []string // insertion order of names, for Discover's stable listing contract

	healthMu        sync.RWMutex
	healthCache     map[string]healthEntry
	lastHealthCheck time.Time
	breakers        map[string]*gobreaker.CircuitBreaker[Result]

	requestCount int64
	errorCount   int64
	totalRespMs  int64

	history *buffers.Ring[RequestRecord]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger overrides the registry's zap logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithMonitor overrides the registry's metrics sink.
func WithMonitor(m Monitor) Option {
	return func(r *Registry) { r.monitor = m }
}

// WithHistoryLimit overrides the completed-request ring capacity.
func WithHistoryLimit(n int) Option {
	return func(r *Registry) { r.history = buffers.NewRing[RequestRecord](n) }
}

// New constructs an empty Registry. Call StartHealthLoop to begin the
// background cache-refresh loop; callers that only need synchronous
// GetHealth calls (e.g. unit tests) can skip it.
func New(opts ...Option) *Registry {
	r := &Registry{
		log:         zap.NewNop(),
		monitor:     nopMonitor{},
		byName:      make(map[string]Tool),
		byEndpoint:  make(map[string]Tool),
		byCategory:  make(map[string]map[string]struct{}),
		healthCache: make(map[string]healthEntry),
		breakers:    make(map[string]*gobreaker.CircuitBreaker[Result]),
		history:     buffers.NewRing[RequestRecord](HistoryLimit),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool to all three indexes. Duplicate name or
// endpoint, or a malformed endpoint, is rejected without mutating
// anything (spec.md §4.1: "A tool registered with the same name as an
// existing one is rejected; empty endpoint or endpoint not starting
// with / is rejected at registration, not just at route time").
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("registry: nil tool")
	}
	name := t.Name()
	endpoint := t.Endpoint()
	if name == "" {
		return fmt.Errorf("registry: tool name must not be empty")
	}
	if !sanitize.Endpoint(endpoint) {
		return fmt.Errorf("registry: invalid endpoint %q for tool %q", endpoint, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("registry: tool %q already registered", name)
	}
	if _, exists := r.byEndpoint[endpoint]; exists {
		return fmt.Errorf("registry: endpoint %q already registered", endpoint)
	}

	r.byName[name] = t
	r.byEndpoint[endpoint] = t
	r.order = append(r.order, name)
	category := Category(name)
	if r.byCategory[category] == nil {
		r.byCategory[category] = make(map[string]struct{})
	}
	r.byCategory[category][name] = struct{}{}

	r.breakers[name] = newBreaker(name)

	initialStatus := t.GetStatus()
	r.healthMu.Lock()
	r.healthCache[name] = healthEntry{status: initialStatus, healthy: initialStatus.Healthy}
	r.healthMu.Unlock()

	r.log.Info("registry: tool registered", zap.String("tool", name), zap.String("category", category))
	r.monitor.IncCounter("registry.tool.registered", map[string]string{"tool": name, "category": category})
	return nil
}

// Unregister removes a tool from every index and the health cache
// atomically. Unregistering an unknown name returns an error rather
// than panicking, so a caller that races a duplicate unregister call
// fails safely.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("registry: tool %q not found", name)
	}
	delete(r.byName, name)
	delete(r.byEndpoint, t.Endpoint())
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	category := Category(name)
	if set, ok := r.byCategory[category]; ok {
		delete(set, name)
		if len(set) == 0 {
			delete(r.byCategory, category)
		}
	}
	delete(r.breakers, name)

	r.healthMu.Lock()
	delete(r.healthCache, name)
	r.healthMu.Unlock()

	r.log.Info("registry: tool unregistered", zap.String("tool", name))
	r.monitor.IncCounter("registry.tool.unregistered", map[string]string{"tool": name})
	return nil
}

// newBreaker builds the per-tool circuit breaker. A tool trips open
// after 5 consecutive failures and is re-tested after 30 seconds.
func newBreaker(name string) *gobreaker.CircuitBreaker[Result] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return gobreaker.NewCircuitBreaker[Result](settings)
}

// GetTool returns a tool by name.
func (r *Registry) GetTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// GetToolByEndpoint returns a tool by its registered endpoint.
func (r *Registry) GetToolByEndpoint(endpoint string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byEndpoint[endpoint]
	return t, ok
}

// ListTools returns every registered tool's summary, in registration
// order.
func (r *Registry) ListTools() []ToolSummary {
	return r.Discover(DiscoverFilter{})
}

// GetToolsByCategory returns the summaries of tools in one category,
// in registration order.
func (r *Registry) GetToolsByCategory(category string) []ToolSummary {
	return r.Discover(DiscoverFilter{Category: category})
}

// Discover lists registered tools matching filter. Ordering is
// insertion order within the resulting set — an externally observable
// contract MCP clients rely on for stable listing (spec.md §4.1).
func (r *Registry) Discover(filter DiscoverFilter) []ToolSummary {
	r.mu.RLock()
	names := make([]string, 0, len(r.order))
	for _, n := range r.order {
		if filter.Category != "" {
			if _, ok := r.byCategory[filter.Category][n]; !ok {
				continue
			}
		}
		names = append(names, n)
	}

	summaries := make([]ToolSummary, 0, len(names))
	for _, n := range names {
		t := r.byName[n]
		if filter.Capability != "" && !hasCapability(t.Capabilities(), filter.Capability) {
			continue
		}
		summaries = append(summaries, r.summarize(t))
	}
	r.mu.RUnlock()

	if !filter.HealthyOnly {
		return summaries
	}
	out := summaries[:0]
	for _, s := range summaries {
		if s.Healthy {
			out = append(out, s)
		}
	}
	return out
}

func hasCapability(c Capabilities, name string) bool {
	switch name {
	case "async":
		return c.Async
	case "retryable":
		return c.Retryable
	case "batchable":
		return c.Batchable
	case "requiresAuth":
		return c.RequiresAuth
	default:
		return false
	}
}

func (r *Registry) summarize(t Tool) ToolSummary {
	name := t.Name()
	r.healthMu.RLock()
	entry, ok := r.healthCache[name]
	r.healthMu.RUnlock()
	healthy := !ok || entry.healthy // an unknown/absent entry is treated as healthy (spec.md §4.1)

	return ToolSummary{
		Name:         name,
		Endpoint:     t.Endpoint(),
		Description:  t.Description(),
		Category:     Category(name),
		Schema:       t.Schema().AsMap(),
		Capabilities: t.Capabilities(),
		Healthy:      healthy,
	}
}

// Route is the hot path (spec.md §4.1): validate the endpoint,
// sanitize params, look the tool up by endpoint, consult the health
// cache, validate against the tool's own rules, execute under the
// tool's declared timeout through its circuit breaker, and record
// statistics. Every failure mode — unknown endpoint, unhealthy tool,
// validation failure, timeout, execution failure — is reported as a
// failing Result, never a Go error; the only Go error path is a nil
// registry misuse that can't happen through the public API.
func (r *Registry) Route(ctx context.Context, endpoint string, params map[string]any) Result {
	if !sanitize.Endpoint(endpoint) {
		return Fail(NewErrorContext(ErrValidation, fmt.Sprintf("invalid endpoint %q", endpoint)).
			WithDetails(map[string]any{"endpoint": endpoint}))
	}

	clean, _ := sanitize.Object(params).(map[string]any)
	if clean == nil {
		clean = map[string]any{}
	}

	r.mu.RLock()
	t, ok := r.byEndpoint[endpoint]
	var registered []string
	if !ok {
		registered = make([]string, 0, len(r.byEndpoint))
		for ep := range r.byEndpoint {
			registered = append(registered, ep)
		}
	}
	r.mu.RUnlock()
	if !ok {
		return Fail(NewErrorContext(ErrValidation, fmt.Sprintf("no tool registered at endpoint %q", endpoint)).
			WithDetails(map[string]any{"registeredEndpoints": registered}))
	}
	name := t.Name()

	r.healthMu.RLock()
	entry, known := r.healthCache[name]
	r.healthMu.RUnlock()
	if known && !entry.healthy {
		r.record(name, endpoint, false, ErrExecution, 0)
		return Fail(NewErrorContext(ErrExecution, "tool unhealthy"))
	}

	if vr := t.Validate(clean); !vr.Valid {
		r.record(name, endpoint, false, ErrValidation, 0)
		return Fail(NewErrorContext(ErrValidation, "validation failed").
			WithDetails(map[string]any{"errors": vr.Errors}))
	}

	r.mu.RLock()
	breaker := r.breakers[name]
	r.mu.RUnlock()

	start := time.Now()
	timeoutCtx, cancel := context.WithTimeout(ctx, t.Capabilities().Timeout())
	defer cancel()

	res, err := breaker.Execute(func() (Result, error) {
		res, execErr := t.Execute(timeoutCtx, clean)
		if execErr != nil {
			return Result{}, execErr
		}
		if !res.Success {
			return res, fmt.Errorf("tool execution reported failure: %s", res.Error)
		}
		return res, nil
	})
	elapsed := time.Since(start)

	if err != nil {
		errType := classifyError(timeoutCtx, err, res)
		r.record(name, endpoint, false, errType, elapsed.Milliseconds())
		r.log.Warn("registry: route failed",
			zap.String("tool", name),
			zap.String("errorType", string(errType)),
			zap.Any("params", sanitize.RedactForLog(clean)),
			zap.Error(err))
		if res.Error != "" {
			return res
		}
		return Fail(NewErrorContext(errType, err.Error()))
	}

	r.record(name, endpoint, true, "", elapsed.Milliseconds())
	return res
}

// classifyError maps a breaker/execution failure to the taxonomy,
// preferring the tool's own declared ErrorType when present.
func classifyError(ctx context.Context, err error, res Result) ErrorType {
	if res.ErrorType != "" {
		return res.ErrorType
	}
	if ctx.Err() == context.DeadlineExceeded {
		return ErrTimeout
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return ErrConnection
	}
	return ErrExecution
}

func (r *Registry) record(name, endpoint string, success bool, errType ErrorType, durationMs int64) {
	atomic.AddInt64(&r.requestCount, 1)
	if !success {
		atomic.AddInt64(&r.errorCount, 1)
	}
	atomic.AddInt64(&r.totalRespMs, durationMs)

	r.history.Push(RequestRecord{
		ToolName:   name,
		Endpoint:   endpoint,
		Success:    success,
		ErrorType:  errType,
		DurationMs: durationMs,
		Timestamp:  time.Now(),
	})

	outcome := "success"
	if !success {
		outcome = "failure"
	}
	tags := map[string]string{"tool": name, "endpoint": endpoint, "success": fmt.Sprintf("%v", success), "outcome": outcome}
	r.monitor.ObserveTiming("registry.request.duration", float64(durationMs), tags)
	if !success {
		errTags := map[string]string{"tool": name, "endpoint": endpoint, "error_type": string(errType)}
		r.monitor.IncCounter("registry.request.error", errTags)
	}
}

// GetStatistics returns the running counters (spec.md §4.1).
func (r *Registry) GetStatistics() Statistics {
	r.mu.RLock()
	toolCount := len(r.byName)
	r.mu.RUnlock()

	reqs := atomic.LoadInt64(&r.requestCount)
	errs := atomic.LoadInt64(&r.errorCount)
	total := atomic.LoadInt64(&r.totalRespMs)

	stats := Statistics{ToolCount: toolCount, RequestCount: reqs, ErrorCount: errs}
	if reqs > 0 {
		stats.ErrorRate = float64(errs) / float64(reqs)
		stats.AvgResponseTimeMs = float64(total) / float64(reqs)
	}
	return stats
}

// History returns a snapshot of the completed-request ring, oldest
// first.
func (r *Registry) History() []RequestRecord {
	return r.history.Snapshot()
}

// GetHealth returns the aggregate health summary (spec.md §4.1). If
// the cache hasn't been refreshed in over 30 seconds, it first
// refreshes every tool's status in parallel via errgroup so no cache
// entry is left stale.
func (r *Registry) GetHealth(ctx context.Context) HealthSummary {
	r.healthMu.RLock()
	stale := time.Since(r.lastHealthCheck) > healthStaleAfter
	r.healthMu.RUnlock()

	if stale {
		r.refreshAllHealth(ctx)
	}

	r.healthMu.RLock()
	defer r.healthMu.RUnlock()
	total := len(r.healthCache)
	healthy := 0
	var respTotal float64
	for _, e := range r.healthCache {
		if e.healthy {
			healthy++
		}
		respTotal += e.status.AvgExecutionMs
	}
	avg := 0.0
	if total > 0 {
		avg = respTotal / float64(total)
	}
	return HealthSummary{
		TotalTools:          total,
		HealthyTools:        healthy,
		LastHealthCheck:     r.lastHealthCheck,
		AverageResponseTime: avg,
	}
}

// refreshAllHealth fans tool.GetStatus() calls out in parallel across
// every currently registered tool via errgroup, and marks a tool
// unhealthy if its status call panics or does not return within the
// tool's Capabilities().Timeout() (spec.md §4.1: "any
// thrown or timing-out status call marks the tool unhealthy"), or if
// its circuit breaker is currently open — an open breaker means recent
// calls to the tool have been failing, which is itself a health signal
// independent of whatever GetStatus() self-reports.
func (r *Registry) refreshAllHealth(ctx context.Context) {
	r.mu.RLock()
	tools := make([]Tool, 0, len(r.byName))
	breakers := make(map[string]*gobreaker.CircuitBreaker[Result], len(r.breakers))
	for _, t := range r.byName {
		tools = append(tools, t)
	}
	for name, b := range r.breakers {
		breakers[name] = b
	}
	r.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for _, t := range tools {
		t := t
		g.Go(func() error {
			type outcome struct {
				status Status
				err    error
			}
			done := make(chan outcome, 1)
			go func() {
				s, e := statusWithRecover(t)
				done <- outcome{s, e}
			}()
			var o outcome
			select {
			case o = <-done:
			case <-time.After(t.Capabilities().Timeout()):
				o.err = fmt.Errorf("status() timed out")
			}
			healthy := o.err == nil
			if b, ok := breakers[t.Name()]; ok && b.State() == gobreaker.StateOpen {
				healthy = false
			}
			r.healthMu.Lock()
			r.healthCache[t.Name()] = healthEntry{status: o.status, healthy: healthy}
			r.healthMu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // individual failures are absorbed into healthy=false, never propagated

	r.healthMu.Lock()
	r.lastHealthCheck = time.Now()
	r.healthMu.Unlock()
}

// statusWithRecover calls tool.GetStatus(), converting a panicking
// status implementation into an error rather than crashing the
// refresh loop.
func statusWithRecover(t Tool) (status Status, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("status() panicked: %v", rec)
		}
	}()
	status = t.GetStatus()
	if !status.Healthy {
		err = fmt.Errorf("tool reported unhealthy")
	}
	return status, err
}

// StartHealthLoop launches the background cache-refresh loop: every
// 60 seconds, every registered tool's status is refreshed (spec.md
// §4.1). A refresh failure is logged at warn but never aborts the
// loop. Call Stop to terminate it.
func (r *Registry) StartHealthLoop(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(healthRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if rec := recover(); rec != nil {
							r.log.Warn("registry: health refresh loop recovered", zap.Any("panic", rec))
						}
					}()
					r.refreshAllHealth(loopCtx)
				}()
			}
		}
	}()
}

// Stop terminates the background health loop and waits for it to
// exit. Safe to call even if StartHealthLoop was never called, and
// safe to call more than once.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}
