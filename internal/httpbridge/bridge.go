// Package httpbridge hosts the HTTP surface for browser-extension
// traffic and system introspection: a chi route table, CORS headers,
// hardened body parsing, and a websocket channel for pushing commands
// to a connected extension instead of only polling it.
package httpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/brennhill/browsergate/internal/registry"
	"github.com/brennhill/browsergate/internal/sanitize"
)

// maxBodyBytes enforces the 10 MiB body cap.
const maxBodyBytes = 10 * 1024 * 1024

// allowedContentTypes is the content-type allowlist; an empty body has
// no Content-Type header and is accepted.
var allowedContentTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"text/plain",
	"text/html",
}

// Monitor mirrors registry.Monitor's shape so this package has no
// compile-time dependency on internal/metrics either.
type Monitor interface {
	IncCounter(name string, tags map[string]string)
	ObserveTiming(name string, ms float64, tags map[string]string)
}

type nopMonitor struct{}

func (nopMonitor) IncCounter(string, map[string]string)             {}
func (nopMonitor) ObserveTiming(string, float64, map[string]string) {}

// ToolExecutor is the narrow surface the bridge needs from the MCP
// Handler for the /tools and /tools/execute routes (spec.md §4.4).
type ToolExecutor interface {
	ListTools() []registry.ToolSummary
	ExecuteTool(ctx context.Context, name string, params map[string]any) registry.Result
}

// Bridge is the HTTP surface described in spec.md §4.3. Zero value is
// not usable; construct with New.
type Bridge struct {
	log     *zap.Logger
	monitor Monitor
	reg     *registry.Registry
	tools   ToolExecutor

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	startedAt time.Time
	port      int
	running   bool

	requestCount int64
	errorCount   int64

	extHub *extensionHub
}

// Option configures a Bridge at construction time.
type Option func(*Bridge)

// WithLogger overrides the bridge's zap logger.
func WithLogger(log *zap.Logger) Option { return func(b *Bridge) { b.log = log } }

// WithMonitor overrides the bridge's metrics sink.
func WithMonitor(m Monitor) Option { return func(b *Bridge) { b.monitor = m } }

// New constructs a Bridge wired to reg for health/status reporting and
// tools for the /tools family of routes.
func New(reg *registry.Registry, tools ToolExecutor, opts ...Option) *Bridge {
	b := &Bridge{
		log:     zap.NewNop(),
		monitor: nopMonitor{},
		reg:     reg,
		tools:   tools,
		extHub:  newExtensionHub(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// portInUseError is returned by Start when the requested port is
// already bound (spec.md §4.3: "EADDRINUSE raises a specific 'port in
// use' error").
type portInUseError struct {
	port int
}

func (e *portInUseError) Error() string {
	return fmt.Sprintf("httpbridge: port %d already in use", e.port)
}

// Start binds a TCP listener on port and begins serving. Calling Start
// on an already-running Bridge returns an "already started" error
// (spec.md §4.6's idempotency rule, mirrored here since the bridge is
// one of the components it wraps).
func (b *Bridge) Start(port int) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("httpbridge: already started")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		b.mu.Unlock()
		if isAddrInUse(err) {
			return &portInUseError{port: port}
		}
		return fmt.Errorf("httpbridge: listen: %w", err)
	}

	srv := &http.Server{Handler: b.router()}
	b.server = srv
	b.listener = ln
	b.startedAt = time.Now()
	b.port = port
	b.running = true
	b.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error("httpbridge: serve failed", zap.Error(err))
		}
	}()

	b.log.Info("httpbridge: started", zap.Int("port", port))
	return nil
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "address already in use")
	}
	return strings.Contains(err.Error(), "address already in use")
}

// Stop closes the server and waits for in-flight handlers to finish.
// A no-op if the bridge was never started.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	srv := b.server
	b.running = false
	b.mu.Unlock()

	b.extHub.closeAll()
	return srv.Shutdown(ctx)
}

// Status is the getStatus() shape from spec.md §4.3.
type Status struct {
	Running      bool    `json:"running"`
	Port         int     `json:"port"`
	UptimeMs     int64   `json:"uptimeMs"`
	RequestCount int64   `json:"requestCount"`
	ErrorCount   int64   `json:"errorCount"`
	ErrorRate    float64 `json:"errorRate"`
}

// GetStatus returns the bridge's current status.
func (b *Bridge) GetStatus() Status {
	b.mu.Lock()
	running := b.running
	port := b.port
	startedAt := b.startedAt
	b.mu.Unlock()

	reqs := atomic.LoadInt64(&b.requestCount)
	errs := atomic.LoadInt64(&b.errorCount)

	var uptime int64
	if running {
		uptime = time.Since(startedAt).Milliseconds()
	}
	st := Status{Running: running, Port: port, UptimeMs: uptime, RequestCount: reqs, ErrorCount: errs}
	if reqs > 0 {
		st.ErrorRate = float64(errs) / float64(reqs)
	}
	return st
}

// router builds the chi route table: CORS on every response, the
// default introspection routes, the /tools family, and the extension
// websocket channel.
func (b *Bridge) router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))
	r.Use(b.countRequests)
	r.Use(b.parseAndSanitizeBody)

	// spec.md §4.3: "endpoints are registered under both GET and POST
	// methods by default" (the Open Questions section flags this as a
	// possible bug but preserves it).
	handlerFor := map[string]http.HandlerFunc{
		"/health":        b.handleHealth,
		"/status":        b.handleStatus,
		"/routes":        b.handleRoutes,
		"/tools":         b.handleToolsList,
		"/tools/execute": b.handleToolsExecute,
	}
	for _, path := range dualMethodPaths {
		r.Method(http.MethodGet, path, handlerFor[path])
		r.Method(http.MethodPost, path, handlerFor[path])
	}
	r.Get("/ws/extension", b.handleExtensionWebsocket)

	r.NotFound(b.handleNotFound)
	return r
}

func (b *Bridge) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		atomic.AddInt64(&b.requestCount, 1)
		if sw.status >= 400 {
			atomic.AddInt64(&b.errorCount, 1)
		}
		b.monitor.ObserveTiming("http_bridge.request.duration", float64(time.Since(start).Milliseconds()),
			map[string]string{"method": r.Method, "path": r.URL.Path, "route": r.URL.Path, "status": strconv.Itoa(sw.status)})
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// sanitizedBodyKey is the request-context key parseAndSanitizeBody
// stores the sanitized body under.
type contextKey string

const sanitizedBodyKey contextKey = "httpbridge.sanitizedBody"

// parseAndSanitizeBody implements spec.md §4.3's body-parsing contract:
// a 10 MiB cap, a content-type allowlist, JSON/form/plain-string
// parsing, and §4.5 sanitation before the handler ever sees the value.
func (b *Bridge) parseAndSanitizeBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes+1)

		ct := r.Header.Get("Content-Type")
		base := ct
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			base = ct[:i]
		}
		base = strings.TrimSpace(base)
		if base != "" && !allowedContentType(base) {
			writeError(w, http.StatusUnsupportedMediaType, "Unsupported content type", "")
			return
		}

		raw := make([]byte, 0, 4096)
		buf := make([]byte, 4096)
		total := 0
		for {
			n, err := r.Body.Read(buf)
			if n > 0 {
				raw = append(raw, buf[:n]...)
				total += n
				if total > maxBodyBytes {
					writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", "")
					return
				}
			}
			if err != nil {
				break
			}
		}

		var parsed any
		switch {
		case base == "application/json":
			if len(raw) == 0 {
				parsed = map[string]any{}
			} else {
				var v any
				if err := json.Unmarshal(raw, &v); err != nil {
					writeError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
					return
				}
				parsed = v
			}
		case base == "application/x-www-form-urlencoded":
			values, err := url.ParseQuery(string(raw))
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid form body", err.Error())
				return
			}
			m := make(map[string]any, len(values))
			for k := range values {
				m[k] = values.Get(k)
			}
			parsed = m
		default:
			parsed = string(raw)
		}

		sanitized := sanitize.Object(parsed)
		ctx := context.WithValue(r.Context(), sanitizedBodyKey, sanitized)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func allowedContentType(base string) bool {
	for _, ct := range allowedContentTypes {
		if base == ct {
			return true
		}
	}
	return false
}

func sanitizedBody(r *http.Request) any {
	return r.Context().Value(sanitizedBodyKey)
}
