package httpbridge

import (
	"net/http"
	"time"

	"github.com/brennhill/browsergate/internal/registry"
	"github.com/brennhill/browsergate/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	util.JSONResponse(w, status, body)
}

func writeError(w http.ResponseWriter, status int, errText, message string) {
	writeJSON(w, status, map[string]any{"error": errText, "message": message})
}

// handleHealth implements /health (spec.md §4.3): 200 with status "ok"
// while the bridge is running, 503 with "unavailable" otherwise, always with
// {status, uptime, timestamp}. An optional ?since=<RFC3339> query lets
// a polling client ask "has the bridge restarted since I last saw it"
// without tracking a process id itself.
func (b *Bridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := b.GetStatus()
	status := "ok"
	code := http.StatusOK
	if !st.Running {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status":    status,
		"uptime":    st.UptimeMs,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t := util.ParseTimestamp(since); !t.IsZero() {
			b.mu.Lock()
			startedAt := b.startedAt
			b.mu.Unlock()
			body["restartedSinceQuery"] = startedAt.After(t)
		}
	}
	writeJSON(w, code, body)
}

// handleStatus implements /status: full bridge status plus registry
// statistics, with errorRate derived on both.
func (b *Bridge) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := b.GetStatus()
	var regStats registry.Statistics
	if b.reg != nil {
		regStats = b.reg.GetStatistics()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bridge":   st,
		"registry": regStats,
	})
}

// dualMethodPaths are the default routes spec.md §4.3 says are
// "registered under both GET and POST methods by default".
// /ws/extension is excluded: a websocket upgrade is GET-only by
// protocol, not one of the spec's default HTTP routes.
var dualMethodPaths = []string{"/health", "/status", "/routes", "/tools", "/tools/execute"}

// handleRoutes enumerates the bridge's fixed route table (spec.md
// §4.3's "/routes (enumeration)").
func (b *Bridge) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes := make([]map[string]string, 0, len(dualMethodPaths)*2+1)
	for _, path := range dualMethodPaths {
		routes = append(routes,
			map[string]string{"method": "GET", "path": path},
			map[string]string{"method": "POST", "path": path})
	}
	routes = append(routes, map[string]string{"method": "GET", "path": "/ws/extension"})
	writeJSON(w, http.StatusOK, map[string]any{"routes": routes})
}

// handleNotFound implements the "unknown routes return 404 with
// availableRoutes" rule from spec.md §4.3.
func (b *Bridge) handleNotFound(w http.ResponseWriter, r *http.Request) {
	available := make([]string, 0, len(dualMethodPaths)*2+1)
	for _, path := range dualMethodPaths {
		available = append(available, "GET "+path, "POST "+path)
	}
	available = append(available, "GET /ws/extension")
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":           "Not Found",
		"message":         "no route for " + r.Method + " " + r.URL.Path,
		"availableRoutes": available,
	})
}

// handleToolsList implements the /tools GET route from spec.md §4.4:
// {tools: MCPHandler.listTools()}.
func (b *Bridge) handleToolsList(w http.ResponseWriter, r *http.Request) {
	if b.tools == nil {
		writeJSON(w, http.StatusOK, map[string]any{"tools": []registry.ToolSummary{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": b.tools.ListTools()})
}

type toolsExecuteRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// handleToolsExecute implements the /tools/execute POST route from
// spec.md §4.4: reads {tool, params}, calls MCPHandler.executeTool.
// A missing tool field yields 400. A routed-but-failed tool call still
// returns 200 with the structured failing Result (spec.md §7's
// "successful routing even if tool failed" rule).
func (b *Bridge) handleToolsExecute(w http.ResponseWriter, r *http.Request) {
	body := sanitizedBody(r)
	m, ok := body.(map[string]any)
	if !ok {
		writeError(w, http.StatusBadRequest, "Bad Request", "expected a JSON object body")
		return
	}

	toolName, _ := m["tool"].(string)
	if toolName == "" {
		writeError(w, http.StatusBadRequest, "Bad Request", "missing tool field")
		return
	}
	params, _ := m["params"].(map[string]any)

	if b.tools == nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "no tool executor configured")
		return
	}

	result := b.tools.ExecuteTool(r.Context(), toolName, params)
	writeJSON(w, http.StatusOK, result)
}
