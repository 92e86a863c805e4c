// handler.go — the MCP protocol handler: JSON-RPC framing, the
// initialize/tools.list/tools.call/initialized/shutdown method
// dispatch, and the FRESH→INITIALIZING→READY→SHUT_DOWN state machine.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/brennhill/browsergate/internal/registry"
)

// State is the MCP session lifecycle state (spec.md §4.2).
type State int

const (
	StateFresh State = iota
	StateInitializing
	StateReady
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "FRESH"
	case StateInitializing:
		return "INITIALIZING"
	case StateReady:
		return "READY"
	case StateShutDown:
		return "SHUT_DOWN"
	default:
		return "UNKNOWN"
	}
}

// serverProtocolVersion is the MCP revision this server speaks.
const serverProtocolVersion = "2025-06-18"

// Handler is a single-peer MCP JSON-RPC handler: one Handler per
// stdio connection, wired to one Registry. It is safe for concurrent
// HandleRaw calls (the state transition and client-version fields
// are guarded), though a stdio transport is typically read serially.
type Handler struct {
	log     *zap.Logger
	reg     *registry.Registry
	name    string
	version string

	mu                    sync.Mutex
	state                 State
	clientProtocolVersion string
}

// NewHandler constructs a Handler in the FRESH state.
func NewHandler(reg *registry.Registry, name, version string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{reg: reg, name: name, version: version, log: log, state: StateFresh}
}

// State returns the handler's current lifecycle state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ListTools exposes the same healthy-tool listing tools/list uses, for
// the HTTP Bridge's GET /tools route (spec.md §4.4).
func (h *Handler) ListTools() []registry.ToolSummary {
	return h.reg.Discover(registry.DiscoverFilter{HealthyOnly: true})
}

// ExecuteTool resolves name to its endpoint and routes through the
// Registry, for the HTTP Bridge's POST /tools/execute route (spec.md
// §4.4). An unknown tool name is reported as a VALIDATION Result, the
// same shape any other routing failure takes.
func (h *Handler) ExecuteTool(ctx context.Context, name string, params map[string]any) registry.Result {
	tool, ok := h.reg.GetTool(name)
	if !ok {
		return registry.Fail(registry.NewErrorContext(registry.ErrValidation, fmt.Sprintf("unknown tool %q", name)))
	}
	return h.reg.Route(ctx, tool.Endpoint(), params)
}

// HandleRaw parses one JSON-RPC message and returns the marshaled
// response, or nil if the message was a notification (no id) that
// produces no reply. ctx governs the tool execution deadline, not the
// framing itself.
func (h *Handler) HandleRaw(ctx context.Context, raw []byte) []byte {
	var req JSONRPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return mustMarshal(errorEnvelope(nil, CodeParseError, "parse error: "+err.Error()))
	}

	if req.JSONRPC != "2.0" || req.Method == "" || req.HasInvalidID() {
		return mustMarshal(errorEnvelope(idOrNil(req), CodeInvalidRequest, "invalid request"))
	}

	resp := h.dispatch(ctx, req)
	if !req.HasID() {
		return nil // notification: no reply
	}
	return mustMarshal(resp)
}

func idOrNil(req JSONRPCRequest) any {
	if req.HasID() {
		return req.ID
	}
	return nil
}

func (h *Handler) dispatch(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return h.handleInitialize(req)
	case "initialized":
		return successEnvelope(req.ID, map[string]any{})
	case "shutdown":
		return h.handleShutdown(req)
	case "tools/list":
		return h.requireReady(req, func(req JSONRPCRequest) JSONRPCResponse {
			return h.handleToolsList(req)
		})
	case "tools/call":
		return h.requireReady(req, func(req JSONRPCRequest) JSONRPCResponse {
			return h.handleToolsCall(ctx, req)
		})
	default:
		return errorEnvelope(idOrNil(req), CodeMethodNotFound, "method not found: "+req.Method)
	}
}

// requireReady enforces that tool-related methods only run in READY
// (spec.md §4.2: "All tool-related methods require READY; otherwise
// respond with MCP server-error (-32099) 'server not initialized'").
func (h *Handler) requireReady(req JSONRPCRequest, fn func(JSONRPCRequest) JSONRPCResponse) JSONRPCResponse {
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()

	if state == StateShutDown {
		return errorEnvelope(idOrNil(req), CodeServerNotInitialized, "server has shut down")
	}
	if state != StateReady {
		return errorEnvelope(idOrNil(req), CodeServerNotInitialized, "server not initialized")
	}
	return fn(req)
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// handleInitialize transitions FRESH → READY (spec.md §4.2: "there is
// no separate INITIALIZING state if the operation is synchronous").
func (h *Handler) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	h.mu.Lock()
	if h.state == StateShutDown {
		h.mu.Unlock()
		return errorEnvelope(idOrNil(req), CodeServerNotInitialized, "server has shut down")
	}
	h.mu.Unlock()

	var p initializeParams
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &p)
	}
	if p.ProtocolVersion != "" && !strings.HasPrefix(p.ProtocolVersion, "2025") {
		h.log.Warn("mcp: client protocol version outside expected range",
			zap.String("clientProtocolVersion", p.ProtocolVersion))
	}

	h.mu.Lock()
	h.clientProtocolVersion = p.ProtocolVersion
	h.state = StateReady
	h.mu.Unlock()

	result := MCPInitializeResult{
		ProtocolVersion: serverProtocolVersion,
		ServerInfo:      MCPServerInfo{Name: h.name, Version: h.version},
		Capabilities: MCPCapabilities{
			Tools:     MCPToolsCapability{},
			Resources: MCPResourcesCapability{},
			Prompts:   &MCPPromptsCapability{},
			Logging:   &MCPLoggingCapability{Level: "info"},
		},
	}
	return successEnvelope(req.ID, result)
}

func (h *Handler) handleShutdown(req JSONRPCRequest) JSONRPCResponse {
	h.mu.Lock()
	h.state = StateShutDown
	h.mu.Unlock()
	return successEnvelope(req.ID, map[string]any{})
}

// handleToolsList builds the tools/list result: only healthy tools,
// title-cased names, and the three annotation rules from spec.md §4.2.
func (h *Handler) handleToolsList(req JSONRPCRequest) JSONRPCResponse {
	summaries := h.reg.Discover(registry.DiscoverFilter{HealthyOnly: true})
	tools := make([]MCPTool, 0, len(summaries))
	for _, s := range summaries {
		tools = append(tools, MCPTool{
			Name:        s.Name,
			Title:       titleFromName(s.Name),
			Description: s.Description,
			InputSchema: s.Schema,
			Annotations: annotationsFor(s.Name, s.Capabilities),
		})
	}
	return successEnvelope(req.ID, MCPToolsListResult{Tools: tools})
}

// titleFromName replaces underscores with spaces and capitalizes each
// word (spec.md §4.2: "browser_navigate" → "Browser Navigate").
func titleFromName(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func annotationsFor(name string, caps registry.Capabilities) map[string]string {
	ann := map[string]string{}
	if caps.RequiresAuth {
		ann["security"] = "Requires authentication"
	}
	if !caps.Retryable {
		ann["warning"] = "not retryable"
	}
	if name == "browser_evaluate" {
		ann["warning"] = "This tool executes arbitrary JavaScript. Use with caution."
	}
	if len(ann) == 0 {
		return nil
	}
	return ann
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall invokes Registry.route and shapes the content per
// spec.md §4.2's rules.
func (h *Handler) handleToolsCall(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	var p toolsCallParams
	if err := json.Unmarshal(req.Params, &p); err != nil || p.Name == "" {
		return errorEnvelope(idOrNil(req), CodeInvalidParams, "tools/call requires a tool name")
	}

	tool, ok := h.reg.GetTool(p.Name)
	if !ok {
		return errorEnvelope(idOrNil(req), CodeInvalidParams, fmt.Sprintf("unknown tool %q", p.Name))
	}

	var args map[string]any
	if len(p.Arguments) > 0 {
		LenientUnmarshal(p.Arguments, &args)
	}

	result := h.reg.Route(ctx, tool.Endpoint(), args)
	resp := successEnvelope(req.ID, shapeToolResult(result))
	warnings := ValidateParamsAgainstSchema(p.Arguments, tool.Schema().AsMap())
	return AppendWarningsToResponse(resp, warnings)
}

// maxToolResultTextLen bounds any single text content block shapeToolResult
// emits, so a runaway tool result can't blow up the stdio frame.
const maxToolResultTextLen = 32000

// shapeToolResult implements the §4.2 content-shaping rules.
func shapeToolResult(res registry.Result) MCPToolResult {
	if !res.Success {
		errText := res.Error
		if errText == "" {
			errText = "Unknown error"
		}
		return MCPToolResult{
			Content: []MCPContentBlock{{Type: "text", Text: Truncate(errText, maxToolResultTextLen)}},
			IsError: true,
		}
	}

	data, isMap := res.Data.(map[string]any)
	if isMap {
		if shot, ok := data["screenshot"]; ok {
			if s, ok := shot.(string); ok {
				return MCPToolResult{Content: []MCPContentBlock{{Type: "image", Data: s, MimeType: "image/png"}}}
			}
		}
		if html, ok := data["html"].(string); ok {
			return MCPToolResult{Content: []MCPContentBlock{{Type: "text", Text: Truncate(html, maxToolResultTextLen)}}}
		}
		if text, ok := data["text"].(string); ok {
			return MCPToolResult{Content: []MCPContentBlock{{Type: "text", Text: Truncate(text, maxToolResultTextLen)}}}
		}
	}

	pretty, err := json.MarshalIndent(res.Data, "", "  ")
	if err != nil {
		return MCPToolResult{
			Content: []MCPContentBlock{{Type: "text", Text: "failed to serialize result"}},
			IsError: true,
		}
	}
	return MCPToolResult{Content: []MCPContentBlock{{Type: "text", Text: Truncate(string(pretty), maxToolResultTextLen)}}}
}

func successEnvelope(id any, result any) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: SafeMarshal(result, `{}`)}
}

func errorEnvelope(id any, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &JSONRPCError{Code: code, Message: message}}
}

func mustMarshal(resp JSONRPCResponse) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return b
}
