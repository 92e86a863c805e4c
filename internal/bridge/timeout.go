// timeout.go — Per-request timeout logic for MCP tool calls.
package bridge

import (
	"encoding/json"
	"time"

	"github.com/brennhill/browsergate/internal/registry"
)

// FastTimeout is applied to any method other than tools/call, where no
// tool-declared timeout is available.
const FastTimeout = 10 * time.Second

// ToolCallTimeout returns the per-request timeout for a JSON-RPC
// request. For tools/call it looks the named tool up in reg and uses
// its declared Capabilities().Timeout() (defaulting to 30s per
// spec.md §5 if the tool didn't set one); every other method gets
// FastTimeout.
//
// method is the JSON-RPC method (e.g. "tools/call", "resources/read").
// params is the raw JSON of the request params.
func ToolCallTimeout(reg *registry.Registry, method string, params json.RawMessage) time.Duration {
	if method != "tools/call" {
		return FastTimeout
	}

	var p struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(params, &p) != nil || p.Name == "" {
		return FastTimeout
	}

	tool, ok := reg.GetTool(p.Name)
	if !ok {
		return FastTimeout
	}
	return tool.Capabilities().Timeout()
}
