// types.go — MCP typed response structs and resource types.
// Contains content blocks, tool results, initialize results, and resource types.
package mcp

// MCPContentBlock represents a single content block in an MCP tool
// result. Text blocks set Type+Text; image blocks set Type="image"
// plus Data (base64) and MimeType.
type MCPContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// MCPToolResult represents the result of an MCP tool call.
type MCPToolResult struct {
	Content  []MCPContentBlock `json:"content"`
	IsError  bool              `json:"isError"` // SPEC:MCP
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// MCPInitializeResult represents the result of an MCP initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"` // SPEC:MCP
	ServerInfo      MCPServerInfo   `json:"serverInfo"`      // SPEC:MCP
	Capabilities    MCPCapabilities `json:"capabilities"`
	Instructions    string          `json:"instructions,omitempty"`
}

// MCPServerInfo identifies the MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPCapabilities declares the server's MCP capabilities.
type MCPCapabilities struct {
	Tools     MCPToolsCapability     `json:"tools"`
	Resources MCPResourcesCapability `json:"resources"`
	Prompts   *MCPPromptsCapability  `json:"prompts,omitempty"`
	Logging   *MCPLoggingCapability  `json:"logging,omitempty"`
}

// MCPToolsCapability declares tool support.
type MCPToolsCapability struct{}

// MCPResourcesCapability declares resource support.
type MCPResourcesCapability struct{}

// MCPPromptsCapability declares prompt support. browsergate registers
// no prompts today; the field exists so a compliant client doesn't
// have to special-case its absence.
type MCPPromptsCapability struct{}

// MCPLoggingCapability declares the server's logging capability and
// its minimum level, which initialize sets to "info". The handler has
// no logging/setLevel method, so clients cannot change it.
type MCPLoggingCapability struct {
	Level string `json:"level,omitempty"`
}

// MCPResource describes an available resource.
type MCPResource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"` // SPEC:MCP
}

// MCPResourceContent represents the content of a resource.
type MCPResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"` // SPEC:MCP
	Text     string `json:"text,omitempty"`
}

// MCPResourcesListResult represents the result of a resources/list request.
type MCPResourcesListResult struct {
	Resources []MCPResource `json:"resources"`
}

// MCPResourcesReadResult represents the result of a resources/read request.
type MCPResourcesReadResult struct {
	Contents []MCPResourceContent `json:"contents"`
}

// MCPToolsListResult represents the result of a tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPResourceTemplatesListResult represents the result of a resources/templates/list request.
type MCPResourceTemplatesListResult struct {
	ResourceTemplates []any `json:"resourceTemplates"` // SPEC:MCP
}
