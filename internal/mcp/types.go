// Package mcp provides a Model Context Protocol (MCP) client: the
// stdio/HTTP transports, the JSON-RPC envelope, and the tool-call
// surface that internal/tool.MCPTool and internal/agentcore dispatch
// through. Only the tools/list and tools/call methods are implemented —
// this runtime has no resource browser or prompt-template UI to drive
// resources/list, prompts/list, or server-initiated sampling, so that
// surface is not carried.
package mcp

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ailoy-go/ailoy/internal/value"
)

// TransportType specifies the MCP transport protocol.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
)

// ServerConfig holds configuration for an MCP server.
type ServerConfig struct {
	ID        string        `yaml:"id" json:"id"`
	Name      string        `yaml:"name" json:"name"`
	Transport TransportType `yaml:"transport" json:"transport"`

	// Stdio transport options
	Command string            `yaml:"command" json:"command,omitempty"`
	Args    []string          `yaml:"args" json:"args,omitempty"`
	Env     map[string]string `yaml:"env" json:"env,omitempty"`
	WorkDir string            `yaml:"workdir" json:"workdir,omitempty"`

	// HTTP transport options
	URL     string            `yaml:"url" json:"url,omitempty"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`

	// Common options
	Timeout   time.Duration `yaml:"timeout" json:"timeout,omitempty"`
	AutoStart bool          `yaml:"auto_start" json:"auto_start,omitempty"`
}

// Validate checks the server configuration for security issues: a
// stdio server's command/workdir must not attempt path traversal and
// its args must not carry shell metacharacters a naive exec.Command
// invocation would otherwise pass straight to the subprocess.
func (c *ServerConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("server ID is required")
	}

	if c.Transport == TransportStdio {
		if err := c.validateStdioConfig(); err != nil {
			return fmt.Errorf("stdio config for %s: %w", c.ID, err)
		}
	}

	if c.Transport == TransportHTTP {
		if err := c.validateHTTPConfig(); err != nil {
			return fmt.Errorf("http config for %s: %w", c.ID, err)
		}
	}

	return nil
}

func (c *ServerConfig) validateStdioConfig() error {
	if c.Command == "" {
		return fmt.Errorf("command is required")
	}
	if err := validatePath(c.Command, "command"); err != nil {
		return err
	}
	if c.WorkDir != "" {
		if err := validatePath(c.WorkDir, "workdir"); err != nil {
			return err
		}
	}
	for i, arg := range c.Args {
		if containsShellMetachars(arg) {
			return fmt.Errorf("arg[%d] contains suspicious shell metacharacters: %q", i, arg)
		}
	}
	return nil
}

func (c *ServerConfig) validateHTTPConfig() error {
	if c.URL == "" {
		return fmt.Errorf("URL is required")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	return nil
}

// validatePath checks a path for traversal attacks.
func validatePath(path, fieldName string) error {
	if path == "" {
		return nil
	}
	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return fmt.Errorf("%s contains path traversal: %q", fieldName, path)
	}
	return nil
}

// containsShellMetachars checks for shell metacharacters that could
// indicate an injection attempt. Spaces and quotes are allowed since
// they are common in legitimate arguments; only the patterns that
// suggest command chaining or substitution are flagged.
func containsShellMetachars(s string) bool {
	dangerousPatterns := []string{
		"$(", "${",
		"`",
		"&&", "||",
		";",
		"|",
		">", "<",
		"\n", "\r",
	}
	for _, pattern := range dangerousPatterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}

// MCPTool describes one tool exposed by an MCP server. InputSchema is
// this module's own value.Value rather than raw JSON, since value.Value
// already implements json.Marshaler/Unmarshaler and is what
// value.ToolDesc.Parameters and the schema validator both expect.
type MCPTool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema value.Value `json:"inputSchema"`
}

// JSON-RPC envelope types.

// JSONRPCRequest is a JSON-RPC 2.0 request. Params/Result/Data stay raw
// JSON rather than value.Value: they carry the transport envelope, not
// this module's own domain values, and are only ever re-marshaled
// (Call's params) or decoded into a typed result (CallToolParams,
// ListToolsResult, toolCallResultWire) one layer up.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCNotification is a JSON-RPC 2.0 notification (no ID).
type JSONRPCNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCError is a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrCodeToolNotFound is MCP's tool-specific error code; resources/
// prompts codes are not carried since this client never calls those
// methods.
const ErrCodeToolNotFound = -32002

// ServerInfo holds information about an MCP server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientInfo holds information about the MCP client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities holds the negotiated capabilities of an MCP client or
// server. Only tools and roots are advertised by this client; resources,
// prompts, and sampling are omitted from the initialize handshake since
// this client never exercises them.
type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
	Roots *RootsCapability `json:"roots,omitempty"`
}

// ToolsCapability describes tool-related capabilities.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// RootsCapability describes roots-related capabilities.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// InitializeResult holds the result of the initialize method.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// ListToolsResult holds the result of tools/list.
type ListToolsResult struct {
	Tools []*MCPTool `json:"tools"`
}

// CallToolParams holds parameters for tools/call. Arguments is the
// already-validated value.Value a FunctionTool receives, carried
// straight through the wire instead of round-tripping via
// encoding/json's map[string]any.
type CallToolParams struct {
	Name      string      `json:"name"`
	Arguments value.Value `json:"arguments,omitempty"`
}

// toolCallResultWire is the tools/call response shape on the wire: an
// ordered list of content blocks plus an error flag.
type toolCallResultWire struct {
	Content []toolResultContentWire `json:"content"`
	IsError bool                    `json:"isError,omitempty"`
}

type toolResultContentWire struct {
	Type     string `json:"type"` // text | image | resource
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// toValue folds the wire result into the value.Value shape Run returns:
// is_error plus the ordered content blocks, preserved rather than
// collapsed straight to text since a later block may be an image or
// embedded resource the caller still needs.
func (r toolCallResultWire) toValue() value.Value {
	m := value.NewMap()
	m.Set("is_error", value.Bool(r.IsError))

	blocks := make([]value.Value, 0, len(r.Content))
	for _, c := range r.Content {
		b := value.NewMap()
		b.Set("type", value.String(c.Type))
		if c.Text != "" {
			b.Set("text", value.String(c.Text))
		}
		if c.Data != "" {
			b.Set("data", value.String(c.Data))
		}
		if c.MimeType != "" {
			b.Set("mime_type", value.String(c.MimeType))
		}
		blocks = append(blocks, value.FromMap(b))
	}
	m.Set("content", value.FromSeq(blocks))
	return value.FromMap(m)
}
