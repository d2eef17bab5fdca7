package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ailoy-go/ailoy/internal/value"
)

// Client is an MCP client that connects to a single server and exposes
// its advertised tools to internal/tool.MCPTool.
type Client struct {
	config    *ServerConfig
	transport Transport
	logger    *slog.Logger

	mu    sync.RWMutex
	tools []*MCPTool

	serverInfo ServerInfo
}

// NewClient creates a new MCP client.
func NewClient(cfg *ServerConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:    cfg,
		transport: NewTransport(cfg),
		logger:    logger.With("mcp_server", cfg.ID),
	}
}

// Connect performs the MCP initialize handshake and then refreshes the
// tool list.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("transport connect: %w", err)
	}

	result, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]any{
			"roots": map[string]any{"listChanged": true},
		},
		"clientInfo": map[string]any{
			"name":    "ailoy",
			"version": "1.0.0",
		},
	})
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	var initResult InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		c.transport.Close()
		return fmt.Errorf("parse initialize result: %w", err)
	}

	c.serverInfo = initResult.ServerInfo
	c.logger.Info("connected to MCP server",
		"name", c.serverInfo.Name,
		"version", c.serverInfo.Version,
		"protocol", initResult.ProtocolVersion)

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("failed to send initialized notification", "error", err)
	}

	if err := c.RefreshTools(ctx); err != nil {
		c.logger.Warn("failed to refresh tools", "error", err)
	}

	return nil
}

// Close closes the connection to the MCP server.
func (c *Client) Close() error { return c.transport.Close() }

// Config returns the server configuration.
func (c *Client) Config() *ServerConfig { return c.config }

// ServerInfo returns information about the connected server.
func (c *Client) ServerInfo() ServerInfo { return c.serverInfo }

// Connected returns whether the client is connected.
func (c *Client) Connected() bool { return c.transport.Connected() }

// RefreshTools re-fetches the server's advertised tool list via
// tools/list and caches it.
func (c *Client) RefreshTools(ctx context.Context) error {
	result, err := c.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		return err
	}
	var resp ListToolsResult
	if err := json.Unmarshal(result, &resp); err != nil {
		return fmt.Errorf("parse tools/list result: %w", err)
	}

	c.mu.Lock()
	c.tools = resp.Tools
	c.mu.Unlock()
	c.logger.Debug("refreshed tools", "count", len(resp.Tools))
	return nil
}

// Tools returns the cached tool list.
func (c *Client) Tools() []*MCPTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// CallTool invokes name with args — already-validated values from
// FunctionTool/Registry — and folds the tools/call response directly
// into a value.Value (is_error plus content blocks), so neither this
// package nor internal/tool.MCPTool needs a second translation step
// before the result reaches a Tool-role message.
func (c *Client) CallTool(ctx context.Context, name string, args value.Value) (value.Value, error) {
	result, err := c.transport.Call(ctx, "tools/call", CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return value.Value{}, err
	}

	var wire toolCallResultWire
	if err := json.Unmarshal(result, &wire); err != nil {
		return value.Value{}, fmt.Errorf("parse tools/call result: %w", err)
	}
	return wire.toValue(), nil
}

// Events returns the notification channel.
func (c *Client) Events() <-chan *JSONRPCNotification { return c.transport.Events() }
