package mcp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ailoy-go/ailoy/internal/value"
)

func TestServerConfigTransportTypes(t *testing.T) {
	tests := []struct {
		name      string
		transport TransportType
	}{
		{"stdio", TransportStdio},
		{"http", TransportHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ServerConfig{ID: "test", Name: "Test Server", Transport: tt.transport}
			if cfg.Transport != tt.transport {
				t.Errorf("expected transport %v, got %v", tt.transport, cfg.Transport)
			}
		})
	}
}

func TestServerConfigValidateRejectsPathTraversal(t *testing.T) {
	cfg := &ServerConfig{ID: "x", Transport: TransportStdio, Command: "../../etc/passwd"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}

func TestServerConfigValidateRejectsShellMetachars(t *testing.T) {
	cfg := &ServerConfig{ID: "x", Transport: TransportStdio, Command: "mcp-server", Args: []string{"foo; rm -rf /"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected shell metacharacters in args to be rejected")
	}
}

func TestServerConfigValidateRejectsBadURL(t *testing.T) {
	cfg := &ServerConfig{ID: "x", Transport: TransportHTTP, URL: "ftp://example.com"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a non-http(s) URL to be rejected")
	}
}

func TestServerConfigValidateOK(t *testing.T) {
	cfg := &ServerConfig{ID: "x", Transport: TransportStdio, Command: "mcp-server", Args: []string{"--port", "8080"}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestServerConfigJSON(t *testing.T) {
	cfg := &ServerConfig{
		ID:        "test-server",
		Name:      "Test Server",
		Transport: TransportStdio,
		Command:   "/usr/bin/mcp-server",
		Args:      []string{"--config", "test.yaml"},
		Env:       map[string]string{"DEBUG": "true"},
		WorkDir:   "/tmp",
		Timeout:   30 * time.Second,
		AutoStart: true,
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded ServerConfig
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.ID != cfg.ID || decoded.Command != cfg.Command || len(decoded.Args) != len(cfg.Args) {
		t.Errorf("round trip mismatch: %+v vs %+v", cfg, decoded)
	}
}

func TestMCPToolInputSchemaIsValue(t *testing.T) {
	raw := []byte(`{"name":"search","description":"Search for files","inputSchema":{"type":"object","properties":{"query":{"type":"string"}}}}`)

	var tool MCPTool
	if err := json.Unmarshal(raw, &tool); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if tool.Name != "search" {
		t.Errorf("expected Name %q, got %q", "search", tool.Name)
	}
	m, ok := tool.InputSchema.AsMap()
	if !ok {
		t.Fatal("expected InputSchema to decode as a value.Map")
	}
	typ, ok := m.Get("type")
	if !ok {
		t.Fatal("expected a type key")
	}
	if s, _ := typ.AsString(); s != "object" {
		t.Error("expected InputSchema.type == object")
	}
}

func TestCallToolParamsCarriesValueArguments(t *testing.T) {
	m := value.NewMap()
	m.Set("query", value.String("weather in nyc"))
	params := CallToolParams{Name: "search", Arguments: value.FromMap(m)}

	data, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded CallToolParams
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	argMap, ok := decoded.Arguments.AsMap()
	if !ok {
		t.Fatal("expected Arguments to decode as a value.Map")
	}
	query, ok := argMap.Get("query")
	if !ok {
		t.Fatal("expected a query argument")
	}
	if s, _ := query.AsString(); s != "weather in nyc" {
		t.Errorf("expected query %q, got %q", "weather in nyc", s)
	}
}

func TestToolCallResultWireFoldsToValue(t *testing.T) {
	wire := toolCallResultWire{
		Content: []toolResultContentWire{
			{Type: "text", Text: "37F and sunny"},
		},
	}
	v := wire.toValue()

	m, ok := v.AsMap()
	if !ok {
		t.Fatal("expected a map value")
	}
	isErr, ok := m.Get("is_error")
	if !ok {
		t.Fatal("expected an is_error key")
	}
	if b, _ := isErr.AsBool(); b {
		t.Error("expected is_error to be false")
	}
	content, ok := m.Get("content")
	if !ok {
		t.Fatal("expected a content key")
	}
	seq, ok := content.AsSeq()
	if !ok || len(seq) != 1 {
		t.Fatalf("expected a 1-item content sequence, got %v", content)
	}
}

func TestToolCallResultWireFoldsIsError(t *testing.T) {
	wire := toolCallResultWire{
		Content: []toolResultContentWire{{Type: "text", Text: "boom"}},
		IsError: true,
	}
	v := wire.toValue()
	m, _ := v.AsMap()
	isErr, _ := m.Get("is_error")
	if b, _ := isErr.AsBool(); !b {
		t.Error("expected is_error to be true")
	}
}

func TestJSONRPCRequestJSON(t *testing.T) {
	req := &JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name":"search","arguments":{"query":"test"}}`),
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded JSONRPCRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Method != req.Method {
		t.Errorf("expected Method %q, got %q", req.Method, decoded.Method)
	}
}

func TestJSONRPCResponseWithError(t *testing.T) {
	resp := &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      1,
		Error:   &JSONRPCError{Code: ErrCodeMethodNotFound, Message: "Method not found"},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded JSONRPCResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Error == nil || decoded.Error.Code != ErrCodeMethodNotFound {
		t.Fatalf("expected error code %d, got %+v", ErrCodeMethodNotFound, decoded.Error)
	}
}

func TestJSONRPCNotificationJSON(t *testing.T) {
	notif := &JSONRPCNotification{JSONRPC: "2.0", Method: "notifications/toolListChanged"}

	data, err := json.Marshal(notif)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded JSONRPCNotification
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Method != notif.Method {
		t.Errorf("expected Method %q, got %q", notif.Method, decoded.Method)
	}
}

func TestInitializeResultJSON(t *testing.T) {
	result := &InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities:    Capabilities{Tools: &ToolsCapability{ListChanged: true}},
		ServerInfo:      ServerInfo{Name: "Test Server", Version: "1.0.0"},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded InitializeResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.ProtocolVersion != result.ProtocolVersion {
		t.Errorf("expected ProtocolVersion %q, got %q", result.ProtocolVersion, decoded.ProtocolVersion)
	}
	if decoded.ServerInfo.Name != result.ServerInfo.Name {
		t.Errorf("expected ServerInfo.Name %q, got %q", result.ServerInfo.Name, decoded.ServerInfo.Name)
	}
}
