package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/ailoy-go/ailoy/internal/value"
)

func TestNewManagerNilConfigAndLogger(t *testing.T) {
	mgr := NewManager(nil, nil)
	if mgr == nil {
		t.Fatal("expected non-nil manager")
	}
	if mgr.logger == nil {
		t.Error("expected a default logger to be installed")
	}
}

func TestManagerStartDisabled(t *testing.T) {
	mgr := NewManager(&Config{Enabled: false}, slog.Default())
	if err := mgr.Start(context.Background()); err != nil {
		t.Errorf("Start() error = %v, expected nil for disabled manager", err)
	}
}

func TestManagerStopEmpty(t *testing.T) {
	mgr := NewManager(&Config{Enabled: true}, slog.Default())
	if err := mgr.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestManagerConnectServerNotFound(t *testing.T) {
	mgr := NewManager(&Config{Enabled: true}, slog.Default())
	if err := mgr.Connect(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for nonexistent server")
	}
}

func TestManagerDisconnectNotConnectedIsNoop(t *testing.T) {
	mgr := NewManager(&Config{Enabled: true}, slog.Default())
	if err := mgr.Disconnect("server1"); err != nil {
		t.Errorf("Disconnect() error = %v, expected nil", err)
	}
}

func TestManagerClientNotFound(t *testing.T) {
	mgr := NewManager(&Config{Enabled: true}, slog.Default())
	if _, exists := mgr.Client("nonexistent"); exists {
		t.Error("expected exists to be false")
	}
}

func TestManagerClientsEmpty(t *testing.T) {
	mgr := NewManager(&Config{Enabled: true}, slog.Default())
	if clients := mgr.Clients(); len(clients) != 0 {
		t.Errorf("expected empty clients map, got %d", len(clients))
	}
}

func TestManagerAllToolsEmpty(t *testing.T) {
	mgr := NewManager(&Config{Enabled: true}, slog.Default())
	if tools := mgr.AllTools(); len(tools) != 0 {
		t.Errorf("expected empty tools map, got %d", len(tools))
	}
}

func TestManagerCallToolServerNotConnected(t *testing.T) {
	mgr := NewManager(&Config{Enabled: true}, slog.Default())
	_, err := mgr.CallTool(context.Background(), "server1", "tool1", value.Null())
	if err == nil {
		t.Error("expected error for not connected server")
	}
}

func TestManagerFindToolNotFound(t *testing.T) {
	mgr := NewManager(&Config{Enabled: true}, slog.Default())
	serverID, tool := mgr.FindTool("nonexistent")
	if serverID != "" {
		t.Errorf("expected empty serverID, got %q", serverID)
	}
	if tool != nil {
		t.Error("expected nil tool")
	}
}

func TestManagerToolSchemasEmpty(t *testing.T) {
	mgr := NewManager(&Config{Enabled: true}, slog.Default())
	if schemas := mgr.ToolSchemas(); len(schemas) != 0 {
		t.Errorf("expected empty schemas list, got %d", len(schemas))
	}
}

func TestManagerStatusReportsEveryConfiguredServer(t *testing.T) {
	mgr := NewManager(&Config{
		Enabled: true,
		Servers: []*ServerConfig{
			{ID: "search", Name: "Search server"},
			{ID: "fs", Name: "Filesystem server"},
		},
	}, slog.Default())

	statuses := mgr.Status()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	for _, status := range statuses {
		if status.Connected {
			t.Errorf("expected server %q to report disconnected", status.ID)
		}
	}
}

func TestToolSchemaRoundTripsInputSchema(t *testing.T) {
	m := value.NewMap()
	m.Set("type", value.String("object"))
	schema := ToolSchema{
		ServerID:    "search",
		Name:        "web_search",
		Description: "Search the web",
		InputSchema: value.FromMap(m),
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded ToolSchema
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Name != schema.Name {
		t.Errorf("expected Name %q, got %q", schema.Name, decoded.Name)
	}
	typ, ok := decoded.InputSchema.AsMap()
	if !ok {
		t.Fatal("expected InputSchema to decode back to a map")
	}
	v, ok := typ.Get("type")
	if !ok {
		t.Fatal("expected a type key")
	}
	if s, _ := v.AsString(); s != "object" {
		t.Errorf("expected type %q, got %q", "object", s)
	}
}
