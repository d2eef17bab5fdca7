package main

import (
	"context"
	"testing"

	"github.com/ailoy-go/ailoy/internal/config"
)

func TestBuildRemoteModelRejectsMalformedKey(t *testing.T) {
	_, err := buildRemoteModel(context.Background(), &config.Config{}, "claude-sonnet-4-5")
	if err == nil {
		t.Fatalf("expected error for a model key without a provider prefix")
	}
}

func TestBuildRemoteModelRejectsUnknownProvider(t *testing.T) {
	_, err := buildRemoteModel(context.Background(), &config.Config{}, "mistral:large")
	if err == nil {
		t.Fatalf("expected error for an unsupported provider")
	}
}

func TestBuildRemoteModelBindsAnthropic(t *testing.T) {
	cfg := &config.Config{Providers: map[string]config.ProviderConfig{
		"anthropic": {APIKey: "sk-test"},
	}}
	model, err := buildRemoteModel(context.Background(), cfg, "anthropic:claude-sonnet-4-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == nil {
		t.Fatalf("expected a non-nil model func")
	}
}

func TestHumanBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0B"},
		{1023, "1023B"},
		{1024, "1.0KiB"},
		{1536, "1.5KiB"},
		{1024 * 1024, "1.0MiB"},
	}
	for _, c := range cases {
		if got := humanBytes(c.in); got != c.want {
			t.Errorf("humanBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestConnectMCPServersNoopWithoutServers(t *testing.T) {
	cleanup, err := connectMCPServers(context.Background(), &config.Config{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cleanup()
}
