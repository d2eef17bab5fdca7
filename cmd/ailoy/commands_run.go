package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ailoy-go/ailoy/internal/agentcore"
	"github.com/ailoy-go/ailoy/internal/config"
	"github.com/ailoy-go/ailoy/internal/mcp"
	"github.com/ailoy-go/ailoy/internal/remotemodel"
	"github.com/ailoy-go/ailoy/internal/tool"
	"github.com/ailoy-go/ailoy/internal/value"
)

// newRunCmd implements the `run` command: it wires a configured Agent to
// stdin/stdout for interactive use. It is a thin consumer of
// internal/agentcore, internal/remotemodel, and internal/mcp — no
// business logic lives here beyond argument parsing, config loading, and
// rendering the delta stream to the terminal.
func newRunCmd(loadConfig func() (*config.Config, *slog.Logger)) *cobra.Command {
	var modelFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an interactive agent session against stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := loadConfig()
			modelKey := modelFlag
			if modelKey == "" {
				modelKey = cfg.Model.Default
			}
			if modelKey == "" {
				return fmt.Errorf("no model configured: pass --model or set model.default in the config file")
			}

			model, err := buildRemoteModel(cmd.Context(), cfg, modelKey)
			if err != nil {
				return err
			}

			tools := tool.NewRegistry(logger)
			cleanup, err := connectMCPServers(cmd.Context(), cfg, tools, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			agent := agentcore.New(model, tools, nil, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runREPL(ctx, cmd, agent)
		},
	}
	cmd.Flags().StringVar(&modelFlag, "model", "", "provider:model to use, e.g. anthropic:claude-sonnet-4-5 (overrides model.default)")
	return cmd
}

// buildRemoteModel parses a "<provider>:<model>" key and binds the
// matching remotemodel dialect with credentials from cfg.Providers,
// partially applying remotemodel.Config so the result satisfies
// agentcore.Model.
func buildRemoteModel(ctx context.Context, cfg *config.Config, modelKey string) (agentcore.ModelFunc, error) {
	provider, model, ok := strings.Cut(modelKey, ":")
	if !ok {
		return nil, fmt.Errorf("model %q must be in provider:model form", modelKey)
	}
	pc := cfg.Providers[provider]
	rcfg := remotemodel.Config{Model: model}

	var lm remotemodel.RemoteLM
	switch provider {
	case "anthropic":
		lm = remotemodel.NewAnthropic(pc.APIKey, pc.BaseURL)
	case "openai":
		lm = remotemodel.NewChatCompletion(pc.APIKey, pc.BaseURL)
	case "xai":
		lm = remotemodel.NewXAI(pc.APIKey)
	case "gemini":
		g, err := remotemodel.NewGemini(ctx, pc.APIKey)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		lm = g
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic, openai, xai, or gemini)", provider)
	}

	return func(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document) (<-chan value.MessageDeltaOutput, error) {
		return lm.InferDelta(ctx, messages, tools, docs, rcfg)
	}, nil
}

// connectMCPServers starts every configured MCP server and registers its
// advertised tools into tools. The returned cleanup closes every client;
// callers must defer it even on error paths that already connected a
// subset of servers.
func connectMCPServers(ctx context.Context, cfg *config.Config, tools *tool.Registry, logger *slog.Logger) (func(), error) {
	noop := func() {}
	if len(cfg.MCPServers) == 0 {
		return noop, nil
	}

	mgrCfg := &mcp.Config{Enabled: true}
	for _, s := range cfg.MCPServers {
		sc := &mcp.ServerConfig{ID: s.ID, Command: s.Command, Args: s.Args, AutoStart: true}
		if s.URL != "" {
			sc.Transport = mcp.TransportHTTP
			sc.URL = s.URL
		} else {
			sc.Transport = mcp.TransportStdio
		}
		mgrCfg.Servers = append(mgrCfg.Servers, sc)
	}

	mgr := mcp.NewManager(mgrCfg, logger)
	if err := mgr.Start(ctx); err != nil {
		return noop, fmt.Errorf("mcp: %w", err)
	}
	cleanup := func() { mgr.Stop() }

	for serverID, client := range mgr.Clients() {
		for _, t := range client.Tools() {
			tools.AddTool(tool.NewMCPTool(client, serverID, t))
		}
	}
	return cleanup, nil
}

// runREPL reads one line per turn from stdin, feeds it to the agent, and
// prints every streamed delta's visible text to stdout, until EOF or ctx
// is cancelled. It is a minimal consumer of RunDelta, not a UI.
func runREPL(ctx context.Context, cmd *cobra.Command, agent *agentcore.Agent) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(os.Stdin)
	var history []value.Message

	fmt.Fprintln(out, "ailoy: type a message and press enter; Ctrl-D to exit")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		history = append(history, value.Message{Role: value.RoleUser, Contents: []value.Part{value.NewTextPart(line)}})

		// RunDelta's stream is forwarded deltas only; it does not hand
		// back the turn's finalized messages (tool calls and their
		// results included), so the REPL re-accumulates them itself, the
		// same way agentcore's own loop does, to keep the next turn's
		// history complete: tool result messages must be appended to the
		// conversation before the next model call.
		var acc value.MessageDelta
		for ev := range agent.RunDelta(ctx, history, agentcore.Config{}) {
			if ev.Err != nil {
				return ev.Err
			}
			printDelta(out, ev.Output)

			var err error
			acc, err = value.Accumulate(acc, ev.Output.Delta)
			if err != nil {
				return err
			}
			if ev.Output.FinishReason == nil {
				continue
			}
			msg, err := acc.Finish()
			if err != nil {
				return err
			}
			history = append(history, msg)
			acc = value.MessageDelta{}
		}
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// printDelta renders one streamed delta's visible text parts; thinking,
// tool-call, and tool-result deltas are not echoed inline since they are
// not meant for direct display in a plain REPL.
func printDelta(out io.Writer, o value.MessageDeltaOutput) {
	for _, part := range o.Delta.Contents {
		if part.Kind() != value.PartDeltaKindText {
			continue
		}
		if text, ok := part.Text(); ok {
			fmt.Fprint(out, text)
		}
	}
}
