// Package main provides the ailoy CLI: the non-core surface that
// consumes the library packages to manage the asset cache (list, remove,
// upload, download) and to drive an Agent interactively from stdin/stdout.
// It contains no business logic beyond argument parsing, config loading,
// and progress rendering.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ailoy-go/ailoy/internal/config"
)

// Version is set at build time.
var Version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "ailoy",
		Short: "ailoy runs and manages the ailoy agentic LLM runtime",
		Long: `ailoy drives a tool-augmented, knowledge-augmented reasoning loop on
top of local or remote model backends, and manages the content-addressed
asset cache that model weights, tokenizers, and chat templates are
fetched through.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to ailoy config YAML (defaults unset fields when absent)")

	loadConfig := func() (*config.Config, *slog.Logger) {
		var cfg *config.Config
		if configPath != "" {
			c, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			cfg = c
		} else {
			cfg = &config.Config{}
		}
		logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)
		return cfg, logger
	}

	root.AddCommand(
		newListCmd(),
		newRemoveCmd(),
		newUploadCmd(),
		newDownloadCmd(),
		newRunCmd(loadConfig),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "ailoy %s\n", Version)
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
