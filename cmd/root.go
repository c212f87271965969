// Package cmd provides the chatrelay command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"chatrelay/internal/config"
)

// Global flags
var (
	cfgPath   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: "chatrelay - multi-provider streaming chat proxy",
	Long: `chatrelay accepts chat turns from a browser client, forwards them to one of
many LLM providers and re-emits the provider's stream in a single
OpenAI-style server-sent event format.

Run 'chatrelay serve' to start the HTTP server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd.ErrOrStderr())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML configuration file (defaults to the built-in catalogue)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text|json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(providersCmd)
}

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func setupLogging(w io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("invalid --log-format %q: must be text or json", logFormat)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads .env files, then the optional YAML file.
func loadConfig() (config.Config, error) {
	if err := config.LoadEnvFiles(".env"); err != nil {
		return config.Config{}, err
	}
	return config.Load(cfgPath)
}
