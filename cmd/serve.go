package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"chatrelay/internal/provider/factory"
	"chatrelay/internal/relay"
	"chatrelay/internal/server"
)

var overridePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server exposing POST /api/chat, GET /api/providers and GET /health.

Examples:
  chatrelay serve
  chatrelay serve --config chatrelay.yaml --port 9000
  API_CHAT_KEY=secret chatrelay serve --log-format json`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&overridePort, "port", 0, "Override server port from configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort < 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	registry, err := factory.NewRegistry(cfg)
	if err != nil {
		return err
	}
	variants, err := factory.DefaultVariants()
	if err != nil {
		return err
	}

	rl, err := relay.New(registry, variants, factory.NewHTTPClient(cfg.Upstream), relay.Options{
		BufferSize:           cfg.Chat.BufferSize,
		StreamTimeout:        cfg.Upstream.StreamTimeout,
		MaxRetries:           cfg.Upstream.MaxRetries,
		RetryInitialInterval: cfg.Upstream.RetryInitialInterval,
		SystemPrompt:         cfg.Chat.SystemPrompt,
		Logger:               slog.Default(),
	})
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, rl)
	if err != nil {
		return err
	}

	return srv.Run(cmd.Context())
}
