package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JulioPeixoto/veritas/internal/app"
	"github.com/JulioPeixoto/veritas/internal/config"
	"github.com/JulioPeixoto/veritas/internal/logger"
)

func main() {
	root := &cobra.Command{
		Use:           "veritas",
		Short:         "Veritas: document search and chat over indexed civil-defense material",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd().RunE(cmd, args)
		},
	}

	root.AddCommand(serveCmd())
	root.AddCommand(indexCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(linksCmd())
	root.AddCommand(etlCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			setupLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
}

// run bootstraps infrastructure and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	models, err := app.NewModels(ctx, cfg)
	if err != nil {
		return err
	}
	defer models.Close()

	a, err := app.New(cfg, deps, models)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func setupLogger(cfg *config.Config) {
	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel))
}
