package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uiowa-coph/roomres/internal/app"
	"github.com/uiowa-coph/roomres/internal/config"
	"github.com/uiowa-coph/roomres/internal/observability"
)

func main() {
	root := &cobra.Command{
		Use:           "roomres",
		Short:         "Room reservation event service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var envFile string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), envFile)
		},
	}
	serve.Flags().StringVar(&envFile, "env-file", ".env", "optional env file loaded before config")
	root.AddCommand(serve)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "roomres:", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, envFile string) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	logger, loggerProvider, err := observability.InitLogger(ctx, cfg)
	if err != nil {
		return err
	}

	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	runtime.LoggerProvider = loggerProvider

	a, err := app.New(ctx, cfg, logger, runtime)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
