package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"slidenotes/internal/config"
	"slidenotes/internal/logging"
	"slidenotes/internal/preflight"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string

	cmd := &cobra.Command{
		Use:           "slidenotesd",
		Short:         "Run alignment jobs queued with 'slidenotes align --detach'",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), strings.TrimSpace(configFlag))
		},
	}
	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	if _, err := config.LoadEnvFiles(); err != nil {
		return err
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.Hint("run 'slidenotes status' for details"),
		)
	}

	d, err := bootstrap(cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "slidenotesd failed to initialize", "daemon_init_failed",
			logging.Hint("run 'slidenotes config validate' and 'slidenotes llm health'"),
			logging.Error(err),
		)
		return err
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("slidenotesd shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}
