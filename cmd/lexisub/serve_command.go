package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lexisub/internal/config"
	"lexisub/internal/daemon"
	"lexisub/internal/deps"
	"lexisub/internal/logging"
	"lexisub/internal/metrics"
	"lexisub/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the lexisub daemon and its HTTP control API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runDaemon(cmd.Context(), cfg)
		},
	}
}

func runDaemon(cmdCtx context.Context, cfg *config.Config) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, missing := range deps.MissingRequired(deps.CheckBinaries(deps.Requirements(cfg))) {
		logging.WarnWithContext(logger, "required dependency missing", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("command", missing.Command),
			logging.String(logging.FieldImpact, "tasks using this stage will fail"),
			logging.String(logging.FieldErrorHint, "install the binary or point the config at it"),
		)
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
	}

	pipe, err := workflow.Build(cfg, collector, logger)
	if err != nil {
		logger.Error("build pipeline", logging.Error(err))
		return err
	}
	defer pipe.Close()

	mgr := workflow.NewManager(pipe.Orchestrator, workflow.ManagerOptionsFromConfig(cfg), logger)
	d, err := daemon.New(cfg, mgr, collector, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "lexisub daemon listening on %s (pid %d)\n", d.Address(), os.Getpid())

	<-signalCtx.Done()
	logger.Info("lexisub daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}
