package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// RunWorker connects to NATS and answers engine requests until ctx is done.
// An empty configPath loads the configuration from the environment and the
// project file.
func RunWorker(ctx context.Context, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	defer func() { _ = log.Close() }()

	err = cfg.ValidateWorker()
	if err != nil {
		log.Error("Invalid worker configuration: %v", err)

		return fmt.Errorf("invalid worker configuration: %w", err)
	}

	natsConnection, shutdown, err := connectNATS(cfg.NATS, log)
	if err != nil {
		log.Error("Failed to connect to NATS: %v", err)

		return err
	}

	defer func() { _ = shutdown() }()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	engineWorker, err := newEngineWorker(cfg, natsConnection, jetstreamContext, log)
	if err != nil {
		log.Error("Failed to create engine worker: %v", err)

		return err
	}

	log.System("Engine worker initialized. Listening for requests on subject: %s", cfg.NATS.RequestSubject)

	return engineWorker.Run(ctx)
}

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the engine worker in the foreground",
		Long: `Run the engine worker in the foreground.

The worker answers engine requests published on the configured subject and
keeps running until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunWorker(cmd.Context(), rootOpts.ConfigPath)
		},
	}
}
