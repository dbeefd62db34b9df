package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume tailoring runs from RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		required := append([]string{"DB_URL", "RABBITMQ_URL", "GOOGLE_API_KEY"}, r2Keys...)
		if err := cfg.require(required...); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		db, queries, err := openDB(cfg.DBUrl)
		if err != nil {
			return err
		}
		defer db.Close()

		objects, err := newObjectStore(ctx, cfg.R2)
		if err != nil {
			return err
		}
		publisher, err := dialPublisher(cfg.RabbitMQUrl)
		if err != nil {
			return err
		}
		defer publisher.conn.Close()

		tailor, err := buildTailorer(ctx, cfg, cfg.TailorMode)
		if err != nil {
			return err
		}
		intake, closeIntake, err := buildIntake(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeIntake()

		workerConfig := &WorkerConfig{
			DB:          queries,
			Objects:     objects,
			Publisher:   publisher,
			Tailor:      tailor,
			Intake:      intake,
			RABBITMQUrl: cfg.RabbitMQUrl,
			Logger:      logger,
		}

		logger.Info("Starting consumer pool",
			zap.Int("workers", cfg.Workers),
			zap.String("tailor_mode", cfg.TailorMode),
			zap.String("model", cfg.Model),
		)
		workerConfig.StartConsumerWorkerPool(ctx, cfg.Workers)
		return ctx.Err()
	},
}

func buildTailorer(ctx context.Context, cfg Config, mode string) (*agentTailor, error) {
	model, err := NewGeminiModel(ctx, cfg.GoogleApiKey, cfg.Model)
	if err != nil {
		return nil, err
	}
	root, finalAgent, err := GetAgent(model, mode, cfg.CreativityLevel)
	if err != nil {
		return nil, err
	}
	return newAgentTailor(root, finalAgent, cfg.TailorAttempts, logger)
}

// buildIntake wires the configured page fetcher and the extraction model.
// The returned func releases the browser when one was started.
func buildIntake(ctx context.Context, cfg Config) (*JobIntake, func(), error) {
	extractor, err := newGenaiJobExtractor(ctx, cfg.GoogleApiKey, cfg.ExtractModel)
	if err != nil {
		return nil, nil, err
	}
	fetcher := newPageFetcher(cfg.JobFetcher, cfg.BrowserHeadless)
	closeFn := func() {
		if c, ok := fetcher.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close browser", zap.Error(err))
			}
		}
	}
	return &JobIntake{Fetcher: fetcher, Extractor: extractor, Logger: logger}, closeFn, nil
}
