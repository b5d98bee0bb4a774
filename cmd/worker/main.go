package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/conveyor-etl/conveyor/internal/blob"
	"github.com/conveyor-etl/conveyor/internal/config"
	"github.com/conveyor-etl/conveyor/internal/databricks"
	"github.com/conveyor-etl/conveyor/internal/pipeline"
	"github.com/conveyor-etl/conveyor/internal/queue"
	"github.com/conveyor-etl/conveyor/internal/source"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	_ = godotenv.Load(".env") // ignore error if .env missing

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The ordering contract lives in configuration; refuse to start on a
	// broken chain.
	if err := config.ValidateChain(cfg.Chain()); err != nil {
		logger.Error("invalid pipeline chain", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.ChainFile != "" {
		if _, err := config.LoadChainFile(cfg.ChainFile); err != nil {
			logger.Error("invalid chain file", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("chain file validated", slog.String("path", cfg.ChainFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Valkey
	vkClient, err := queue.NewClient(cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	// Blob store
	store, err := blob.NewClient(cfg.MinIO, cfg.Containers)
	if err != nil {
		logger.Error("failed to connect to blob store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := store.EnsureContainers(ctx); err != nil {
		logger.Error("failed to ensure containers", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("connected to blob store")

	// Upstream S3 source (optional)
	var fetcher pipeline.Fetcher
	if cfg.Source.Bucket != "" {
		s3Fetcher, err := source.NewS3Fetcher(cfg.Source)
		if err != nil {
			logger.Warn("s3 source init failed, extract reads landing container", slog.String("error", err.Error()))
		} else {
			fetcher = s3Fetcher
			logger.Info("s3 source enabled", slog.String("bucket", cfg.Source.Bucket))
		}
	}

	// External compute delegate
	delegate := databricks.NewClient(cfg.Databricks)

	producer := queue.NewProducer(vkClient)

	// Stage runners, one per chain link. Each stage owns exactly one output
	// queue and one output container.
	type stageBinding struct {
		runner     *pipeline.Runner
		inputQueue string
	}
	bindings := []stageBinding{
		{
			runner: pipeline.NewRunner(
				pipeline.NewExtractHandler(store, fetcher, cfg.Containers),
				store, producer, cfg.Queues.Transform, logger),
			inputQueue: cfg.Queues.Extract,
		},
		{
			runner: pipeline.NewRunner(
				pipeline.NewTransformHandler(delegate, cfg.Databricks, cfg.Containers, cfg.StorageAccount),
				store, producer, cfg.Queues.Load, logger),
			inputQueue: cfg.Queues.Transform,
		},
		{
			runner: pipeline.NewRunner(
				pipeline.NewLoadHandler(store, cfg.Containers),
				store, producer, cfg.Queues.Train, logger),
			inputQueue: cfg.Queues.Load,
		},
		{
			runner: pipeline.NewRunner(
				pipeline.NewTrainHandler(delegate, cfg.Databricks, cfg.Containers, cfg.StorageAccount),
				store, producer, "", logger),
			inputQueue: cfg.Queues.Train,
		},
	}

	var wg sync.WaitGroup
	for _, b := range bindings {
		consumer := queue.NewConsumer(vkClient, b.inputQueue, cfg.Worker.ID,
			cfg.Queues.MaxAttempts, cfg.Queues.VisibilityTimeout, logger)
		if err := consumer.EnsureGroup(ctx); err != nil {
			logger.Error("failed to ensure consumer group",
				slog.String("queue", b.inputQueue), slog.String("error", err.Error()))
			os.Exit(1)
		}

		wg.Add(1)
		go func(c *queue.Consumer, r *pipeline.Runner, q string) {
			defer wg.Done()
			logger.Info("starting stage consumer", slog.String("queue", q))
			if err := c.Consume(ctx, r.Handle); err != nil {
				if ctx.Err() == nil {
					logger.Error("consumer error",
						slog.String("queue", q), slog.String("error", err.Error()))
				}
			}
		}(consumer, b.runner, b.inputQueue)
	}

	wg.Wait()
	logger.Info("worker stopped")
}
