package main

import (
	"context"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/efebarandurmaz/courtside/internal/app"
	"github.com/efebarandurmaz/courtside/internal/config"
	"github.com/efebarandurmaz/courtside/internal/ingest"
	"github.com/efebarandurmaz/courtside/internal/logging"
	"github.com/efebarandurmaz/courtside/internal/server"
	temporalmod "github.com/efebarandurmaz/courtside/internal/temporal"

	temporalclient "go.temporal.io/sdk/client"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	for _, w := range cfg.Validate() {
		logger.Warn("Config warning", "warning", w)
	}

	ctx := context.Background()

	// Offline builds may retry where the question path does not.
	llmCfg := cfg.LLM
	if llmCfg.MaxRetries == 0 {
		llmCfg.MaxRetries = 3
	}
	embedder, err := app.NewClient(app.NewFactory(), llmCfg, "", logger)
	if err != nil {
		log.Fatalf("creating embedding provider: %v", err)
	}

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("index store: %v", err)
	}
	index, err := app.NewIndex(cfg, embedder, store, logger)
	if err != nil {
		log.Fatalf("index: %v", err)
	}

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Loader: ingest.NewLoader(logger),
		Index:  index,
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	logger.Info("Worker started", "task_queue", cfg.Temporal.TaskQueue)

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: time.Minute,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Logger:  logger,
	})
	shutdown.Add(server.TemporalWorkerShutdownHook(w.Stop))
	shutdown.RegisterHook("temporal-client", 30, func(context.Context) error {
		c.Close()
		return nil
	})
	shutdown.Add(server.IndexStoreShutdownHook(closeStore))
	shutdown.Start()
	shutdown.Wait()

	logger.Info("Worker stopped")
}
