package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/courtside/internal/app"
	"github.com/efebarandurmaz/courtside/internal/config"
	"github.com/efebarandurmaz/courtside/internal/ingest"
	"github.com/efebarandurmaz/courtside/internal/llm"
	"github.com/efebarandurmaz/courtside/internal/logging"
	"github.com/efebarandurmaz/courtside/internal/metrics"
	"github.com/efebarandurmaz/courtside/internal/server"
	"github.com/efebarandurmaz/courtside/internal/sqldb"
	temporalmod "github.com/efebarandurmaz/courtside/internal/temporal"
)

var version = "0.1.0"

const defaultConfigPath = "configs/courtside.yaml"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "courtside",
		Short:         "Question answering over NBA statistics and match reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default "+defaultConfigPath+" when present)")

	var (
		inputDir    string
		dataURL     string
		jsonReport  bool
		useTemporal bool
	)
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Build the vector index from the input documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(configPath)
			if err != nil {
				return err
			}
			if inputDir != "" {
				cfg.Index.InputDir = inputDir
			}
			if dataURL != "" {
				cfg.Index.DataURL = dataURL
			}
			if useTemporal {
				return runTemporalIndex(cmd.Context(), cfg, jsonReport)
			}
			return runIndex(cmd.Context(), cfg, logger, jsonReport)
		},
	}
	indexCmd.Flags().StringVar(&inputDir, "input-dir", "", "Directory of documents to index (overrides index.input_dir)")
	indexCmd.Flags().StringVar(&dataURL, "data-url", "", "Zip archive to download and unpack into the input directory first")
	indexCmd.Flags().BoolVar(&jsonReport, "json", false, "Output the run summary as JSON")
	indexCmd.Flags().BoolVar(&useTemporal, "temporal", false, "Run the build as a Temporal workflow on the configured task queue")

	var askJSON bool
	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(configPath)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), cfg, logger, strings.Join(args, " "), askJSON)
		},
	}
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the response as JSON")

	var (
		addr  string
		watch bool
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				cfg.Server.Watch = watch
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&watch, "watch", false, "Rebuild the index when the input directory changes")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			names := make([]string, 0, len(llm.KnownProviders))
			for name := range llm.KnownProviders {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Println("Available LLM providers:")
			fmt.Println()
			for _, name := range names {
				fmt.Printf("  %-14s %s\n", name, llm.KnownProviders[name])
			}
			fmt.Println("  custom         (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println()
			fmt.Println("Configure in courtside.yaml or via environment:")
			fmt.Println("  COURTSIDE_LLM_PROVIDER=mistral")
			fmt.Println("  MISTRAL_API_KEY=...")
			fmt.Println("  COURTSIDE_LLM_MODEL=mistral-small-latest")
		},
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the table description given to the SQL generator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(configPath)
			if err != nil {
				return err
			}
			db, err := sqldb.Open(cmd.Context(), cfg.SQL.DSN)
			if err != nil {
				return err
			}
			defer db.Close()
			info, err := db.TableInfo(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(info)
			return nil
		},
	}

	rootCmd.AddCommand(indexCmd, askCmd, serveCmd, providersCmd, schemaCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(configPath string) (*config.Config, *slog.Logger, error) {
	if configPath == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			configPath = defaultConfigPath
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	for _, w := range cfg.Validate() {
		logger.Warn("Config warning", "warning", w)
	}
	return cfg, logger, nil
}

func runIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger, jsonReport bool) error {
	run := metrics.New(cfg.Index.InputDir, cfg.Index.Store, cfg.LLM.EmbedModel)

	if cfg.Index.DataURL != "" {
		err := run.Time("fetch", func() error {
			n, err := ingest.FetchArchive(ctx, nil, cfg.Index.DataURL, cfg.Index.InputDir)
			run.CollectArchive(cfg.Index.DataURL, n)
			return err
		})
		if err != nil {
			return report(run, jsonReport, err)
		}
	}

	embedder, err := app.NewClient(app.NewFactory(), cfg.LLM, "", logger)
	if err != nil {
		return err
	}
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	index, err := app.NewIndex(cfg, embedder, store, logger)
	if err != nil {
		return err
	}

	var docs []ingest.Document
	err = run.Time("load", func() error {
		var err error
		docs, err = ingest.NewLoader(logger).Load(ctx, cfg.Index.InputDir)
		return err
	})
	if err != nil {
		return report(run, jsonReport, err)
	}

	err = run.Time("build", func() error {
		r, err := index.Build(ctx, docs)
		if err == nil {
			run.CollectBuild(r)
		}
		return err
	})
	return report(run, jsonReport, err)
}

func report(run *metrics.IndexRun, asJSON bool, err error) error {
	run.Finish()
	if asJSON {
		data, jerr := run.JSON()
		if jerr != nil {
			return jerr
		}
		fmt.Println(string(data))
	} else {
		run.PrintSummary(os.Stdout)
	}
	return err
}

func runTemporalIndex(ctx context.Context, cfg *config.Config, jsonReport bool) error {
	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	out, err := temporalmod.RunIndexBuild(ctx, c, cfg.Temporal.TaskQueue, temporalmod.IndexBuildInput{
		InputDir: cfg.Index.InputDir,
		DataURL:  cfg.Index.DataURL,
	})
	if err != nil {
		return err
	}
	if jsonReport {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("Index built: %d documents, %d chunks in %s\n", out.Documents, out.Chunks, time.Duration(out.DurationMS)*time.Millisecond)
	return nil
}

func runAsk(ctx context.Context, cfg *config.Config, logger *slog.Logger, question string, asJSON bool) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := ensureIndex(ctx, a, logger); err != nil {
		return err
	}

	resp := a.Router.Route(ctx, question)
	if asJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(resp.Answer)
	for i, c := range resp.Contexts {
		fmt.Printf("\n--- contexte %d ---\n%s\n", i+1, c)
	}
	return nil
}

// ensureIndex tolerates an empty input directory: retrieval questions then
// get the no-information answer.
func ensureIndex(ctx context.Context, a *app.App, logger *slog.Logger) error {
	err := a.EnsureIndex(ctx)
	if errors.Is(err, ingest.ErrNoDocuments) {
		logger.Warn("No documents to index, continuing with an empty index", "input_dir", a.Config.Index.InputDir)
		return nil
	}
	return err
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := ensureIndex(ctx, a, logger); err != nil {
		a.Close(context.Background())
		return err
	}

	api := server.NewAPI(a.Router, a.Index, a.HealthServer(version),
		server.WithLogger(logger),
		server.WithRebuild(a.Rebuild),
	)

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
		Logger:  logger,
	})
	shutdown.Add(server.HTTPServerShutdownHook("api", api.Shutdown))
	for _, h := range a.ShutdownHooks() {
		shutdown.Add(h)
	}

	if cfg.Server.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		shutdown.Add(server.WatcherShutdownHook(cancel))
		go func() {
			if err := a.Watch(watchCtx, 2*time.Second); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Input watcher stopped", "error", err)
			}
		}()
		logger.Info("Watching input directory", "dir", cfg.Index.InputDir)
	}

	shutdown.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- api.ListenAndServe(cfg.Server.Addr) }()

	select {
	case err := <-errCh:
		shutdown.Shutdown()
		shutdown.Wait()
		return err
	case <-shutdown.ShutdownCh():
		shutdown.Wait()
		return nil
	}
}
