// Package main implements the contextcore CLI - a project-scoped code and
// document search engine. This file is the entry point and command
// registration hub; subcommands are split across cmd_*.go files following
// the teacher's multi-file cobra layout.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/ferg-cod3s/contextcore/internal/chunking"
	"github.com/ferg-cod3s/contextcore/internal/config"
	"github.com/ferg-cod3s/contextcore/internal/embedding"
	"github.com/ferg-cod3s/contextcore/internal/engine"
	"github.com/ferg-cod3s/contextcore/internal/observability"
)

const Version = "0.1.0"

var (
	// Global flags
	projectFlag string
	datasetFlag string

	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.MetricsCollector
	tracer  *observability.TracerProvider
	eng     *engine.Engine
)

var commandStart time.Time

var rootCmd = &cobra.Command{
	Use:   "contextcore",
	Short: "contextcore - project-scoped code and document search",
	Long: `contextcore indexes local repositories, git remotes, and crawled
pages into per-project, per-dataset collections, then answers hybrid
dense+keyword queries over them, optionally enhanced and synthesized by an
LLM.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "contextcore" {
			return nil
		}
		if err := setup(cmd.Context()); err != nil {
			return err
		}
		commandStart = time.Now()
		if metrics != nil {
			metrics.TrackCLICommandInFlight(cmd.Name(), 1)
		}
		logger.LogCommandStart(cmd.Context(), cmd.Name(), args)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if eng == nil {
			return nil
		}
		// cobra runs PersistentPostRunE only after RunE returned nil, so
		// this records successful completions; a command whose RunE fails
		// skips this logging, the metrics update and eng.Close.
		logger.LogCommandResult(cmd.Context(), cmd.Name(), true, time.Since(commandStart))
		if metrics != nil {
			metrics.RecordCLICommand(cmd.Name(), "completed", time.Since(commandStart))
			metrics.TrackCLICommandInFlight(cmd.Name(), -1)
		}
		if tracer != nil {
			_ = tracer.Shutdown(cmd.Context())
		}
		return eng.Close()
	},
}

// setup loads configuration and wires an Engine, following the teacher's
// main.go order: config -> logger -> metrics -> tracing -> sentry -> stores -> engine.
func setup(ctx context.Context) error {
	var err error
	cfg, err = config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger = observability.NewLogger(observability.LoggerConfig{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		Output:        os.Stderr,
		AddSource:     true,
		SentryEnabled: cfg.Observability.Sentry.Enabled,
	})

	if cfg.Observability.Metrics.Enabled {
		metrics = observability.NewMetricsCollector("contextcore")
	}

	tracer, err = observability.NewTracerProvider(observability.TracerConfig{
		ServiceName:    "contextcore",
		ServiceVersion: Version,
		Environment:    cfg.Observability.Sentry.Environment,
		OTLPEndpoint:   cfg.Observability.Tracing.Endpoint,
		SamplingRate:   cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("construct tracer: %w", err)
	}

	if cfg.Observability.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Observability.Sentry.DSN,
			Environment:      cfg.Observability.Sentry.Environment,
			Release:          cfg.Observability.Sentry.Release,
			TracesSampleRate: cfg.Observability.Sentry.SampleRate,
		}); err != nil {
			logger.Error("failed to initialize sentry", "error", err)
		}
	}

	provider, err := embedding.Get(cfg.Embedding.Provider)
	if err != nil {
		return fmt.Errorf("get embedding provider %q: %w", cfg.Embedding.Provider, err)
	}
	providerConfig := map[string]interface{}{
		"model":      cfg.Embedding.Model,
		"dimensions": cfg.Embedding.Dimensions,
	}
	for k, v := range cfg.Embedding.Config {
		providerConfig[k] = v
	}
	embedder, err := provider.Create(providerConfig)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}

	eng, err = engine.New(engine.Config{
		MetastorePath: cfg.Database.Path,
		VectorDBPath:  cfg.Database.Path,
		SnapshotDir:   snapshotDir(cfg.Database.Path),
		ChunkConfig: chunking.Config{
			MaxChunkSize: cfg.Indexer.ChunkSize,
			OverlapSize:  cfg.Indexer.ChunkOverlap,
		},
		TextEmbedder:   embedder,
		CodeEmbedder:   embedder,
		SparseEmbedder: embedding.NewBM25TermEmbedder(nil),
		Metrics:        metrics,
		Tracer:         tracer,
	})
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}

	eng.SetDefaults(projectFlag, datasetFlag)
	return nil
}

func snapshotDir(dbPath string) string {
	return dbPath + ".snapshots"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "Project scope (not remembered between runs)")
	rootCmd.PersistentFlags().StringVar(&datasetFlag, "dataset", "", "Dataset scope within the project")

	rootCmd.AddCommand(
		indexCmd,
		syncCmd,
		watchCmd,
		queryCmd,
		smartQueryCmd,
		statsCmd,
		listScopesCmd,
		historyCmd,
		clearCmd,
		statusCmd,
		jobsCmd,
	)
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

