// Package engine provides the single facade (Engine) every indexing and
// query operation hangs off, wiring config, stores, and coordinators
// together in one place. cmd/contextcore constructs one Engine and
// dispatches cobra subcommands onto its methods.
package engine

import (
	"context"
	"fmt"

	"github.com/ferg-cod3s/contextcore/internal/chunking"
	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/embedding"
	"github.com/ferg-cod3s/contextcore/internal/hashing"
	"github.com/ferg-cod3s/contextcore/internal/ingest"
	"github.com/ferg-cod3s/contextcore/internal/jobs"
	"github.com/ferg-cod3s/contextcore/internal/metastore"
	"github.com/ferg-cod3s/contextcore/internal/observability"
	"github.com/ferg-cod3s/contextcore/internal/query"
	"github.com/ferg-cod3s/contextcore/internal/scope"
	"github.com/ferg-cod3s/contextcore/internal/smartquery"
	"github.com/ferg-cod3s/contextcore/internal/sync"
	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
	"github.com/ferg-cod3s/contextcore/internal/vectorindex/sqlite"
)

// Config bundles the knobs Engine needs beyond its store paths, kept
// separate from internal/config.Config so this package doesn't import the
// HTTP/TLS/CORS surfaces that spec.md places out of scope for the CLI.
type Config struct {
	MetastorePath  string
	VectorDBPath   string
	SnapshotDir    string
	ChunkConfig    chunking.Config
	TextEmbedder   embedding.Embedder
	CodeEmbedder   embedding.Embedder
	SparseEmbedder embedding.SparseEmbedder
	Reranker       query.Reranker // optional
	LLM            smartquery.Client // optional
	Metrics        *observability.MetricsCollector // optional
	Tracer         *observability.TracerProvider // optional
}

// Engine is the transport-neutral implementation of every spec.md §6
// operation.
type Engine struct {
	store       *metastore.Store
	index       vectorindex.Gateway
	resolver    *scope.Resolver
	orchestrator *ingest.Orchestrator
	executor    *query.Executor
	smart       *smartquery.Layer
	jobs        *jobs.Registry
	watchers    *jobs.WatcherRegistry
	synchronizer *sync.Synchronizer
	metrics     *observability.MetricsCollector
	tracer      *observability.TracerProvider
	defaults    defaultsState
}

// New constructs an Engine, opening the metadata store and vector index
// gateway at the configured paths.
func New(cfg Config) (*Engine, error) {
	store, err := metastore.Open(cfg.MetastorePath)
	if err != nil {
		return nil, err
	}

	index, err := sqlite.NewGateway(cfg.VectorDBPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	resolver := scope.NewResolver(store)
	snapshots := hashing.NewSnapshotStore(cfg.SnapshotDir)
	chunker := chunking.New(cfg.ChunkConfig)
	coordinator := embedding.NewCoordinator(cfg.TextEmbedder, cfg.CodeEmbedder, cfg.SparseEmbedder, embedding.DefaultCoordinatorConfig())
	if cfg.Tracer != nil {
		coordinator.SetTracer(cfg.Tracer)
	}
	orchestrator := ingest.NewOrchestrator(snapshots, chunker, coordinator, index)
	executor := query.NewExecutor(resolver, store, coordinator, index, cfg.Reranker)
	if cfg.Metrics != nil {
		executor.SetMetrics(observability.NewFanoutMetrics("contextcore"))
	}
	smart := smartquery.NewLayer(executor, cfg.LLM)
	registry := jobs.NewRegistry(store)
	synchronizer := sync.NewSynchronizer()
	watchers := jobs.NewWatcherRegistry(store, synchronizer)

	return &Engine{
		store:        store,
		index:        index,
		resolver:     resolver,
		orchestrator: orchestrator,
		executor:     executor,
		smart:        smart,
		jobs:         registry,
		watchers:     watchers,
		synchronizer: synchronizer,
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
	}, nil
}

// Close releases every owned store handle.
func (e *Engine) Close() error {
	_ = e.synchronizer.UnwatchAll()
	if err := e.index.Close(); err != nil {
		return err
	}
	return e.store.Close()
}

// defaultsState backs setDefaults/getDefaults (spec.md §6 Configuration &
// scoping), an in-process convenience so the CLI doesn't require
// --project/--dataset on every invocation.
type defaultsState struct {
	project string
	dataset string
}

// SetDefaults records the caller's default project/dataset for subsequent
// calls that omit them.
func (e *Engine) SetDefaults(project, dataset string) {
	e.defaults = defaultsState{project: project, dataset: dataset}
}

// GetDefaults returns the current defaults.
func (e *Engine) GetDefaults() (project, dataset string) {
	return e.defaults.project, e.defaults.dataset
}

func (e *Engine) resolveProject(project string) string {
	if project != "" {
		return project
	}
	return e.defaults.project
}

func (e *Engine) resolveDataset(dataset string) string {
	if dataset != "" {
		return dataset
	}
	return e.defaults.dataset
}

// ensureScope get-or-creates the project/dataset rows and the dataset's
// collection binding, per spec.md §4.I step 1 (Scope resolve).
func (e *Engine) ensureScope(ctx context.Context, project, dataset string) (*metastore.Dataset, string, error) {
	if project == "" || dataset == "" {
		return nil, "", coreerrors.New(coreerrors.KindValidation, "project and dataset are required")
	}

	collectionName := scope.CanonicalCollectionName(project, dataset)

	if err := e.store.CreateProject(ctx, &metastore.Project{ID: project, Name: project}); err != nil {
		return nil, "", err
	}

	datasetID := fmt.Sprintf("%s/%s", project, dataset)
	if err := e.store.CreateDataset(ctx, &metastore.Dataset{ID: datasetID, ProjectID: project, Name: dataset}); err != nil {
		return nil, "", err
	}

	if _, err := e.store.GetCollectionBinding(ctx, datasetID); err != nil {
		if !coreerrors.Is(err, coreerrors.KindNotFound) {
			return nil, "", err
		}
		if err := e.store.BindCollection(ctx, &metastore.CollectionBinding{
			DatasetID:      datasetID,
			CollectionName: collectionName,
			Dimensions:     0,
			Backend:        "hybrid",
		}); err != nil {
			return nil, "", err
		}
	}

	ds, err := e.store.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, "", err
	}
	return ds, collectionName, nil
}
