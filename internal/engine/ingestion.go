package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ferg-cod3s/contextcore/internal/ingest"
	"github.com/ferg-cod3s/contextcore/internal/observability"
)

// runInstrumented invokes fn inside a trace span (when a tracer is
// configured), recording IndexerOperations/IndexerDuration/
// IndexedFilesTotal/IndexedChunksTotal/IndexerErrorsTotal when a metrics
// collector is configured.
func (e *Engine) runInstrumented(ctx context.Context, operation, path string, fn func() (int, error)) (int, error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = observability.InstrumentIndexerOperation(ctx, e.tracer.Tracer(), operation, path)
		defer span.End()
	}

	start := time.Now()
	chunks, err := fn()
	if e.tracer != nil && err != nil {
		observability.SetSpanError(ctx, err)
	}
	if e.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
			e.metrics.IndexerErrorsTotal.WithLabelValues(operation).Inc()
		} else {
			e.metrics.IndexedChunksTotal.Add(float64(chunks))
		}
		e.metrics.IndexerOperations.WithLabelValues(operation, status).Inc()
		e.metrics.IndexerDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	return chunks, err
}

// IndexLocalRequest is the input to IndexLocal, per spec.md §6's
// indexLocal operation.
type IndexLocalRequest struct {
	Path           string
	Project        string
	Dataset        string
	MaxFileSize    int64
	IgnorePatterns []string
	OnProgress     ingest.ProgressFunc
}

// IndexLocal runs a one-shot local ingestion and returns the job id
// tracking it.
func (e *Engine) IndexLocal(ctx context.Context, req IndexLocalRequest) (string, error) {
	project := e.resolveProject(req.Project)
	dataset := e.resolveDataset(req.Dataset)

	ds, collectionName, err := e.ensureScope(ctx, project, dataset)
	if err != nil {
		return "", err
	}

	source := ingest.NewLocalSource(req.MaxFileSize)
	opts := ingest.Options{
		ProjectID:      project,
		DatasetID:      ds.ID,
		CollectionName: collectionName,
		RootPath:       req.Path,
		IgnorePatterns: req.IgnorePatterns,
	}

	return e.jobs.StartJob(ctx, project, ds.ID, string(ingest.SourceKindLocal), func(runCtx context.Context, onProgress ingest.ProgressFunc) (int, error) {
		opts.OnProgress = chainProgress(req.OnProgress, onProgress)
		return e.runInstrumented(runCtx, "index_local", req.Path, func() (int, error) {
			return e.orchestrator.Run(runCtx, source, opts)
		})
	})
}

// IndexGitRequest is the input to IndexGit, per spec.md §6's indexGit
// operation.
type IndexGitRequest struct {
	RemoteURL  string
	Branch     string
	Project    string
	Dataset    string
	CloneDir   string
	OnProgress ingest.ProgressFunc
}

// IndexGit shallow-clones a repository and ingests its working tree.
func (e *Engine) IndexGit(ctx context.Context, req IndexGitRequest) (string, error) {
	project := e.resolveProject(req.Project)
	dataset := e.resolveDataset(req.Dataset)

	ds, collectionName, err := e.ensureScope(ctx, project, dataset)
	if err != nil {
		return "", err
	}

	gitSource := ingest.NewGitSource(nil)
	if err := gitSource.Clone(ctx, req.CloneDir, ingest.CloneOptions{RemoteURL: req.RemoteURL, Branch: req.Branch}); err != nil {
		return "", err
	}

	opts := ingest.Options{
		ProjectID:      project,
		DatasetID:      ds.ID,
		CollectionName: collectionName,
		RootPath:       req.CloneDir,
	}

	return e.jobs.StartJob(ctx, project, ds.ID, string(ingest.SourceKindGit), func(runCtx context.Context, onProgress ingest.ProgressFunc) (int, error) {
		opts.OnProgress = chainProgress(req.OnProgress, onProgress)
		return e.runInstrumented(runCtx, "index_git", req.CloneDir, func() (int, error) {
			return e.orchestrator.Run(runCtx, gitSource, opts)
		})
	})
}

// CrawlRequest is the input to Crawl, per spec.md §6's crawl operation.
type CrawlRequest struct {
	SeedURL    string
	Project    string
	Dataset    string
	Producer   ingest.PageProducer
	OnProgress ingest.ProgressFunc
}

// Crawl ingests pages discovered by req.Producer starting at req.SeedURL.
func (e *Engine) Crawl(ctx context.Context, req CrawlRequest) (string, error) {
	project := e.resolveProject(req.Project)
	dataset := e.resolveDataset(req.Dataset)

	ds, collectionName, err := e.ensureScope(ctx, project, dataset)
	if err != nil {
		return "", err
	}

	source := ingest.NewCrawlSource(req.Producer)
	opts := ingest.Options{
		ProjectID:      project,
		DatasetID:      ds.ID,
		CollectionName: collectionName,
		RootPath:       req.SeedURL,
	}

	return e.jobs.StartJob(ctx, project, ds.ID, string(ingest.SourceKindCrawl), func(runCtx context.Context, onProgress ingest.ProgressFunc) (int, error) {
		opts.OnProgress = chainProgress(req.OnProgress, onProgress)
		return e.runInstrumented(runCtx, "crawl", req.SeedURL, func() (int, error) {
			return e.orchestrator.Run(runCtx, source, opts)
		})
	})
}

// SyncLocal re-runs a local ingestion synchronously (not backgrounded as
// a job), returning the chunk count written — spec.md §6's syncLocal,
// which unlike indexLocal always waits for completion.
func (e *Engine) SyncLocal(ctx context.Context, path, project, dataset string, ignorePatterns []string) (int, error) {
	project = e.resolveProject(project)
	dataset = e.resolveDataset(dataset)

	ds, collectionName, err := e.ensureScope(ctx, project, dataset)
	if err != nil {
		return 0, err
	}

	source := ingest.NewLocalSource(0)
	opts := ingest.Options{
		ProjectID:      project,
		DatasetID:      ds.ID,
		CollectionName: collectionName,
		RootPath:       path,
		IgnorePatterns: ignorePatterns,
	}
	return e.runInstrumented(ctx, "sync_local", path, func() (int, error) {
		return e.orchestrator.Run(ctx, source, opts)
	})
}

// chainProgress combines a caller-supplied progress sink with the
// internal one jobs.Registry installs to mirror state to the metastore.
func chainProgress(caller, internal ingest.ProgressFunc) ingest.ProgressFunc {
	return func(p ingest.Progress) {
		if internal != nil {
			internal(p)
		}
		if caller != nil {
			caller(p)
		}
	}
}
