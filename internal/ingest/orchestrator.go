package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ferg-cod3s/contextcore/internal/chunking"
	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/embedding"
	"github.com/ferg-cod3s/contextcore/internal/hashing"
	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
)

// embedBatchSize bounds how many chunks are embedded in one Coordinator
// call, matching the teacher's controller.go batching of vector store writes.
const embedBatchSize = 64

// Orchestrator runs the five-phase ingestion pipeline — discover, diff,
// chunk, embed, index — generalizing the teacher's
// internal/indexer/controller.go DefaultIndexController.Start goroutine
// into a source-agnostic, synchronous pipeline the caller drives (job
// lifecycle and backgrounding now live in internal/jobs, not here).
type Orchestrator struct {
	snapshots *hashing.SnapshotStore
	chunker   *chunking.Chunker
	embedder  *embedding.Coordinator
	index     vectorindex.Gateway
}

// NewOrchestrator wires the pipeline stages together. Diffing always
// compares content hashes (hashing.BuildSnapshotFromContent) rather than
// re-walking the filesystem, so it works uniformly across local, git, and
// crawl sources.
func NewOrchestrator(snapshots *hashing.SnapshotStore, chunker *chunking.Chunker, embedder *embedding.Coordinator, index vectorindex.Gateway) *Orchestrator {
	return &Orchestrator{snapshots: snapshots, chunker: chunker, embedder: embedder, index: index}
}

// Run executes one ingestion pass against source, reporting progress
// through opts.OnProgress, and returns the total chunk count written.
func (o *Orchestrator) Run(ctx context.Context, source Source, opts Options) (int, error) {
	report := func(p Progress) {
		if opts.OnProgress != nil {
			opts.OnProgress(p)
		}
	}

	report(Progress{Phase: PhaseDiscovering})
	files, err := source.Discover(ctx, opts)
	if err != nil {
		return 0, coreerrors.Wrap(coreerrors.KindIO, "discover source content", err)
	}
	report(Progress{Phase: PhaseDiscovering, TotalFiles: len(files)})

	changed, err := o.diff(ctx, opts, files)
	if err != nil {
		return 0, err
	}
	report(Progress{Phase: PhaseDiffing, TotalFiles: len(files), FilesProcessed: len(files) - len(changed)})

	if ok, err := o.index.HasCollection(ctx, opts.CollectionName); err != nil {
		return 0, err
	} else if !ok {
		if err := o.index.CreateHybridCollection(ctx, opts.CollectionName, 0); err != nil {
			return 0, err
		}
	}

	total := 0
	processed := 0
	for path, content := range changed {
		select {
		case <-ctx.Done():
			return total, coreerrors.Wrap(coreerrors.KindCancelled, "ingestion cancelled", ctx.Err())
		default:
		}

		chunks, err := o.chunker.Chunk(ctx, string(content), path, chunking.ModeSemantic)
		if err != nil {
			return total, coreerrors.Wrap(coreerrors.KindInternal, "chunk "+path, err)
		}
		report(Progress{Phase: PhaseChunking, TotalFiles: len(files), FilesProcessed: processed, ChunksCreated: total})

		n, err := o.embedAndIndex(ctx, opts, path, chunks)
		if err != nil {
			return total, err
		}
		total += n
		processed++
		report(Progress{Phase: PhaseIndexing, TotalFiles: len(files), FilesProcessed: processed, ChunksCreated: total})
	}

	report(Progress{Phase: PhaseDone, TotalFiles: len(files), FilesProcessed: len(files), ChunksCreated: total})
	return total, nil
}

// diff computes which discovered paths actually changed since the last
// snapshot for this root, persisting the new snapshot for next time. When
// no prior snapshot exists, every file is treated as changed (first run).
func (o *Orchestrator) diff(ctx context.Context, opts Options, files map[string][]byte) (map[string][]byte, error) {
	prev, err := o.snapshots.Load(opts.RootPath)
	if err != nil {
		return nil, err
	}

	next := hashing.BuildSnapshotFromContent(files)
	if err := o.snapshots.Save(opts.RootPath, next); err != nil {
		return nil, err
	}

	if prev == nil {
		return files, nil
	}

	d := hashing.DiffSnapshots(prev, next)
	changed := make(map[string][]byte, len(d.Added)+len(d.Modified))
	for _, p := range d.Added {
		changed[p] = files[p]
	}
	for _, p := range d.Modified {
		changed[p] = files[p]
	}
	for _, p := range d.Deleted {
		if err := o.index.Delete(ctx, opts.CollectionName, chunkFileID(p)); err != nil && !coreerrors.Is(err, coreerrors.KindNotFound) {
			return nil, err
		}
	}
	return changed, nil
}

// embedAndIndex embeds and upserts chunks in bounded batches, fanning each
// batch's dense+sparse embedding concurrently via the Coordinator.
func (o *Orchestrator) embedAndIndex(ctx context.Context, opts Options, path string, chunks []chunking.Chunk) (int, error) {
	total := 0
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		hint := embedding.ModelHintText
		if len(batch) > 0 && isCodeChunk(batch[0]) {
			hint = embedding.ModelHintCode
		}

		result, err := o.embedder.EmbedBoth(ctx, texts, hint)
		if err != nil {
			return total, coreerrors.Wrap(coreerrors.KindInternal, "embed chunk batch for "+path, err)
		}

		docs := make([]vectorindex.Document, len(batch))
		for i, c := range batch {
			var sparse *embedding.SparseVector
			if result.Sparse != nil && i < len(result.Sparse) {
				sparse = &result.Sparse[i]
			}
			docs[i] = vectorindex.Document{
				ID:      c.ID,
				Content: c.Content,
				Vector:  result.Dense[i].Vector,
				Sparse:  sparse,
				Metadata: map[string]interface{}{
					"project_id": opts.ProjectID,
					"dataset_id": opts.DatasetID,
					"file_path":  c.FilePath,
					"language":   c.Language,
					"type":       string(c.Type),
					"start_line": c.StartLine,
					"end_line":   c.EndLine,
				},
				CreatedAt: c.IndexedAt,
				UpdatedAt: c.IndexedAt,
			}
		}

		if err := o.index.UpsertBatch(ctx, opts.CollectionName, docs); err != nil {
			return total, err
		}
		total += len(docs)
	}
	return total, nil
}

func isCodeChunk(c chunking.Chunk) bool {
	return c.Type != chunking.ChunkTypeParagraph && c.Type != chunking.ChunkTypeSection
}

func chunkFileID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:16]
}

// RunMany ingests multiple dataset bindings concurrently, bounded by
// errgroup, for a caller re-syncing several project/dataset pairs at once.
func RunMany(ctx context.Context, runs []func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, run := range runs {
		run := run
		g.Go(func() error { return run(gctx) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("concurrent ingestion run failed: %w", err)
	}
	return nil
}
