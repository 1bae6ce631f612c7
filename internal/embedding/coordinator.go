package embedding

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"go.opentelemetry.io/otel/trace"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/observability"
)

// ModelHint selects which dense embedder a batch should route to.
type ModelHint string

const (
	ModelHintText ModelHint = "text"
	ModelHintCode ModelHint = "code"
)

// CoordinatorConfig configures the Coordinator's concurrency and retry
// behavior, matching spec.md §5's embedding in-flight bound.
type CoordinatorConfig struct {
	MaxInFlight  int64
	RetryBackoff time.Duration
	MaxRetries   int
}

// DefaultCoordinatorConfig returns the spec's numeric defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{MaxInFlight: 16, RetryBackoff: 200 * time.Millisecond, MaxRetries: 3}
}

// Coordinator routes embedding requests to the right dense model, runs
// sparse encoding alongside, and bounds in-flight concurrency, per spec.md
// §4.C. The per-model error isolation mirrors the teacher's ProviderRegistry
// lookup-by-name pattern; the concurrent batch dispatch is new, grounded on
// the errgroup usage in the pack's watcher/CLI repos.
type Coordinator struct {
	textEmbedder Embedder
	codeEmbedder Embedder
	sparse       SparseEmbedder
	sem          *semaphore.Weighted
	cfg          CoordinatorConfig
	tracer       *observability.TracerProvider
}

// NewCoordinator wires a text embedder, a code embedder, and an optional
// sparse embedder into one routing facade.
func NewCoordinator(textEmbedder, codeEmbedder Embedder, sparse SparseEmbedder, cfg CoordinatorConfig) *Coordinator {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultCoordinatorConfig().MaxInFlight
	}
	return &Coordinator{
		textEmbedder: textEmbedder,
		codeEmbedder: codeEmbedder,
		sparse:       sparse,
		sem:          semaphore.NewWeighted(cfg.MaxInFlight),
		cfg:          cfg,
	}
}

// SetTracer attaches span tracing to embedding calls. Optional; nil-safe
// if never called.
func (c *Coordinator) SetTracer(tracer *observability.TracerProvider) {
	c.tracer = tracer
}

func (c *Coordinator) embedderFor(hint ModelHint) (Embedder, error) {
	switch hint {
	case ModelHintCode:
		if c.codeEmbedder == nil {
			return nil, coreerrors.New(coreerrors.KindInternal, "no code embedder configured")
		}
		return c.codeEmbedder, nil
	default:
		if c.textEmbedder == nil {
			return nil, coreerrors.New(coreerrors.KindInternal, "no text embedder configured")
		}
		return c.textEmbedder, nil
	}
}

// EmbedDense embeds texts with the model selected by hint, retrying
// transient failures with a small bounded backoff (grounded on the
// teacher's GitHub connector rate limiter shape).
func (c *Coordinator) EmbedDense(ctx context.Context, texts []string, hint ModelHint) ([]*Embedding, error) {
	embedder, err := c.embedderFor(hint)
	if err != nil {
		return nil, err
	}
	if c.tracer != nil {
		totalLen := 0
		for _, t := range texts {
			totalLen += len(t)
		}
		var span trace.Span
		ctx, span = observability.InstrumentEmbedding(ctx, c.tracer.Tracer(), string(hint), totalLen)
		defer span.End()
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindCancelled, "acquire embedding slot", err)
	}
	defer c.sem.Release(1)

	var result []*Embedding
	attempt := 0
	for {
		result, err = embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return result, nil
		}
		attempt++
		if attempt > c.cfg.MaxRetries {
			return nil, coreerrors.Wrap(coreerrors.KindTimeout, fmt.Sprintf("embed batch failed after %d attempts", attempt), err)
		}
		select {
		case <-ctx.Done():
			return nil, coreerrors.Wrap(coreerrors.KindCancelled, "embedding cancelled", ctx.Err())
		case <-time.After(c.cfg.RetryBackoff * time.Duration(1<<(attempt-1))):
		}
	}
}

// EmbedSparse produces sparse vectors alongside dense ones, returning a nil
// slice (not an error) when no sparse embedder is configured.
func (c *Coordinator) EmbedSparse(ctx context.Context, texts []string) ([]SparseVector, error) {
	if c.sparse == nil {
		return nil, nil
	}
	return c.sparse.EmbedSparse(ctx, texts)
}

// DenseSparseResult pairs dense and sparse output for one batch.
type DenseSparseResult struct {
	Dense  []*Embedding
	Sparse []SparseVector
}

// EmbedBoth runs dense and sparse embedding concurrently via errgroup, so
// ingestion never blocks sparse encoding on a slow dense provider or vice
// versa. Only the dense half takes a slot of the in-flight semaphore; the
// sparse half runs unbounded.
func (c *Coordinator) EmbedBoth(ctx context.Context, texts []string, hint ModelHint) (*DenseSparseResult, error) {
	var result DenseSparseResult
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dense, err := c.EmbedDense(gctx, texts, hint)
		if err != nil {
			return err
		}
		result.Dense = dense
		return nil
	})
	g.Go(func() error {
		sparse, err := c.EmbedSparse(gctx, texts)
		if err != nil {
			return err
		}
		result.Sparse = sparse
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &result, nil
}

// EmbedQuery embeds a single query string for search-time use.
func (c *Coordinator) EmbedQuery(ctx context.Context, query string, hint ModelHint) (*Embedding, error) {
	embedder, err := c.embedderFor(hint)
	if err != nil {
		return nil, err
	}
	if c.tracer != nil {
		var span trace.Span
		ctx, span = observability.InstrumentEmbedding(ctx, c.tracer.Tracer(), string(hint), len(query))
		defer span.End()
	}
	emb, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "embed query", err)
	}
	return emb, nil
}
