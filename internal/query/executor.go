package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/embedding"
	"github.com/ferg-cod3s/contextcore/internal/metastore"
	"github.com/ferg-cod3s/contextcore/internal/observability"
	"github.com/ferg-cod3s/contextcore/internal/scope"
	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
)

// target is one collection the executor must search, resolved from the
// caller's access set.
type target struct {
	datasetID      string
	collectionName string
	hybrid         bool
	order          int
}

// Executor resolves access, embeds, fans out per-collection search, fuses,
// and optionally reranks, per spec.md §4.I.
type Executor struct {
	resolver *scope.Resolver
	store    *metastore.Store
	embedder *embedding.Coordinator
	index    vectorindex.Gateway
	reranker Reranker
	metrics  *observability.FanoutMetrics
}

// NewExecutor constructs an Executor. reranker may be nil, in which case
// Search never reranks even if Request.Rerank is set.
func NewExecutor(resolver *scope.Resolver, store *metastore.Store, embedder *embedding.Coordinator, index vectorindex.Gateway, reranker Reranker) *Executor {
	return &Executor{resolver: resolver, store: store, embedder: embedder, index: index, reranker: reranker}
}

// SetMetrics attaches fan-out search metrics. Optional; nil-safe if never
// called.
func (e *Executor) SetMetrics(metrics *observability.FanoutMetrics) {
	e.metrics = metrics
}

func report(fn ProgressFunc, phase Phase, pct float64, detail string) {
	if fn != nil {
		fn(Progress{Phase: phase, Percentage: pct, Detail: detail})
	}
}

// Search executes one query across the caller's full access set.
func (e *Executor) Search(ctx context.Context, req Request) (resp *Response, err error) {
	start := time.Now()
	if e.metrics != nil {
		defer func() {
			status := "success"
			n := 0
			if err != nil {
				status = "error"
			} else if resp != nil {
				n = len(resp.Hits)
			}
			e.metrics.RecordFanoutSearch(status, time.Since(start), n)
		}()
	}

	topK := defaultTopK(req.TopK)
	threshold := defaultThreshold(req.Threshold)

	report(req.OnProgress, PhaseResolve, 0.0, "resolving access set")
	targets, datasetIDs, err := e.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.UpdateActiveCollections(len(targets))
	}
	if len(targets) == 0 {
		report(req.OnProgress, PhaseDone, 1.0, "empty access set")
		return &Response{Hits: []Hit{}, QueryTime: time.Since(start)}, nil
	}

	report(req.OnProgress, PhaseEmbed, 0.2, "embedding query")
	queryVector, err := e.embedder.EmbedQuery(ctx, req.Query, embedding.ModelHintText)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "embed query", err)
	}

	filter := vectorindex.FilterDescriptor{
		DatasetIDs: datasetIDs,
		Repo:       req.Filter.Repo,
		Lang:       req.Filter.Lang,
		PathPrefix: req.Filter.PathPrefix,
	}
	searchOpts := vectorindex.SearchOptions{
		Limit:     fanoutK(topK),
		Threshold: 0, // raw similarity threshold applied after fusion, per spec step 6
		Filter:    filter,
	}

	report(req.OnProgress, PhaseSearch, 0.4, fmt.Sprintf("searching %d collections", len(targets)))
	lists, err := e.fanOut(ctx, req.Query, queryVector.Vector, req.Mode, targets, searchOpts)
	if err != nil {
		return nil, err
	}

	report(req.OnProgress, PhaseFuse, 0.7, "fusing results")
	fused := fuseAcrossCollections(lists)

	if err := assertNoLeakage(fused, datasetIDs); err != nil {
		return nil, err
	}

	cut := cutByThreshold(fused, threshold, topK)

	if req.Rerank && e.reranker != nil && len(cut) > 0 {
		report(req.OnProgress, PhaseRerank, 0.9, "reranking")
		cut, err = e.rerank(ctx, req.Query, cut)
		if err != nil {
			return nil, err
		}
	}

	report(req.OnProgress, PhaseDone, 1.0, "done")
	return &Response{Hits: cut, QueryTime: time.Since(start)}, nil
}

// resolveTargets computes the set of collections in scope for req, and the
// flat list of every dataset id in the access set — the mandatory filter
// spec.md's REDESIGN FLAG requires be attached to every downstream search.
func (e *Executor) resolveTargets(ctx context.Context, req Request) ([]target, []string, error) {
	accessible, err := e.resolver.ResolveAccessible(ctx, req.ProjectID, req.ProjectID, req.IncludeGlobal)
	if err != nil {
		return nil, nil, coreerrors.Wrap(coreerrors.KindInternal, "resolve access set", err)
	}

	var targets []target
	var datasetIDs []string
	order := 0
	for _, ad := range accessible {
		if req.DatasetID != "" && ad.Dataset.ID != req.DatasetID {
			continue
		}
		datasetIDs = append(datasetIDs, ad.Dataset.ID)

		binding, err := e.store.GetCollectionBinding(ctx, ad.Dataset.ID)
		if err != nil {
			if coreerrors.Is(err, coreerrors.KindNotFound) {
				continue // dataset exists but nothing has been ingested into it yet
			}
			return nil, nil, err
		}
		targets = append(targets, target{
			datasetID:      ad.Dataset.ID,
			collectionName: binding.CollectionName,
			hybrid:         binding.Backend == "hybrid",
			order:          order,
		})
		order++
	}
	return targets, datasetIDs, nil
}

// fanOut runs one search per target collection concurrently via errgroup,
// replacing the teacher's goroutine+channel pattern in
// internal/federation/service.go's executeParallelSearches.
func (e *Executor) fanOut(ctx context.Context, query string, vector embedding.Vector, mode Mode, targets []target, opts vectorindex.SearchOptions) ([]collectionHits, error) {
	lists := make([]collectionHits, len(targets))
	g, gctx := errgroup.WithContext(ctx)

	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			legStart := time.Now()
			var results []vectorindex.SearchResult
			var err error
			switch {
			case mode == ModeDense || !t.hybrid:
				results, err = e.index.Search(gctx, t.collectionName, vector, opts)
			default:
				results, err = e.index.HybridSearch(gctx, t.collectionName, query, vector, opts)
			}
			if e.metrics != nil {
				status := "success"
				if err != nil {
					status = "error"
					e.metrics.RecordCollectionError(t.datasetID, "search_failed")
				}
				e.metrics.RecordCollectionSearch(t.datasetID, status, time.Since(legStart))
			}
			if err != nil {
				return coreerrors.Wrap(coreerrors.KindInternal, fmt.Sprintf("search collection %s", t.collectionName), err)
			}
			for idx := range results {
				if results[idx].Document.Metadata == nil {
					results[idx].Document.Metadata = map[string]interface{}{}
				}
				results[idx].Document.Metadata["dataset_id"] = t.datasetID
			}
			lists[i] = collectionHits{order: t.order, results: results}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

// assertNoLeakage implements spec.md §4.I's invariant: a result whose
// dataset id falls outside the resolved access set is a bug, not a
// filterable condition — the caller is expected to crash loudly rather
// than silently serve it.
func assertNoLeakage(hits []Hit, allowed []string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}
	for _, h := range hits {
		datasetID, _ := h.Document.Metadata["dataset_id"].(string)
		if !allowedSet[datasetID] {
			return coreerrors.New(coreerrors.KindInternal, "cross-dataset leakage detected").WithResource(datasetID)
		}
	}
	return nil
}

// cutByThreshold drops hits below threshold (by raw similarity) and keeps
// the top topK, per spec.md §4.I step 6.
func cutByThreshold(hits []Hit, threshold float32, topK int) []Hit {
	out := make([]Hit, 0, topK)
	for _, h := range hits {
		if h.rawSimilarity() < threshold {
			continue
		}
		out = append(out, h)
		if len(out) == topK {
			break
		}
	}
	return out
}

// rerank passes the cut hit list through the configured cross-encoder,
// reordering by rerank score and preserving original rank as a tiebreak
// (spec.md §4.I step 7).
func (e *Executor) rerank(ctx context.Context, query string, hits []Hit) ([]Hit, error) {
	docs := make([]string, len(hits))
	for i, h := range hits {
		docs[i] = h.Document.Content
	}
	scores, err := e.reranker.Rerank(ctx, query, docs)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "rerank", err)
	}

	type ranked struct {
		hit          Hit
		originalRank int
	}
	rankedHits := make([]ranked, len(hits))
	for i, h := range hits {
		h.Scores.Rerank = scores[i]
		h.Scores.Final = scores[i]
		rankedHits[i] = ranked{hit: h, originalRank: i}
	}

	sort.SliceStable(rankedHits, func(i, j int) bool {
		if rankedHits[i].hit.Scores.Rerank != rankedHits[j].hit.Scores.Rerank {
			return rankedHits[i].hit.Scores.Rerank > rankedHits[j].hit.Scores.Rerank
		}
		return rankedHits[i].originalRank < rankedHits[j].originalRank
	})

	out := make([]Hit, len(rankedHits))
	for i, r := range rankedHits {
		out[i] = r.hit
	}
	return out, nil
}
