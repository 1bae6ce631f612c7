package sqlite

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/embedding"
	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
)

const rrfK = 60

// HybridSearch combines BM25 and dense vector search with Reciprocal Rank
// Fusion, ported from the teacher's internal/vectorstore/sqlite/hybrid.go
// RRF formula: score = α/(k+rank_vector) + (1-α)/(k+rank_bm25), k=60, α=0.5.
func (g *Gateway) HybridSearch(ctx context.Context, collection, query string, vector embedding.Vector, opts vectorindex.SearchOptions) ([]vectorindex.SearchResult, error) {
	if query == "" && len(vector) == 0 {
		return nil, coreerrors.New(coreerrors.KindValidation, "must provide either query text or query vector")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	fanOpts := opts
	fanOpts.Limit = (limit + opts.Offset) * 2

	var bm25Results, vectorResults []vectorindex.SearchResult
	var err error

	if query != "" {
		bm25Results, err = g.SearchBM25(ctx, collection, query, fanOpts)
		if err != nil {
			return nil, err
		}
	}
	if len(vector) > 0 {
		vectorResults, err = g.Search(ctx, collection, vector, fanOpts)
		if err != nil {
			return nil, err
		}
	}

	if len(bm25Results) == 0 && len(vectorResults) == 0 {
		return []vectorindex.SearchResult{}, nil
	}
	if len(bm25Results) == 0 {
		return limitResults(vectorResults, limit), nil
	}
	if len(vectorResults) == 0 {
		return limitResults(bm25Results, limit), nil
	}

	fused := applyRRF(bm25Results, vectorResults, 0.5)

	if opts.Rerank {
		for i := range fused {
			fused[i].Score += computeMetadataBoost(fused[i].Document, query)
		}
		sort.Slice(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	}

	if opts.Threshold > 0 {
		filtered := fused[:0]
		for _, r := range fused {
			if r.Score >= opts.Threshold {
				filtered = append(filtered, r)
			}
		}
		fused = filtered
	}

	return limitResults(fused, limit), nil
}

// applyRRF fuses two ranked result sets by reciprocal rank.
func applyRRF(bm25Results, vectorResults []vectorindex.SearchResult, alpha float32) []vectorindex.SearchResult {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	bm25Ranks := make(map[string]int, len(bm25Results))
	for i, r := range bm25Results {
		bm25Ranks[r.Document.ID] = i
	}
	vectorRanks := make(map[string]int, len(vectorResults))
	for i, r := range vectorResults {
		vectorRanks[r.Document.ID] = i
	}

	docByID := make(map[string]vectorindex.Document, len(bm25Results)+len(vectorResults))
	for _, r := range bm25Results {
		docByID[r.Document.ID] = r.Document
	}
	for _, r := range vectorResults {
		if _, ok := docByID[r.Document.ID]; !ok {
			docByID[r.Document.ID] = r.Document
		}
	}

	k := float32(rrfK)
	fused := make([]vectorindex.SearchResult, 0, len(docByID))
	for id, doc := range docByID {
		var score float32
		if rank, ok := bm25Ranks[id]; ok {
			score += (1 - alpha) * (1.0 / (k + float32(rank)))
		}
		if rank, ok := vectorRanks[id]; ok {
			score += alpha * (1.0 / (k + float32(rank)))
		}
		fused = append(fused, vectorindex.SearchResult{Document: doc, Score: score, Method: "hybrid"})
	}

	sort.Slice(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}

// computeMetadataBoost applies a small, capped additive boost based on
// filename-term overlap, recency, and language hints, ported from the
// teacher's internal/vectorstore/sqlite/hybrid.go.
func computeMetadataBoost(doc vectorindex.Document, query string) float32 {
	var boost float32
	const maxBoost = 0.006

	if filePath, ok := doc.Metadata["file_path"].(string); ok {
		filename := strings.ToLower(filepath.Base(filePath))
		for _, term := range strings.Fields(strings.ToLower(query)) {
			if strings.Contains(filename, term) {
				boost += 0.0015
				break
			}
		}
	}

	if !doc.UpdatedAt.IsZero() {
		days := time.Since(doc.UpdatedAt).Hours() / 24
		switch {
		case days <= 7:
			boost += 0.003
		case days <= 30:
			boost += 0.0015
		}
	}

	if lang, ok := doc.Metadata["language"].(string); ok && lang != "" {
		if strings.Contains(strings.ToLower(query), strings.ToLower(lang)) {
			boost += 0.001
		}
	}

	if boost > maxBoost {
		boost = maxBoost
	}
	return boost
}

func limitResults(results []vectorindex.SearchResult, limit int) []vectorindex.SearchResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}
