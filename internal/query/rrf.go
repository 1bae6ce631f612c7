package query

import (
	"sort"

	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
)

const rankConstant = 60

// collectionHits is one collection's ranked result list, tagged with the
// order it was issued in so ties can break by insertion order per
// spec.md §4.I step 5.
type collectionHits struct {
	order   int
	results []vectorindex.SearchResult
}

// fuseAcrossCollections merges independently-ranked per-collection hit
// lists into one globally ranked list via Reciprocal Rank Fusion. Unlike
// internal/vectorindex/sqlite/hybrid.go's applyRRF (which fuses two
// *methods* searching the *same* collection, so a document can appear in
// both lists), here each document appears in exactly one collection's
// list, so the RRF sum collapses to its single term: 1/(rankConstant+rank).
func fuseAcrossCollections(lists []collectionHits) []Hit {
	type scored struct {
		hit   Hit
		score float32
		order int
		rank  int
	}

	var all []scored
	for _, list := range lists {
		for i, r := range list.results {
			rank := i + 1
			score := 1.0 / float32(rankConstant+rank)
			all = append(all, scored{
				hit: Hit{
					Document: r.Document,
					Method:   r.Method,
					Scores:   ScoreBreakdown{Fused: score, Final: score},
				},
				score: score,
				order: list.order,
				rank:  rank,
			})
			all[len(all)-1].hit.Scores.dense(r)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		if all[i].hit.rawSimilarity() != all[j].hit.rawSimilarity() {
			return all[i].hit.rawSimilarity() > all[j].hit.rawSimilarity()
		}
		return all[i].order < all[j].order
	})

	out := make([]Hit, len(all))
	for i, s := range all {
		out[i] = s.hit
	}
	return out
}

// dense stamps the raw per-method similarity onto the score breakdown so
// threshold filtering (spec.md step 6: "best raw similarity") and tie
// breaking have a concrete number to compare, independent of the fused
// RRF score.
func (sb *ScoreBreakdown) dense(r vectorindex.SearchResult) {
	switch r.Method {
	case "bm25":
		sb.Sparse = r.Score
	default:
		sb.Dense = r.Score
	}
}

// rawSimilarity returns the best raw similarity recorded for a hit,
// regardless of which method produced it.
func (h Hit) rawSimilarity() float32 {
	if h.Scores.Dense > h.Scores.Sparse {
		return h.Scores.Dense
	}
	return h.Scores.Sparse
}
