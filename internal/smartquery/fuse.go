package smartquery

import (
	"fmt"
	"sort"

	"github.com/ferg-cod3s/contextcore/internal/query"
)

const rankConstant = 60

// fuseHits merges the ranked hit lists from the original query and every
// enhancement sub-query with Reciprocal Rank Fusion, per spec.md §4.J:
// "each sub-query is run through §4.I; result lists are again fused
// (RRF)." Unlike internal/query's own cross-collection fusion, the same
// document can legitimately appear in more than one sub-query's list
// here, so contributions are summed per document.
func fuseHits(lists [][]query.Hit) []query.Hit {
	type accum struct {
		hit   query.Hit
		score float32
	}

	byID := make(map[string]*accum)
	var order []string

	for _, list := range lists {
		for i, h := range list {
			key := hitKey(h)
			rank := i + 1
			contribution := 1.0 / float32(rankConstant+rank)

			a, ok := byID[key]
			if !ok {
				a = &accum{hit: h}
				byID[key] = a
				order = append(order, key)
			}
			a.score += contribution
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return byID[order[i]].score > byID[order[j]].score
	})

	out := make([]query.Hit, len(order))
	for i, key := range order {
		a := byID[key]
		a.hit.Scores.Fused = a.score
		a.hit.Scores.Final = a.score
		out[i] = a.hit
	}
	return out
}

func hitKey(h query.Hit) string {
	datasetID, _ := h.Document.Metadata["dataset_id"].(string)
	return fmt.Sprintf("%s/%s", datasetID, h.Document.ID)
}
