package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
)

func doc(id string) vectorindex.Document {
	return vectorindex.Document{ID: id, Metadata: map[string]interface{}{"file_path": id + ".go"}}
}

func TestFuseAcrossCollections(t *testing.T) {
	t.Run("orders by fused score, best rank first", func(t *testing.T) {
		lists := []collectionHits{
			{order: 0, results: []vectorindex.SearchResult{
				{Document: doc("a"), Score: 0.9, Method: "vector"},
				{Document: doc("b"), Score: 0.5, Method: "vector"},
			}},
		}

		hits := fuseAcrossCollections(lists)

		require.Len(t, hits, 2)
		assert.Equal(t, "a", hits[0].Document.ID)
		assert.Equal(t, "b", hits[1].Document.ID)
		assert.Greater(t, hits[0].Scores.Final, hits[1].Scores.Final)
	})

	t.Run("breaks ties by raw similarity, then by collection order", func(t *testing.T) {
		lists := []collectionHits{
			{order: 0, results: []vectorindex.SearchResult{
				{Document: doc("first-collection-top"), Score: 0.4, Method: "vector"},
			}},
			{order: 1, results: []vectorindex.SearchResult{
				{Document: doc("second-collection-top"), Score: 0.9, Method: "vector"},
			}},
		}

		hits := fuseAcrossCollections(lists)

		require.Len(t, hits, 2)
		assert.Equal(t, "second-collection-top", hits[0].Document.ID, "equal rank-1 fused score, higher raw similarity wins")
	})

	t.Run("empty input produces empty output", func(t *testing.T) {
		hits := fuseAcrossCollections(nil)
		assert.Empty(t, hits)
	})

	t.Run("bm25 hits populate the sparse score slot", func(t *testing.T) {
		lists := []collectionHits{
			{order: 0, results: []vectorindex.SearchResult{
				{Document: doc("a"), Score: 0.8, Method: "bm25"},
			}},
		}

		hits := fuseAcrossCollections(lists)

		require.Len(t, hits, 1)
		assert.Equal(t, float32(0.8), hits[0].Scores.Sparse)
		assert.Zero(t, hits[0].Scores.Dense)
	})
}

func TestRawSimilarity(t *testing.T) {
	t.Run("prefers dense when higher", func(t *testing.T) {
		h := Hit{Scores: ScoreBreakdown{Dense: 0.7, Sparse: 0.3}}
		assert.Equal(t, float32(0.7), h.rawSimilarity())
	})

	t.Run("prefers sparse when higher", func(t *testing.T) {
		h := Hit{Scores: ScoreBreakdown{Dense: 0.2, Sparse: 0.6}}
		assert.Equal(t, float32(0.6), h.rawSimilarity())
	})
}

func TestDefaultTopK(t *testing.T) {
	assert.Equal(t, 10, defaultTopK(0))
	assert.Equal(t, 10, defaultTopK(-5))
	assert.Equal(t, 25, defaultTopK(25))
}

func TestDefaultThreshold(t *testing.T) {
	assert.Equal(t, float32(0.5), defaultThreshold(0))
	assert.Equal(t, float32(0.8), defaultThreshold(0.8))
}

func TestFanoutK(t *testing.T) {
	t.Run("clamps to floor of 20", func(t *testing.T) {
		assert.Equal(t, 20, fanoutK(5))
	})

	t.Run("clamps to ceiling of 50", func(t *testing.T) {
		assert.Equal(t, 50, fanoutK(100))
	})

	t.Run("uses topK*2 within bounds", func(t *testing.T) {
		assert.Equal(t, 30, fanoutK(15))
	})
}
