package embedding

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// SparseVector is a sparse term-weight representation, index-aligned with a
// vocabulary supplied by the caller.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// SparseEmbedder produces sparse vectors for hybrid search.
type SparseEmbedder interface {
	EmbedSparse(ctx context.Context, texts []string) ([]SparseVector, error)
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// BM25TermEmbedder derives a sparse vector from raw term-frequency
// counts, tokenizing locally (lower-cased runs of letters, digits and
// underscores, with no stemming, unlike the FTS5 porter tokenizer) rather
// than calling a hosted sparse-embedding API (see DESIGN.md Open Question 2).
type BM25TermEmbedder struct {
	vocab map[string]uint32
}

// NewBM25TermEmbedder creates a term embedder over a fixed vocabulary
// mapping (term -> dimension index) supplied by the caller. A nil or empty
// vocabulary yields empty vectors.
func NewBM25TermEmbedder(vocab map[string]uint32) *BM25TermEmbedder {
	return &BM25TermEmbedder{vocab: vocab}
}

// EmbedSparse tokenizes each text and accumulates term-frequency weights
// over the known vocabulary. Unknown terms are dropped rather than
// expanding the vocabulary mid-request.
func (e *BM25TermEmbedder) EmbedSparse(ctx context.Context, texts []string) ([]SparseVector, error) {
	out := make([]SparseVector, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *BM25TermEmbedder) embedOne(text string) SparseVector {
	counts := map[uint32]float32{}
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		idx, ok := e.vocab[tok]
		if !ok {
			continue
		}
		counts[idx]++
	}

	sv := SparseVector{Indices: make([]uint32, 0, len(counts)), Values: make([]float32, 0, len(counts))}
	for idx, count := range counts {
		sv.Indices = append(sv.Indices, idx)
		sv.Values = append(sv.Values, count)
	}
	return sv
}

// Validate checks a sparse vector's index and value slices have equal
// length. The weight values themselves are not checked.
func Validate(sv SparseVector) error {
	if len(sv.Indices) != len(sv.Values) {
		return fmt.Errorf("sparse vector indices/values length mismatch: %d != %d", len(sv.Indices), len(sv.Values))
	}
	return nil
}
