// Package smartquery layers optional LLM-assisted query enhancement and
// answer synthesis on top of internal/query. The teacher has no
// equivalent (federation+merge only); this package is new, grounded on
// the teacher's HTTP-client idiom (internal/embedding/anthropic.go) for
// the LLM call shape and internal/schema/search.go for the
// request/response schema convention. It is purely additive: removing
// it leaves internal/query unchanged and correct.
package smartquery

import "github.com/ferg-cod3s/contextcore/internal/query"

// Strategy is one query-enhancement technique.
type Strategy string

const (
	// StrategyRewrite asks the LLM to produce one alternative phrasing of
	// the original query.
	StrategyRewrite Strategy = "rewrite"
	// StrategyHyDE asks the LLM to write a hypothetical answer to the
	// query, which is then embedded and searched as if it were a document
	// (Hypothetical Document Embeddings).
	StrategyHyDE Strategy = "hyde"
)

// DefaultStrategies is applied when a caller requests enhancement without
// naming specific strategies.
func DefaultStrategies() []Strategy {
	return []Strategy{StrategyRewrite, StrategyHyDE}
}

// Citation references one hit backing a sentence of a synthesized answer.
type Citation struct {
	HitID string
	Path  string
	Score float32
}

// Answer is the grounded, citation-backed response from Synthesize.
type Answer struct {
	Text       string
	Citations  []Citation
	Confidence float64
}

// Request extends a base query.Request with enhancement options.
type Request struct {
	Base       query.Request
	Strategies []Strategy
	Synthesize bool
}

// Result carries both the fused search hits and, if requested, a
// synthesized answer.
type Result struct {
	Response *query.Response
	Answer   *Answer
}
