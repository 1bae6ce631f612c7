package smartquery

import (
	"context"
	"fmt"
	"strings"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
	"github.com/ferg-cod3s/contextcore/internal/query"
)

// Layer wires a query.Executor to an LLM Client for enhancement and
// synthesis, per spec.md §4.J.
type Layer struct {
	executor *query.Executor
	llm      Client
}

// NewLayer constructs a Layer. llm may be nil — Run then behaves exactly
// like calling executor.Search directly, satisfying the "purely
// additive" contract.
func NewLayer(executor *query.Executor, llm Client) *Layer {
	return &Layer{executor: executor, llm: llm}
}

// Run executes req.Base, optionally enhanced with rewritten/HyDE
// sub-queries, and optionally synthesizes a cited answer from the fused
// result.
func (l *Layer) Run(ctx context.Context, req Request) (*Result, error) {
	if l.llm == nil || len(req.Strategies) == 0 {
		resp, err := l.executor.Search(ctx, req.Base)
		if err != nil {
			return nil, err
		}
		return &Result{Response: resp}, nil
	}

	baseResp, err := l.executor.Search(ctx, req.Base)
	if err != nil {
		return nil, err
	}
	hitLists := [][]query.Hit{baseResp.Hits}

	enhanced, err := l.enhance(ctx, req.Base.Query, req.Strategies)
	if err != nil {
		return nil, err
	}
	for _, subQuery := range enhanced {
		subReq := req.Base
		subReq.Query = subQuery
		subResp, err := l.executor.Search(ctx, subReq)
		if err != nil {
			return nil, err
		}
		hitLists = append(hitLists, subResp.Hits)
	}

	fused := fuseHits(hitLists)
	topK := req.Base.TopK
	if topK <= 0 {
		topK = 10
	}
	if len(fused) > topK {
		fused = fused[:topK]
	}

	result := &Result{Response: &query.Response{Hits: fused, QueryTime: baseResp.QueryTime}}

	if req.Synthesize && len(fused) > 0 {
		answer, err := l.Synthesize(ctx, req.Base.Query, fused)
		if err != nil {
			return nil, err
		}
		result.Answer = answer
	}
	return result, nil
}

// enhance produces rewritten queries and/or a HyDE hypothetical answer,
// per spec.md §4.J's enhance(query, strategies?) contract.
func (l *Layer) enhance(ctx context.Context, q string, strategies []Strategy) ([]string, error) {
	var subQueries []string
	for _, s := range strategies {
		switch s {
		case StrategyRewrite:
			prompt := fmt.Sprintf("Rewrite the following search query as one alternative phrasing that preserves its meaning. Reply with only the rewritten query.\n\nQuery: %s", q)
			rewritten, err := l.llm.Complete(ctx, prompt)
			if err != nil {
				return nil, coreerrors.Wrap(coreerrors.KindInternal, "rewrite query", err)
			}
			rewritten = strings.TrimSpace(rewritten)
			if rewritten != "" {
				subQueries = append(subQueries, rewritten)
			}
		case StrategyHyDE:
			prompt := fmt.Sprintf("Write a short hypothetical passage that would directly answer the following query, as if it were the ideal search result. Reply with only the passage.\n\nQuery: %s", q)
			hypothetical, err := l.llm.Complete(ctx, prompt)
			if err != nil {
				return nil, coreerrors.Wrap(coreerrors.KindInternal, "generate hyde document", err)
			}
			hypothetical = strings.TrimSpace(hypothetical)
			if hypothetical != "" {
				subQueries = append(subQueries, hypothetical)
			}
		}
	}
	return subQueries, nil
}

// Synthesize produces a text answer grounded in hits, with citations
// referencing hit ids, per spec.md §4.J.
func (l *Layer) Synthesize(ctx context.Context, q string, hits []query.Hit) (*Answer, error) {
	if l.llm == nil {
		return nil, coreerrors.New(coreerrors.KindValidation, "synthesis requested but no LLM client configured")
	}

	var passages strings.Builder
	citations := make([]Citation, 0, len(hits))
	for i, h := range hits {
		path, _ := h.Document.Metadata["file_path"].(string)
		fmt.Fprintf(&passages, "[%d] (%s)\n%s\n\n", i+1, path, h.Document.Content)
		citations = append(citations, Citation{HitID: h.Document.ID, Path: path, Score: h.Scores.Final})
	}

	prompt := fmt.Sprintf(
		"Answer the question using only the numbered context passages below. Cite sources inline as [n]. If the context does not answer the question, say so.\n\nQuestion: %s\n\nContext:\n%s",
		q, passages.String(),
	)

	text, err := l.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "synthesize answer", err)
	}

	confidence := confidenceFromHits(hits)
	return &Answer{Text: strings.TrimSpace(text), Citations: citations, Confidence: confidence}, nil
}

// confidenceFromHits derives a crude [0,1] confidence from how strongly
// the top hit matched, since the teacher has no answer-confidence
// precedent to ground a more elaborate heuristic on.
func confidenceFromHits(hits []query.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	top := hits[0].Scores.Final
	if top > 1 {
		top = 1
	}
	if top < 0 {
		top = 0
	}
	return float64(top)
}
