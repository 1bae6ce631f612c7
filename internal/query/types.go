// Package query implements the cross-collection query planner/executor:
// resolve the caller's accessible datasets (internal/scope), embed the
// query, fan out hybrid/dense search across every accessible collection
// (internal/vectorindex) in parallel, fuse the per-collection hit lists
// with Reciprocal Rank Fusion, and optionally rerank the result with a
// cross-encoder. Grounded on the teacher's internal/search/search.go
// request/response shape and internal/federation/service.go's
// parallel-fan-out idiom, upgraded to golang.org/x/sync/errgroup.
package query

import (
	"time"

	"github.com/ferg-cod3s/contextcore/internal/vectorindex"
)

// Mode selects which retrieval method each target collection uses.
type Mode string

const (
	ModeDense  Mode = "dense"
	ModeHybrid Mode = "hybrid"
)

// Filter narrows results by provenance facets, layered on top of the
// mandatory dataset-id filter the executor always applies.
type Filter struct {
	Repo       string
	Lang       string
	PathPrefix string
}

// Phase names a stage of query execution, reported via Request.OnProgress.
type Phase string

const (
	PhaseResolve Phase = "resolve"
	PhaseEmbed   Phase = "embed"
	PhaseSearch  Phase = "search"
	PhaseFuse    Phase = "fuse"
	PhaseRerank  Phase = "rerank"
	PhaseDone    Phase = "done"
)

// Progress reports execution advancement to an optional caller callback.
type Progress struct {
	Phase      Phase
	Percentage float64
	Detail     string
}

// ProgressFunc receives Progress updates. May be nil.
type ProgressFunc func(Progress)

// Request is one search invocation.
type Request struct {
	Query         string
	ProjectID     string
	DatasetID     string // optional: narrow the access set to one dataset
	IncludeGlobal bool
	TopK          int
	Threshold     float32
	Filter        Filter
	Mode          Mode
	Rerank        bool
	OnProgress    ProgressFunc
}

// ScoreBreakdown records every stage's contribution to a hit's final rank,
// per spec.md's materialize step.
type ScoreBreakdown struct {
	Dense  float32
	Sparse float32
	Fused  float32
	Rerank float32
	Final  float32
}

// Hit is one ranked, provenance-attached result.
type Hit struct {
	Document vectorindex.Document
	Scores   ScoreBreakdown
	Method   string
}

// Response is the full result of a Search call.
type Response struct {
	Hits      []Hit
	QueryTime time.Duration
}

func defaultTopK(topK int) int {
	if topK <= 0 {
		return 10
	}
	return topK
}

func defaultThreshold(threshold float32) float32 {
	if threshold <= 0 {
		return 0.5
	}
	return threshold
}

// fanoutK computes the per-collection candidate pool size, per spec.md
// §4.I step 4: k = min(50, max(topK*2, 20)).
func fanoutK(topK int) int {
	k := topK * 2
	if k < 20 {
		k = 20
	}
	if k > 50 {
		k = 50
	}
	return k
}
