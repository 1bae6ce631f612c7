package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ferg-cod3s/contextcore/internal/observability"
	"github.com/ferg-cod3s/contextcore/internal/query"
	"github.com/ferg-cod3s/contextcore/internal/smartquery"
)

// QueryRequest is the input to Query, per spec.md §6's query operation.
type QueryRequest struct {
	Query         string
	Project       string
	Dataset       string
	IncludeGlobal bool
	TopK          int
	Threshold     float32
	Repo          string
	Lang          string
	PathPrefix    string
	Rerank        bool
	OnProgress    query.ProgressFunc
}

func (e *Engine) toQueryRequest(req QueryRequest) query.Request {
	return query.Request{
		Query:         req.Query,
		ProjectID:     e.resolveProject(req.Project),
		DatasetID:     e.resolveDataset(req.Dataset),
		IncludeGlobal: req.IncludeGlobal,
		TopK:          req.TopK,
		Threshold:     req.Threshold,
		Filter: query.Filter{
			Repo:       req.Repo,
			Lang:       req.Lang,
			PathPrefix: req.PathPrefix,
		},
		Rerank:     req.Rerank,
		OnProgress: req.OnProgress,
	}
}

// Query runs a hybrid/dense search across the caller's accessible datasets,
// per spec.md §6's query operation.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*query.Response, error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = observability.InstrumentVectorSearch(ctx, e.tracer.Tracer(), "query", req.TopK)
		defer span.End()
	}

	start := time.Now()
	resp, err := e.executor.Search(ctx, e.toQueryRequest(req))
	if e.tracer != nil && err != nil {
		observability.SetSpanError(ctx, err)
	}
	if e.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		} else {
			e.metrics.VectorSearchResults.WithLabelValues("query").Observe(float64(len(resp.Hits)))
		}
		e.metrics.VectorSearchRequests.WithLabelValues("query", status).Inc()
		e.metrics.VectorSearchDuration.WithLabelValues("query").Observe(time.Since(start).Seconds())
	}
	return resp, err
}

// SmartQueryRequest is the input to SmartQuery, per spec.md §6's
// smartQuery operation.
type SmartQueryRequest struct {
	QueryRequest
	Strategies []smartquery.Strategy
	Synthesize bool
}

// SmartQuery runs Query enhanced with LLM query rewriting/HyDE and,
// optionally, a synthesized cited answer, per spec.md §6's smartQuery
// operation. With no LLM configured it degrades to a plain Query.
func (e *Engine) SmartQuery(ctx context.Context, req SmartQueryRequest) (*smartquery.Result, error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = observability.InstrumentVectorSearch(ctx, e.tracer.Tracer(), "smart_query", req.TopK)
		defer span.End()
	}

	start := time.Now()
	result, err := e.smart.Run(ctx, smartquery.Request{
		Base:       e.toQueryRequest(req.QueryRequest),
		Strategies: req.Strategies,
		Synthesize: req.Synthesize,
	})
	if e.tracer != nil && err != nil {
		observability.SetSpanError(ctx, err)
	}
	if e.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		} else {
			e.metrics.VectorSearchResults.WithLabelValues("smart_query").Observe(float64(len(result.Response.Hits)))
		}
		e.metrics.VectorSearchRequests.WithLabelValues("smart_query", status).Inc()
		e.metrics.VectorSearchDuration.WithLabelValues("smart_query").Observe(time.Since(start).Seconds())
	}
	return result, err
}
