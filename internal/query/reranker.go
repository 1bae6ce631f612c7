package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
)

// Reranker cross-encodes a query against each candidate hit and returns a
// relevance score per hit, ported from the teacher's
// internal/search.Reranker contract (Aman-CERP-amanmcp/internal/search/reranker.go).
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float32, error)
}

// NoOpReranker preserves input order, assigning strictly decreasing scores
// so downstream tie-break logic still has something to sort on. Used when
// no cross-encoder endpoint is configured.
type NoOpReranker struct{}

func (NoOpReranker) Rerank(_ context.Context, _ string, documents []string) ([]float32, error) {
	scores := make([]float32, len(documents))
	for i := range documents {
		scores[i] = 1.0 - float32(i)*0.01
	}
	return scores, nil
}

// HTTPReranker calls an external cross-encoder reranking service over
// HTTP, following the teacher's MLXReranker request/response shape
// (Aman-CERP-amanmcp/internal/search/mlx_reranker.go) and the
// embedding/anthropic.go idiom of a plain http.Client with a fixed timeout.
type HTTPReranker struct {
	client   *http.Client
	endpoint string
	model    string
}

// NewHTTPReranker constructs an HTTPReranker targeting endpoint's /rerank route.
func NewHTTPReranker(endpoint, model string, timeout time.Duration) *HTTPReranker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReranker{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		model:    model,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float32 `json:"score"`
	} `json:"results"`
}

func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string) ([]float32, error) {
	payload, err := json.Marshal(rerankRequest{Query: query, Documents: documents, Model: r.model})
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "marshal rerank request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "call reranker", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, coreerrors.New(coreerrors.KindIO, fmt.Sprintf("reranker returned %d: %s", resp.StatusCode, string(body)))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "decode rerank response", err)
	}

	scores := make([]float32, len(documents))
	for _, res := range parsed.Results {
		if res.Index >= 0 && res.Index < len(scores) {
			scores[res.Index] = res.Score
		}
	}
	return scores, nil
}
