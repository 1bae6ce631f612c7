package smartquery

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

// Client generates text completions for query rewriting, HyDE document
// generation, and answer synthesis.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// HTTPClient is a minimal chat-completion client, following the teacher's
// embedding/anthropic.go shape: a plain http.Client with a fixed timeout,
// pointed at a configurable endpoint so it can target Anthropic's Messages
// API or any compatible gateway without a vendored SDK.
type HTTPClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewHTTPClient constructs an HTTPClient.
func NewHTTPClient(endpoint, apiKey, model string) *HTTPClient {
	if model == "" {
		model = "claude-sonnet-4"
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *HTTPClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", coreerrors.Wrap(coreerrors.KindInternal, "marshal completion request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", coreerrors.Wrap(coreerrors.KindInternal, "build completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", coreerrors.Wrap(coreerrors.KindIO, "call completion endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", coreerrors.New(coreerrors.KindIO, fmt.Sprintf("completion endpoint returned %d: %s", resp.StatusCode, string(body)))
	}

	var parsed messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", coreerrors.Wrap(coreerrors.KindIO, "decode completion response", err)
	}
	if len(parsed.Content) == 0 {
		return "", coreerrors.New(coreerrors.KindInternal, "completion response had no content")
	}
	return parsed.Content[0].Text, nil
}
