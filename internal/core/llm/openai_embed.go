package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cesuygun/chatbot-platform/internal/core"
)

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultModel   = "text-embedding-3-small"
)

// OpenAIEmbedder generates embeddings via the OpenAI embeddings endpoint
// (or any compatible API via a custom base URL). It keeps no state between
// calls.
type OpenAIEmbedder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	dims    int
}

type openAIOption func(*OpenAIEmbedder)

// WithBaseURL points the embedder at a compatible endpoint (Azure,
// OpenRouter, a test server).
func WithBaseURL(u string) openAIOption {
	return func(e *OpenAIEmbedder) {
		if u != "" {
			e.baseURL = u
		}
	}
}

// WithHTTPClient overrides the default client (60s timeout).
func WithHTTPClient(c *http.Client) openAIOption {
	return func(e *OpenAIEmbedder) {
		if c != nil {
			e.client = c
		}
	}
}

func NewOpenAIEmbedder(apiKey, model string, dims int, opts ...openAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if model == "" {
		model = openAIDefaultModel
	}
	if dims <= 0 {
		dims = 1536
	}
	e := &OpenAIEmbedder{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: openAIDefaultBaseURL,
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// EmbedTexts embeds a batch in one request. A 429 surfaces as
// *core.RateLimitError carrying the Retry-After hint; everything else is a
// plain error for the pipeline to classify as non-retryable.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(openAIEmbeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &core.RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("openai: status 429: %s", respBody),
		}
	}

	var embedResp openAIEmbeddingResponse
	if err := json.Unmarshal(respBody, &embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if embedResp.Error != nil {
		return nil, fmt.Errorf("openai: %s (%s)", embedResp.Error.Message, embedResp.Error.Type)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: status %d: %s", resp.StatusCode, respBody)
	}

	// Order by index; the API does not guarantee response order.
	out := make([][]float32, len(texts))
	for _, d := range embedResp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai: missing embedding for input %d", i)
		}
	}
	return out, nil
}

func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
