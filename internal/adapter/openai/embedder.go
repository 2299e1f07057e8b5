package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"kb-chatbot/internal/domain"
	"kb-chatbot/internal/infra/httpclient"
)

const (
	// embedRequestsPerSecond caps outbound embedding calls so a large
	// one-shot build does not trip the provider's rate limits.
	embedRequestsPerSecond = 5
	embedBurst             = 5
)

// Embedder calls an OpenAI-compatible embeddings endpoint.
type Embedder struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client

	limiter *rate.Limiter
}

// NewEmbedder constructs an embedder for the given endpoint and model.
func NewEmbedder(baseURL, apiKey, model string, timeoutSeconds int) *Embedder {
	timeout := 30 * time.Second
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &Embedder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client:  httpclient.NewPooledClient(timeout),
		limiter: rate.NewLimiter(rate.Limit(embedRequestsPerSecond), embedBurst),
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Encode embeds the given texts in one batched call. The returned vectors
// are in input order.
func (e *Embedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	slog.Info("embed_started",
		slog.Int("text_count", len(texts)),
		slog.String("model", e.Model),
	)
	start := time.Now()

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrEmbeddingService, err)
	}

	jsonData, err := json.Marshal(embedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		slog.Error("embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("%w: calling embeddings endpoint: %v", domain.ErrEmbeddingService, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("%w: embeddings endpoint returned %d: %s",
			domain.ErrEmbeddingService, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var respBody embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("%w: decoding embeddings response: %v", domain.ErrEmbeddingService, err)
	}
	if len(respBody.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			domain.ErrEmbeddingService, len(texts), len(respBody.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range respBody.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", domain.ErrEmbeddingService, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	slog.Info("embed_completed",
		slog.Int("embedding_count", len(vectors)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return vectors, nil
}

// Version returns the wrapped model name.
func (e *Embedder) Version() string {
	return e.Model
}

var _ domain.VectorEncoder = (*Embedder)(nil)
