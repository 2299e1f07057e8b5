// Package openai adapts the embedding and chat model collaborator
// boundaries to an OpenAI-compatible HTTP API.
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

	"kb-chatbot/internal/domain"
	"kb-chatbot/internal/infra/httpclient"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatClient sends message sequences to an OpenAI-compatible chat
// completions endpoint and returns the generated text.
type ChatClient struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Client      *http.Client
}

// NewChatClient constructs a chat client using the provided endpoint,
// model name and generation temperature.
func NewChatClient(baseURL, apiKey, model string, temperature float64, timeoutSeconds int) *ChatClient {
	timeout := 120 * time.Second
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &ChatClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		Model:       model,
		Temperature: temperature,
		Client:      httpclient.NewPooledClient(timeout),
	}
}

// Complete sends the messages and returns the assistant reply text. An
// answer-less response yields an empty string; the caller decides whether
// that becomes a fallback.
func (c *ChatClient) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	slog.Info("chat_completion_started",
		slog.Int("message_count", len(messages)),
		slog.String("model", c.Model),
	)
	start := time.Now()

	wireMessages := make([]chatMessage, len(messages))
	for i, m := range messages {
		wireMessages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	jsonPayload, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    wireMessages,
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		slog.Error("chat_completion_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return "", fmt.Errorf("%w: calling chat endpoint: %v", domain.ErrChatService, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("chat_completion_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		return "", fmt.Errorf("%w: chat endpoint returned %d: %s",
			domain.ErrChatService, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding chat response: %v", domain.ErrChatService, err)
	}

	var content string
	if len(chatResp.Choices) > 0 {
		content = strings.TrimSpace(chatResp.Choices[0].Message.Content)
	}

	slog.Info("chat_completion_done",
		slog.Int("answer_length", len(content)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return content, nil
}

// Version returns the wrapped model name.
func (c *ChatClient) Version() string {
	return c.Model
}

var _ domain.ChatClient = (*ChatClient)(nil)
