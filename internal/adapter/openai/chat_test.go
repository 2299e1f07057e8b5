package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"kb-chatbot/internal/adapter/openai"
	"kb-chatbot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatClient_Complete(t *testing.T) {
	var gotBody struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  grounded answer \n"}, "finish_reason": "stop"},
			},
		})
	}))
	defer server.Close()

	c := openai.NewChatClient(server.URL, "key", "gpt-4o", 0.7, 10)
	answer, err := c.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "instructions"},
		{Role: domain.RoleUser, Content: "Question: hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", answer)

	assert.Equal(t, "gpt-4o", gotBody.Model)
	assert.InDelta(t, 0.7, gotBody.Temperature, 1e-9)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "user", gotBody.Messages[1].Role)
}

func TestChatClient_CompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	c := openai.NewChatClient(server.URL, "key", "gpt-4o", 0.7, 10)
	answer, err := c.Complete(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "q"}})
	require.NoError(t, err)
	assert.Empty(t, answer)
}

func TestChatClient_CompleteServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	c := openai.NewChatClient(server.URL, "key", "gpt-4o", 0.7, 10)
	_, err := c.Complete(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "q"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrChatService)
}
