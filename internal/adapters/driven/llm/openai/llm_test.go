package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

func TestNewChatModel(t *testing.T) {
	_, err := NewChatModel(LLMConfig{})
	assert.Error(t, err)

	m, err := NewChatModel(LLMConfig{APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, m.ModelName())
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, 200, req.MaxTokens)

		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"content":"Paris"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":1000,"completion_tokens":1000,"total_tokens":2000}
		}`))
	}))
	defer server.Close()

	m, err := NewChatModel(LLMConfig{APIKey: "sk", BaseURL: server.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	resp, err := m.Chat(context.Background(), []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "Be brief."},
		{Role: driven.RoleUser, Content: "Capital of France?"},
	}, driven.ChatOptions{MaxTokens: 200})
	require.NoError(t, err)

	assert.Equal(t, "Paris", resp.Content)
	assert.Equal(t, 2000, resp.Usage.TotalTokens)
	assert.InDelta(t, 0.00075, resp.Usage.Cost, 1e-9)
}

func TestChat_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	m, err := NewChatModel(LLMConfig{APIKey: "sk", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = m.Chat(context.Background(), nil, driven.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrProviderLogic)
}

func TestChat_RateLimited(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	}))
	defer server.Close()

	m, err := NewChatModel(LLMConfig{APIKey: "sk", BaseURL: server.URL, MaxRetries: -1})
	require.NoError(t, err)

	_, err = m.Chat(context.Background(), nil, driven.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 1, calls)
}
