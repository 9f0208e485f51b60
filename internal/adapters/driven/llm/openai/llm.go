// Package openai provides a chat model adapter using OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Qingzhee/rag-engine/internal/adapters/driven/httpapi"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/llm"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure ChatModel implements the interface.
var _ driven.ChatModel = (*ChatModel)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-3.5-turbo"
	DefaultLLMTimeout = 120 * time.Second
)

const providerName = "openai"

// Prices per 1K tokens.
var Prices = llm.PriceTable{
	"gpt-3.5-turbo": {Prompt: 0.0005, Completion: 0.0015},
	"gpt-4":         {Prompt: 0.03, Completion: 0.06},
	"gpt-4-turbo":   {Prompt: 0.01, Completion: 0.03},
	"gpt-4o":        {Prompt: 0.0025, Completion: 0.01},
	"gpt-4o-mini":   {Prompt: 0.00015, Completion: 0.0006},
	"gpt-4.1":       {Prompt: 0.002, Completion: 0.008},
	"gpt-4.1-mini":  {Prompt: 0.0004, Completion: 0.0016},
}

// LLMConfig holds configuration for the OpenAI chat model.
type LLMConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the LLM model to use (default: gpt-3.5-turbo).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RequestsPerSecond throttles requests. 0 disables throttling.
	RequestsPerSecond float64

	// MaxRetries overrides the client retry count.
	MaxRetries int
}

// ChatModel provides chat completions using OpenAI API.
type ChatModel struct {
	client *httpapi.Client
	model  string
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
}

// chatCompletionMsg is the OpenAI chat message format.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewChatModel creates a new OpenAI chat model.
func NewChatModel(cfg LLMConfig) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &ChatModel{
		client: httpapi.New(httpapi.Config{
			Provider:          providerName,
			BaseURL:           cfg.BaseURL,
			Headers:           map[string]string{"Authorization": "Bearer " + cfg.APIKey},
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			MaxRetries:        cfg.MaxRetries,
		}),
		model: cfg.Model,
	}, nil
}

// Chat conducts a multi-turn conversation.
func (m *ChatModel) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.ChatResponse, error) {
	chatMessages := make([]chatCompletionMsg, len(messages))
	for i, msg := range messages {
		chatMessages[i] = chatCompletionMsg{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	reqBody := chatCompletionRequest{
		Model:       m.model,
		Messages:    chatMessages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	var resp chatCompletionResponse
	if err := m.client.Do(ctx, "chat", http.MethodPost, "/chat/completions", reqBody, &resp); err != nil {
		return driven.ChatResponse{}, err
	}

	if len(resp.Choices) == 0 {
		return driven.ChatResponse{}, domain.NewProviderError(providerName, "chat", domain.ErrorKindProviderLogic,
			errors.New("no response choices returned"))
	}

	return driven.ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Usage:   Prices.Usage(m.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}

// ModelName returns the name of the LLM model being used.
func (m *ChatModel) ModelName() string {
	return m.model
}

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (m *ChatModel) Ping(ctx context.Context) error {
	if err := m.client.Do(ctx, "ping", http.MethodGet, "/models", nil, nil); err != nil {
		return errors.Join(domain.ErrLLMUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (m *ChatModel) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
