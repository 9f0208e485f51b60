// Package ollama provides a chat model adapter using Ollama.
package ollama

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Qingzhee/rag-engine/internal/adapters/driven/httpapi"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure ChatModel implements the interface.
var _ driven.ChatModel = (*ChatModel)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 300 * time.Second // LLM calls can be slow on local hardware
)

const providerName = "ollama"

// LLMConfig holds configuration for the Ollama chat model.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 300s).
	Timeout time.Duration

	// MaxRetries overrides the client retry count.
	MaxRetries int
}

// ChatModel provides chat completions using Ollama. Local models cost nothing.
type ChatModel struct {
	client *httpapi.Client
	model  string
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options"`
}

// options holds Ollama model parameters.
type options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the Ollama /api/chat response format.
type chatResponse struct {
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// NewChatModel creates a new Ollama chat model.
func NewChatModel(cfg LLMConfig) *ChatModel {
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
			Provider:   providerName,
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
		model: cfg.Model,
	}
}

// Chat conducts a multi-turn conversation.
func (m *ChatModel) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.ChatResponse, error) {
	msgs := make([]chatMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}

	req := chatRequest{
		Model:    m.model,
		Messages: msgs,
		Options: options{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}

	var resp chatResponse
	if err := m.client.Do(ctx, "chat", http.MethodPost, "/api/chat", req, &resp); err != nil {
		return driven.ChatResponse{}, err
	}
	if !resp.Done && resp.Message.Content == "" {
		return driven.ChatResponse{}, domain.NewProviderError(providerName, "chat", domain.ErrorKindProviderLogic,
			errors.New("incomplete response"))
	}

	return driven.ChatResponse{
		Content: resp.Message.Content,
		Usage: domain.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

// ModelName returns the name of the LLM model being used.
func (m *ChatModel) ModelName() string {
	return m.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
func (m *ChatModel) Ping(ctx context.Context) error {
	if err := m.client.Do(ctx, "ping", http.MethodGet, "/api/tags", nil, nil); err != nil {
		return errors.Join(domain.ErrLLMUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (m *ChatModel) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
