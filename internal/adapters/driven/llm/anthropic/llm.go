// Package anthropic provides a chat model adapter using Anthropic API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
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
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	// AnthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

const providerName = "anthropic"

// Prices per 1K tokens.
var Prices = llm.PriceTable{
	"claude-3-haiku":    {Prompt: 0.00025, Completion: 0.00125},
	"claude-3-5-haiku":  {Prompt: 0.0008, Completion: 0.004},
	"claude-3-5-sonnet": {Prompt: 0.003, Completion: 0.015},
	"claude-3-7-sonnet": {Prompt: 0.003, Completion: 0.015},
	"claude-sonnet-4":   {Prompt: 0.003, Completion: 0.015},
	"claude-3-opus":     {Prompt: 0.015, Completion: 0.075},
	"claude-opus-4":     {Prompt: 0.015, Completion: 0.075},
}

// Config holds configuration for the Anthropic chat model.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the LLM model to use (default: claude-3-5-haiku-latest).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RequestsPerSecond throttles requests. 0 disables throttling.
	RequestsPerSecond float64

	// MaxRetries overrides the client retry count.
	MaxRetries int
}

// ChatModel provides chat completions using Anthropic API.
type ChatModel struct {
	client *httpapi.Client
	model  string
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature float64           `json:"temperature"`
}

// messagesMessage is the Anthropic message format.
type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewChatModel creates a new Anthropic chat model.
func NewChatModel(cfg Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &ChatModel{
		client: httpapi.New(httpapi.Config{
			Provider: providerName,
			BaseURL:  cfg.BaseURL,
			Headers: map[string]string{
				"x-api-key":         cfg.APIKey,
				"anthropic-version": anthropicVersion,
			},
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			MaxRetries:        cfg.MaxRetries,
		}),
		model: cfg.Model,
	}, nil
}

// Chat conducts a multi-turn conversation. System messages become the
// system prompt; consecutive messages from the same role are merged.
func (m *ChatModel) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.ChatResponse, error) {
	system, turns := splitMessages(messages)
	if len(turns) == 0 {
		return driven.ChatResponse{}, fmt.Errorf("%w: anthropic chat needs a user message", domain.ErrInvalidInput)
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody := messagesRequest{
		Model:       m.model,
		Messages:    turns,
		MaxTokens:   maxTokens,
		System:      system,
		Temperature: opts.Temperature,
	}

	var resp messagesResponse
	if err := m.client.Do(ctx, "chat", http.MethodPost, "/v1/messages", reqBody, &resp); err != nil {
		return driven.ChatResponse{}, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if len(resp.Content) == 0 {
		return driven.ChatResponse{}, domain.NewProviderError(providerName, "chat", domain.ErrorKindProviderLogic,
			errors.New("no content returned"))
	}

	return driven.ChatResponse{
		Content: text.String(),
		Usage:   Prices.Usage(m.model, resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}, nil
}

func splitMessages(messages []driven.ChatMessage) (string, []messagesMessage) {
	var system []string
	var turns []messagesMessage
	for _, msg := range messages {
		if msg.Role == driven.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		role := driven.RoleUser
		if msg.Role == driven.RoleAssistant {
			role = driven.RoleAssistant
		}
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content += "\n\n" + msg.Content
			continue
		}
		turns = append(turns, messagesMessage{Role: role, Content: msg.Content})
	}
	return strings.Join(system, "\n\n"), turns
}

// ModelName returns the name of the LLM model being used.
func (m *ChatModel) ModelName() string {
	return m.model
}

// Ping validates the API key by listing models.
func (m *ChatModel) Ping(ctx context.Context) error {
	if err := m.client.Do(ctx, "ping", http.MethodGet, "/v1/models", nil, nil); err != nil {
		return errors.Join(domain.ErrLLMUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (m *ChatModel) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
