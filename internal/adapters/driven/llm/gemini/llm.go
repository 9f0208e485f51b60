// Package gemini provides a chat model adapter using the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	embedgemini "github.com/Qingzhee/rag-engine/internal/adapters/driven/embedding/gemini"
	"github.com/Qingzhee/rag-engine/internal/adapters/driven/llm"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure ChatModel implements the interface.
var _ driven.ChatModel = (*ChatModel)(nil)

// DefaultModel is the default Gemini chat model.
const DefaultModel = "gemini-2.0-flash"

// Prices per 1K tokens.
var Prices = llm.PriceTable{
	"gemini-1.5-flash":      {Prompt: 0.000075, Completion: 0.0003},
	"gemini-1.5-pro":        {Prompt: 0.00125, Completion: 0.005},
	"gemini-2.0-flash":      {Prompt: 0.0001, Completion: 0.0004},
	"gemini-2.0-flash-lite": {Prompt: 0.000075, Completion: 0.0003},
	"gemini-2.5-flash":      {Prompt: 0.0003, Completion: 0.0025},
	"gemini-2.5-pro":        {Prompt: 0.00125, Completion: 0.01},
}

// Config holds configuration for the Gemini chat model.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the LLM model to use (default: gemini-2.0-flash).
	Model string
}

// contentGenerator is the subset of *genai.Models the model calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ChatModel provides chat completions using Gemini.
type ChatModel struct {
	models contentGenerator
	model  string
}

// NewChatModel creates a new Gemini chat model.
func NewChatModel(ctx context.Context, cfg Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newChatModel(client.Models, cfg.Model), nil
}

func newChatModel(models contentGenerator, model string) *ChatModel {
	if model == "" {
		model = DefaultModel
	}
	return &ChatModel{models: models, model: model}
}

// Chat conducts a multi-turn conversation. System messages become the
// system instruction.
func (m *ChatModel) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.ChatResponse, error) {
	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case driven.RoleSystem:
			system = append(system, msg.Content)
		case driven.RoleAssistant:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: msg.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: msg.Content}}})
		}
	}
	if len(contents) == 0 {
		return driven.ChatResponse{}, fmt.Errorf("%w: gemini chat needs a user message", domain.ErrInvalidInput)
	}

	temperature := float32(opts.Temperature)
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens) //nolint:gosec // bounded by config validation
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}

	resp, err := m.models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		return driven.ChatResponse{}, embedgemini.ClassifyError("chat", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return driven.ChatResponse{}, domain.NewProviderError("gemini", "chat", domain.ErrorKindProviderLogic,
			errors.New("no candidates returned"))
	}

	var prompt, completion int
	if resp.UsageMetadata != nil {
		prompt = int(resp.UsageMetadata.PromptTokenCount)
		completion = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return driven.ChatResponse{
		Content: resp.Text(),
		Usage:   Prices.Usage(m.model, prompt, completion),
	}, nil
}

// ModelName returns the name of the LLM model being used.
func (m *ChatModel) ModelName() string {
	return m.model
}

// Ping sends a one-token request.
func (m *ChatModel) Ping(ctx context.Context) error {
	_, err := m.Chat(ctx, []driven.ChatMessage{{Role: driven.RoleUser, Content: "ping"}}, driven.ChatOptions{MaxTokens: 1})
	if err != nil {
		return errors.Join(domain.ErrLLMUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (m *ChatModel) Close() error {
	return nil
}
