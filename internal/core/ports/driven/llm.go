// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// ChatModel is a text-generation provider.
// It is the single network capability behind compression, summarisation,
// question condensing and answer generation.
//
// Implementations may include:
//   - OpenAI (gpt-3.5-turbo, gpt-4o-mini)
//   - Anthropic (Claude)
//   - Ollama (local models)
//   - Gemini
type ChatModel interface {
	// Chat conducts a multi-turn conversation and reports token usage.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (ChatResponse, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Chat roles understood by every ChatModel.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// ChatResponse is a completion with its usage.
type ChatResponse struct {
	// Content is the generated text.
	Content string

	// Usage reports tokens consumed and the estimated cost.
	Usage domain.Usage
}

// MessagesFromHistory converts role-tagged memory messages into chat messages.
func MessagesFromHistory(history []domain.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		role := RoleUser
		switch m.Role {
		case domain.RoleAI:
			role = RoleAssistant
		case domain.RoleSystem:
			role = RoleSystem
		}
		out = append(out, ChatMessage{Role: role, Content: m.Content})
	}
	return out
}
