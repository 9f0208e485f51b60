package driving

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// ConversationService answers questions within one conversation session.
type ConversationService interface {
	// Query never fails: provider errors are reported in the result metadata.
	Query(ctx context.Context, question string) domain.QueryResult

	// Summary returns the running summary or domain.NoHistorySummary.
	Summary() string

	// MemoryStats reports memory usage.
	MemoryStats() domain.MemoryStats

	// History returns the verbatim messages held in memory.
	History() []domain.Message

	// Reset clears the conversation memory.
	Reset()
}

// ConversationFactory creates independent conversation sessions.
type ConversationFactory interface {
	NewConversation() ConversationService
}
