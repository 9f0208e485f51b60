package mcp

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	stats    domain.IngestionStats
	info     domain.CollectionInfo
	err      error
	lastOpts domain.IngestOptions
}

func (m *mockIngestionService) Ingest(_ context.Context, opts domain.IngestOptions) (domain.IngestionStats, error) {
	m.lastOpts = opts
	return m.stats, m.err
}

func (m *mockIngestionService) Reconcile(_ context.Context, _ string, _ []string, dryRun bool) (domain.ReconcileStats, error) {
	return domain.ReconcileStats{DryRun: dryRun}, m.err
}

func (m *mockIngestionService) CollectionInfo(_ context.Context) (domain.CollectionInfo, error) {
	return m.info, m.err
}

// mockConversation is a mock implementation of driving.ConversationService.
type mockConversation struct {
	result    domain.QueryResult
	questions []string
	history   []domain.Message
	summary   string
	resets    int
}

func (m *mockConversation) Query(_ context.Context, question string) domain.QueryResult {
	m.questions = append(m.questions, question)
	m.history = append(m.history,
		domain.Message{Role: domain.RoleHuman, Content: question},
		domain.Message{Role: domain.RoleAI, Content: m.result.Answer})
	return m.result
}

func (m *mockConversation) Summary() string {
	if m.summary == "" {
		return domain.NoHistorySummary
	}
	return m.summary
}

func (m *mockConversation) MemoryStats() domain.MemoryStats {
	return domain.MemoryStats{TotalMessages: len(m.history), MaxTokens: 800}
}

func (m *mockConversation) History() []domain.Message {
	return m.history
}

func (m *mockConversation) Reset() {
	m.resets++
	m.history = nil
}
