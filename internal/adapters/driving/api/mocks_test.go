package api

import (
	"context"
	"sync"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
)

type mockIngestion struct {
	stats    domain.IngestionStats
	info     domain.CollectionInfo
	err      error
	lastOpts domain.IngestOptions
}

func (m *mockIngestion) Ingest(_ context.Context, opts domain.IngestOptions) (domain.IngestionStats, error) {
	m.lastOpts = opts
	return m.stats, m.err
}

func (m *mockIngestion) Reconcile(_ context.Context, _ string, _ []string, dryRun bool) (domain.ReconcileStats, error) {
	return domain.ReconcileStats{DryRun: dryRun}, m.err
}

func (m *mockIngestion) CollectionInfo(_ context.Context) (domain.CollectionInfo, error) {
	return m.info, m.err
}

// mockConversation echoes each question as the answer.
type mockConversation struct {
	id      int
	history []domain.Message
}

func (m *mockConversation) Query(_ context.Context, question string) domain.QueryResult {
	m.history = append(m.history,
		domain.Message{Role: domain.RoleHuman, Content: question},
		domain.Message{Role: domain.RoleAI, Content: "echo: " + question})
	return domain.QueryResult{Answer: "echo: " + question, ChatHistory: m.history}
}

func (m *mockConversation) Summary() string { return domain.NoHistorySummary }

func (m *mockConversation) MemoryStats() domain.MemoryStats {
	return domain.MemoryStats{TotalMessages: len(m.history)}
}

func (m *mockConversation) History() []domain.Message { return m.history }

func (m *mockConversation) Reset() { m.history = nil }

type mockFactory struct {
	mu      sync.Mutex
	created int
}

func (f *mockFactory) NewConversation() driving.ConversationService {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return &mockConversation{id: f.created}
}
