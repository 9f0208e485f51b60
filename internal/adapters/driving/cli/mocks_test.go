package cli

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
)

// mockIngestionService implements driving.IngestionService.
type mockIngestionService struct {
	mu        sync.Mutex
	stats     domain.IngestionStats
	reconcile domain.ReconcileStats
	info      domain.CollectionInfo
	err       error
	calls     []domain.IngestOptions
	pruned    []string
}

func (m *mockIngestionService) Ingest(_ context.Context, opts domain.IngestOptions) (domain.IngestionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, opts)
	return m.stats, m.err
}

func (m *mockIngestionService) Reconcile(_ context.Context, folder string, _ []string, dryRun bool) (domain.ReconcileStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = append(m.pruned, folder)
	stats := m.reconcile
	stats.DryRun = dryRun
	return stats, m.err
}

func (m *mockIngestionService) CollectionInfo(_ context.Context) (domain.CollectionInfo, error) {
	return m.info, m.err
}

// mockConversation answers from a fixed result.
type mockConversation struct {
	result    domain.QueryResult
	questions []string
	history   []domain.Message
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
	if len(m.history) == 0 {
		return domain.NoHistorySummary
	}
	return "The human asked questions."
}

func (m *mockConversation) MemoryStats() domain.MemoryStats {
	return domain.MemoryStats{TotalMessages: len(m.history), MaxTokens: 800}
}

func (m *mockConversation) History() []domain.Message { return m.history }

func (m *mockConversation) Reset() {
	m.resets++
	m.history = nil
}

// mockConversationFactory hands out one shared conversation.
type mockConversationFactory struct {
	conv    *mockConversation
	created int
}

func (f *mockConversationFactory) NewConversation() driving.ConversationService {
	f.created++
	return f.conv
}

// closedWatcher implements driven.FileWatcher and stops immediately.
type closedWatcher struct {
	folder string
}

func (w *closedWatcher) Watch(_ context.Context, folder string, _ []string) (<-chan domain.FileChange, error) {
	w.folder = folder
	ch := make(chan domain.FileChange)
	close(ch)
	return ch, nil
}

// mockValidator implements driven.AIConfigValidator.
type mockValidator struct {
	embeddingErr error
	llmErr       error
	vectorErr    error
}

func (m *mockValidator) ValidateEmbedding(context.Context, domain.EmbeddingSettings) error {
	return m.embeddingErr
}

func (m *mockValidator) ValidateLLM(context.Context, domain.LLMSettings) error {
	return m.llmErr
}

func (m *mockValidator) ValidateVectorIndex(context.Context, domain.VectorIndexSettings) error {
	return m.vectorErr
}

var errUnreachable = errors.New("connection refused")

func testResult() domain.QueryResult {
	return domain.QueryResult{
		Answer: "Cats sleep on mats.",
		Sources: []domain.SourceCitation{
			{FileName: "cats.txt", SourceFile: "pets/cats.txt", Preview: "The cat sleeps\non the mat...", Score: 0.91},
			{FileName: "guide.pdf", SourceFile: "guide.pdf", Page: 3, Preview: "Mats are comfortable", Score: 0.72},
		},
		Metadata: domain.QueryMetadata{
			Timestamp:  time.Now(),
			TokensUsed: 321,
			Cost:       0.0012,
			NumSources: 4,
		},
	}
}
