package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// maxFoldRounds bounds the summarise calls made by a single Append.
const maxFoldRounds = 3

// ConversationMemory keeps recent turns verbatim and folds older turns into
// a running summary once the token budget is exceeded.
//
// It is safe for concurrent use; Append holds the lock across the
// summariser call so concurrent appends cannot lose turns.
type ConversationMemory struct {
	mu         sync.Mutex
	tokenizer  driven.Tokenizer
	summarizer driven.Summarizer
	maxTokens  int

	summary string
	turns   []domain.Turn
	state   domain.MemoryState
}

// NewConversationMemory creates an empty memory. A nil summarizer disables
// folding and the buffer grows without bound.
func NewConversationMemory(tokenizer driven.Tokenizer, summarizer driven.Summarizer, maxTokens int) *ConversationMemory {
	if maxTokens <= 0 {
		maxTokens = domain.DefaultConfig().Conversation.MemoryMaxTokens
	}
	return &ConversationMemory{
		tokenizer:  tokenizer,
		summarizer: summarizer,
		maxTokens:  maxTokens,
		state:      domain.MemoryActive,
	}
}

// Append adds a turn and folds the oldest turns into the summary while the
// budget is exceeded. If summarisation fails the turns stay verbatim and
// the error is returned; the turn itself is always recorded.
func (m *ConversationMemory) Append(ctx context.Context, question, answer string) (domain.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, domain.Turn{Question: question, Answer: answer})

	var usage domain.Usage
	if m.summarizer == nil {
		return usage, nil
	}

	m.state = domain.MemorySummarizing
	defer func() { m.state = domain.MemoryActive }()

	for round := 0; round < maxFoldRounds && m.tokensLocked() > m.maxTokens; round++ {
		n := m.foldCountLocked()
		folded := m.turns[:n]
		if n == 0 {
			// Only the summary is over budget: ask for a tighter one.
			folded = nil
		}

		summary, u, err := m.summarizer.Summarize(ctx, m.summary, folded)
		usage.Add(u)
		if err != nil {
			logger.Warn("memory summarisation failed, keeping %d turns verbatim: %v", len(m.turns), err)
			return usage, fmt.Errorf("summarize memory: %w", err)
		}

		m.summary = summary
		m.turns = append([]domain.Turn(nil), m.turns[n:]...)
		logger.Debug("folded %d turns into summary (%d tokens)", n, m.count(m.summary))
	}

	if total := m.tokensLocked(); total > m.maxTokens {
		logger.Warn("memory still over budget after summarising: %d > %d tokens", total, m.maxTokens)
	}
	return usage, nil
}

// foldCountLocked returns how many of the oldest turns to fold so that the
// remaining turns fit beside the current summary.
func (m *ConversationMemory) foldCountLocked() int {
	budget := m.maxTokens - m.count(m.summary)
	remaining := m.turnTokensLocked()
	n := 0
	for n < len(m.turns) && remaining > budget {
		remaining -= m.turnTokens(m.turns[n])
		n++
	}
	return n
}

// Snapshot returns a copy of the summary and verbatim turns.
func (m *ConversationMemory) Snapshot() domain.MemorySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.MemorySnapshot{
		Summary: m.summary,
		Turns:   append([]domain.Turn(nil), m.turns...),
	}
}

// Clear resets memory to an empty active state.
func (m *ConversationMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = ""
	m.turns = nil
	m.state = domain.MemoryActive
}

// State returns the lifecycle state.
func (m *ConversationMemory) State() domain.MemoryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Summary returns the running summary or domain.NoHistorySummary.
func (m *ConversationMemory) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summary == "" {
		return domain.NoHistorySummary
	}
	return m.summary
}

// Messages returns the verbatim turns as role-tagged messages.
func (m *ConversationMemory) Messages() []domain.Message {
	return m.Snapshot().Messages()
}

// Stats reports memory usage.
func (m *ConversationMemory) Stats() domain.MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.MemoryStats{
		TotalMessages: len(m.turns) * 2,
		HumanMessages: len(m.turns),
		AIMessages:    len(m.turns),
		HasSummary:    m.summary != "",
		SummaryTokens: m.count(m.summary),
		BufferTokens:  m.turnTokensLocked(),
		MaxTokens:     m.maxTokens,
	}
}

// Tokens returns the token estimate of summary plus verbatim turns.
func (m *ConversationMemory) Tokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokensLocked()
}

func (m *ConversationMemory) tokensLocked() int {
	return m.count(m.summary) + m.turnTokensLocked()
}

func (m *ConversationMemory) turnTokensLocked() int {
	total := 0
	for _, t := range m.turns {
		total += m.turnTokens(t)
	}
	return total
}

func (m *ConversationMemory) turnTokens(t domain.Turn) int {
	return m.count(t.Question) + m.count(t.Answer)
}

func (m *ConversationMemory) count(text string) int {
	if text == "" {
		return 0
	}
	return m.tokenizer.Count(text)
}
