package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// Ensure ConversationEngine implements the interface.
var _ driving.ConversationService = (*ConversationEngine)(nil)

// Ensure ConversationEngineFactory implements the interface.
var _ driving.ConversationFactory = (*ConversationEngineFactory)(nil)

// ErrorAnswerPrefix starts the answer of a failed query.
const ErrorAnswerPrefix = "Sorry, I encountered an error: "

// DefaultAnswerTemplate is the grounded answer prompt.
const DefaultAnswerTemplate = driven.DefaultAnswerPrompt

// ConversationDeps are the collaborators of a ConversationEngine.
type ConversationDeps struct {
	Retriever *Retriever

	// Generator is required.
	Generator driven.AnswerGenerator

	// Compressor is optional; nil passes candidates through unchanged.
	Compressor driven.Compressor

	// Condenser is optional; nil uses the question as asked for retrieval.
	Condenser driven.QuestionCondenser

	Memory *ConversationMemory

	// Template is the answer prompt. Empty uses DefaultAnswerTemplate.
	Template string
}

// ConversationEngine answers questions for one conversation session.
// Queries on the same engine are serialised.
type ConversationEngine struct {
	mu sync.Mutex

	retriever  *Retriever
	generator  driven.AnswerGenerator
	compressor driven.Compressor
	condenser  driven.QuestionCondenser
	memory     *ConversationMemory
	template   string
	settings   domain.ConversationSettings
	now        func() time.Time
}

// NewConversationEngine creates a conversation engine.
func NewConversationEngine(deps ConversationDeps, settings domain.ConversationSettings) *ConversationEngine {
	defaults := domain.DefaultConfig().Conversation
	if settings.CompressConcurrency <= 0 {
		settings.CompressConcurrency = defaults.CompressConcurrency
	}
	if settings.MaxSourcesDisplay <= 0 {
		settings.MaxSourcesDisplay = defaults.MaxSourcesDisplay
	}
	if settings.SourcePreviewLength <= 0 {
		settings.SourcePreviewLength = defaults.SourcePreviewLength
	}
	template := deps.Template
	if strings.TrimSpace(template) == "" {
		template = DefaultAnswerTemplate
	}
	return &ConversationEngine{
		retriever:  deps.Retriever,
		generator:  deps.Generator,
		compressor: deps.Compressor,
		condenser:  deps.Condenser,
		memory:     deps.Memory,
		template:   template,
		settings:   settings,
		now:        time.Now,
	}
}

// Query answers a question. It never fails: provider errors produce an
// answer explaining the failure, no sources, and error metadata.
func (e *ConversationEngine) Query(ctx context.Context, question string) domain.QueryResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := domain.QueryResult{
		Sources: []domain.SourceCitation{},
		Metadata: domain.QueryMetadata{
			Timestamp: e.now().UTC(),
		},
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return e.fail(result, fmt.Errorf("%w: empty question", domain.ErrInvalidInput))
	}

	var usage domain.Usage
	snapshot := e.memory.Snapshot()

	// 1. Condense the follow-up into a standalone question
	standalone := question
	if e.condenser != nil && e.settings.CondenseQuestion && !snapshot.Empty() {
		condensed, u, err := e.condenser.Condense(ctx, snapshot, question)
		usage.Add(u)
		switch {
		case err != nil:
			logger.Warn("condense question failed, using it as asked: %v", err)
			result.Metadata.Warnings = append(result.Metadata.Warnings, "condense question: "+err.Error())
		case strings.TrimSpace(condensed) != "":
			standalone = strings.TrimSpace(condensed)
		}
	}
	if standalone != question {
		result.Metadata.StandaloneQuestion = standalone
	}

	// 2. Retrieve
	candidates, err := e.retriever.Retrieve(ctx, standalone)
	if err != nil {
		return e.fail(result, fmt.Errorf("retrieve: %w", err))
	}
	if len(candidates) == 0 {
		logger.Info("no documents retrieved for question")
	}

	// 3. Compress
	spans, u, err := e.compress(ctx, standalone, candidates)
	usage.Add(u)
	if err != nil {
		return e.fail(result, fmt.Errorf("compress: %w", err))
	}

	// 4. Generate
	answer, err := e.generator.Generate(ctx, driven.AnswerRequest{
		Template: e.template,
		Spans:    spans,
		Question: question,
		Memory:   snapshot,
	})
	if err != nil {
		return e.fail(result, fmt.Errorf("generate: %w", err))
	}
	usage.Add(answer.Usage)

	// 5. Update memory
	u, err = e.memory.Append(ctx, question, answer.Text)
	usage.Add(u)
	if err != nil {
		result.Metadata.Warnings = append(result.Metadata.Warnings, err.Error())
	}

	// 6. Assemble the result
	result.Answer = answer.Text
	result.Sources = e.citations(spans)
	result.ChatHistory = e.memory.Messages()
	result.Metadata.NumSources = len(spans)
	result.Metadata.TokensUsed = usage.TotalTokens
	if e.settings.TrackCosts {
		result.Metadata.Cost = usage.Cost
	}
	return result
}

// compress runs the compressor over every candidate in parallel and
// returns the surviving spans in rank order.
func (e *ConversationEngine) compress(ctx context.Context, question string, candidates []domain.Candidate) ([]domain.CompressedSpan, domain.Usage, error) {
	var usage domain.Usage
	if len(candidates) == 0 {
		return nil, usage, nil
	}
	if e.compressor == nil || !e.settings.UseCompression {
		spans := make([]domain.CompressedSpan, len(candidates))
		for i, c := range candidates {
			spans[i] = domain.CompressedSpan{Text: c.Text, Candidate: c}
		}
		return spans, usage, nil
	}

	results := make([]*domain.CompressedSpan, len(candidates))
	usages := make([]domain.Usage, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.CompressConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			span, u, err := e.compressor.Compress(gctx, question, c)
			if err != nil {
				return err
			}
			results[i] = span
			usages[i] = u
			return nil
		})
	}
	err := g.Wait()
	for _, u := range usages {
		usage.Add(u)
	}
	if err != nil {
		return nil, usage, err
	}

	spans := make([]domain.CompressedSpan, 0, len(candidates))
	for _, span := range results {
		if span != nil {
			spans = append(spans, *span)
		}
	}
	logger.Debug("compression kept %d of %d candidates", len(spans), len(candidates))
	return spans, usage, nil
}

// citations shapes the first spans into display citations.
func (e *ConversationEngine) citations(spans []domain.CompressedSpan) []domain.SourceCitation {
	n := min(len(spans), e.settings.MaxSourcesDisplay)
	out := make([]domain.SourceCitation, 0, n)
	for _, span := range spans[:n] {
		md := span.Candidate.Metadata
		out = append(out, domain.SourceCitation{
			FileName:   filepath.Base(filepath.FromSlash(md.SourceFile)),
			SourceFile: md.SourceFile,
			Page:       md.Page,
			Preview:    Preview(span.Text, e.settings.SourcePreviewLength),
			Score:      span.Candidate.Score,
		})
	}
	return out
}

func (e *ConversationEngine) fail(result domain.QueryResult, err error) domain.QueryResult {
	logger.Error("query failed: %v", err)
	result.Answer = ErrorAnswerPrefix + err.Error()
	result.Metadata.Error = err.Error()
	result.Metadata.ErrorKind = domain.KindOf(err)
	result.ChatHistory = e.memory.Messages()
	if errors.Is(err, domain.ErrInvalidInput) {
		result.Answer = "Please ask a question."
	}
	return result
}

// Summary implements driving.ConversationService.
func (e *ConversationEngine) Summary() string {
	return e.memory.Summary()
}

// MemoryStats implements driving.ConversationService.
func (e *ConversationEngine) MemoryStats() domain.MemoryStats {
	return e.memory.Stats()
}

// History implements driving.ConversationService.
func (e *ConversationEngine) History() []domain.Message {
	return e.memory.Messages()
}

// Reset implements driving.ConversationService.
func (e *ConversationEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.memory.Clear()
	logger.Info("conversation memory cleared")
}

// Preview truncates text to limit runes, appending "..." when cut.
func Preview(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}

// ConversationEngineFactory builds independent engines that share provider
// clients but own their memory.
type ConversationEngineFactory struct {
	deps       ConversationDeps
	tokenizer  driven.Tokenizer
	summarizer driven.Summarizer
	settings   domain.ConversationSettings
}

// NewConversationEngineFactory creates a factory. deps.Memory is ignored;
// each conversation gets a fresh memory. The summarizer is used only when
// settings.SummaryEnabled is set.
func NewConversationEngineFactory(deps ConversationDeps, tokenizer driven.Tokenizer, summarizer driven.Summarizer, settings domain.ConversationSettings) *ConversationEngineFactory {
	if !settings.SummaryEnabled {
		summarizer = nil
	}
	return &ConversationEngineFactory{
		deps:       deps,
		tokenizer:  tokenizer,
		summarizer: summarizer,
		settings:   settings,
	}
}

// NewConversation implements driving.ConversationFactory.
func (f *ConversationEngineFactory) NewConversation() driving.ConversationService {
	return f.New()
}

// New returns a new engine with empty memory.
func (f *ConversationEngineFactory) New() *ConversationEngine {
	deps := f.deps
	deps.Memory = NewConversationMemory(f.tokenizer, f.summarizer, f.settings.MemoryMaxTokens)
	return NewConversationEngine(deps, f.settings)
}
