package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qingzhee/rag-engine/internal/adapters/driven/storage/memory"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// --- Mock implementations for conversation testing ---

type convMockGenerator struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []driven.AnswerRequest
}

func (g *convMockGenerator) Generate(_ context.Context, req driven.AnswerRequest) (driven.Answer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return driven.Answer{}, g.err
	}
	answer := g.answer
	if answer == "" {
		if len(req.Spans) == 0 {
			answer = "No relevant documents found."
		} else {
			answer = fmt.Sprintf("Answer from %d spans", len(req.Spans))
		}
	}
	return driven.Answer{Text: answer, Usage: domain.Usage{TotalTokens: 100, Cost: 0.002}}, nil
}

// convMockCompressor drops candidates whose text contains "irrelevant".
type convMockCompressor struct {
	mu    sync.Mutex
	calls int
	err   error
	delay func(c domain.Candidate) time.Duration
}

func (c *convMockCompressor) Compress(ctx context.Context, _ string, candidate domain.Candidate) (*domain.CompressedSpan, domain.Usage, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.delay != nil {
		select {
		case <-time.After(c.delay(candidate)):
		case <-ctx.Done():
			return nil, domain.Usage{}, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, domain.Usage{}, c.err
	}
	usage := domain.Usage{TotalTokens: 10, Cost: 0.0001}
	if strings.Contains(candidate.Text, "irrelevant") {
		return nil, usage, nil
	}
	return &domain.CompressedSpan{Text: "span: " + candidate.Text, Candidate: candidate}, usage, nil
}

// convBlockingGenerator signals started and waits for release before answering.
type convBlockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g *convBlockingGenerator) Generate(_ context.Context, _ driven.AnswerRequest) (driven.Answer, error) {
	close(g.started)
	<-g.release
	return driven.Answer{Text: "late answer"}, nil
}

type convMockCondenser struct {
	out   string
	err   error
	calls int
}

func (c *convMockCondenser) Condense(_ context.Context, _ domain.MemorySnapshot, question string) (string, domain.Usage, error) {
	c.calls++
	if c.err != nil {
		return "", domain.Usage{}, c.err
	}
	if c.out != "" {
		return c.out, domain.Usage{TotalTokens: 5}, nil
	}
	return "standalone: " + question, domain.Usage{TotalTokens: 5}, nil
}

type convFailingEmbedder struct {
	ingestMockEmbedder
}

func (e *convFailingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, domain.NewProviderError("mock", "embed", domain.ErrorKindTimeout, context.DeadlineExceeded)
}

type convFixture struct {
	index      *memory.VectorIndex
	embedder   *ingestMockEmbedder
	generator  *convMockGenerator
	compressor *convMockCompressor
	condenser  *convMockCondenser
	summarizer *memMockSummarizer
	settings   domain.ConversationSettings
}

func newConvFixture() *convFixture {
	return &convFixture{
		index:      memory.NewVectorIndex(),
		embedder:   &ingestMockEmbedder{dim: 8},
		generator:  &convMockGenerator{},
		compressor: &convMockCompressor{},
		condenser:  &convMockCondenser{},
		summarizer: &memMockSummarizer{},
		settings:   domain.DefaultConfig().Conversation,
	}
}

func (f *convFixture) seed(t *testing.T, texts ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.index.EnsureCollection(ctx, "docs", 8, domain.DistanceCosine))
	points := make([]domain.IndexPoint, len(texts))
	for i, text := range texts {
		points[i] = domain.IndexPoint{
			ID:      fmt.Sprintf("p%d", i),
			Vector:  f.embedder.vector(text),
			Content: text,
			Metadata: domain.ChunkMetadata{
				SourceFile: fmt.Sprintf("dir/file%d.pdf", i),
				Page:       i + 1,
			},
		}
	}
	require.NoError(t, f.index.Upsert(ctx, "docs", points))
}

func (f *convFixture) engine(embedder driven.EmbeddingService) *ConversationEngine {
	if embedder == nil {
		embedder = f.embedder
	}
	retrieval := domain.DefaultConfig().Retrieval
	return NewConversationEngine(ConversationDeps{
		Retriever:  NewRetriever(embedder, f.index, "docs", retrieval),
		Generator:  f.generator,
		Compressor: f.compressor,
		Condenser:  f.condenser,
		Memory:     NewConversationMemory(memMockTokenizer{}, f.summarizer, f.settings.MemoryMaxTokens),
	}, f.settings)
}

// --- Tests ---

func TestConversationEngine_Query(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "alpha facts", "beta facts", "gamma facts", "delta facts")
	engine := f.engine(nil)

	result := engine.Query(context.Background(), "What is X?")

	assert.False(t, result.Failed())
	assert.Equal(t, "Answer from 4 spans", result.Answer)
	assert.Len(t, result.Sources, 3, "capped to max sources display")
	assert.Equal(t, 4, result.Metadata.NumSources)
	assert.Equal(t, 100+4*10, result.Metadata.TokensUsed)
	assert.InDelta(t, 0.002+4*0.0001, result.Metadata.Cost, 1e-9)
	assert.False(t, result.Metadata.Timestamp.IsZero())
	assert.Empty(t, result.Metadata.StandaloneQuestion)
	assert.Zero(t, f.condenser.calls, "no history yet")

	require.Len(t, result.ChatHistory, 2)
	assert.Equal(t, domain.Message{Role: domain.RoleHuman, Content: "What is X?"}, result.ChatHistory[0])
	assert.Equal(t, domain.RoleAI, result.ChatHistory[1].Role)

	src := result.Sources[0]
	assert.True(t, strings.HasPrefix(src.FileName, "file"))
	assert.True(t, strings.HasPrefix(src.SourceFile, "dir/"))
	assert.Positive(t, src.Page)
	assert.True(t, strings.HasPrefix(src.Preview, "span: "))

	require.Len(t, f.generator.requests, 1)
	req := f.generator.requests[0]
	assert.Equal(t, DefaultAnswerTemplate, req.Template)
	assert.Equal(t, "What is X?", req.Question)
	assert.True(t, req.Memory.Empty())
}

func TestConversationEngine_SpansKeepRankOrder(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "one", "two", "three", "four", "five", "six")
	// Later ranks finish first.
	f.compressor.delay = func(c domain.Candidate) time.Duration {
		return time.Duration(6-c.Rank) * 5 * time.Millisecond
	}
	engine := f.engine(nil)

	result := engine.Query(context.Background(), "order?")
	require.False(t, result.Failed())

	req := f.generator.requests[0]
	require.Len(t, req.Spans, 6)
	for i, span := range req.Spans {
		assert.Equal(t, i, span.Candidate.Rank)
	}
}

func TestConversationEngine_CompressorDropsIrrelevant(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "useful text", "irrelevant text", "more useful text")
	engine := f.engine(nil)

	result := engine.Query(context.Background(), "q")

	assert.Equal(t, 2, result.Metadata.NumSources)
	for _, span := range f.generator.requests[0].Spans {
		assert.NotContains(t, span.Text, "irrelevant")
	}
}

func TestConversationEngine_CompressionDisabled(t *testing.T) {
	f := newConvFixture()
	f.settings.UseCompression = false
	f.seed(t, "useful text", "irrelevant text")
	engine := f.engine(nil)

	result := engine.Query(context.Background(), "q")

	assert.Equal(t, 2, result.Metadata.NumSources)
	assert.Zero(t, f.compressor.calls)
}

func TestConversationEngine_EmptyRetrieval(t *testing.T) {
	f := newConvFixture()
	engine := f.engine(nil)

	result := engine.Query(context.Background(), "What is X?")

	assert.False(t, result.Failed())
	assert.Empty(t, result.Sources)
	assert.NotNil(t, result.Sources)
	assert.Equal(t, "No relevant documents found.", result.Answer)
	assert.Zero(t, result.Metadata.NumSources)
	require.Len(t, f.generator.requests, 1)
	assert.Empty(t, f.generator.requests[0].Spans)
}

func TestConversationEngine_GeneratorFailure(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "alpha")
	f.generator.err = domain.NewProviderError("openai", "chat", domain.ErrorKindRateLimit, errors.New("too many requests"))
	engine := f.engine(nil)

	var result domain.QueryResult
	assert.NotPanics(t, func() {
		result = engine.Query(context.Background(), "What is X?")
	})

	assert.True(t, result.Failed())
	assert.Empty(t, result.Sources)
	assert.Equal(t, domain.ErrorKindRateLimit, result.Metadata.ErrorKind)
	assert.True(t, strings.HasPrefix(result.Answer, ErrorAnswerPrefix))
	assert.Empty(t, engine.History(), "failed turns are not remembered")
}

func TestConversationEngine_RetrievalFailure(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "alpha")
	engine := f.engine(&convFailingEmbedder{ingestMockEmbedder{dim: 8}})

	result := engine.Query(context.Background(), "q")

	assert.True(t, result.Failed())
	assert.Equal(t, domain.ErrorKindTimeout, result.Metadata.ErrorKind)
	assert.Contains(t, result.Metadata.Error, "retrieve")
	assert.Empty(t, f.generator.requests)
}

func TestConversationEngine_CompressionFailure(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "alpha", "beta")
	f.compressor.err = domain.NewProviderError("openai", "chat", domain.ErrorKindProviderLogic, errors.New("bad json"))
	engine := f.engine(nil)

	result := engine.Query(context.Background(), "q")

	assert.True(t, result.Failed())
	assert.Equal(t, domain.ErrorKindProviderLogic, result.Metadata.ErrorKind)
	assert.Empty(t, result.Sources)
}

func TestConversationEngine_EmptyQuestion(t *testing.T) {
	f := newConvFixture()
	engine := f.engine(nil)

	result := engine.Query(context.Background(), "   ")

	assert.True(t, result.Failed())
	assert.Empty(t, f.generator.requests)
}

func TestConversationEngine_CondensesFollowUps(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "alpha")
	engine := f.engine(nil)

	engine.Query(context.Background(), "What is alpha?")
	result := engine.Query(context.Background(), "And its origin?")

	assert.Equal(t, 1, f.condenser.calls)
	assert.Equal(t, "standalone: And its origin?", result.Metadata.StandaloneQuestion)
	assert.Equal(t, "And its origin?", f.generator.requests[1].Question)
	assert.Len(t, f.generator.requests[1].Memory.Turns, 1)
	assert.Len(t, result.ChatHistory, 4)
}

func TestConversationEngine_CondenseFailureFallsBack(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "alpha")
	f.condenser.err = errors.New("condense down")
	engine := f.engine(nil)

	engine.Query(context.Background(), "first")
	result := engine.Query(context.Background(), "second")

	assert.False(t, result.Failed())
	assert.Empty(t, result.Metadata.StandaloneQuestion)
	require.Len(t, result.Metadata.Warnings, 1)
	assert.Contains(t, result.Metadata.Warnings[0], "condense")
}

func TestConversationEngine_TrackCostsOff(t *testing.T) {
	f := newConvFixture()
	f.settings.TrackCosts = false
	f.seed(t, "alpha")
	engine := f.engine(nil)

	result := engine.Query(context.Background(), "q")
	assert.Zero(t, result.Metadata.Cost)
	assert.Positive(t, result.Metadata.TokensUsed)
}

func TestConversationEngine_ResetAndStats(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "alpha")
	engine := f.engine(nil)

	engine.Query(context.Background(), "q1")
	engine.Query(context.Background(), "q2")

	stats := engine.MemoryStats()
	assert.Equal(t, 4, stats.TotalMessages)
	assert.Equal(t, 2, stats.HumanMessages)
	assert.Equal(t, domain.NoHistorySummary, engine.Summary())

	engine.Reset()
	assert.Empty(t, engine.History())
	assert.Zero(t, engine.MemoryStats().TotalMessages)
}

func TestConversationEngine_ResetWaitsForInFlightQuery(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "alpha")
	gen := &convBlockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	engine := NewConversationEngine(ConversationDeps{
		Retriever:  NewRetriever(f.embedder, f.index, "docs", domain.DefaultConfig().Retrieval),
		Generator:  gen,
		Compressor: f.compressor,
		Condenser:  f.condenser,
		Memory:     NewConversationMemory(memMockTokenizer{}, f.summarizer, f.settings.MemoryMaxTokens),
	}, f.settings)

	queried := make(chan struct{})
	go func() {
		defer close(queried)
		engine.Query(context.Background(), "q1")
	}()
	<-gen.started

	reset := make(chan struct{})
	go func() {
		defer close(reset)
		engine.Reset()
	}()

	select {
	case <-reset:
		t.Fatal("Reset returned while a query was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gen.release)
	<-queried
	<-reset

	assert.Empty(t, engine.History())
}

func TestConversationEngine_ConcurrentQueriesKeepAllTurns(t *testing.T) {
	f := newConvFixture()
	f.settings.MemoryMaxTokens = 10000
	f.seed(t, "alpha")
	engine := f.engine(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engine.Query(context.Background(), fmt.Sprintf("question %d", i))
		}(i)
	}
	wg.Wait()

	assert.Len(t, engine.History(), 16)
}

func TestConversationEngineFactory_IndependentSessions(t *testing.T) {
	f := newConvFixture()
	f.seed(t, "alpha")

	factory := NewConversationEngineFactory(ConversationDeps{
		Retriever: NewRetriever(f.embedder, f.index, "docs", domain.RetrievalSettings{}),
		Generator: f.generator,
	}, memMockTokenizer{}, f.summarizer, f.settings)

	a := factory.NewConversation()
	b := factory.NewConversation()

	a.Query(context.Background(), "only in a")

	assert.Len(t, a.History(), 2)
	assert.Empty(t, b.History())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 10))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "日本...", Preview("日本語テキスト", 2))
	assert.Equal(t, "trimmed", Preview("  trimmed  ", 10))
}
