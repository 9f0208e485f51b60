package prompted

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// mockChatModel records the last request and replies with a fixed answer.
type mockChatModel struct {
	reply    string
	err      error
	calls    int
	messages []driven.ChatMessage
	opts     driven.ChatOptions
}

func (m *mockChatModel) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.ChatResponse, error) {
	m.calls++
	m.messages = messages
	m.opts = opts
	if m.err != nil {
		return driven.ChatResponse{}, m.err
	}
	return driven.ChatResponse{Content: m.reply, Usage: domain.Usage{TotalTokens: 7, Cost: 0.01}}, nil
}

func (m *mockChatModel) ModelName() string            { return "mock" }
func (m *mockChatModel) Ping(_ context.Context) error { return nil }
func (m *mockChatModel) Close() error                 { return nil }

func (m *mockChatModel) lastPrompt() string {
	return m.messages[len(m.messages)-1].Content
}

// mockPromptStore serves fixed templates.
type mockPromptStore map[string]string

func (s mockPromptStore) Load(name string) (string, error) {
	if t, ok := s[name]; ok {
		return t, nil
	}
	return "", errors.New("missing")
}

func (s mockPromptStore) Reload() {}

func TestCompressor(t *testing.T) {
	candidate := domain.Candidate{Rank: 2, Text: "Paris is the capital. Bread is tasty.", Score: 0.9}

	t.Run("returns the extracted span", func(t *testing.T) {
		model := &mockChatModel{reply: "  Paris is the capital.\n"}
		span, usage, err := NewCompressor(model, 300).Compress(context.Background(), "capital?", candidate)
		require.NoError(t, err)
		require.NotNil(t, span)

		assert.Equal(t, "Paris is the capital.", span.Text)
		assert.Equal(t, 2, span.Candidate.Rank)
		assert.Equal(t, 7, usage.TotalTokens)
		assert.Contains(t, model.lastPrompt(), "> Question: capital?")
		assert.Contains(t, model.lastPrompt(), "Bread is tasty.")
		assert.Zero(t, model.opts.Temperature)
		assert.Equal(t, 300, model.opts.MaxTokens)
	})

	t.Run("NO_OUTPUT drops the candidate", func(t *testing.T) {
		for _, reply := range []string{"NO_OUTPUT", " NO_OUTPUT.", ""} {
			span, usage, err := NewCompressor(&mockChatModel{reply: reply}, 0).Compress(context.Background(), "q", candidate)
			require.NoError(t, err)
			assert.Nil(t, span, "reply %q", reply)
			assert.Equal(t, 7, usage.TotalTokens, "usage still counted")
		}
	})

	t.Run("propagates failure", func(t *testing.T) {
		_, _, err := NewCompressor(&mockChatModel{err: domain.ErrTimeout}, 0).Compress(context.Background(), "q", candidate)
		assert.ErrorIs(t, err, domain.ErrTimeout)
	})

	t.Run("uses custom prompt", func(t *testing.T) {
		model := &mockChatModel{reply: "x"}
		c := NewCompressor(model, 0)
		c.SetPromptStore(mockPromptStore{driven.PromptCompress: "Q={question} C={context}"})

		_, _, err := c.Compress(context.Background(), "why", domain.Candidate{Text: "because"})
		require.NoError(t, err)
		assert.Equal(t, "Q=why C=because", model.lastPrompt())
	})
}

func TestGenerator(t *testing.T) {
	model := &mockChatModel{reply: "The answer.\n"}
	g := NewGenerator(model, Options{Temperature: 0.1, MaxTokens: 1000})

	answer, err := g.Generate(context.Background(), driven.AnswerRequest{
		Template: "CTX:\n{context}\nQ: {question}",
		Spans: []domain.CompressedSpan{
			{Text: "first span"},
			{Text: "second span"},
		},
		Question: "What?",
		Memory: domain.MemorySnapshot{
			Summary: "They talked about X.",
			Turns:   []domain.Turn{{Question: "q1", Answer: "a1"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer.", answer.Text)
	assert.Equal(t, 0.01, answer.Usage.Cost)

	require.Len(t, model.messages, 4)
	assert.Equal(t, driven.RoleSystem, model.messages[0].Role)
	assert.Contains(t, model.messages[0].Content, "They talked about X.")
	assert.Equal(t, driven.ChatMessage{Role: driven.RoleUser, Content: "q1"}, model.messages[1])
	assert.Equal(t, driven.ChatMessage{Role: driven.RoleAssistant, Content: "a1"}, model.messages[2])
	assert.Equal(t, "CTX:\nfirst span\n\nsecond span\nQ: What?", model.lastPrompt())
	assert.InDelta(t, 0.1, model.opts.Temperature, 1e-9)
}

func TestGenerator_DefaultTemplateAndNoMemory(t *testing.T) {
	model := &mockChatModel{reply: "ok"}
	_, err := NewGenerator(model, Options{}).Generate(context.Background(), driven.AnswerRequest{Question: "Q?"})
	require.NoError(t, err)

	require.Len(t, model.messages, 1)
	assert.Contains(t, model.lastPrompt(), "Question: Q?")
	assert.Contains(t, model.lastPrompt(), "Context from documents:")
}

func TestSummarizer(t *testing.T) {
	model := &mockChatModel{reply: "New summary."}
	s := NewSummarizer(model, Options{})

	summary, usage, err := s.Summarize(context.Background(), "Old summary.", []domain.Turn{
		{Question: "hi", Answer: "hello"},
		{Question: "why", Answer: "because"},
	})
	require.NoError(t, err)
	assert.Equal(t, "New summary.", summary)
	assert.Equal(t, 7, usage.TotalTokens)

	prompt := model.lastPrompt()
	assert.Contains(t, prompt, "Current summary:\nOld summary.")
	assert.Contains(t, prompt, "Human: hi\nAI: hello\nHuman: why\nAI: because")
}

func TestSummarizer_EmptyReplyIsError(t *testing.T) {
	_, _, err := NewSummarizer(&mockChatModel{reply: "  "}, Options{}).Summarize(context.Background(), "", nil)
	assert.ErrorIs(t, err, domain.ErrProviderLogic)
}

func TestCondenser(t *testing.T) {
	t.Run("no history skips the call", func(t *testing.T) {
		model := &mockChatModel{reply: "unused"}
		q, _, err := NewCondenser(model, Options{}).Condense(context.Background(), domain.MemorySnapshot{}, "What about it?")
		require.NoError(t, err)
		assert.Equal(t, "What about it?", q)
		assert.Zero(t, model.calls)
	})

	t.Run("rewrites with history", func(t *testing.T) {
		model := &mockChatModel{reply: " What is the refund policy for laptops? "}
		memory := domain.MemorySnapshot{
			Summary: "Discussed refunds.",
			Turns:   []domain.Turn{{Question: "Tell me about laptops", Answer: "They are sold."}},
		}
		q, usage, err := NewCondenser(model, Options{}).Condense(context.Background(), memory, "And the refund policy?")
		require.NoError(t, err)
		assert.Equal(t, "What is the refund policy for laptops?", q)
		assert.Equal(t, 7, usage.TotalTokens)

		prompt := model.lastPrompt()
		assert.Contains(t, prompt, "Summary: Discussed refunds.\nHuman: Tell me about laptops\nAssistant: They are sold.")
		assert.Contains(t, prompt, "Follow Up Input: And the refund policy?")
	})

	t.Run("failure", func(t *testing.T) {
		memory := domain.MemorySnapshot{Turns: []domain.Turn{{Question: "a", Answer: "b"}}}
		_, _, err := NewCondenser(&mockChatModel{err: domain.ErrTransport}, Options{}).Condense(context.Background(), memory, "q")
		assert.ErrorIs(t, err, domain.ErrTransport)
	})
}
