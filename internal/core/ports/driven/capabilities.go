package driven

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// Compressor extracts the query-relevant span of a retrieved candidate.
type Compressor interface {
	// Compress returns the span, or nil when nothing in the candidate is
	// relevant. Usage reports the cost of the underlying provider call.
	Compress(ctx context.Context, query string, candidate domain.Candidate) (*domain.CompressedSpan, domain.Usage, error)
}

// AnswerRequest is the input to answer generation.
type AnswerRequest struct {
	// Template has {context} and {question} substitution points.
	Template string

	// Spans are the compressed context in rank order.
	Spans []domain.CompressedSpan

	// Question is the raw user question.
	Question string

	// Memory is supplied as structured turns, never interpolated into Template.
	Memory domain.MemorySnapshot
}

// Answer is a generated answer.
type Answer struct {
	Text  string
	Usage domain.Usage
}

// AnswerGenerator produces a grounded answer.
type AnswerGenerator interface {
	Generate(ctx context.Context, req AnswerRequest) (Answer, error)
}

// Summarizer folds conversation turns into a running summary.
type Summarizer interface {
	// Summarize extends previous with the given turns and returns the new summary.
	Summarize(ctx context.Context, previous string, turns []domain.Turn) (string, domain.Usage, error)
}

// QuestionCondenser rewrites a follow-up question into a standalone question.
type QuestionCondenser interface {
	Condense(ctx context.Context, memory domain.MemorySnapshot, question string) (string, domain.Usage, error)
}
