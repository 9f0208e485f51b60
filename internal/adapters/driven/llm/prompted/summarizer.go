package prompted

import (
	"context"
	"strings"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure Summarizer implements the interface.
var _ driven.Summarizer = (*Summarizer)(nil)

// Summarizer progressively extends a running conversation summary.
type Summarizer struct {
	base
}

// NewSummarizer creates a summarizer.
func NewSummarizer(model driven.ChatModel, opts Options) *Summarizer {
	return &Summarizer{base{model: model, opts: opts}}
}

// Summarize implements driven.Summarizer. With no turns it rewrites the
// previous summary on its own, which shortens it.
func (s *Summarizer) Summarize(ctx context.Context, previous string, turns []domain.Turn) (string, domain.Usage, error) {
	prompt := driven.RenderPrompt(s.template(driven.PromptSummarize), map[string]string{
		"summary":   previous,
		"new_lines": transcript(turns, "Human", "AI"),
	})

	resp, err := s.model.Chat(ctx, []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}}, s.opts.chat())
	if err != nil {
		return "", domain.Usage{}, err
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", resp.Usage, domain.NewProviderError(s.model.ModelName(), "summarize",
			domain.ErrorKindProviderLogic, errEmptyCompletion)
	}
	return summary, resp.Usage, nil
}
