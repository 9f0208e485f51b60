package prompted

import (
	"context"
	"strings"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure Condenser implements the interface.
var _ driven.QuestionCondenser = (*Condenser)(nil)

// Condenser rewrites a follow-up into a standalone question.
type Condenser struct {
	base
}

// NewCondenser creates a condenser.
func NewCondenser(model driven.ChatModel, opts Options) *Condenser {
	return &Condenser{base{model: model, opts: opts}}
}

// Condense implements driven.QuestionCondenser. Without history the
// question is returned unchanged and no call is made.
func (c *Condenser) Condense(ctx context.Context, memory domain.MemorySnapshot, question string) (string, domain.Usage, error) {
	if memory.Empty() {
		return question, domain.Usage{}, nil
	}

	history := transcript(memory.Turns, "Human", "Assistant")
	if memory.Summary != "" {
		history = strings.TrimSpace("Summary: " + memory.Summary + "\n" + history)
	}

	prompt := driven.RenderPrompt(c.template(driven.PromptCondense), map[string]string{
		"chat_history": history,
		"question":     question,
	})

	resp, err := c.model.Chat(ctx, []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}}, c.opts.chat())
	if err != nil {
		return "", domain.Usage{}, err
	}

	standalone := strings.TrimSpace(resp.Content)
	if standalone == "" {
		return "", resp.Usage, domain.NewProviderError(c.model.ModelName(), "condense",
			domain.ErrorKindProviderLogic, errEmptyCompletion)
	}
	return standalone, resp.Usage, nil
}
