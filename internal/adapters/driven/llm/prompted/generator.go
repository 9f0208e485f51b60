package prompted

import (
	"context"
	"strings"

	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.AnswerGenerator = (*Generator)(nil)

// Generator answers from the compressed context. Conversation memory is sent
// as prior chat turns, with the summary as a system message.
type Generator struct {
	base
}

// NewGenerator creates an answer generator.
func NewGenerator(model driven.ChatModel, opts Options) *Generator {
	return &Generator{base{model: model, opts: opts}}
}

// Generate implements driven.AnswerGenerator.
func (g *Generator) Generate(ctx context.Context, req driven.AnswerRequest) (driven.Answer, error) {
	template := req.Template
	if template == "" {
		template = g.template(driven.PromptAnswer)
	}

	parts := make([]string, 0, len(req.Spans))
	for _, span := range req.Spans {
		parts = append(parts, span.Text)
	}
	prompt := driven.RenderPrompt(template, map[string]string{
		"context":  strings.Join(parts, "\n\n"),
		"question": req.Question,
	})

	messages := make([]driven.ChatMessage, 0, len(req.Memory.Turns)*2+2)
	if req.Memory.Summary != "" {
		messages = append(messages, driven.ChatMessage{
			Role:    driven.RoleSystem,
			Content: "Summary of the earlier conversation:\n" + req.Memory.Summary,
		})
	}
	messages = append(messages, driven.MessagesFromHistory(req.Memory.Messages())...)
	messages = append(messages, driven.ChatMessage{Role: driven.RoleUser, Content: prompt})

	resp, err := g.model.Chat(ctx, messages, g.opts.chat())
	if err != nil {
		return driven.Answer{}, err
	}
	return driven.Answer{Text: strings.TrimSpace(resp.Content), Usage: resp.Usage}, nil
}
