package prompted

import (
	"context"
	"strings"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure Compressor implements the interface.
var _ driven.Compressor = (*Compressor)(nil)

// Compressor extracts the relevant part of a candidate verbatim. The model
// answers NO_OUTPUT when nothing is relevant.
type Compressor struct {
	base
}

// NewCompressor creates a compressor. Extraction runs at temperature 0.
func NewCompressor(model driven.ChatModel, maxTokens int) *Compressor {
	return &Compressor{base{model: model, opts: Options{MaxTokens: maxTokens}}}
}

// Compress implements driven.Compressor.
func (c *Compressor) Compress(ctx context.Context, query string, candidate domain.Candidate) (*domain.CompressedSpan, domain.Usage, error) {
	prompt := driven.RenderPrompt(c.template(driven.PromptCompress), map[string]string{
		"question": query,
		"context":  candidate.Text,
	})

	resp, err := c.model.Chat(ctx, []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}}, c.opts.chat())
	if err != nil {
		return nil, domain.Usage{}, err
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" || strings.HasPrefix(text, driven.NoOutput) {
		return nil, resp.Usage, nil
	}
	return &domain.CompressedSpan{Text: text, Candidate: candidate}, resp.Usage, nil
}
