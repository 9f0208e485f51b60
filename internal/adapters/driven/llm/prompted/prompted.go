// Package prompted implements the compressor, answer generator, summarizer
// and question condenser as prompt templates over a driven.ChatModel.
package prompted

import (
	"errors"
	"strings"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

var errEmptyCompletion = errors.New("empty completion")

// Options are the generation settings shared by every prompted capability.
type Options struct {
	Temperature float64
	MaxTokens   int
}

func (o Options) chat() driven.ChatOptions {
	return driven.ChatOptions{Temperature: o.Temperature, MaxTokens: o.MaxTokens}
}

// base resolves templates from an optional prompt store.
type base struct {
	model   driven.ChatModel
	prompts driven.PromptStore
	opts    Options
}

// SetPromptStore implements driven.PromptStoreAware.
func (b *base) SetPromptStore(store driven.PromptStore) {
	b.prompts = store
}

func (b *base) template(name string) string {
	if b.prompts != nil {
		if t, err := b.prompts.Load(name); err == nil && strings.TrimSpace(t) != "" {
			return t
		}
		logger.Debug("prompt %q not found, using built-in", name)
	}
	return driven.DefaultPrompts()[name]
}

// transcript renders turns with the given speaker labels, one line each.
func transcript(turns []domain.Turn, human, ai string) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(human + ": " + t.Question + "\n" + ai + ": " + t.Answer)
	}
	return b.String()
}
