// Package llm holds pricing shared by the chat model adapters.
package llm

import (
	"strings"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// Price is the cost of a model in USD per 1,000 tokens.
type Price struct {
	Prompt     float64
	Completion float64
}

// PriceTable maps model names, or model name prefixes, to prices.
type PriceTable map[string]Price

// Lookup returns the price of model. Dated snapshots such as
// "gpt-4o-mini-2024-07-18" match their longest known prefix.
func (t PriceTable) Lookup(model string) (Price, bool) {
	if p, ok := t[model]; ok {
		return p, true
	}
	best := ""
	for name := range t {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return Price{}, false
	}
	return t[best], true
}

// Usage builds a usage record. Unknown models cost nothing.
func (t PriceTable) Usage(model string, promptTokens, completionTokens int) domain.Usage {
	u := domain.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
	if p, ok := t.Lookup(model); ok {
		u.Cost = float64(promptTokens)/1000*p.Prompt + float64(completionTokens)/1000*p.Completion
	}
	return u
}
