// Package tokenizer counts tokens for memory budgeting.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// Ensure Tokenizer implements the interface.
var _ driven.Tokenizer = (*Tokenizer)(nil)

const (
	// DefaultEncoding is the BPE used by the OpenAI chat and embedding models.
	DefaultEncoding = "cl100k_base"

	// ApproxName identifies the fallback estimator.
	ApproxName = "approx"

	// charsPerToken is the fallback estimate for English text.
	charsPerToken = 4
)

// getEncoding is replaced in tests.
var getEncoding = tiktoken.GetEncoding

// The BPE ranks are embedded in the binary, so counts never depend on
// network access.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Tokenizer counts tokens with a tiktoken encoding, or with a deterministic
// character estimate when the encoding cannot be loaded.
type Tokenizer struct {
	enc  *tiktoken.Tiktoken
	name string
}

// New loads the named encoding. An empty name selects cl100k_base.
// An unknown encoding falls back to the estimator.
func New(encoding string) *Tokenizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	enc, err := getEncoding(encoding)
	if err != nil {
		logger.Warn("tokenizer %s unavailable, estimating token counts: %v", encoding, err)
		return NewApprox()
	}
	return &Tokenizer{enc: enc, name: encoding}
}

// NewApprox returns the estimator without trying to load an encoding.
func NewApprox() *Tokenizer {
	return &Tokenizer{name: ApproxName}
}

// Count implements driven.Tokenizer.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	return approxCount(text)
}

// Name implements driven.Tokenizer.
func (t *Tokenizer) Name() string {
	return t.name
}

// approxCount charges each word one token per started group of four
// characters, and each punctuation mark one token.
func approxCount(text string) int {
	count := 0
	for _, field := range strings.FieldsFunc(text, unicode.IsSpace) {
		letters := 0
		for _, r := range field {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				count++
				continue
			}
			letters++
		}
		count += (letters + charsPerToken - 1) / charsPerToken
	}
	return count
}
