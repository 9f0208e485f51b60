// Package plaintext reads plain text files.
package plaintext

import (
	"context"
	"os"
	"strings"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file suffixes this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".txt", ".text", ".log", ".csv"}
}

// Normalise reads the file as a single page.
// Invalid UTF-8 sequences are replaced and line endings normalised to \n.
func (n *Normaliser) Normalise(ctx context.Context, path string) ([]domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []domain.Page{{Content: Clean(string(content))}}, nil
}

// Clean replaces invalid UTF-8 and normalises line endings.
func Clean(text string) string {
	text = strings.ToValidUTF8(text, "\uFFFD")
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
