package driven

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// Normaliser extracts text from a source file.
// Each normaliser handles specific file extensions (e.g., .pdf, .md).
type Normaliser interface {
	// Extensions returns the lower-case file suffixes this normaliser handles.
	Extensions() []string

	// Normalise reads the file and returns its pages. Paginated formats return
	// one page per physical page with Number set.
	Normalise(ctx context.Context, path string) ([]domain.Page, error)
}

// NormaliserRegistry selects the normaliser for a file.
type NormaliserRegistry interface {
	// Register adds a normaliser for all of its extensions.
	Register(n Normaliser)

	// Get returns the normaliser for the file extension, or
	// domain.ErrUnsupportedType.
	Get(extension string) (Normaliser, error)

	// Extensions lists every registered extension.
	Extensions() []string
}
