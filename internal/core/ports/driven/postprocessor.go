package driven

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// PostProcessor turns a normalised document into chunks.
// PostProcessors are chained in a pipeline; the first one (the chunker)
// receives nil chunks and creates them.
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a document and returns chunks.
	Process(ctx context.Context, doc *domain.SourceDocument, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, doc *domain.SourceDocument) ([]domain.Chunk, error)
}
