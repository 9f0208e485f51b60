// Package chunker splits normalised documents into overlapping chunks using
// an adaptive size policy.
package chunker

import (
	"context"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 800

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 100

// pointNamespace scopes the deterministic point IDs.
var pointNamespace = uuid.MustParse("5f0b8a34-2f7e-4c55-9a5e-6d2b0c1e7a90")

// PointID returns the stable vector ID of the seq-th chunk of a file, so a
// re-ingested file overwrites its own points instead of duplicating them.
func PointID(fileKey string, seq int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fileKey+"#"+strconv.Itoa(seq))).String()
}

// Processor chunks each page of a document with the policy matching the
// page length. It implements the PostProcessor interface.
type Processor struct {
	settings   domain.ChunkingSettings
	separators []string
	now        func() time.Time
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithSeparators overrides the separator priority list.
func WithSeparators(seps []string) Option {
	return func(p *Processor) {
		if len(seps) > 0 {
			p.separators = seps
		}
	}
}

// WithClock sets the ingestion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a new chunker processor with the given options.
func New(settings domain.ChunkingSettings, opts ...Option) *Processor {
	defaults := domain.DefaultConfig().Chunking
	if settings.Default.ChunkSize <= 0 {
		settings.Default = defaults.Default
	}
	if settings.Large.ChunkSize <= 0 {
		settings.Large = defaults.Large
	}
	if settings.LargeThreshold <= 0 {
		settings.LargeThreshold = defaults.LargeThreshold
	}

	p := &Processor{
		settings:   settings,
		separators: DefaultSeparators,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// SplitterFor returns the splitter used for a text of the given length.
func (p *Processor) SplitterFor(length int) *Splitter {
	return NewSplitter(p.settings.PolicyFor(length), p.separators)
}

// Process splits every page into chunks and stamps provenance.
// Input chunks are ignored; this processor creates new chunks from the pages.
func (p *Processor) Process(ctx context.Context, doc *domain.SourceDocument, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, nil
	}

	ingestedAt := p.now().UTC()
	var chunks []domain.Chunk
	seq := 0

	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		length := utf8.RuneCountInString(page.Content)
		texts := p.SplitterFor(length).Split(page.Content)

		for i, text := range texts {
			chunks = append(chunks, domain.Chunk{
				ID:      PointID(doc.File.Key, seq),
				Content: text,
				Metadata: domain.ChunkMetadata{
					SourceFile:  doc.File.Key,
					FileHash:    doc.File.Fingerprint.String(),
					FileSize:    doc.File.Size,
					Page:        page.Number,
					ChunkIndex:  i,
					TotalChunks: len(texts),
					Sequence:    seq,
					Length:      utf8.RuneCountInString(text),
					IngestedAt:  ingestedAt,
				},
			})
			seq++
		}
	}

	return chunks, nil
}
