package services

import (
	"context"
	"fmt"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// Retriever embeds a query and fetches ranked candidates from the index.
type Retriever struct {
	embedder   driven.EmbeddingService
	index      driven.VectorIndex
	collection string
	settings   domain.RetrievalSettings
}

// NewRetriever creates a retriever. Zero settings fall back to the defaults.
func NewRetriever(embedder driven.EmbeddingService, index driven.VectorIndex, collection string, settings domain.RetrievalSettings) *Retriever {
	defaults := domain.DefaultConfig().Retrieval
	if settings.K <= 0 {
		settings.K = defaults.K
	}
	if settings.FetchK <= 0 {
		settings.FetchK = defaults.FetchK
	}
	if !settings.SearchType.IsValid() {
		settings.SearchType = defaults.SearchType
	}
	if settings.MMRLambda <= 0 || settings.MMRLambda > 1 {
		settings.MMRLambda = defaults.MMRLambda
	}
	return &Retriever{
		embedder:   embedder,
		index:      index,
		collection: collection,
		settings:   settings,
	}
}

// Retrieve returns candidates in rank order. An empty collection yields no
// candidates and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.Candidate, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.index.Search(ctx, domain.SearchRequest{
		Collection: r.collection,
		Vector:     vector,
		K:          r.settings.K,
		FetchK:     r.settings.FetchK,
		Mode:       r.settings.SearchType,
		Lambda:     r.settings.MMRLambda,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(hits))
	for i, h := range hits {
		candidates = append(candidates, domain.Candidate{
			Rank:     i,
			Text:     h.Content,
			Score:    h.Score,
			Metadata: h.Metadata,
		})
	}
	logger.Debug("retrieved %d candidates (%s, k=%d, fetch_k=%d)",
		len(candidates), r.settings.SearchType, r.settings.K, r.settings.FetchK)
	return candidates, nil
}
