package driven

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// VectorIndex stores embedded chunks and answers similarity queries.
// Implementations: Qdrant (REST), pgvector, SQLite and in-memory.
type VectorIndex interface {
	// EnsureCollection creates the collection if absent. It is idempotent and
	// fails if an existing collection has a different dimension.
	EnsureCollection(ctx context.Context, name string, dimension int, metric domain.DistanceMetric) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, collection string, points []domain.IndexPoint) error

	// Search returns ranked hits. Under MMR it fetches req.FetchK neighbours
	// and re-ranks them to req.K. A missing collection yields no hits.
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchHit, error)

	// DeleteWhere removes the points selected by filter and returns how many
	// were removed when the backend reports it (-1 otherwise).
	DeleteWhere(ctx context.Context, collection string, filter domain.PointFilter) (int, error)

	// Info describes the collection. A missing collection reports
	// domain.CollectionStatusMissing rather than an error.
	Info(ctx context.Context, collection string) (domain.CollectionInfo, error)

	// Close releases resources.
	Close() error
}
