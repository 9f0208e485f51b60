package driving

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// IngestionService keeps the vector index in step with a folder of documents.
type IngestionService interface {
	// Ingest indexes new and changed files. Per-file failures are listed in
	// the stats; an embedding or upsert failure returns an error and leaves
	// the manifest untouched.
	Ingest(ctx context.Context, opts domain.IngestOptions) (domain.IngestionStats, error)

	// Reconcile drops manifest entries and vectors of files that no longer
	// exist under folder.
	Reconcile(ctx context.Context, folder string, extensions []string, dryRun bool) (domain.ReconcileStats, error)

	// CollectionInfo describes the configured collection.
	CollectionInfo(ctx context.Context) (domain.CollectionInfo, error)
}
