package driven

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// ManifestStore persists the processed-files manifest.
type ManifestStore interface {
	// Load returns the persisted manifest. A missing manifest is empty, not an
	// error. Undecodable state is reported with domain.ErrManifestCorrupt.
	Load(ctx context.Context) (domain.Manifest, error)

	// Save replaces the persisted manifest atomically: readers observe either
	// the previous manifest or the new one, never a mix.
	Save(ctx context.Context, m domain.Manifest) error
}
