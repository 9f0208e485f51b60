package driven

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// FileSource enumerates candidate files under a folder.
type FileSource interface {
	// List returns the files under folder whose extension is in extensions,
	// sorted by key. Key is the slash-separated path relative to folder.
	// Fingerprints are not computed.
	List(ctx context.Context, folder string, extensions []string) ([]domain.SourceFile, error)
}

// FileWatcher reports changes under a folder.
type FileWatcher interface {
	// Watch streams changes to files whose extension is in extensions until
	// ctx is cancelled. The channel is closed when watching stops.
	Watch(ctx context.Context, folder string, extensions []string) (<-chan domain.FileChange, error)
}
