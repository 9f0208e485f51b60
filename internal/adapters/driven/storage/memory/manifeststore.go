package memory

import (
	"context"
	"sync"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure ManifestStore implements the interface.
var _ driven.ManifestStore = (*ManifestStore)(nil)

// ManifestStore is an in-memory implementation of driven.ManifestStore.
type ManifestStore struct {
	mu       sync.RWMutex
	manifest domain.Manifest
	saves    int
}

// NewManifestStore creates a new in-memory manifest store.
func NewManifestStore() *ManifestStore {
	return &ManifestStore{
		manifest: domain.NewManifest(),
	}
}

// Load returns a copy of the stored manifest.
func (s *ManifestStore) Load(_ context.Context) (domain.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest.Clone(), nil
}

// Save replaces the stored manifest.
func (s *ManifestStore) Save(_ context.Context, m domain.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = m.Clone()
	s.saves++
	return nil
}

// Saves returns how many times Save was called.
func (s *ManifestStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
