// Package jsonfile persists the processed-files manifest as a JSON document.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

// Ensure ManifestStore implements the interface.
var _ driven.ManifestStore = (*ManifestStore)(nil)

// DefaultFileName matches the manifest written by earlier versions.
const DefaultFileName = "processed_files.json"

// ManifestStore keeps the manifest in a single JSON object keyed by file.
// Saves write a temporary file in the same directory and rename it over the
// old one, so readers never see a partial manifest.
type ManifestStore struct {
	path string
}

// NewManifestStore creates a store for path. An empty path uses
// processed_files.json in the working directory.
func NewManifestStore(path string) *ManifestStore {
	if path == "" {
		path = DefaultFileName
	}
	return &ManifestStore{path: path}
}

// Path returns the manifest file path.
func (s *ManifestStore) Path() string {
	return s.path
}

// Load implements driven.ManifestStore. A file that exists but cannot be
// read or decoded is reported as ErrManifestCorrupt.
func (s *ManifestStore) Load(_ context.Context) (domain.Manifest, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewManifest(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w: read manifest: %v", domain.ErrManifestCorrupt, domain.ErrLocalIO, err)
	}

	var raw map[string]fileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrManifestCorrupt, s.path, err)
	}

	m := domain.NewManifest()
	for key, e := range raw {
		date, err := parseDate(e.ProcessedDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: entry %s: %v", domain.ErrManifestCorrupt, s.path, key, err)
		}
		m[key] = domain.ManifestEntry{Hash: e.Hash, ProcessedDate: date, ChunksCount: e.ChunksCount}
	}
	return m, nil
}

// fileEntry is the on-disk entry. Dates are kept as strings so that
// timestamps without a zone can be read.
type fileEntry struct {
	Hash          string `json:"hash"`
	ProcessedDate string `json:"processed_date"`
	ChunksCount   int    `json:"chunks_count"`
}

// dateLayouts are tried in order. Zone-less timestamps are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Save implements driven.ManifestStore.
func (s *ManifestStore) Save(ctx context.Context, m domain.Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		m = domain.NewManifest()
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: create manifest directory: %v", domain.ErrLocalIO, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp manifest: %v", domain.ErrLocalIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write manifest: %v", domain.ErrLocalIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync manifest: %v", domain.ErrLocalIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close manifest: %v", domain.ErrLocalIO, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace manifest: %v", domain.ErrLocalIO, err)
	}
	return nil
}
