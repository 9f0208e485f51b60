package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

func TestManifestStore_MissingFileIsEmpty(t *testing.T) {
	store := NewManifestStore(filepath.Join(t.TempDir(), "processed_files.json"))

	m, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestManifestStore_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultFileName, NewManifestStore("").Path())
}

func TestManifestStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "manifest.json")
	store := NewManifestStore(path)
	ctx := context.Background()
	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	m := domain.Manifest{
		"guide.pdf": {Hash: "abc", ProcessedDate: when, ChunksCount: 12},
		"notes.md":  {Hash: "def", ProcessedDate: when, ChunksCount: 2},
	}
	require.NoError(t, store.Save(ctx, m))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"chunks_count": 12`)
	assert.Contains(t, string(data), `"processed_date": "2024-05-06T07:08:09Z"`)

	// No temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestManifestStore_ReadsExistingFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	content := `{
  "docs/a.txt": {"hash": "5d41402abc4b2a76b9719d911017c592", "processed_date": "2024-01-02T03:04:05.678901", "chunks_count": 4}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	m, err := NewManifestStore(path).Load(context.Background())
	require.NoError(t, err)

	entry := m["docs/a.txt"]
	assert.Equal(t, 4, entry.ChunksCount)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", entry.Hash)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 678901000, time.UTC), entry.ProcessedDate)
}

func TestManifestStore_BadDateIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	content := `{"a.txt": {"hash": "h", "processed_date": "yesterday", "chunks_count": 1}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := NewManifestStore(path).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrManifestCorrupt)
}

func TestManifestStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewManifestStore(path).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrManifestCorrupt)
}

func TestManifestStore_UnreadableIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_files.json")
	require.NoError(t, os.Mkdir(path, 0700))

	_, err := NewManifestStore(path).Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrManifestCorrupt)
	assert.ErrorIs(t, err, domain.ErrLocalIO)
}

func TestManifestStore_NullIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("null"), 0600))

	m, err := NewManifestStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Empty(t, m)
}

func TestManifestStore_SaveReplacesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))
	store := NewManifestStore(path)

	require.NoError(t, store.Save(context.Background(), domain.Manifest{"x": {Hash: "h"}}))

	m, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "h", m["x"].Hash)
}

func TestManifestStore_CanceledSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	store := NewManifestStore(path)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Save(ctx, domain.Manifest{"x": {}}), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
