package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew(t *testing.T) {
	t.Run("implements FileSource interface", func(t *testing.T) {
		var _ driven.FileSource = New()
	})
}

func TestConnector_List(t *testing.T) {
	t.Run("lists matching files sorted by key", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "b.txt"), "b")
		writeFile(t, filepath.Join(dir, "a.md"), "a")
		writeFile(t, filepath.Join(dir, "sub", "c.pdf"), "c")
		writeFile(t, filepath.Join(dir, "image.png"), "x")

		files, err := New().List(context.Background(), dir, []string{".txt", ".md", ".pdf"})
		require.NoError(t, err)
		require.Len(t, files, 3)

		assert.Equal(t, "a.md", files[0].Key)
		assert.Equal(t, "b.txt", files[1].Key)
		assert.Equal(t, "sub/c.pdf", files[2].Key)
		assert.Equal(t, int64(1), files[1].Size)
		assert.True(t, filepath.IsAbs(files[2].Path))
		assert.Empty(t, files[0].Fingerprint)
	})

	t.Run("extension matching is case insensitive", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "REPORT.PDF"), "x")

		files, err := New().List(context.Background(), dir, []string{"pdf"})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "REPORT.PDF", files[0].Key)
	})

	t.Run("skips hidden files and directories", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, ".secret.txt"), "x")
		writeFile(t, filepath.Join(dir, ".git", "notes.txt"), "x")
		writeFile(t, filepath.Join(dir, "visible.txt"), "x")

		files, err := New().List(context.Background(), dir, []string{".txt"})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "visible.txt", files[0].Key)
	})

	t.Run("empty folder yields no files", func(t *testing.T) {
		files, err := New().List(context.Background(), t.TempDir(), []string{".txt"})
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("missing folder is an error", func(t *testing.T) {
		_, err := New().List(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
		assert.Error(t, err)
	})

	t.Run("file instead of folder is an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "file.txt")
		writeFile(t, path, "x")

		_, err := New().List(context.Background(), path, nil)
		assert.Error(t, err)
	})

	t.Run("cancelled context stops the walk", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "a.txt"), "x")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New().List(ctx, dir, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConnector_Watch(t *testing.T) {
	t.Run("reports created files", func(t *testing.T) {
		dir := t.TempDir()
		connector := New()
		defer connector.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := connector.Watch(ctx, dir, []string{".txt"})
		require.NoError(t, err)

		go func() {
			time.Sleep(50 * time.Millisecond)
			os.WriteFile(filepath.Join(dir, "new-file.txt"), []byte("content"), 0o644)
		}()

		select {
		case change := <-changes:
			assert.Contains(t, []domain.ChangeType{domain.ChangeCreated, domain.ChangeUpdated}, change.Type)
			assert.Contains(t, change.Path, "new-file.txt")
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for file change event")
		}
	})

	t.Run("closes channel when context is cancelled", func(t *testing.T) {
		connector := New()
		defer connector.Close()

		ctx, cancel := context.WithCancel(context.Background())
		changes, err := connector.Watch(ctx, t.TempDir(), nil)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-changes:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("channel not closed after cancel")
		}
	})

	t.Run("missing folder is an error", func(t *testing.T) {
		_, err := New().Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
		assert.Error(t, err)
	})

	t.Run("watch after close fails", func(t *testing.T) {
		connector := New()
		require.NoError(t, connector.Close())

		_, err := connector.Watch(context.Background(), t.TempDir(), nil)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestConnector_Close(t *testing.T) {
	connector := New()
	assert.NoError(t, connector.Close())
	assert.NoError(t, connector.Close())
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{"path/to/.hidden", true},
		{"/root/.config/file.txt", true},
		{"dir/.git/config", true},
		{"file.txt", false},
		{"path/to/file.txt", false},
		{".", false},
		{"..", false},
		{"path/./file", false},
		{"path/../file", false},
		{"", false},
		{"/", false},
		{"file.hidden", false},
		{"/a/.b/.c/file", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, isHidden(tt.path))
		})
	}
}

func TestHandleFsEvent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.txt")
	writeFile(t, file, "x")
	hidden := filepath.Join(dir, ".doc.txt")
	writeFile(t, hidden, "x")
	other := filepath.Join(dir, "image.png")
	writeFile(t, other, "x")
	gone := filepath.Join(dir, "gone.txt")

	allowed := extensionSet([]string{".txt"})

	tests := []struct {
		name     string
		path     string
		op       fsnotify.Op
		expected *domain.ChangeType
	}{
		{"create", file, fsnotify.Create, ptr(domain.ChangeCreated)},
		{"write", file, fsnotify.Write, ptr(domain.ChangeUpdated)},
		{"remove", gone, fsnotify.Remove, ptr(domain.ChangeDeleted)},
		{"rename", gone, fsnotify.Rename, ptr(domain.ChangeDeleted)},
		{"chmod ignored", file, fsnotify.Chmod, nil},
		{"directory ignored", dir, fsnotify.Create, nil},
		{"hidden ignored", hidden, fsnotify.Write, nil},
		{"extension filtered", other, fsnotify.Write, nil},
		{"create of vanished file ignored", gone, fsnotify.Create, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := handleFsEvent(dir, allowed, fsnotify.Event{Name: tt.path, Op: tt.op})
			if tt.expected == nil {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, *tt.expected, change.Type)
			assert.Equal(t, tt.path, change.Path)
		})
	}
}

func ptr[T any](v T) *T { return &v }
