package printing

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *FileSystemStorage {
	t.Helper()
	storage, err := NewFileSystemStorage(&FileSystemStorageConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return storage
}

func TestNewFileSystemStorage(t *testing.T) {
	t.Run("creates the directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "invoices")
		storage, err := NewFileSystemStorage(&FileSystemStorageConfig{BasePath: dir})
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, ".pdf", storage.extension)
	})

	t.Run("extension without dot", func(t *testing.T) {
		storage, err := NewFileSystemStorage(&FileSystemStorageConfig{BasePath: t.TempDir(), Extension: "html"})
		require.NoError(t, err)
		assert.Equal(t, ".html", storage.extension)
	})
}

func TestFileSystemStorage_PathFor(t *testing.T) {
	storage := newTestStorage(t)

	assert.Equal(t, filepath.Join(storage.BasePath(), "INV-1_20260314_103000_000.pdf"),
		storage.PathFor("INV-1_20260314_103000_000.pdf"))
	// directory parts never escape the artifact directory
	assert.Equal(t, filepath.Join(storage.BasePath(), "passwd.pdf"), storage.PathFor("../../etc/passwd"))

	html, err := NewFileSystemStorage(&FileSystemStorageConfig{BasePath: t.TempDir(), Extension: ".html"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(html.BasePath(), "INV-2.html"), html.PathFor("INV-2.pdf"))
}

func TestFileSystemStorage_Exists(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	full := storage.PathFor("full.pdf")
	require.NoError(t, os.WriteFile(full, []byte("%PDF"), 0o644))
	empty := storage.PathFor("empty.pdf")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	assert.True(t, storage.Exists(ctx, full))
	assert.False(t, storage.Exists(ctx, empty))
	assert.False(t, storage.Exists(ctx, storage.PathFor("missing.pdf")))
	assert.False(t, storage.Exists(ctx, ""))
	assert.False(t, storage.Exists(ctx, storage.BasePath()))
}

func TestFileSystemStorage_Open(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	path := storage.PathFor("doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 body"), 0o644))

	rc, err := storage.Open(ctx, path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(data))

	_, err = storage.Open(ctx, storage.PathFor("missing.pdf"))
	assert.Error(t, err)

	_, err = storage.Open(ctx, storage.BasePath()+"/../secret.pdf")
	assert.Error(t, err)
}

func TestFileSystemStorage_Remove(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	path := storage.PathFor("doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, storage.Remove(ctx, path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, storage.Remove(ctx, path))

	outside := filepath.Join(t.TempDir(), "other.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	assert.Error(t, storage.Remove(ctx, outside))
	assert.FileExists(t, outside)

	assert.Error(t, storage.Remove(ctx, filepath.Join(storage.BasePath(), "..", "other.pdf")))
}

func TestFileSystemStorage_RemoveCancelled(t *testing.T) {
	storage := newTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, storage.Remove(ctx, storage.PathFor("doc.pdf")))
}

func TestFileSystemStorage_CleanupOlderThan(t *testing.T) {
	storage := newTestStorage(t)

	old := storage.PathFor("old.pdf")
	fresh := storage.PathFor("fresh.pdf")
	notes := filepath.Join(storage.BasePath(), "notes.txt")
	for _, p := range []string{old, fresh, notes} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(notes, past, past))

	deleted, err := storage.CleanupOlderThan(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, notes)
}

func TestContainsDotDot(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"invoices/INV-1.pdf", false},
		{"../INV-1.pdf", true},
		{"a/../b", true},
		{`a\..\b`, true},
		{"INV..1.pdf", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, containsDotDot(tt.path))
		})
	}
}
