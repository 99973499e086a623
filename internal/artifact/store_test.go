package artifact

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	base := t.TempDir()
	store, err := NewStore(&Config{
		UploadDir:    filepath.Join(base, "uploads"),
		ConvertedDir: filepath.Join(base, "converted"),
		Logger:       slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
	require.NoError(t, err)

	return store
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain name", "report.pdf", "report.pdf"},
		{"spaces replaced", "my report.pdf", "my_report.pdf"},
		{"path traversal stripped", "../../etc/passwd", "passwd"},
		{"shell characters replaced", "a;b|c&d.txt", "a_b_c_d.txt"},
		{"empty name", "", "file"},
		{"dot only", ".", "file"},
		{"unicode replaced", "résumé.docx", "r_sum_.docx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeName(tt.input))
		})
	}
}

func TestStore_StoreAndResolve(t *testing.T) {
	store := newTestStore(t)

	art, err := store.Store(CategoryUpload, "notes.txt", strings.NewReader("hello world"))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(art.Key, "_notes.txt"))
	assert.Equal(t, "notes.txt", art.DisplayName)
	assert.Equal(t, int64(11), art.SizeBytes)
	assert.False(t, art.CreatedAt.IsZero())

	path, err := store.Resolve(CategoryUpload, art.Key)
	require.NoError(t, err)
	assert.Equal(t, art.Path, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	size, err := store.SizeOf(path)
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)
}

func TestStore_KeysAreCollisionFree(t *testing.T) {
	store := newTestStore(t)

	a, err := store.Store(CategoryUpload, "same.txt", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := store.Store(CategoryUpload, "same.txt", strings.NewReader("b"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Key, b.Key)
}

func TestStore_ResolveUnknownKey(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Resolve(CategoryConverted, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ResolveRejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, key := range []string{"../escape", "..", ".", "a/b", ""} {
		_, err := store.Resolve(CategoryUpload, key)
		assert.ErrorIs(t, err, ErrNotFound, "key %q should not resolve", key)
	}
}

func TestStore_Remove(t *testing.T) {
	store := newTestStore(t)

	art, err := store.Store(CategoryConverted, "out.pdf", strings.NewReader("pdf"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(CategoryConverted, art.Key))

	_, err = store.Resolve(CategoryConverted, art.Key)
	assert.ErrorIs(t, err, ErrNotFound)

	// Removing again is not an error
	assert.NoError(t, store.Remove(CategoryConverted, art.Key))
}

func TestStore_EvictOlderThan(t *testing.T) {
	store := newTestStore(t)

	old, err := store.Store(CategoryUpload, "old.txt", strings.NewReader("old"))
	require.NoError(t, err)
	fresh, err := store.Store(CategoryUpload, "fresh.txt", strings.NewReader("fresh"))
	require.NoError(t, err)

	// Age the first artifact past the retention window
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, past, past))

	removed := store.EvictOlderThan(CategoryUpload, time.Hour)
	assert.Equal(t, 1, removed)

	_, err = store.Resolve(CategoryUpload, old.Key)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Resolve(CategoryUpload, fresh.Key)
	assert.NoError(t, err)
}

func TestStore_EvictKeepsYoungArtifacts(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Store(CategoryConverted, "young.txt", strings.NewReader("y"))
	require.NoError(t, err)

	removed := store.EvictOlderThan(CategoryConverted, time.Hour)
	assert.Zero(t, removed)
}
