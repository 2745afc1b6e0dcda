package corpus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/loupe/core"
)

func TestNewStore_RequiresRoot(t *testing.T) {
	_, err := NewStore("")
	assert.Equal(t, ErrRootRequired, err)
}

func TestAddDocument_AndOrdering(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	store.AddDocument("two.rs", "const TWO: usize = 2;")
	store.AddDocument("one.rs", "const ONE: usize = 1;")
	store.AddDocument("three.rs", "const THREE: usize = 3;")

	docs := store.Documents()
	require.Len(t, docs, 3)
	assert.Equal(t, "one.rs", docs[0].Path)
	assert.Equal(t, "three.rs", docs[1].Path)
	assert.Equal(t, "two.rs", docs[2].Path)
	for _, doc := range docs {
		assert.Equal(t, uint64(1), doc.Version)
	}
}

func TestAddDocument_ReplaceBumpsVersion(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id := store.AddDocument("a.txt", "first")
	again := store.AddDocument("a.txt", "second")
	assert.Equal(t, id, again)

	doc, ok := store.Document(id)
	require.True(t, ok)
	assert.Equal(t, uint64(2), doc.Version)
	assert.Equal(t, "second", doc.Text)
}

func TestEdit_Splice(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id := store.AddDocument("a.txt", "hello world")

	version, err := store.Edit(id, 6, 5, "there")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)

	doc, ok := store.Document(id)
	require.True(t, ok)
	assert.Equal(t, "hello there", doc.Text)
}

func TestEdit_Validation(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	id := store.AddDocument("a.txt", "short")

	_, err = store.Edit(id, 3, 10, "")
	assert.ErrorIs(t, err, ErrInvalidEdit)

	_, err = store.Edit(core.ID(12345), 0, 0, "x")
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestResolve_AnchorSurvivesEdits(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id := store.AddDocument("a.txt", "one two three")

	// Anchor the word "two".
	anchor, err := store.Anchor(id, 4)
	require.NoError(t, err)

	t.Run("insert before shifts the anchor", func(t *testing.T) {
		_, err := store.Edit(id, 0, 0, "zero ")
		require.NoError(t, err)

		offset, err := store.Resolve(id, anchor)
		require.NoError(t, err)

		doc, _ := store.Document(id)
		assert.Equal(t, "two", doc.Text[offset:offset+3])
	})

	t.Run("insert after leaves the anchor alone", func(t *testing.T) {
		doc, _ := store.Document(id)
		_, err := store.Edit(id, len(doc.Text), 0, " four")
		require.NoError(t, err)

		offset, err := store.Resolve(id, anchor)
		require.NoError(t, err)

		doc, _ = store.Document(id)
		assert.Equal(t, "two", doc.Text[offset:offset+3])
	})

	t.Run("deleting the anchored region collapses to the deletion point", func(t *testing.T) {
		offset, err := store.Resolve(id, anchor)
		require.NoError(t, err)

		_, err = store.Edit(id, offset, 4, "")
		require.NoError(t, err)

		collapsed, err := store.Resolve(id, anchor)
		require.NoError(t, err)
		assert.Equal(t, offset, collapsed)
	})
}

func TestLoad_WalksRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("beta"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "c.txt"), []byte("hidden"), 0o644))

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Load())

	docs := store.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].Path)
	assert.Equal(t, "sub/b.txt", docs[1].Path)
}

func TestRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id := store.AddDocument("a.txt", "alpha")
	store.AddDocument("b.txt", "beta")

	assert.True(t, store.Remove("a.txt"))
	assert.False(t, store.Remove("a.txt"))
	assert.False(t, store.Remove("never-existed.txt"))

	_, ok := store.Document(id)
	assert.False(t, ok)

	docs := store.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "b.txt", docs[0].Path)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0o644))

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Load())

	changed := make(chan string, 8)
	watcher, err := NewWatcher(store, WithChangeCallback(func(p string) {
		changed <- p
	}))
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte("after"), 0o644))

	select {
	case p := <-changed:
		assert.Equal(t, "a.txt", p)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	doc, ok := store.Document(core.IDFromContent("a.txt"))
	require.True(t, ok)
	assert.Equal(t, "after", doc.Text)
	assert.GreaterOrEqual(t, doc.Version, uint64(2))
}

func TestWatcher_DropsRemovedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("doomed"), 0o644))

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Load())

	changed := make(chan string, 8)
	watcher, err := NewWatcher(store, WithChangeCallback(func(p string) {
		changed <- p
	}))
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, os.Remove(path))

	select {
	case p := <-changed:
		assert.Equal(t, "gone.txt", p)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for removal notification")
	}

	_, ok := store.Document(core.IDFromContent("gone.txt"))
	assert.False(t, ok)
	assert.Empty(t, store.Documents())
}
