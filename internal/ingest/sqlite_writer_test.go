package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/resmerge/internal/graph"
)

func importSQLite(t *testing.T, content string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "content.db")
	w, err := NewSQLiteWriter(dbPath)
	require.NoError(t, err)
	_, err = Load(context.Background(), []byte(content), "", w)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return dbPath
}

func TestSQLiteWriter_RoundTrip(t *testing.T) {
	dbPath := importSQLite(t, sampleContent)

	store, err := graph.OpenSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	assert.Equal(t, []string{"/apps", "/libs"}, store.SearchPaths())

	root, err := store.ListChildren(ctx, "/")
	require.NoError(t, err)
	require.Len(t, root, 2)
	assert.Equal(t, "/libs", root[0].ID)
	assert.Equal(t, "/apps", root[1].ID)

	page, err := store.GetNode(ctx, "/libs/page")
	require.NoError(t, err)
	assert.Equal(t, "libs/page", page.Type)
	assert.Equal(t, int64(3), page.Properties.Int("rank", 0))
	assert.Equal(t, []string{"a", "b"}, page.Properties.Strings("tags"))
	assert.False(t, page.ModTime.IsZero())

	kids, err := store.ListChildren(ctx, "/libs/page")
	require.NoError(t, err)
	var names []string
	for _, k := range kids {
		names = append(names, k.Name())
	}
	assert.Equal(t, []string{"z", "a", "m"}, names)

	leaf, err := store.GetNode(ctx, "/libs/page/z")
	require.NoError(t, err)
	assert.Empty(t, leaf.Properties)
	assert.True(t, leaf.ModTime.IsZero())

	_, err = store.GetNode(ctx, "/libs/nope")
	assert.ErrorIs(t, err, graph.ErrNotFound)
	_, err = store.ListChildren(ctx, "/libs/nope")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestSQLiteWriter_ReimportKeepsOrder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "content.db")
	ctx := context.Background()

	w, err := NewSQLiteWriter(dbPath)
	require.NoError(t, err)
	for _, n := range []*graph.Node{
		{ID: "/p"},
		{ID: "/p/a"},
		{ID: "/p/b"},
		{ID: "/p/a", Type: "updated"},
	} {
		require.NoError(t, w.AddNode(ctx, n))
	}
	require.NoError(t, w.Close())

	store, err := graph.OpenSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	kids, err := store.ListChildren(ctx, "/p")
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, "/p/a", kids[0].ID)
	assert.Equal(t, "updated", kids[0].Type)
	assert.Equal(t, "/p/b", kids[1].ID)
}

func TestSQLiteWriter_BatchCommit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "content.db")
	ctx := context.Background()

	w, err := NewSQLiteWriter(dbPath)
	require.NoError(t, err)
	w.batchSize = 2
	require.NoError(t, w.AddNode(ctx, &graph.Node{ID: "/p"}))
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, w.AddNode(ctx, &graph.Node{ID: "/p/" + name}))
	}
	require.NoError(t, w.Close())

	store, err := graph.OpenSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	kids, err := store.ListChildren(ctx, "/p")
	require.NoError(t, err)
	assert.Len(t, kids, 5)
}
