package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocalEmbedder(128)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "orchestrate research tasks")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "orchestrate research tasks")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 128)
}

func TestLocalEmbedderEmptyText(t *testing.T) {
	e := NewLocalEmbedder(64)

	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, v, 64)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestVectorStoreSearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	store, err := NewVectorStore(t.TempDir(), NewLocalEmbedder(128))
	require.NoError(t, err)

	require.NoError(t, store.Add(ctx, "golang concurrency patterns with channels", nil))
	require.NoError(t, store.Add(ctx, "baking sourdough bread at home", nil))
	require.NoError(t, store.Add(ctx, "concurrency in golang using goroutines", nil))

	docs, err := store.Search(ctx, "golang concurrency", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	for _, d := range docs {
		assert.Contains(t, d.Content, "golang")
		assert.Greater(t, d.Score, float32(0))
	}
}

func TestVectorStorePersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewVectorStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, "persisted document", map[string]string{"kind": "note"}))
	require.NoError(t, store.Close())

	reopened, err := NewVectorStore(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())

	docs, err := reopened.Search(ctx, "persisted document", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "note", docs[0].Metadata["kind"])
}

func TestVectorStoreEmptySearch(t *testing.T) {
	store, err := NewVectorStore(t.TempDir(), nil)
	require.NoError(t, err)

	docs, err := store.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
