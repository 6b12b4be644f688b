//go:build integration
// +build integration

package vectorstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitlane/f1gpt/internal/log"
	"github.com/pitlane/f1gpt/internal/testutil"
	"github.com/pitlane/f1gpt/internal/vectorstore"
)

// Run with: go test -tags=integration ./internal/vectorstore/...

func TestStoreIntegration(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()

	store := vectorstore.New(tdb.Pool, log.NewNop())

	t.Run("create and reopen collection", func(t *testing.T) {
		coll, err := store.GetOrCreateCollection(ctx, "it_articles", 3)
		require.NoError(t, err)

		again, err := store.GetOrCreateCollection(ctx, "it_articles", 3)
		require.NoError(t, err)
		assert.Equal(t, coll.Name, again.Name)
	})

	t.Run("upsert and search ranks by cosine similarity", func(t *testing.T) {
		coll, err := store.GetOrCreateCollection(ctx, "it_search", 3)
		require.NoError(t, err)

		records := []vectorstore.Record{
			{ID: uuid.New(), Text: "monaco schedule", Vector: []float32{1, 0, 0},
				Metadata: map[string]string{"source": "calendar"}},
			{ID: uuid.New(), Text: "standings table", Vector: []float32{0, 1, 0}},
			{ID: uuid.New(), Text: "nearly monaco", Vector: []float32{0.9, 0.1, 0}},
		}
		require.NoError(t, store.Upsert(ctx, coll, records))

		count, err := store.Count(ctx, coll)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)

		docs, err := store.Search(ctx, coll, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "monaco schedule", docs[0].Text)
		assert.Equal(t, "calendar", docs[0].Metadata["source"])
		assert.Equal(t, "nearly monaco", docs[1].Text)
		assert.Greater(t, docs[0].Similarity, docs[1].Similarity)
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		coll, err := store.GetOrCreateCollection(ctx, "it_replace", 2)
		require.NoError(t, err)

		id := uuid.New()
		require.NoError(t, store.Upsert(ctx, coll, []vectorstore.Record{
			{ID: id, Text: "old", Vector: []float32{1, 0}},
		}))
		require.NoError(t, store.Upsert(ctx, coll, []vectorstore.Record{
			{ID: id, Text: "new", Vector: []float32{1, 0}},
		}))

		count, err := store.Count(ctx, coll)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		docs, err := store.Search(ctx, coll, []float32{1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "new", docs[0].Text)
	})

	t.Run("search empty collection returns no documents", func(t *testing.T) {
		coll, err := store.GetOrCreateCollection(ctx, "it_empty", 2)
		require.NoError(t, err)

		docs, err := store.Search(ctx, coll, []float32{0, 1}, 5)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}
