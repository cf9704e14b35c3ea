package bleve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/discovery-search/internal/pkg/projection"
	"github.com/kart-io/discovery-search/internal/pkg/querycompiler"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine/query"
	"github.com/kart-io/discovery-search/pkg/utils/json"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func doc(entityID, entityType string, idx int, content string) searchengine.Document {
	d := projection.ChunkDocument{
		EntityID:      entityID,
		EntityType:    entityType,
		ChunkIndex:    idx,
		IsHeaderChunk: idx == 0,
		Name:          "Entity " + entityID,
		Title:         "Entity " + entityID,
		Content:       content,
		Industries:    []string{"climate_tech"},
		Topics:        []string{},
	}
	return searchengine.Document{ID: d.ID(), Body: d}
}

func seed(t *testing.T, eng *Engine, index string, docs ...searchengine.Document) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, eng.CreateIndex(ctx, index, searchengine.ChunkSchema()))
	res, err := eng.BulkIndex(ctx, index, docs, true)
	require.NoError(t, err)
	require.False(t, res.HasErrors(), "%v", res.Failed)
	require.NoError(t, eng.Refresh(ctx, index))
}

func TestCreateIndexTwice(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.CreateIndex(ctx, "chunks_1", searchengine.ChunkSchema()))
	err := eng.CreateIndex(ctx, "chunks_1", searchengine.ChunkSchema())
	assert.ErrorIs(t, err, searchengine.ErrIndexExists)
}

func TestBulkIndexRejectsUnknownFields(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.CreateIndex(ctx, "chunks_1", searchengine.ChunkSchema()))

	docs := []searchengine.Document{
		doc("a", "startup", 0, "grid storage"),
		{ID: "bad_0", Body: map[string]interface{}{"entity_id": "bad", "unexpected": 1}},
	}
	res, err := eng.BulkIndex(ctx, "chunks_1", docs, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "bad_0", res.Failed[0].ID)
	assert.Equal(t, "strict_dynamic_mapping_exception", res.Failed[0].Type)

	_, err = eng.BulkIndex(ctx, "missing", docs, true)
	assert.ErrorIs(t, err, searchengine.ErrIndexNotFound)
}

func TestAliasLifecycle(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	_, err := eng.GetIndicesForAlias(ctx, "current")
	assert.ErrorIs(t, err, searchengine.ErrAliasNotFound)

	seed(t, eng, "chunks_1", doc("a", "startup", 0, "old projection"))
	seed(t, eng, "chunks_2", doc("b", "startup", 0, "new projection"))

	require.NoError(t, eng.UpdateAliases(ctx, searchengine.SwapActions("current", "chunks_1", nil)))
	indices, err := eng.GetIndicesForAlias(ctx, "current")
	require.NoError(t, err)
	assert.Equal(t, []string{"chunks_1"}, indices)

	require.NoError(t, eng.UpdateAliases(ctx, searchengine.SwapActions("current", "chunks_2", []string{"chunks_1"})))
	indices, err = eng.GetIndicesForAlias(ctx, "current")
	require.NoError(t, err)
	assert.Equal(t, []string{"chunks_2"}, indices)

	res, err := eng.Search(ctx, &searchengine.SearchRequest{Index: "current", Query: query.MatchAll(), Size: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "b_0", res.Hits[0].ID)

	// 删除不存在于别名中的索引时整体失败
	err = eng.UpdateAliases(ctx, searchengine.SwapActions("current", "chunks_1", []string{"chunks_1"}))
	assert.ErrorIs(t, err, searchengine.ErrAliasNotFound)
	indices, _ = eng.GetIndicesForAlias(ctx, "current")
	assert.Equal(t, []string{"chunks_2"}, indices)

	require.NoError(t, eng.DeleteIndex(ctx, "chunks_1"))
	assert.Equal(t, []string{"chunks_2"}, eng.Indices())
	assert.ErrorIs(t, eng.DeleteIndex(ctx, "chunks_1"), searchengine.ErrIndexNotFound)

	require.NoError(t, eng.DeleteIndex(ctx, "chunks_2"))
	_, err = eng.GetIndicesForAlias(ctx, "current")
	assert.ErrorIs(t, err, searchengine.ErrAliasNotFound)
}

func TestSearchCollapseAndHighlight(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seed(t, eng, "chunks_1",
		doc("a", "startup", 0, "battery recycling for electric vehicles"),
		doc("a", "startup", 1, "second battery chunk about battery chemistry"),
		doc("b", "investor", 0, "we invest in battery startups"),
		doc("c", "event", 0, "unrelated cooking workshop"),
	)
	require.NoError(t, eng.UpdateAliases(ctx, searchengine.SwapActions("current", "chunks_1", nil)))

	res, err := eng.Search(ctx, &searchengine.SearchRequest{
		Index:         "current",
		Query:         querycompiler.Compile(querycompiler.Params{Text: "battery"}),
		Size:          100,
		CollapseField: querycompiler.FieldEntityID,
		Highlight: &searchengine.Highlight{
			Field: querycompiler.FieldContent, FragmentSize: 150, NumberOfFragments: 1,
			PreTag: "<mark>", PostTag: "</mark>",
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)

	seen := map[string]bool{}
	for _, hit := range res.Hits {
		var d projection.ChunkDocument
		require.NoError(t, json.Unmarshal(hit.Source, &d))
		assert.False(t, seen[d.EntityID], "duplicate entity %s", d.EntityID)
		seen[d.EntityID] = true

		require.NotEmpty(t, hit.Highlights[querycompiler.FieldContent])
		assert.Contains(t, hit.Highlights[querycompiler.FieldContent][0], "<mark>battery</mark>")
	}
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
}

func TestSearchFilters(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seed(t, eng, "chunks_1",
		doc("a", "startup", 0, "grid storage"),
		doc("b", "investor", 0, "grid investors"),
	)

	res, err := eng.Search(ctx, &searchengine.SearchRequest{
		Index: "chunks_1",
		Query: querycompiler.Compile(querycompiler.Params{Filters: querycompiler.Filters{Type: "investor"}}),
		Size:  10,
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "b_0", res.Hits[0].ID)

	res, err = eng.Search(ctx, &searchengine.SearchRequest{
		Index: "chunks_1",
		Query: querycompiler.Compile(querycompiler.Params{Text: "x"}),
		Size:  10,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	_, err = eng.Search(ctx, &searchengine.SearchRequest{Index: "nope", Query: query.MatchAll(), Size: 10})
	assert.ErrorIs(t, err, searchengine.ErrIndexNotFound)
}

func TestTranslateUnsupported(t *testing.T) {
	_, err := Translate(nil)
	assert.Error(t, err)
}
