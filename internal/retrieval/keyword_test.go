package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeywordIndex(t *testing.T) *KeywordIndex {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "kw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewKeywordIndex(db)
}

func TestKeywordIndexSearch(t *testing.T) {
	ctx := context.Background()
	idx := newKeywordIndex(t)
	page := 4

	n, err := idx.Rebuild(ctx, []domain.Chunk{
		{Text: "Tourism growth targets for the coming decade.", SourceID: "tourism.pdf", Page: &page},
		{Text: "Energy sector investment and renewables.", SourceID: "energy.pdf"},
		{Text: "Public transport and logistics plan.", SourceID: "transport.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := idx.Search(ctx, "What about tourism?", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "tourism.pdf", res[0].SourceID)
	assert.Equal(t, domain.SourceKeyword, res[0].Source)
	require.NotNil(t, res[0].Page)
	assert.Equal(t, 4, *res[0].Page)
	assert.Greater(t, res[0].Score, 0.0)

	none, err := idx.Search(ctx, "?!", 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	unrelated, err := idx.Search(ctx, "football", 5)
	require.NoError(t, err)
	assert.Empty(t, unrelated)
}

func TestKeywordIndexRebuildReplaces(t *testing.T) {
	ctx := context.Background()
	idx := newKeywordIndex(t)

	_, err := idx.Rebuild(ctx, []domain.Chunk{
		{Text: "alpha one", SourceID: "a"}, {Text: "beta two", SourceID: "b"}, {Text: "gamma three", SourceID: "c"},
	})
	require.NoError(t, err)
	res, err := idx.Search(ctx, "alpha", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)

	_, err = idx.Rebuild(ctx, []domain.Chunk{
		{Text: "delta one", SourceID: "d"}, {Text: "beta two", SourceID: "b"}, {Text: "gamma three", SourceID: "c"},
	})
	require.NoError(t, err)

	res, err = idx.Search(ctx, "alpha", 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestKeywordIndexEmptyCorpus(t *testing.T) {
	res, err := newKeywordIndex(t).Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestKeywordIndexSeesRebuildFromAnotherHandle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	open := func() *KeywordIndex {
		db, err := repository.NewDB(path)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return NewKeywordIndex(db)
	}
	server, ingester := open(), open()

	_, err := server.Rebuild(ctx, []domain.Chunk{
		{Text: "Tourism growth targets.", SourceID: "old.pdf"},
		{Text: "Transport and logistics.", SourceID: "transport.pdf"},
		{Text: "Public health services.", SourceID: "health.pdf"},
	})
	require.NoError(t, err)

	res, err := server.Search(ctx, "tourism", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "old.pdf", res[0].SourceID)

	_, err = ingester.Rebuild(ctx, []domain.Chunk{
		{Text: "Energy sector investment.", SourceID: "energy.md"},
		{Text: "Renewable energy targets.", SourceID: "renewables.md"},
		{Text: "Water strategy.", SourceID: "water.md"},
	})
	require.NoError(t, err)

	res, err = server.Search(ctx, "tourism", 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = server.Search(ctx, "energy", 5)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestKeywordIndexSeesSameSizeRebuild(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	open := func() *KeywordIndex {
		db, err := repository.NewDB(path)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return NewKeywordIndex(db)
	}
	server, ingester := open(), open()

	_, err := ingester.Rebuild(ctx, []domain.Chunk{
		{Text: "alpha one", SourceID: "a"}, {Text: "beta two", SourceID: "b"}, {Text: "gamma three", SourceID: "c"},
	})
	require.NoError(t, err)
	res, err := server.Search(ctx, "alpha", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)

	_, err = ingester.Rebuild(ctx, []domain.Chunk{
		{Text: "delta one", SourceID: "d"}, {Text: "beta two", SourceID: "b"}, {Text: "gamma three", SourceID: "c"},
	})
	require.NoError(t, err)

	res, err = server.Search(ctx, "alpha", 5)
	require.NoError(t, err)
	assert.Empty(t, res)
	res, err = server.Search(ctx, "delta", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "d", res[0].SourceID)
}
