package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetlib/internal/apperr"
	"assetlib/internal/models"
	"assetlib/internal/vectorindex"
)

func memAsset(t *testing.T, s *MemoryStore, libID, id, folder, name string, size int64) *models.Asset {
	t.Helper()
	a := &models.Asset{
		ID:           id,
		LibraryID:    libID,
		FileName:     name,
		OriginalName: name,
		RelativePath: folder[1:] + "/" + id + ".png",
		FileType:     models.FileTypeImage,
		MimeType:     "image/png",
		FileSize:     size,
		FolderPath:   folder,
	}
	require.NoError(t, s.InsertAsset(context.Background(), a))
	return a
}

func TestMemoryStoreListSortsLikeSQL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateLibrary(ctx, &models.Library{ID: "lib", Name: "l"}))
	memAsset(t, s, "lib", "1", "/x", "b.png", 30)
	memAsset(t, s, "lib", "2", "/x", "a.png", 10)
	memAsset(t, s, "lib", "3", "/x", "c.png", 20)

	bySize, total, err := s.ListAssets(ctx, models.AssetQuery{LibraryID: "lib", SortBy: "size"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "1", bySize[0].ID)

	byName, _, err := s.ListAssets(ctx, models.AssetQuery{LibraryID: "lib", SortBy: "name", SortOrder: "asc", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, "a.png", byName[0].FileName)
	assert.Equal(t, "b.png", byName[1].FileName)
}

func TestMemoryStoreDuplicatePath(t *testing.T) {
	s := NewMemoryStore()
	memAsset(t, s, "lib", "1", "/x", "a.png", 1)
	dup := &models.Asset{ID: "2", LibraryID: "lib", RelativePath: "x/1.png"}
	assert.ErrorIs(t, s.InsertAsset(context.Background(), dup), apperr.ErrInvalidInput)
}

func TestMemoryStoreRenameFolderPrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	inside := memAsset(t, s, "lib", "1", "/chars", "a.png", 1)
	nested := memAsset(t, s, "lib", "2", "/chars/hero", "b.png", 1)
	sibling := memAsset(t, s, "lib", "3", "/characters", "c.png", 1)
	_, err := s.MoveAssets(ctx, []string{sibling.ID}, "/ui")
	require.NoError(t, err)

	n, err := s.RenameFolderPrefix(ctx, "lib", "/chars", "/people")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, _ := s.GetAsset(ctx, inside.ID)
	assert.Equal(t, "/people", got.FolderPath)
	assert.Equal(t, "people/1.png", got.RelativePath)
	got, _ = s.GetAsset(ctx, nested.ID)
	assert.Equal(t, "/people/hero", got.FolderPath)
	got, _ = s.GetAsset(ctx, sibling.ID)
	assert.Equal(t, "characters/3.png", got.RelativePath)
}

func TestMemoryStoreDeleteCascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateLibrary(ctx, &models.Library{ID: "lib", Name: "l"}))
	a := memAsset(t, s, "lib", "1", "/x", "a.png", 1)
	tag := &models.Tag{ID: "t", LibraryID: "lib", Name: "hero"}
	require.NoError(t, s.CreateTag(ctx, tag))
	require.NoError(t, s.AssignTags(ctx, []models.AssetTag{{AssetID: a.ID, TagID: tag.ID, Confidence: 1}}))
	require.NoError(t, s.SaveEmbedding(ctx, models.Embedding{AssetID: a.ID, Model: "m", Vector: vectorindex.Encode([]float32{1})}))

	n, err := s.DeleteAssets(ctx, []string{a.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	tags, err := s.ListTags(ctx, "lib", "")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Zero(t, tags[0].AssetCount)
	embs, err := s.ListEmbeddings(ctx, "lib", "m")
	require.NoError(t, err)
	assert.Empty(t, embs)

	require.NoError(t, s.DeleteLibrary(ctx, "lib"))
	_, err = s.GetTag(ctx, tag.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryStoreRelatedAssetsStayInLibrary(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateLibrary(ctx, &models.Library{ID: "A", Name: "a"}))
	require.NoError(t, s.CreateLibrary(ctx, &models.Library{ID: "B", Name: "b"}))
	memAsset(t, s, "A", "a1", "/x", "a1.png", 1)
	memAsset(t, s, "A", "a2", "/x", "a2.png", 1)
	memAsset(t, s, "B", "b1", "/x", "b1.png", 1)

	vec := vectorindex.Encode([]float32{1, 0})
	for _, id := range []string{"a1", "b1"} {
		require.NoError(t, s.SaveEmbedding(ctx, models.Embedding{AssetID: id, Model: "m", Vector: vec}))
	}
	require.NoError(t, s.SaveEmbedding(ctx, models.Embedding{AssetID: "a2", Model: "m", Vector: vectorindex.Encode([]float32{1, 1})}))

	related, err := s.RelatedAssets(ctx, "a1", "m", 10)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "a2", related[0].Asset.ID)
	assert.Equal(t, "A", related[0].Asset.LibraryID)
}

func TestMemoryStoreAIConfig(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.ActiveAIConfig(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, s.SaveAIConfig(ctx, &models.AIConfig{ID: "a", ProviderName: "openai"}))
	require.NoError(t, s.SaveAIConfig(ctx, &models.AIConfig{ID: "b", ProviderName: "local"}))
	active, err := s.ActiveAIConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", active.ID)
}
