package library

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetlib/internal/ai"
	"assetlib/internal/apperr"
	"assetlib/internal/logger"
	"assetlib/internal/models"
	"assetlib/internal/processing"
	"assetlib/internal/storage"
	"assetlib/internal/vectorindex"
)

var (
	_ Repository = (*storage.MemoryStore)(nil)
	_ Repository = (*storage.PostgresStore)(nil)
)

type stubProvider struct {
	analysis *ai.Analysis
	vectors  map[string][]float32
	embedErr error
	closed   bool
}

func (p *stubProvider) AnalyzeImage(context.Context, []byte, string) (*ai.Analysis, error) {
	if p.analysis == nil {
		return nil, apperr.Provider("analyze", errors.New("no analysis"))
	}
	return p.analysis, nil
}

func (p *stubProvider) EmbedText(_ context.Context, text string) ([]float32, error) {
	if p.embedErr != nil {
		return nil, p.embedErr
	}
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (p *stubProvider) TestConnection(context.Context) (bool, error) { return true, nil }
func (p *stubProvider) EmbeddingModel() string                       { return "stub-embed" }
func (p *stubProvider) Close()                                       { p.closed = true }

type eventLog struct {
	mu     sync.Mutex
	events []models.AssetEvent
}

func (l *eventLog) add(ev models.AssetEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(typ string) []models.AssetEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.AssetEvent
	for _, ev := range l.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	svc     *Service
	repo    *storage.MemoryStore
	events  *eventLog
	manager *ai.Manager
	lib     *models.Library
	src     string // scratch directory outside the library
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{repo: storage.NewMemoryStore(), events: &eventLog{}, manager: ai.NewManager(), src: t.TempDir()}
	f.svc = NewService(f.repo, f.manager, logger.Nop(), Options{
		ThumbnailWorkers: 1,
		QueueSize:        10,
		SplitConcurrency: 2,
		NewProvider: func(cfg models.AIConfig) (ai.Provider, error) {
			if cfg.ProviderName != "stub" {
				return nil, apperr.Invalid("unknown ai provider %q", cfg.ProviderName)
			}
			return &stubProvider{}, nil
		},
		OnEvent: f.events.add,
	})
	t.Cleanup(f.svc.Close)

	lib, err := f.svc.CreateLibrary(context.Background(), "game", filepath.Join(t.TempDir(), "lib"))
	require.NoError(t, err)
	f.lib = lib
	return f
}

// writePNG creates a w×h image filled with c, outside the library.
func (f *fixture) writePNG(t *testing.T, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	p := filepath.Join(f.src, name)
	require.NoError(t, imaging.Save(imaging.New(w, h, c), p))
	return p
}

func (f *fixture) importOne(t *testing.T, path, folder string) models.Asset {
	t.Helper()
	assets, err := f.svc.ImportAssets(context.Background(), f.lib.ID, []string{path}, folder)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	return assets[0]
}

var red = color.NRGBA{R: 255, A: 255}

func TestCreateLibraryMakesDirectories(t *testing.T) {
	f := newFixture(t)
	for _, dir := range []string{"", DerivedDir, processing.ThumbnailDir} {
		info, err := os.Stat(filepath.Join(f.lib.RootPath, dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	_, err := f.svc.CreateLibrary(context.Background(), "  ", t.TempDir())
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestImportAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.writePNG(t, "hero.png", 40, 20, red)
	sound := filepath.Join(f.src, "jump.wav")
	require.NoError(t, os.WriteFile(sound, []byte("RIFF not really"), 0o644))

	assets, err := f.svc.ImportAssets(ctx, f.lib.ID, []string{img, filepath.Join(f.src, "missing.png"), sound}, "chars")
	require.NoError(t, err)
	require.Len(t, assets, 2)

	hero := assets[0]
	assert.Equal(t, "hero.png", hero.FileName)
	assert.Equal(t, "/chars", hero.FolderPath)
	assert.Equal(t, "chars/"+hero.ID+".png", hero.RelativePath)
	assert.Equal(t, models.FileTypeImage, hero.FileType)
	require.NotNil(t, hero.Width)
	assert.Equal(t, 40, *hero.Width)
	assert.Equal(t, 20, *hero.Height)
	require.NotNil(t, hero.ThumbnailPath)
	assert.FileExists(t, filepath.Join(f.lib.RootPath, filepath.FromSlash(*hero.ThumbnailPath)))
	assert.FileExists(t, filepath.Join(f.lib.RootPath, "chars", hero.ID+".png"))

	jump := assets[1]
	assert.Equal(t, models.FileTypeAudio, jump.FileType)
	assert.Nil(t, jump.ThumbnailPath)
	assert.Nil(t, jump.Width)

	created := f.events.ofType(models.EventAssetCreated)
	require.Len(t, created, 2)
	assert.Equal(t, []string{hero.ID}, created[0].AssetIDs)
	assert.Equal(t, ThumbnailURL(hero.ID), created[0].ThumbnailURL)
	assert.Empty(t, created[1].ThumbnailURL)
}

func TestImportUndecodableImageKeepsAssetWithoutThumbnail(t *testing.T) {
	f := newFixture(t)
	broken := filepath.Join(f.src, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not a png"), 0o644))

	a := f.importOne(t, broken, "/")
	assert.Equal(t, models.FileTypeImage, a.FileType)
	assert.Nil(t, a.ThumbnailPath)
	assert.Nil(t, a.Width)
}

func TestImportUnknownLibrary(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ImportAssets(context.Background(), "nope", nil, "/")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListAssetsPaging(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"c.png", "a.png", "b.png"} {
		f.importOne(t, f.writePNG(t, name, 4, 4, red), "ui")
	}
	page, err := f.svc.ListAssets(context.Background(), models.AssetQuery{
		LibraryID: f.lib.ID, FolderPath: "ui/", Page: 2, PageSize: 2, SortBy: "name", SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Assets, 1)
	assert.Equal(t, "c.png", page.Assets[0].FileName)
}

func TestRenameAndDescribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.importOne(t, f.writePNG(t, "hero.png", 4, 4, red), "/")

	assert.ErrorIs(t, f.svc.RenameAsset(ctx, a.ID, " "), apperr.ErrInvalidInput)
	require.NoError(t, f.svc.RenameAsset(ctx, a.ID, "knight.png"))
	require.NoError(t, f.svc.UpdateDescription(ctx, a.ID, "shiny"))

	detail, err := f.svc.GetAssetDetail(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "knight.png", detail.Asset.FileName)
	assert.Equal(t, "shiny", detail.Asset.Description)
	assert.Empty(t, detail.Tags)
}

func TestDeleteAssetsRemovesFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.importOne(t, f.writePNG(t, "hero.png", 8, 8, red), "/")
	file, err := f.svc.AssetFilePath(ctx, a.ID)
	require.NoError(t, err)
	thumb, err := f.svc.ThumbnailFilePath(ctx, a.ID)
	require.NoError(t, err)

	n, err := f.svc.DeleteAssets(ctx, []string{a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoFileExists(t, file)
	assert.NoFileExists(t, thumb)

	deleted := f.events.ofType(models.EventAssetsDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, []string{a.ID}, deleted[0].AssetIDs)

	_, err = f.svc.AssetFilePath(ctx, a.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMoveAssetsIsVirtual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.importOne(t, f.writePNG(t, "hero.png", 4, 4, red), "chars")

	n, err := f.svc.MoveAssets(ctx, []string{a.ID}, "ui")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.repo.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "/ui", got.FolderPath)
	assert.Equal(t, a.RelativePath, got.RelativePath)
	assert.FileExists(t, filepath.Join(f.lib.RootPath, "chars", a.ID+".png"))
}

func TestListFoldersIncludesEmptyDirectories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importOne(t, f.writePNG(t, "hero.png", 4, 4, red), "chars")
	_, err := f.svc.CreateFolder(ctx, f.lib.ID, "/", "empty")
	require.NoError(t, err)

	list, err := f.svc.ListFolders(ctx, f.lib.ID)
	require.NoError(t, err)
	counts := make(map[string]int64)
	for _, fi := range list {
		counts[fi.Path] = fi.AssetCount
	}
	assert.Equal(t, int64(1), counts["/chars"])
	assert.Contains(t, counts, "/empty")
	assert.Equal(t, int64(0), counts["/empty"])
	assert.NotContains(t, counts, "/"+processing.ThumbnailDir)
}

func TestCreateFolderRejectsBadName(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateFolder(context.Background(), f.lib.ID, "/", "a/b")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRenameFolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	top := f.importOne(t, f.writePNG(t, "a.png", 4, 4, red), "chars")
	nested := f.importOne(t, f.writePNG(t, "b.png", 4, 4, red), "chars/hero")
	other := f.importOne(t, f.writePNG(t, "c.png", 4, 4, red), "characters")

	newPath, n, err := f.svc.RenameFolder(ctx, f.lib.ID, "/chars", "people")
	require.NoError(t, err)
	assert.Equal(t, "/people", newPath)
	assert.Equal(t, int64(2), n)

	got, _ := f.repo.GetAsset(ctx, top.ID)
	assert.Equal(t, "/people", got.FolderPath)
	assert.Equal(t, "people/"+top.ID+".png", got.RelativePath)
	assert.FileExists(t, filepath.Join(f.lib.RootPath, "people", top.ID+".png"))

	got, _ = f.repo.GetAsset(ctx, nested.ID)
	assert.Equal(t, "/people/hero", got.FolderPath)
	assert.FileExists(t, filepath.Join(f.lib.RootPath, filepath.FromSlash(got.RelativePath)))

	got, _ = f.repo.GetAsset(ctx, other.ID)
	assert.Equal(t, "/characters", got.FolderPath)
	assert.NoDirExists(t, filepath.Join(f.lib.RootPath, "chars"))
}

func TestRenameFolderRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importOne(t, f.writePNG(t, "a.png", 4, 4, red), "chars")
	f.importOne(t, f.writePNG(t, "b.png", 4, 4, red), "people")

	_, _, err := f.svc.RenameFolder(ctx, f.lib.ID, "/", "x")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, _, err = f.svc.RenameFolder(ctx, f.lib.ID, "/chars", "people")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	list, err := f.svc.ListFolders(ctx, f.lib.ID)
	require.NoError(t, err)
	for _, fi := range list {
		if fi.Path == "/chars" {
			assert.Equal(t, int64(1), fi.AssetCount)
		}
	}
}

func TestRenameFolderFailedMoveKeepsIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.importOne(t, f.writePNG(t, "a.png", 4, 4, red), "chars")

	// Longer than any file system allows for one path element.
	_, _, err := f.svc.RenameFolder(ctx, f.lib.ID, "/chars", strings.Repeat("x", 300))
	assert.ErrorIs(t, err, apperr.ErrIO)

	got, err := f.repo.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "/chars", got.FolderPath)
	assert.Equal(t, a.RelativePath, got.RelativePath)
	assert.DirExists(t, filepath.Join(f.lib.RootPath, "chars"))
	assert.FileExists(t, filepath.Join(f.lib.RootPath, filepath.FromSlash(a.RelativePath)))
}

func TestRenameVirtualFolderUpdatesIndexOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.importOne(t, f.writePNG(t, "a.png", 4, 4, red), "chars")
	_, err := f.svc.MoveAssets(ctx, []string{a.ID}, "/virtual")
	require.NoError(t, err)

	_, n, err := f.svc.RenameFolder(ctx, f.lib.ID, "/virtual", "renamed")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, _ := f.repo.GetAsset(ctx, a.ID)
	assert.Equal(t, "/renamed", got.FolderPath)
	assert.Equal(t, a.RelativePath, got.RelativePath)
}

func TestTagsLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.importOne(t, f.writePNG(t, "a.png", 4, 4, red), "/")
	b := f.importOne(t, f.writePNG(t, "b.png", 4, 4, red), "/")

	weapon, err := f.svc.CreateTag(ctx, f.lib.ID, "weapon", "", "type")
	require.NoError(t, err)
	assert.Equal(t, DefaultTagColor, weapon.Color)
	hero, err := f.svc.CreateTag(ctx, f.lib.ID, "hero", "#ff0000", "")
	require.NoError(t, err)

	_, err = f.svc.CreateTag(ctx, f.lib.ID, "weapon", "", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	require.NoError(t, f.svc.AssignTags(ctx, []string{a.ID, b.ID}, []string{weapon.ID}))
	require.NoError(t, f.svc.AssignTags(ctx, []string{a.ID}, []string{hero.ID}))

	both, err := f.svc.SearchByTags(ctx, f.lib.ID, []string{weapon.ID, hero.ID}, true)
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, a.ID, both[0].ID)

	either, err := f.svc.SearchByTags(ctx, f.lib.ID, []string{weapon.ID, hero.ID}, false)
	require.NoError(t, err)
	assert.Len(t, either, 2)

	typed, err := f.svc.ListTags(ctx, f.lib.ID, "type")
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, int64(2), typed[0].AssetCount)

	require.NoError(t, f.svc.RemoveTags(ctx, []string{a.ID}, []string{weapon.ID}))
	tags, err := f.svc.AssetTags(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "hero", tags[0].Name)

	require.NoError(t, f.svc.RenameTag(ctx, hero.ID, "protagonist"))
	require.NoError(t, f.svc.DeleteTag(ctx, weapon.ID))
	all, err := f.svc.ListTags(ctx, f.lib.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "protagonist", all[0].Name)
}

func TestSearchKeyword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.importOne(t, f.writePNG(t, "a.png", 4, 4, red), "/")
	require.NoError(t, f.svc.UpdateDescription(ctx, a.ID, "blue potion bottle"))

	page, err := f.svc.SearchKeyword(ctx, models.KeywordQuery{LibraryID: f.lib.ID, Query: "blue potion"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = f.svc.SearchKeyword(ctx, models.KeywordQuery{LibraryID: f.lib.ID, Query: "blue potion", TagIDs: []string{"t"}})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Assets)

	page, err = f.svc.SearchKeyword(ctx, models.KeywordQuery{LibraryID: f.lib.ID, Query: "   "})
	require.NoError(t, err)
	assert.Empty(t, page.Assets)
}

func TestSemanticSearchRanksExactMatchFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := &stubProvider{vectors: map[string][]float32{"a fiery sword": {1, 0, 0}}}
	f.manager.Set(p)

	ids := make([]string, 3)
	vectors := [][]float32{{0, 1, 0}, {1, 0, 0}, {0.7, 0.7, 0}}
	for i, v := range vectors {
		a := f.importOne(t, f.writePNG(t, "x.png", 4, 4, red), "/")
		ids[i] = a.ID
		require.NoError(t, f.repo.SaveEmbedding(ctx, models.Embedding{AssetID: a.ID, Model: "stub-embed", Vector: vectorindex.Encode(v)}))
	}
	// A vector from another model never takes part.
	require.NoError(t, f.repo.SaveEmbedding(ctx, models.Embedding{AssetID: ids[0], Model: "other", Vector: vectorindex.Encode([]float32{1, 0, 0})}))

	hits, err := f.svc.SemanticSearch(ctx, f.lib.ID, "a fiery sword", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, ids[1], hits[0].Asset.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, ids[2], hits[1].Asset.ID)

	related, err := f.svc.RelatedAssets(ctx, ids[1], 1)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, ids[2], related[0].Asset.ID)
}

func TestSemanticSearchWithoutProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SemanticSearch(context.Background(), f.lib.ID, "sword", 5)
	assert.ErrorIs(t, err, apperr.ErrProvider)
}

func TestTagAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.importOne(t, f.writePNG(t, "sword.png", 8, 8, red), "/")
	f.manager.Set(&stubProvider{analysis: &ai.Analysis{
		Description:   "a red sword",
		SuggestedName: "red_sword",
		Tags: []ai.SuggestedTag{
			{Name: "Sword", Category: "type", Confidence: 0.9},
			{Name: "sword", Category: "type", Confidence: 0.5},
			{Name: "red", Category: "color", Confidence: 1.4},
		},
	}})

	res, err := f.svc.TagAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a red sword", res.Description)
	assert.Equal(t, "red_sword", res.SuggestedName)
	require.Len(t, res.Tags, 2)
	assert.Equal(t, "sword", res.Tags[0].Name)
	assert.True(t, res.Tags[0].IsAI)

	got, _ := f.repo.GetAsset(ctx, a.ID)
	assert.Equal(t, "a red sword", got.AIDescription)
	assert.Empty(t, got.Description)

	embs, err := f.repo.ListEmbeddings(ctx, f.lib.ID, "stub-embed")
	require.NoError(t, err)
	assert.Len(t, embs, 1)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.2))
	assert.Equal(t, 0.5, clamp01(0.5))
	assert.Equal(t, 1.0, clamp01(1.4))
}

func TestTagAssetSwallowsEmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.importOne(t, f.writePNG(t, "sword.png", 8, 8, red), "/")
	f.manager.Set(&stubProvider{
		analysis: &ai.Analysis{Description: "a sword", Tags: []ai.SuggestedTag{{Name: "sword", Confidence: 0.8}}},
		embedErr: apperr.Provider("embed", errors.New("rate limited")),
	})

	res, err := f.svc.TagAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, res.Tags, 1)

	embs, err := f.repo.ListEmbeddings(ctx, f.lib.ID, "stub-embed")
	require.NoError(t, err)
	assert.Empty(t, embs)
	tags, err := f.svc.AssetTags(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestTagAssetRejectsNonImage(t *testing.T) {
	f := newFixture(t)
	sound := filepath.Join(f.src, "jump.wav")
	require.NoError(t, os.WriteFile(sound, []byte("RIFF"), 0o644))
	a := f.importOne(t, sound, "/")
	f.manager.Set(&stubProvider{})

	_, err := f.svc.TagAsset(context.Background(), a.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestAIConfigLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AIConfig(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, f.svc.LoadAIConfig(ctx))
	assert.False(t, f.manager.Has())

	_, err = f.svc.SaveAIConfig(ctx, AIConfigInput{ProviderName: "bogus"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.False(t, f.manager.Has())

	ok, err := f.svc.TestConnection(ctx, AIConfigInput{ProviderName: "stub"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, f.manager.Has())

	saved, err := f.svc.SaveAIConfig(ctx, AIConfigInput{ProviderName: "stub", ModelID: "vision"})
	require.NoError(t, err)
	assert.True(t, saved.IsActive)
	assert.True(t, f.manager.Has())

	active, err := f.svc.AIConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, active.ID)

	fresh := ai.NewManager()
	restarted := NewService(f.repo, fresh, logger.Nop(), Options{NewProvider: func(models.AIConfig) (ai.Provider, error) {
		return &stubProvider{}, nil
	}})
	defer restarted.Close()
	require.NoError(t, restarted.LoadAIConfig(ctx))
	assert.True(t, fresh.Has())
}

func TestRemoveBackground(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := imaging.New(4, 4, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	p := filepath.Join(f.src, "slime.png")
	require.NoError(t, imaging.Save(img, p))
	src := f.importOne(t, p, "mobs")

	out, err := f.svc.RemoveBackground(ctx, src.ID, processing.RGB{G: 255}, 0)
	require.NoError(t, err)
	assert.Equal(t, "slime_nobg.png", out.FileName)
	assert.Equal(t, "Background removed from slime.png", out.Description)
	assert.Equal(t, src.OriginalName, out.OriginalName)
	assert.Equal(t, "/mobs", out.FolderPath)
	assert.True(t, strings.HasPrefix(out.RelativePath, DerivedDir+"/"))

	res, err := processing.Open(filepath.Join(f.lib.RootPath, filepath.FromSlash(out.RelativePath)))
	require.NoError(t, err)
	nrgba := imaging.Clone(res)
	assert.Equal(t, uint8(0), nrgba.NRGBAAt(0, 0).A)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, nrgba.NRGBAAt(1, 1))
}

func TestCompressImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.importOne(t, f.writePNG(t, "hero.png", 100, 50, red), "/")
	require.NoError(t, f.svc.UpdateDescription(ctx, src.ID, "the hero"))
	tag, err := f.svc.CreateTag(ctx, f.lib.ID, "hero", "", "")
	require.NoError(t, err)
	require.NoError(t, f.svc.AssignTags(ctx, []string{src.ID}, []string{tag.ID}))

	res, err := f.svc.CompressImage(ctx, CompressRequest{AssetID: src.ID, MaxWidth: 50, Quality: 80, Format: "jpg", Suffix: "_small"})
	require.NoError(t, err)
	assert.Equal(t, "hero_small.jpg", res.Asset.FileName)
	assert.Equal(t, "image/jpeg", res.Asset.MimeType)
	assert.Equal(t, 50, *res.Asset.Width)
	assert.Equal(t, 25, *res.Asset.Height)
	assert.Equal(t, "the hero", res.Asset.Description)
	assert.Equal(t, "hero.png", res.Asset.OriginalName)
	assert.True(t, strings.HasPrefix(res.Asset.RelativePath, DerivedDir+"/"))
	assert.Equal(t, src.FileSize, res.OriginalSize)
	assert.Equal(t, res.Asset.FileSize, res.CompressedSize)

	tags, err := f.svc.AssetTags(ctx, res.Asset.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "hero", tags[0].Name)
}

func TestCompressImageInFolderStaysBesideSource(t *testing.T) {
	f := newFixture(t)
	src := f.importOne(t, f.writePNG(t, "hero.png", 10, 10, red), "chars")

	res, err := f.svc.CompressImage(context.Background(), CompressRequest{AssetID: src.ID, Quality: 90, Format: "png"})
	require.NoError(t, err)
	assert.Equal(t, "hero_compressed.png", res.Asset.FileName)
	assert.True(t, strings.HasPrefix(res.Asset.RelativePath, "chars/"))
}

func TestCompressImageMissingFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.importOne(t, f.writePNG(t, "hero.png", 10, 10, red), "/")
	p, err := f.svc.AssetFilePath(ctx, src.ID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(p))

	_, err = f.svc.CompressImage(ctx, CompressRequest{AssetID: src.ID, Quality: 80, Format: "jpeg"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMergeSpritesheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.importOne(t, f.writePNG(t, "a.png", 10, 8, red), "sprites")
	b := f.importOne(t, f.writePNG(t, "b.png", 6, 12, red), "sprites")
	c := f.importOne(t, f.writePNG(t, "c.png", 4, 4, red), "sprites")

	res, err := f.svc.MergeSpritesheet(ctx, MergeRequest{
		AssetIDs:         []string{a.ID, b.ID, c.ID},
		Columns:          2,
		Padding:          1,
		OutputName:       "walk",
		DescriptorFormat: processing.DescriptorUnity,
	})
	require.NoError(t, err)
	assert.Equal(t, "walk.png", res.Asset.FileName)
	assert.Equal(t, "Sprite sheet with 3 frames", res.Asset.Description)
	assert.Equal(t, "/sprites", res.Asset.FolderPath)
	assert.Equal(t, 2*(10+1)-1, *res.Asset.Width)
	assert.Equal(t, 2*(12+1)-1, *res.Asset.Height)

	assert.Equal(t, DerivedDir+"/walk.xml", res.DescriptorPath)
	written, err := os.ReadFile(filepath.Join(f.lib.RootPath, DerivedDir, "walk.xml"))
	require.NoError(t, err)
	assert.Equal(t, res.Descriptor, string(written))
	assert.Contains(t, res.Descriptor, `imagePath="walk.png"`)
}

func TestMergeSpritesheetRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.MergeSpritesheet(ctx, MergeRequest{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.svc.MergeSpritesheet(ctx, MergeRequest{AssetIDs: []string{"missing"}, Columns: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSplitImageRegistersPartsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.importOne(t, f.writePNG(t, "tiles.png", 31, 21, red), "maps")

	parts, err := f.svc.SplitImage(ctx, src.ID, 2, 3)
	require.NoError(t, err)
	require.Len(t, parts, 6)
	for i, p := range parts {
		assert.Equal(t, "tiles_"+string(rune('0'+i))+".png", p.FileName)
		assert.Equal(t, "Split from tiles.png (part "+string(rune('1'+i))+")", p.Description)
		assert.Equal(t, "tiles.png", p.OriginalName)
		assert.Equal(t, "/maps", p.FolderPath)
		assert.Equal(t, 10, *p.Width)
		assert.Equal(t, 10, *p.Height)
		assert.FileExists(t, filepath.Join(f.lib.RootPath, filepath.FromSlash(p.RelativePath)))
	}

	_, err = f.svc.SplitImage(ctx, src.ID, 0, 3)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestBackfillThumbnails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A row indexed without a thumbnail, as left behind by an older import.
	src := f.writePNG(t, "hero.png", 12, 12, red)
	rel := "legacy.png"
	require.NoError(t, copyFile(src, filepath.Join(f.lib.RootPath, rel)))
	w, h := 12, 12
	a := &models.Asset{
		ID: "legacy", LibraryID: f.lib.ID, FileName: "hero.png", OriginalName: "hero.png",
		RelativePath: rel, FileType: models.FileTypeImage, MimeType: "image/png",
		FileSize: 1, FileHash: "x", Width: &w, Height: &h, FolderPath: "/",
	}
	require.NoError(t, f.repo.InsertAsset(ctx, a))

	n, err := f.svc.BackfillThumbnails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.svc.Close()

	got, err := f.repo.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ThumbnailPath)
	assert.FileExists(t, filepath.Join(f.lib.RootPath, filepath.FromSlash(*got.ThumbnailPath)))

	ready := f.events.ofType(models.EventThumbnailReady)
	require.Len(t, ready, 1)
	assert.Equal(t, []string{a.ID}, ready[0].AssetIDs)
}

func TestQueueAfterCloseIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.writePNG(t, "hero.png", 8, 8, red)
	require.NoError(t, copyFile(src, filepath.Join(f.lib.RootPath, "late.png")))
	w, h := 8, 8
	require.NoError(t, f.repo.InsertAsset(ctx, &models.Asset{
		ID: "late", LibraryID: f.lib.ID, FileName: "hero.png", OriginalName: "hero.png",
		RelativePath: "late.png", FileType: models.FileTypeImage, MimeType: "image/png",
		FileSize: 1, FileHash: "x", Width: &w, Height: &h, FolderPath: "/",
	}))

	f.svc.Close()
	var n int
	require.NotPanics(t, func() {
		var err error
		n, err = f.svc.BackfillThumbnails(ctx)
		require.NoError(t, err)
	})
	assert.Equal(t, 0, n)
	assert.False(t, f.svc.thumbs.Queue(ThumbnailJob{AssetID: "late"}))
}

// flakyRepo fails InsertAsset once budget successful inserts are used up.
// A negative budget never fails.
type flakyRepo struct {
	*storage.MemoryStore
	budget int
}

func (r *flakyRepo) InsertAsset(ctx context.Context, a *models.Asset) error {
	if r.budget == 0 {
		return apperr.IO("insert asset", errors.New("disk full"))
	}
	if r.budget > 0 {
		r.budget--
	}
	return r.MemoryStore.InsertAsset(ctx, a)
}

func newFlakyFixture(t *testing.T) (*Service, *flakyRepo, *models.Library) {
	t.Helper()
	repo := &flakyRepo{MemoryStore: storage.NewMemoryStore(), budget: -1}
	svc := NewService(repo, ai.NewManager(), logger.Nop(), Options{ThumbnailWorkers: 1, QueueSize: 10, SplitConcurrency: 2})
	t.Cleanup(svc.Close)
	lib, err := svc.CreateLibrary(context.Background(), "game", filepath.Join(t.TempDir(), "lib"))
	require.NoError(t, err)
	return svc, repo, lib
}

func TestMergeSpritesheetRemovesDescriptorWhenRegisterFails(t *testing.T) {
	svc, repo, lib := newFlakyFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	var ids []string
	for _, name := range []string{"a.png", "b.png"} {
		p := filepath.Join(dir, name)
		require.NoError(t, imaging.Save(imaging.New(4, 4, red), p))
		assets, err := svc.ImportAssets(ctx, lib.ID, []string{p}, "sprites")
		require.NoError(t, err)
		ids = append(ids, assets[0].ID)
	}

	repo.budget = 0
	_, err := svc.MergeSpritesheet(ctx, MergeRequest{AssetIDs: ids, Columns: 2, OutputName: "walk", DescriptorFormat: processing.DescriptorUnity})
	assert.ErrorIs(t, err, apperr.ErrIO)
	assert.NoFileExists(t, filepath.Join(lib.RootPath, DerivedDir, "walk.xml"))

	_, total, err := repo.ListAssets(ctx, models.AssetQuery{LibraryID: lib.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestSplitImageReturnsPartsRegisteredBeforeFailure(t *testing.T) {
	svc, repo, lib := newFlakyFixture(t)
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "tiles.png")
	require.NoError(t, imaging.Save(imaging.New(20, 10, red), p))
	assets, err := svc.ImportAssets(ctx, lib.ID, []string{p}, "maps")
	require.NoError(t, err)

	repo.budget = 2
	parts, err := svc.SplitImage(ctx, assets[0].ID, 1, 4)
	assert.ErrorIs(t, err, apperr.ErrIO)
	require.Len(t, parts, 2)
	assert.Equal(t, "tiles_0.png", parts[0].FileName)
	assert.Equal(t, "tiles_1.png", parts[1].FileName)
	for _, part := range parts {
		got, err := repo.GetAsset(ctx, part.ID)
		require.NoError(t, err)
		assert.Equal(t, "/maps", got.FolderPath)
	}
}
