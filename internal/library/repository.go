package library

import (
	"context"

	"assetlib/internal/models"
)

// Repository is the persistence the Service needs. storage.PostgresStore and
// storage.MemoryStore implement it; every method is a single atomic statement unless noted.
type Repository interface {
	CreateLibrary(ctx context.Context, lib *models.Library) error
	ListLibraries(ctx context.Context) ([]models.Library, error)
	GetLibrary(ctx context.Context, id string) (*models.Library, error)
	DeleteLibrary(ctx context.Context, id string) error

	InsertAsset(ctx context.Context, a *models.Asset) error
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	GetAssets(ctx context.Context, ids []string) ([]models.Asset, error)
	ListAssets(ctx context.Context, q models.AssetQuery) ([]models.Asset, int64, error)
	// AssetsMissingThumbnail returns image assets of every library without a thumbnail.
	AssetsMissingThumbnail(ctx context.Context, limit int) ([]models.Asset, error)
	RenameAsset(ctx context.Context, id, name string) error
	UpdateDescription(ctx context.Context, id, description string) error
	UpdateAIDescription(ctx context.Context, id, description string) error
	SetThumbnail(ctx context.Context, id, relPath string) error
	DeleteAssets(ctx context.Context, ids []string) (int64, error)
	MoveAssets(ctx context.Context, ids []string, folder string) (int64, error)

	FolderCounts(ctx context.Context, libraryID string) ([]models.FolderInfo, error)
	// RenameFolderPrefix rewrites folder_path and relative_path of every asset
	// at or below oldPath in one statement.
	RenameFolderPrefix(ctx context.Context, libraryID, oldPath, newPath string) (int64, error)

	CreateTag(ctx context.Context, t *models.Tag) error
	GetTag(ctx context.Context, id string) (*models.Tag, error)
	// GetOrCreateTag returns the tag named t.Name in t.LibraryID, inserting t if absent.
	GetOrCreateTag(ctx context.Context, t *models.Tag) (*models.Tag, error)
	ListTags(ctx context.Context, libraryID, category string) ([]models.TagWithCount, error)
	RenameTag(ctx context.Context, id, name string) error
	DeleteTag(ctx context.Context, id string) error
	AssignTags(ctx context.Context, links []models.AssetTag) error
	RemoveTags(ctx context.Context, assetIDs, tagIDs []string) error
	AssetTags(ctx context.Context, assetID string) ([]models.Tag, error)
	CopyTags(ctx context.Context, fromAssetID, toAssetID string) error

	SearchKeyword(ctx context.Context, q models.KeywordQuery) ([]models.Asset, int64, error)
	SearchByTags(ctx context.Context, libraryID string, tagIDs []string, matchAll bool) ([]models.Asset, error)

	SaveEmbedding(ctx context.Context, e models.Embedding) error
	ListEmbeddings(ctx context.Context, libraryID, model string) ([]models.Embedding, error)
	RelatedAssets(ctx context.Context, assetID, model string, k int) ([]models.ScoredAsset, error)

	SaveAIConfig(ctx context.Context, cfg *models.AIConfig) error
	ActiveAIConfig(ctx context.Context) (*models.AIConfig, error)
}
