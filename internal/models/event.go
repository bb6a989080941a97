package models

const (
	EventAssetCreated   = "asset_created"
	EventThumbnailReady = "thumbnail_ready"
	EventAssetsDeleted  = "assets_deleted"
)

type AssetEvent struct {
	Type         string   `json:"type"`
	LibraryID    string   `json:"library_id"`
	AssetIDs     []string `json:"asset_ids"`
	FileName     string   `json:"file_name,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
}
