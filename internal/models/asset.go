package models

import "time"

// File type categories derived from a mime prefix.
const (
	FileTypeImage = "image"
	FileTypeAudio = "audio"
	FileTypeVideo = "video"
	FileTypeOther = "other"
)

type Library struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	RootPath  string    `db:"root_path" json:"root_path"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Asset is one file of a library. Derived assets are ordinary rows; their
// origin is only mentioned in Description.
type Asset struct {
	ID            string    `db:"id" json:"id"`
	LibraryID     string    `db:"library_id" json:"library_id"`
	FileName      string    `db:"file_name" json:"file_name"`
	OriginalName  string    `db:"original_name" json:"original_name"`
	RelativePath  string    `db:"relative_path" json:"relative_path"`
	FileType      string    `db:"file_type" json:"file_type"`
	MimeType      string    `db:"mime_type" json:"mime_type"`
	FileSize      int64     `db:"file_size" json:"file_size"`
	FileHash      string    `db:"file_hash" json:"file_hash"`
	Width         *int      `db:"width" json:"width,omitempty"`
	Height        *int      `db:"height" json:"height,omitempty"`
	DurationMS    *int64    `db:"duration_ms" json:"duration_ms,omitempty"`
	Description   string    `db:"description" json:"description"`
	AIDescription string    `db:"ai_description" json:"ai_description"`
	ThumbnailPath *string   `db:"thumbnail_path" json:"thumbnail_path,omitempty"`
	FolderPath    string    `db:"folder_path" json:"folder_path"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
	ImportedAt    time.Time `db:"imported_at" json:"imported_at"`
}

type Tag struct {
	ID        string    `db:"id" json:"id"`
	LibraryID string    `db:"library_id" json:"library_id"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	Category  string    `db:"category" json:"category"`
	IsAI      bool      `db:"is_ai" json:"is_ai"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type TagWithCount struct {
	Tag
	AssetCount int64 `db:"asset_count" json:"asset_count"`
}

// AssetTag links an asset to a tag. Manual assignments carry confidence 1.0.
type AssetTag struct {
	AssetID    string  `db:"asset_id" json:"asset_id"`
	TagID      string  `db:"tag_id" json:"tag_id"`
	Confidence float64 `db:"confidence" json:"confidence"`
}

// Embedding holds the little-endian float32 encoding of one vector.
type Embedding struct {
	AssetID string `db:"asset_id" json:"asset_id"`
	Model   string `db:"model" json:"model"`
	Vector  []byte `db:"vector" json:"-"`
}

type FolderInfo struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	AssetCount int64  `json:"asset_count"`
}

type AssetDetail struct {
	Asset Asset `json:"asset"`
	Tags  []Tag `json:"tags"`
}

type ScoredAsset struct {
	Asset Asset   `json:"asset"`
	Score float64 `json:"score"`
}

type AssetPage struct {
	Assets   []Asset `json:"assets"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// AssetQuery lists assets of one library. Empty filters match everything.
type AssetQuery struct {
	LibraryID  string
	FolderPath string
	FileType   string
	Page       int
	PageSize   int
	SortBy     string // name | size | date
	SortOrder  string // asc | desc
}

// KeywordQuery is a phrase search. A non-empty TagIDs yields an empty page.
type KeywordQuery struct {
	LibraryID string
	Query     string
	TagIDs    []string
	FileType  string
	Page      int
	PageSize  int
}

// AIConfig is the persisted provider configuration; at most one row is active.
type AIConfig struct {
	ID             string    `db:"id" json:"id"`
	ProviderName   string    `db:"provider_name" json:"provider_name"`
	APIEndpoint    string    `db:"api_endpoint" json:"api_endpoint"`
	APIKey         string    `db:"api_key" json:"api_key,omitempty"`
	ModelID        string    `db:"model_id" json:"model_id"`
	EmbeddingModel string    `db:"embedding_model" json:"embedding_model"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// NormalizePaging clamps page (1-based) and page size to the listing defaults.
func NormalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}
