package processing

import (
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"

	"github.com/disintegration/imaging"

	"assetlib/internal/apperr"
)

const (
	// ThumbnailSize bounds the longest edge of a thumbnail.
	ThumbnailSize = 256
	// ThumbnailDir is the hidden directory under a library root holding thumbnails.
	ThumbnailDir = ".thumbnails"
)

// Thumbnail shrinks src to fit a ThumbnailSize square, keeping its aspect
// ratio. Images that already fit are copied unscaled.
func Thumbnail(src image.Image) *image.NRGBA {
	return imaging.Fit(src, ThumbnailSize, ThumbnailSize, imaging.Lanczos)
}

// ThumbnailRelPath is the library-relative location of an asset's thumbnail.
func ThumbnailRelPath(assetID string) string {
	return path.Join(ThumbnailDir, fmt.Sprintf("%s.png", assetID))
}

// WriteThumbnail renders the thumbnail of sourcePath into the library root,
// overwriting any previous one for the same asset, and returns its relative path.
func WriteThumbnail(root, assetID, sourcePath string) (string, error) {
	src, err := Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	return WriteThumbnailImage(root, assetID, src)
}

func WriteThumbnailImage(root, assetID string, src image.Image) (string, error) {
	thumbDir := filepath.Join(root, ThumbnailDir)
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		return "", apperr.IO("create thumbnail dir", err)
	}

	rel := ThumbnailRelPath(assetID)
	if err := imaging.Save(Thumbnail(src), filepath.Join(root, filepath.FromSlash(rel))); err != nil {
		return "", apperr.IO("save thumbnail", err)
	}
	return rel, nil
}
