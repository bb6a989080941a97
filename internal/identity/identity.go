// Package identity computes content fingerprints and media categories.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"assetlib/internal/apperr"
	"assetlib/internal/models"
)

const defaultMime = "application/octet-stream"

var mimeByExt = map[string]string{
	// Images
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"psd":  "image/vnd.adobe.photoshop",
	// Audio
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
	"aac":  "audio/aac",
	"m4a":  "audio/mp4",
	"wma":  "audio/x-ms-wma",
	// Video
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	// Other
	"json": "application/json",
	"xml":  "application/xml",
}

type Identity struct {
	Hash     string `json:"hash"`
	Mime     string `json:"mime"`
	Category string `json:"category"`
}

// Identify fingerprints data and classifies it by extension (with or without the dot).
func Identify(data []byte, ext string) Identity {
	sum := sha256.Sum256(data)
	mime := MimeFromExt(ext)
	return Identity{
		Hash:     hex.EncodeToString(sum[:]),
		Mime:     mime,
		Category: CategoryFromMime(mime),
	}
}

// IdentifyFile streams the file at path through the hash and returns its size too.
func IdentifyFile(path string) (Identity, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Identity{}, 0, apperr.IO("open "+path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Identity{}, 0, apperr.IO("read "+path, err)
	}
	mime := MimeFromExt(filepath.Ext(path))
	return Identity{
		Hash:     hex.EncodeToString(h.Sum(nil)),
		Mime:     mime,
		Category: CategoryFromMime(mime),
	}, n, nil
}

func MimeFromExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if mime, ok := mimeByExt[ext]; ok {
		return mime
	}
	return defaultMime
}

func CategoryFromMime(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.FileTypeImage
	case strings.HasPrefix(mime, "audio/"):
		return models.FileTypeAudio
	case strings.HasPrefix(mime, "video/"):
		return models.FileTypeVideo
	default:
		return models.FileTypeOther
	}
}

// Dimensions reads only the image header. ok is false for anything that is
// not a decodable raster.
func Dimensions(path string) (width, height int, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
