package identity

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetlib/internal/apperr"
	"assetlib/internal/models"
)

func TestIdentifyHashIsContentOnly(t *testing.T) {
	a := Identify([]byte("same bytes"), ".png")
	b := Identify([]byte("same bytes"), "txt")
	c := Identify([]byte("other bytes"), ".png")

	assert.Equal(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Hash, c.Hash)
	assert.Len(t, a.Hash, 64)
	// sha256("")
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Identify(nil, "").Hash)
}

func TestMimeAndCategory(t *testing.T) {
	cases := []struct {
		ext      string
		mime     string
		category string
	}{
		{".PNG", "image/png", models.FileTypeImage},
		{"jpeg", "image/jpeg", models.FileTypeImage},
		{".tif", "image/tiff", models.FileTypeImage},
		{".wav", "audio/wav", models.FileTypeAudio},
		{".mov", "video/quicktime", models.FileTypeVideo},
		{".json", "application/json", models.FileTypeOther},
		{".blend", "application/octet-stream", models.FileTypeOther},
		{"", "application/octet-stream", models.FileTypeOther},
	}
	for _, tc := range cases {
		t.Run(tc.ext, func(t *testing.T) {
			id := Identify([]byte{1}, tc.ext)
			assert.Equal(t, tc.mime, id.Mime)
			assert.Equal(t, tc.category, id.Category)
		})
	}
}

func TestIdentifyFileMatchesIdentify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sprite.png")
	data := []byte("not really a png")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	id, size, err := IdentifyFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
	assert.Equal(t, Identify(data, ".png"), id)
}

func TestIdentifyFileMissing(t *testing.T) {
	_, _, err := IdentifyFile(filepath.Join(t.TempDir(), "nope.png"))
	assert.ErrorIs(t, err, apperr.ErrIO)
}

func TestDimensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 12, 7))))
	require.NoError(t, f.Close())

	w, h, ok := Dimensions(path)
	assert.True(t, ok)
	assert.Equal(t, 12, w)
	assert.Equal(t, 7, h)

	bogus := filepath.Join(dir, "bogus.png")
	require.NoError(t, os.WriteFile(bogus, []byte("xx"), 0o644))
	_, _, ok = Dimensions(bogus)
	assert.False(t, ok)
}
