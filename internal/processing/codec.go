// Package processing holds the derived-artifact generators. Every function
// here is a pure transform over decoded raster data; callers own the I/O.
package processing

import (
	"bytes"
	"errors"
	"image"
	"io"
	"io/fs"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"assetlib/internal/apperr"
)

// Open decodes the image file at path, honoring EXIF orientation.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.IO("open "+path, err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, apperr.IO("read image", err)
		}
		return nil, apperr.Decode("image", err)
	}
	return img, nil
}

func DecodeBytes(data []byte) (image.Image, error) {
	return Decode(bytes.NewReader(data))
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, apperr.IO("encode png", err)
	}
	return buf.Bytes(), nil
}
