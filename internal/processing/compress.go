package processing

import (
	"bytes"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"

	"assetlib/internal/apperr"
)

// CompressOptions bounds the output size. A zero MaxWidth/MaxHeight leaves
// that dimension unbounded.
type CompressOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int    // 1-100, used by JPEG
	Format    string // "jpeg" (or "jpg") | "png"
}

type CompressResult struct {
	Data           []byte
	Width          int
	Height         int
	Ext            string
	Mime           string
	OriginalSize   int64
	CompressedSize int64
	Ratio          float64
}

// FitWithin returns the size of a w×h image shrunk so that both bounds hold.
// It never enlarges.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 {
		maxW = w
	}
	if maxH <= 0 {
		maxH = h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(int(float64(w)*ratio), 1)
	nh := max(int(float64(h)*ratio), 1)
	return nw, nh
}

// Compress resizes src (shrinking only) and re-encodes it. originalSize is the
// byte size of the source file and is only used for the ratio.
func Compress(src image.Image, originalSize int64, opts CompressOptions) (*CompressResult, error) {
	if opts.Quality < 1 || opts.Quality > 100 {
		return nil, apperr.Invalid("quality %d out of range 1-100", opts.Quality)
	}
	if opts.MaxWidth < 0 || opts.MaxHeight < 0 {
		return nil, apperr.Invalid("max dimensions must not be negative")
	}

	var (
		format  imaging.Format
		ext     string
		mime    string
		encOpts []imaging.EncodeOption
	)
	switch strings.ToLower(opts.Format) {
	case "jpeg", "jpg":
		format, ext, mime = imaging.JPEG, "jpg", "image/jpeg"
		encOpts = append(encOpts, imaging.JPEGQuality(opts.Quality))
	case "png":
		format, ext, mime = imaging.PNG, "png", "image/png"
		encOpts = append(encOpts, imaging.PNGCompressionLevel(png.BestCompression))
	default:
		return nil, apperr.Invalid("unsupported output format %q", opts.Format)
	}

	b := src.Bounds()
	nw, nh := FitWithin(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)
	out := src
	if nw != b.Dx() || nh != b.Dy() {
		out = imaging.Resize(src, nw, nh, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, format, encOpts...); err != nil {
		return nil, apperr.IO("encode "+ext, err)
	}

	res := &CompressResult{
		Data:           buf.Bytes(),
		Width:          nw,
		Height:         nh,
		Ext:            ext,
		Mime:           mime,
		OriginalSize:   originalSize,
		CompressedSize: int64(buf.Len()),
	}
	res.Ratio = CompressionRatio(res.OriginalSize, res.CompressedSize)
	return res, nil
}

// CompressionRatio is 1 - compressed/original, or 0 for an empty original.
func CompressionRatio(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return 1 - float64(compressed)/float64(original)
}
