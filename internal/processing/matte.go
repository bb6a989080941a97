package processing

import (
	"image"

	"github.com/disintegration/imaging"
)

type RGB struct {
	R, G, B uint8
}

// ColorKey makes every pixel whose channels are each within tolerance of key
// fully transparent. Other pixels, alpha included, are kept as they are.
func ColorKey(src image.Image, key RGB, tolerance uint8) *image.NRGBA {
	out := imaging.Clone(src)
	w, h := out.Rect.Dx(), out.Rect.Dy()
	for y := 0; y < h; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			if within(row[i], key.R, tolerance) &&
				within(row[i+1], key.G, tolerance) &&
				within(row[i+2], key.B, tolerance) {
				row[i], row[i+1], row[i+2], row[i+3] = 0, 0, 0, 0
			}
		}
	}
	return out
}

func within(c, target, tolerance uint8) bool {
	d := int(c) - int(target)
	if d < 0 {
		d = -d
	}
	return d <= int(tolerance)
}
