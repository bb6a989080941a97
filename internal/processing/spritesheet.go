package processing

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"assetlib/internal/apperr"
)

type Frame struct {
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// SheetInfo is the geometry shared by every descriptor format.
type SheetInfo struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Frames []Frame `json:"frames"`
}

type NamedImage struct {
	Name  string
	Image image.Image
}

// Layout places frames of the given sizes on a fixed grid. Every cell is as
// large as the biggest frame; frame i sits in column i%cols, row i/cols.
func Layout(names []string, sizes []image.Point, columns, padding int) (SheetInfo, error) {
	if len(sizes) == 0 {
		return SheetInfo{}, apperr.Invalid("no images provided")
	}
	if len(names) != len(sizes) {
		return SheetInfo{}, apperr.Invalid("got %d names for %d images", len(names), len(sizes))
	}
	if padding < 0 {
		return SheetInfo{}, apperr.Invalid("padding must not be negative")
	}

	var cellW, cellH int
	for _, s := range sizes {
		cellW = max(cellW, s.X)
		cellH = max(cellH, s.Y)
	}
	cols := max(columns, 1)
	rows := (len(sizes) + cols - 1) / cols

	info := SheetInfo{
		Width:  cols*(cellW+padding) - padding,
		Height: rows*(cellH+padding) - padding,
		Frames: make([]Frame, len(sizes)),
	}
	for i, s := range sizes {
		info.Frames[i] = Frame{
			Name:   names[i],
			X:      (i % cols) * (cellW + padding),
			Y:      (i / cols) * (cellH + padding),
			Width:  s.X,
			Height: s.Y,
		}
	}
	return info, nil
}

// Pack draws frames onto one transparent sheet in input order.
func Pack(frames []NamedImage, columns, padding int) (*image.NRGBA, SheetInfo, error) {
	names := make([]string, len(frames))
	sizes := make([]image.Point, len(frames))
	for i, f := range frames {
		names[i] = f.Name
		sizes[i] = f.Image.Bounds().Size()
	}
	info, err := Layout(names, sizes, columns, padding)
	if err != nil {
		return nil, SheetInfo{}, err
	}

	sheet := imaging.New(info.Width, info.Height, color.Transparent)
	for i, f := range frames {
		fr := info.Frames[i]
		src := imaging.Clone(f.Image)
		for y := 0; y < fr.Height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+fr.Width*4]
			copy(sheet.Pix[(fr.Y+y)*sheet.Stride+fr.X*4:], row)
		}
	}
	return sheet, info, nil
}

// Split cuts src into rows*cols equal cells in row-major order. Pixels that do
// not fill a whole cell on the right and bottom edges are dropped.
func Split(src image.Image, rows, cols int) ([]*image.NRGBA, error) {
	if rows <= 0 || cols <= 0 {
		return nil, apperr.Invalid("rows and cols must be positive, got %dx%d", rows, cols)
	}
	b := src.Bounds()
	cellW, cellH := b.Dx()/cols, b.Dy()/rows
	if cellW == 0 || cellH == 0 {
		return nil, apperr.Invalid("%dx%d image is too small for a %dx%d grid", b.Dx(), b.Dy(), rows, cols)
	}

	parts := make([]*image.NRGBA, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x := b.Min.X + c*cellW
			y := b.Min.Y + r*cellH
			parts = append(parts, imaging.Crop(src, image.Rect(x, y, x+cellW, y+cellH)))
		}
	}
	return parts, nil
}
