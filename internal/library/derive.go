package library

import (
	"context"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"assetlib/internal/apperr"
	"assetlib/internal/folders"
	"assetlib/internal/identity"
	"assetlib/internal/models"
	"assetlib/internal/observability"
	"assetlib/internal/processing"
)

// derived is one generated file about to become an asset.
type derived struct {
	relDir        string // library-relative directory, "/"-separated
	fileName      string
	originalName  string
	description   string
	aiDescription string
	folder        string
	ext           string
	mime          string
	data          []byte
	width, height int
	image         image.Image // decoded output, for the thumbnail
}

// register writes d under the library root and inserts its row. Files written
// here are removed again if the insert fails.
func (s *Service) register(ctx context.Context, lib *models.Library, generator string, d derived) (*models.Asset, error) {
	id := uuid.NewString()
	rel := path.Join(d.relDir, id+"."+d.ext)
	abs := absPath(lib, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, apperr.IO("create "+d.relDir, err)
	}
	if err := os.WriteFile(abs, d.data, 0o644); err != nil {
		return nil, apperr.IO("write "+rel, err)
	}

	ident := identity.Identify(d.data, d.ext)
	w, h := d.width, d.height
	originalName := d.originalName
	if originalName == "" {
		originalName = d.fileName
	}
	a := &models.Asset{
		ID:            id,
		LibraryID:     lib.ID,
		FileName:      d.fileName,
		OriginalName:  originalName,
		RelativePath:  rel,
		FileType:      models.FileTypeImage,
		MimeType:      d.mime,
		FileSize:      int64(len(d.data)),
		FileHash:      ident.Hash,
		Width:         &w,
		Height:        &h,
		Description:   d.description,
		AIDescription: d.aiDescription,
		FolderPath:    d.folder,
	}
	a.ThumbnailPath = s.thumbnail(lib, id, abs, d.image)

	if err := s.repo.InsertAsset(ctx, a); err != nil {
		os.Remove(abs)
		if a.ThumbnailPath != nil {
			os.Remove(absPath(lib, *a.ThumbnailPath))
		}
		return nil, err
	}
	observability.DerivedAssets.WithLabelValues(generator).Inc()
	s.emitCreated(a)
	return a, nil
}

// openImage decodes the file of an image asset.
func openImage(lib *models.Library, a *models.Asset) (image.Image, error) {
	if a.FileType != models.FileTypeImage {
		return nil, apperr.Invalid("asset %s is %s, not an image", a.ID, a.FileType)
	}
	p := absPath(lib, a.RelativePath)
	if _, err := os.Stat(p); err != nil {
		if isNotExist(err) {
			return nil, apperr.NotFound("file of asset %s", a.ID)
		}
		return nil, apperr.IO("stat "+a.RelativePath, err)
	}
	return processing.Open(p)
}

func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func observeGenerator(generator string, start time.Time) {
	observability.GeneratorDuration.WithLabelValues(generator).Observe(time.Since(start).Seconds())
}

// RemoveBackground keys out every pixel within tolerance of color and stores
// the result as a new PNG asset in the source's folder.
func (s *Service) RemoveBackground(ctx context.Context, assetID string, color processing.RGB, tolerance uint8) (*models.Asset, error) {
	defer observeGenerator("matte", time.Now())

	a, lib, err := s.assetWithLibrary(ctx, assetID)
	if err != nil {
		return nil, err
	}
	src, err := openImage(lib, a)
	if err != nil {
		return nil, err
	}
	out := processing.ColorKey(src, color, tolerance)
	data, err := processing.EncodePNG(out)
	if err != nil {
		return nil, err
	}

	b := out.Bounds()
	return s.register(ctx, lib, "matte", derived{
		relDir:       DerivedDir,
		fileName:     baseName(a.FileName) + "_nobg.png",
		originalName: a.OriginalName,
		description:  "Background removed from " + a.FileName,
		folder:       a.FolderPath,
		ext:          "png",
		mime:         "image/png",
		data:         data,
		width:        b.Dx(),
		height:       b.Dy(),
		image:        out,
	})
}

type CompressRequest struct {
	AssetID   string
	MaxWidth  int
	MaxHeight int
	Quality   int
	Format    string
	Suffix    string
}

type CompressOutcome struct {
	Asset          *models.Asset `json:"asset"`
	OriginalSize   int64         `json:"original_size"`
	CompressedSize int64         `json:"compressed_size"`
	Ratio          float64       `json:"compression_ratio"`
}

// CompressImage re-encodes an image, shrinking it to fit the bounds. The copy
// lands next to the source (or in the derived directory for root-level
// assets) and inherits its descriptions and tags.
func (s *Service) CompressImage(ctx context.Context, req CompressRequest) (*CompressOutcome, error) {
	defer observeGenerator("compress", time.Now())

	a, lib, err := s.assetWithLibrary(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}
	src, err := openImage(lib, a)
	if err != nil {
		return nil, err
	}
	res, err := processing.Compress(src, a.FileSize, processing.CompressOptions{
		MaxWidth:  req.MaxWidth,
		MaxHeight: req.MaxHeight,
		Quality:   req.Quality,
		Format:    req.Format,
	})
	if err != nil {
		return nil, err
	}

	relDir := strings.TrimPrefix(folders.Normalize(a.FolderPath), "/")
	if relDir == "" {
		relDir = DerivedDir
	}
	suffix := req.Suffix
	if suffix == "" {
		suffix = "_compressed"
	}
	out, err := s.register(ctx, lib, "compress", derived{
		relDir:        relDir,
		fileName:      baseName(a.FileName) + suffix + "." + res.Ext,
		originalName:  a.OriginalName,
		description:   a.Description,
		aiDescription: a.AIDescription,
		folder:        a.FolderPath,
		ext:           res.Ext,
		mime:          res.Mime,
		data:          res.Data,
		width:         res.Width,
		height:        res.Height,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.CopyTags(ctx, a.ID, out.ID); err != nil {
		return nil, fmt.Errorf("copy tags: %w", err)
	}
	return &CompressOutcome{
		Asset:          out,
		OriginalSize:   res.OriginalSize,
		CompressedSize: res.CompressedSize,
		Ratio:          res.Ratio,
	}, nil
}

type MergeRequest struct {
	AssetIDs         []string
	Columns          int
	Padding          int
	OutputName       string
	DescriptorFormat string
}

type SpritesheetOutcome struct {
	Asset          *models.Asset `json:"asset"`
	Descriptor     string        `json:"descriptor"`
	DescriptorPath string        `json:"descriptor_path"`
}

// MergeSpritesheet packs images into one sheet, in the given order, and
// writes a frame descriptor next to it.
func (s *Service) MergeSpritesheet(ctx context.Context, req MergeRequest) (*SpritesheetOutcome, error) {
	defer observeGenerator("spritesheet", time.Now())

	if len(req.AssetIDs) == 0 {
		return nil, apperr.Invalid("no assets to merge")
	}
	if req.Padding < 0 {
		return nil, apperr.Invalid("padding must not be negative")
	}
	name := strings.TrimSpace(req.OutputName)
	if name == "" {
		name = "spritesheet"
	}
	if err := folders.ValidateName(name); err != nil {
		return nil, apperr.Invalid("output name %q is not a valid file name", req.OutputName)
	}

	assets := make([]*models.Asset, len(req.AssetIDs))
	for i, id := range req.AssetIDs {
		a, err := s.repo.GetAsset(ctx, id)
		if err != nil {
			return nil, err
		}
		if i > 0 && a.LibraryID != assets[0].LibraryID {
			return nil, apperr.Invalid("assets belong to different libraries")
		}
		assets[i] = a
	}
	lib, err := s.repo.GetLibrary(ctx, assets[0].LibraryID)
	if err != nil {
		return nil, err
	}

	frames := make([]processing.NamedImage, len(assets))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.splitConcurrency)
	for i, a := range assets {
		i, a := i, a
		g.Go(func() error {
			img, err := openImage(lib, a)
			if err != nil {
				return err
			}
			frames[i] = processing.NamedImage{Name: a.FileName, Image: img}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sheet, info, err := processing.Pack(frames, req.Columns, req.Padding)
	if err != nil {
		return nil, err
	}
	data, err := processing.EncodePNG(sheet)
	if err != nil {
		return nil, err
	}
	sheetName := name + ".png"
	descriptor, err := processing.ExportDescriptor(req.DescriptorFormat, info, sheetName)
	if err != nil {
		return nil, err
	}

	descRel := path.Join(DerivedDir, name+"."+processing.DescriptorExt(req.DescriptorFormat))
	descAbs := absPath(lib, descRel)
	if err := os.MkdirAll(filepath.Dir(descAbs), 0o755); err != nil {
		return nil, apperr.IO("create "+DerivedDir, err)
	}
	if err := os.WriteFile(descAbs, []byte(descriptor), 0o644); err != nil {
		return nil, apperr.IO("write "+descRel, err)
	}

	out, err := s.register(ctx, lib, "spritesheet", derived{
		relDir:      DerivedDir,
		fileName:    sheetName,
		description: fmt.Sprintf("Sprite sheet with %d frames", len(frames)),
		folder:      assets[0].FolderPath,
		ext:         "png",
		mime:        "image/png",
		data:        data,
		width:       info.Width,
		height:      info.Height,
		image:       sheet,
	})
	if err != nil {
		os.Remove(descAbs)
		return nil, err
	}
	return &SpritesheetOutcome{Asset: out, Descriptor: descriptor, DescriptorPath: descRel}, nil
}

// SplitImage cuts an image into rows*cols parts and registers them in
// row-major order. Parts are encoded concurrently. If registering a part
// fails, the parts already registered stay in the library and are returned
// together with the error.
func (s *Service) SplitImage(ctx context.Context, assetID string, rows, cols int) ([]models.Asset, error) {
	defer observeGenerator("split", time.Now())

	a, lib, err := s.assetWithLibrary(ctx, assetID)
	if err != nil {
		return nil, err
	}
	src, err := openImage(lib, a)
	if err != nil {
		return nil, err
	}
	parts, err := processing.Split(src, rows, cols)
	if err != nil {
		return nil, err
	}

	encoded := make([][]byte, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.splitConcurrency)
	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := processing.EncodePNG(part)
			if err != nil {
				return fmt.Errorf("encode part %d: %w", i, err)
			}
			encoded[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	base := baseName(a.FileName)
	out := make([]models.Asset, 0, len(parts))
	for i, part := range parts {
		b := part.Bounds()
		created, err := s.register(ctx, lib, "split", derived{
			relDir:       DerivedDir,
			fileName:     fmt.Sprintf("%s_%d.png", base, i),
			originalName: a.OriginalName,
			description:  fmt.Sprintf("Split from %s (part %d)", a.FileName, i+1),
			folder:       a.FolderPath,
			ext:          "png",
			mime:         "image/png",
			data:         encoded[i],
			width:        b.Dx(),
			height:       b.Dy(),
			image:        part,
		})
		if err != nil {
			return out, err
		}
		out = append(out, *created)
	}
	return out, nil
}
