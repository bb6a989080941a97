package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"assetlib/internal/apperr"
	"assetlib/internal/folders"
	"assetlib/internal/identity"
	"assetlib/internal/models"
	"assetlib/internal/observability"
)

// ImportAssets copies the files at paths into folder of the library and
// indexes them. Paths that do not exist or are directories are skipped.
func (s *Service) ImportAssets(ctx context.Context, libraryID string, paths []string, folder string) ([]models.Asset, error) {
	lib, err := s.repo.GetLibrary(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	folder = folders.Normalize(folder)
	destDir := folders.Dir(lib.RootPath, folder)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, apperr.IO("create "+destDir, err)
	}

	imported := make([]models.Asset, 0, len(paths))
	for _, src := range paths {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		info, err := os.Stat(src)
		if err != nil || info.IsDir() {
			s.log.Debug("import skipped", "path", src)
			continue
		}

		a, err := s.importOne(ctx, lib, src, folder, destDir)
		if err != nil {
			return imported, fmt.Errorf("import %s: %w", src, err)
		}
		imported = append(imported, *a)
	}
	return imported, nil
}

func (s *Service) importOne(ctx context.Context, lib *models.Library, src, folder, destDir string) (*models.Asset, error) {
	ident, size, err := identity.IdentifyFile(src)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	name := id
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(src), ".")); ext != "" {
		name = id + "." + ext
	}
	dest := filepath.Join(destDir, name)
	if err := copyFile(src, dest); err != nil {
		return nil, err
	}

	base := filepath.Base(src)
	a := &models.Asset{
		ID:           id,
		LibraryID:    lib.ID,
		FileName:     base,
		OriginalName: base,
		RelativePath: path.Join(strings.TrimPrefix(folder, "/"), name),
		FileType:     ident.Category,
		MimeType:     ident.Mime,
		FileSize:     size,
		FileHash:     ident.Hash,
		FolderPath:   folder,
	}
	if ident.Category == models.FileTypeImage {
		if w, h, ok := identity.Dimensions(dest); ok {
			a.Width, a.Height = &w, &h
		}
		a.ThumbnailPath = s.thumbnail(lib, id, dest, nil)
	}

	if err := s.repo.InsertAsset(ctx, a); err != nil {
		os.Remove(dest)
		if a.ThumbnailPath != nil {
			os.Remove(absPath(lib, *a.ThumbnailPath))
		}
		return nil, err
	}

	observability.AssetsImported.WithLabelValues(a.FileType).Inc()
	s.log.Info("asset imported", "id", id, "file", base, "folder", folder)
	s.emitCreated(a)
	return a, nil
}

func (s *Service) emitCreated(a *models.Asset) {
	ev := models.AssetEvent{
		Type:      models.EventAssetCreated,
		LibraryID: a.LibraryID,
		AssetIDs:  []string{a.ID},
		FileName:  a.FileName,
	}
	if a.ThumbnailPath != nil {
		ev.ThumbnailURL = ThumbnailURL(a.ID)
	}
	s.emit(ev)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return apperr.IO("open "+src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return apperr.IO("create "+dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return apperr.IO("copy "+src, err)
	}
	if err := out.Close(); err != nil {
		return apperr.IO("close "+dst, err)
	}
	return nil
}

func (s *Service) ListAssets(ctx context.Context, q models.AssetQuery) (*models.AssetPage, error) {
	if _, err := s.repo.GetLibrary(ctx, q.LibraryID); err != nil {
		return nil, err
	}
	q.Page, q.PageSize = models.NormalizePaging(q.Page, q.PageSize)
	if q.FolderPath != "" {
		q.FolderPath = folders.Normalize(q.FolderPath)
	}
	assets, total, err := s.repo.ListAssets(ctx, q)
	if err != nil {
		return nil, err
	}
	return &models.AssetPage{Assets: assets, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

func (s *Service) GetAssetDetail(ctx context.Context, id string) (*models.AssetDetail, error) {
	a, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	tags, err := s.repo.AssetTags(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.AssetDetail{Asset: *a, Tags: tags}, nil
}

// RenameAsset changes the display name only; the file on disk keeps its id-based name.
func (s *Service) RenameAsset(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Invalid("asset name is empty")
	}
	return s.repo.RenameAsset(ctx, id, name)
}

func (s *Service) UpdateDescription(ctx context.Context, id, description string) error {
	return s.repo.UpdateDescription(ctx, id, description)
}

// DeleteAssets removes the rows first, then the files and thumbnails. File
// removal failures are logged only.
func (s *Service) DeleteAssets(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	assets, err := s.repo.GetAssets(ctx, ids)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteAssets(ctx, ids)
	if err != nil {
		return 0, err
	}

	libs := make(map[string]*models.Library)
	deleted := make(map[string][]string)
	for _, a := range assets {
		deleted[a.LibraryID] = append(deleted[a.LibraryID], a.ID)
		lib, ok := libs[a.LibraryID]
		if !ok {
			if lib, err = s.repo.GetLibrary(ctx, a.LibraryID); err != nil {
				s.log.Warn("delete files: library lookup failed", "library_id", a.LibraryID, "error", err)
				continue
			}
			libs[a.LibraryID] = lib
		}
		s.removeFile(absPath(lib, a.RelativePath))
		if a.ThumbnailPath != nil {
			s.removeFile(absPath(lib, *a.ThumbnailPath))
		}
	}

	for libID, assetIDs := range deleted {
		s.emit(models.AssetEvent{Type: models.EventAssetsDeleted, LibraryID: libID, AssetIDs: assetIDs})
	}
	s.log.Info("assets deleted", "count", n)
	return n, nil
}

func (s *Service) removeFile(p string) {
	if err := os.Remove(p); err != nil && !isNotExist(err) {
		s.log.Warn("remove file failed", "path", p, "error", err)
	}
}

// MoveAssets changes the virtual folder of assets. Files stay where they are.
func (s *Service) MoveAssets(ctx context.Context, ids []string, folder string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.MoveAssets(ctx, ids, folders.Normalize(folder))
}

// AssetFilePath resolves the absolute path of an asset's file.
func (s *Service) AssetFilePath(ctx context.Context, id string) (string, error) {
	a, lib, err := s.assetWithLibrary(ctx, id)
	if err != nil {
		return "", err
	}
	return absPath(lib, a.RelativePath), nil
}

// ThumbnailFilePath resolves the absolute path of an asset's thumbnail.
func (s *Service) ThumbnailFilePath(ctx context.Context, id string) (string, error) {
	a, lib, err := s.assetWithLibrary(ctx, id)
	if err != nil {
		return "", err
	}
	if a.ThumbnailPath == nil {
		return "", apperr.NotFound("asset %s has no thumbnail", id)
	}
	return absPath(lib, *a.ThumbnailPath), nil
}
