package library

import (
	"context"
	"os"
	"path"
	"strings"

	"assetlib/internal/apperr"
	"assetlib/internal/folders"
	"assetlib/internal/models"
)

// ListFolders returns folders that hold assets together with directories
// that only exist on disk.
func (s *Service) ListFolders(ctx context.Context, libraryID string) ([]models.FolderInfo, error) {
	lib, err := s.repo.GetLibrary(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	indexed, err := s.repo.FolderCounts(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	scanned, err := folders.Scan(lib.RootPath)
	if err != nil {
		return nil, err
	}
	return folders.Merge(indexed, scanned), nil
}

func (s *Service) CreateFolder(ctx context.Context, libraryID, parent, name string) (*models.FolderInfo, error) {
	lib, err := s.repo.GetLibrary(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	if err := folders.ValidateName(name); err != nil {
		return nil, err
	}
	p := folders.Join(parent, strings.TrimSpace(name))
	dir := folders.Dir(lib.RootPath, p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.IO("create folder "+p, err)
	}
	return &models.FolderInfo{Path: p, Name: folders.Name(p)}, nil
}

// RenameFolder renames the directory on disk, then rewrites every asset row
// at or below it. A folder that only exists in the index is renamed in the
// index alone. Nothing is written to the store if the disk rename fails.
func (s *Service) RenameFolder(ctx context.Context, libraryID, folderPath, newName string) (string, int64, error) {
	lib, err := s.repo.GetLibrary(ctx, libraryID)
	if err != nil {
		return "", 0, err
	}
	oldPath := folders.Normalize(folderPath)
	if oldPath == folders.Root {
		return "", 0, apperr.Invalid("the library root cannot be renamed")
	}
	if err := folders.ValidateName(newName); err != nil {
		return "", 0, err
	}
	newPath := folders.Join(path.Dir(oldPath), strings.TrimSpace(newName))
	if newPath == oldPath {
		return newPath, 0, nil
	}

	oldDir, newDir := folders.Dir(lib.RootPath, oldPath), folders.Dir(lib.RootPath, newPath)
	if _, err := os.Stat(newDir); err == nil {
		return "", 0, apperr.Invalid("folder %s already exists", newPath)
	}
	switch _, err := os.Stat(oldDir); {
	case err == nil:
		if err := os.Rename(oldDir, newDir); err != nil {
			return "", 0, apperr.IO("rename folder "+oldPath, err)
		}
	case isNotExist(err):
		s.log.Debug("folder has no directory, renaming index only", "path", oldPath)
	default:
		return "", 0, apperr.IO("stat folder "+oldPath, err)
	}

	n, err := s.repo.RenameFolderPrefix(ctx, libraryID, oldPath, newPath)
	if err != nil {
		return "", 0, err
	}
	s.log.Info("folder renamed", "from", oldPath, "to", newPath, "assets", n)
	return newPath, n, nil
}
