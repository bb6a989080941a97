// Package folders reconciles the virtual folder_path index with the folders
// that actually exist under a library root.
package folders

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"assetlib/internal/apperr"
	"assetlib/internal/models"
)

// Root is the folder path of the library root itself.
const Root = "/"

// Normalize converts p to the "/"-rooted form used in folder_path.
func Normalize(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return Root
	}
	p = path.Clean("/" + p)
	return p
}

// Name is the display name of a folder: its last segment, or "/" for the root.
func Name(p string) string {
	p = Normalize(p)
	if p == Root {
		return Root
	}
	return path.Base(p)
}

// Join appends a child segment to a normalized parent path.
func Join(parent, name string) string {
	return Normalize(path.Join(Normalize(parent), name))
}

// Dir returns the on-disk directory of folder p under root.
func Dir(root, p string) string {
	rel := strings.TrimPrefix(Normalize(p), "/")
	if rel == "" {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(rel))
}

// ValidateName rejects names that cannot be a single folder segment.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return apperr.Invalid("folder name is empty")
	case trimmed == "." || trimmed == "..":
		return apperr.Invalid("folder name %q is reserved", name)
	case strings.HasPrefix(trimmed, "."):
		return apperr.Invalid("folder name %q must not start with a dot", name)
	case strings.ContainsAny(trimmed, "/\\:*?\"<>|"):
		return apperr.Invalid("folder name %q contains invalid characters", name)
	}
	return nil
}

// Scan walks root and returns every directory below it in normalized form.
// Entries whose name starts with "." are skipped along with their subtree.
// The root itself is not reported.
func Scan(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, Normalize(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, apperr.IO("scan "+root, err)
	}
	return out, nil
}

// Merge unions folders known from asset rows with folders found on disk.
// Disk-only folders get a zero count. The result is deduplicated by path and
// sorted lexicographically.
func Merge(indexed []models.FolderInfo, scanned []string) []models.FolderInfo {
	byPath := make(map[string]*models.FolderInfo, len(indexed)+len(scanned))
	for _, f := range indexed {
		p := Normalize(f.Path)
		if existing, ok := byPath[p]; ok {
			existing.AssetCount += f.AssetCount
			continue
		}
		byPath[p] = &models.FolderInfo{Path: p, Name: Name(p), AssetCount: f.AssetCount}
	}
	for _, s := range scanned {
		p := Normalize(s)
		if _, ok := byPath[p]; ok {
			continue
		}
		byPath[p] = &models.FolderInfo{Path: p, Name: Name(p)}
	}

	out := make([]models.FolderInfo, 0, len(byPath))
	for _, f := range byPath {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Rebase rewrites p from under oldPrefix to under newPrefix. ok is false when
// p is not oldPrefix or one of its descendants.
func Rebase(p, oldPrefix, newPrefix string) (string, bool) {
	p, oldPrefix, newPrefix = Normalize(p), Normalize(oldPrefix), Normalize(newPrefix)
	if p == oldPrefix {
		return newPrefix, true
	}
	if strings.HasPrefix(p, oldPrefix+"/") {
		return newPrefix + strings.TrimPrefix(p, oldPrefix), true
	}
	return p, false
}
