package library

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"assetlib/internal/apperr"
	"assetlib/internal/models"
)

const DefaultTagColor = "#808080"

func (s *Service) CreateTag(ctx context.Context, libraryID, name, color, category string) (*models.Tag, error) {
	if _, err := s.repo.GetLibrary(ctx, libraryID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("tag name is empty")
	}
	if color == "" {
		color = DefaultTagColor
	}
	t := &models.Tag{
		ID:        uuid.NewString(),
		LibraryID: libraryID,
		Name:      name,
		Color:     color,
		Category:  strings.TrimSpace(category),
	}
	if err := s.repo.CreateTag(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTags returns the tags of a library with usage counts, optionally
// restricted to one category.
func (s *Service) ListTags(ctx context.Context, libraryID, category string) ([]models.TagWithCount, error) {
	return s.repo.ListTags(ctx, libraryID, category)
}

func (s *Service) RenameTag(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Invalid("tag name is empty")
	}
	return s.repo.RenameTag(ctx, id, name)
}

func (s *Service) DeleteTag(ctx context.Context, id string) error {
	return s.repo.DeleteTag(ctx, id)
}

// AssignTags links every asset to every tag with confidence 1.0. Existing
// links are kept.
func (s *Service) AssignTags(ctx context.Context, assetIDs, tagIDs []string) error {
	links := make([]models.AssetTag, 0, len(assetIDs)*len(tagIDs))
	for _, a := range assetIDs {
		for _, t := range tagIDs {
			links = append(links, models.AssetTag{AssetID: a, TagID: t, Confidence: 1.0})
		}
	}
	if len(links) == 0 {
		return nil
	}
	return s.repo.AssignTags(ctx, links)
}

func (s *Service) RemoveTags(ctx context.Context, assetIDs, tagIDs []string) error {
	if len(assetIDs) == 0 || len(tagIDs) == 0 {
		return nil
	}
	return s.repo.RemoveTags(ctx, assetIDs, tagIDs)
}

func (s *Service) AssetTags(ctx context.Context, assetID string) ([]models.Tag, error) {
	if _, err := s.repo.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	return s.repo.AssetTags(ctx, assetID)
}
