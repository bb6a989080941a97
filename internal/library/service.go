// Package library orchestrates a media library: it keeps the files under a
// library root and their rows in the Repository consistent, and produces
// derived assets from existing ones.
package library

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"assetlib/internal/ai"
	"assetlib/internal/apperr"
	"assetlib/internal/logger"
	"assetlib/internal/models"
	"assetlib/internal/observability"
	"assetlib/internal/processing"
)

// DerivedDir is the library-relative directory that holds generated assets.
const DerivedDir = "assets"

// ProviderFactory builds a provider from a persisted AI configuration.
type ProviderFactory func(cfg models.AIConfig) (ai.Provider, error)

type Options struct {
	ThumbnailWorkers int
	QueueSize        int
	SplitConcurrency int
	NewProvider      ProviderFactory
	OnEvent          func(models.AssetEvent)
}

type Service struct {
	repo             Repository
	ai               *ai.Manager
	log              *logger.Logger
	newProvider      ProviderFactory
	onEvent          func(models.AssetEvent)
	splitConcurrency int
	thumbs           *ThumbnailWorker
}

func NewService(repo Repository, manager *ai.Manager, log *logger.Logger, opts Options) *Service {
	if opts.SplitConcurrency <= 0 {
		opts.SplitConcurrency = 4
	}
	if opts.ThumbnailWorkers <= 0 {
		opts.ThumbnailWorkers = 3
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	s := &Service{
		repo:             repo,
		ai:               manager,
		log:              log,
		newProvider:      opts.NewProvider,
		onEvent:          opts.OnEvent,
		splitConcurrency: opts.SplitConcurrency,
	}
	s.thumbs = NewThumbnailWorker(repo, opts.ThumbnailWorkers, opts.QueueSize, log, s.thumbnailReady)
	return s
}

// Close drains the thumbnail queue.
func (s *Service) Close() {
	s.thumbs.Shutdown()
}

func (s *Service) emit(ev models.AssetEvent) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

func (s *Service) thumbnailReady(job ThumbnailJob, relPath string) {
	s.emit(models.AssetEvent{
		Type:         models.EventThumbnailReady,
		LibraryID:    job.LibraryID,
		AssetIDs:     []string{job.AssetID},
		FileName:     job.FileName,
		ThumbnailURL: ThumbnailURL(job.AssetID),
	})
}

// ThumbnailURL is the HTTP path serving an asset's thumbnail.
func ThumbnailURL(assetID string) string {
	return "/api/assets/" + assetID + "/thumbnail"
}

// --- Libraries ---

func (s *Service) CreateLibrary(ctx context.Context, name, root string) (*models.Library, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("library name is empty")
	}
	if strings.TrimSpace(root) == "" {
		return nil, apperr.Invalid("library root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperr.Invalid("library root %q: %v", root, err)
	}

	for _, dir := range []string{abs, filepath.Join(abs, DerivedDir), filepath.Join(abs, processing.ThumbnailDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.IO("create "+dir, err)
		}
	}

	lib := &models.Library{ID: uuid.NewString(), Name: name, RootPath: abs}
	if err := s.repo.CreateLibrary(ctx, lib); err != nil {
		return nil, fmt.Errorf("create library: %w", err)
	}
	s.log.Info("library created", "id", lib.ID, "root", abs)
	return lib, nil
}

func (s *Service) ListLibraries(ctx context.Context) ([]models.Library, error) {
	return s.repo.ListLibraries(ctx)
}

func (s *Service) GetLibrary(ctx context.Context, id string) (*models.Library, error) {
	return s.repo.GetLibrary(ctx, id)
}

// DeleteLibrary removes the library rows. Files under the root are left alone.
func (s *Service) DeleteLibrary(ctx context.Context, id string) error {
	if err := s.repo.DeleteLibrary(ctx, id); err != nil {
		return err
	}
	s.log.Info("library deleted", "id", id)
	return nil
}

// assetWithLibrary loads an asset together with the library it belongs to.
func (s *Service) assetWithLibrary(ctx context.Context, assetID string) (*models.Asset, *models.Library, error) {
	a, err := s.repo.GetAsset(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	lib, err := s.repo.GetLibrary(ctx, a.LibraryID)
	if err != nil {
		return nil, nil, err
	}
	return a, lib, nil
}

func absPath(lib *models.Library, rel string) string {
	return filepath.Join(lib.RootPath, filepath.FromSlash(rel))
}

// thumbnail renders a thumbnail for an image asset, from img when it is
// already decoded or else from the file at src. Failure is logged and yields nil.
func (s *Service) thumbnail(lib *models.Library, assetID, src string, img image.Image) *string {
	var (
		rel string
		err error
	)
	if img != nil {
		rel, err = processing.WriteThumbnailImage(lib.RootPath, assetID, img)
	} else {
		rel, err = processing.WriteThumbnail(lib.RootPath, assetID, src)
	}
	if err != nil {
		s.log.Warn("thumbnail failed", "asset_id", assetID, "error", err)
		observability.ThumbnailFailures.Inc()
		return nil
	}
	return &rel
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
