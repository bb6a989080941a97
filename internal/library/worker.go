package library

import (
	"context"
	"fmt"
	"sync"

	"assetlib/internal/logger"
	"assetlib/internal/models"
	"assetlib/internal/observability"
	"assetlib/internal/processing"
)

type ThumbnailJob struct {
	AssetID    string
	LibraryID  string
	Root       string
	SourcePath string
	FileName   string
}

type OnThumbnail func(job ThumbnailJob, relPath string)

type thumbnailStore interface {
	SetThumbnail(ctx context.Context, id, relPath string) error
}

// ThumbnailWorker renders missing thumbnails on a fixed number of goroutines.
type ThumbnailWorker struct {
	jobs       chan ThumbnailJob
	wg         sync.WaitGroup
	store      thumbnailStore
	log        *logger.Logger
	maxWorkers int
	onComplete OnThumbnail

	// mu guards closed and sends on jobs.
	mu     sync.Mutex
	closed bool
}

func NewThumbnailWorker(store thumbnailStore, maxWorkers, queueSize int, log *logger.Logger, onComplete OnThumbnail) *ThumbnailWorker {
	w := &ThumbnailWorker{
		jobs:       make(chan ThumbnailJob, queueSize),
		store:      store,
		log:        log,
		maxWorkers: maxWorkers,
		onComplete: onComplete,
	}
	w.startWorkers()
	return w
}

func (w *ThumbnailWorker) startWorkers() {
	for i := 0; i < w.maxWorkers; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}
}

func (w *ThumbnailWorker) worker(id int) {
	defer w.wg.Done()

	for job := range w.jobs {
		observability.ThumbnailQueueDepth.Dec()
		rel, err := w.process(job)
		if err != nil {
			w.log.Warn("thumbnail backfill failed", "worker", id, "asset_id", job.AssetID, "error", err)
			observability.ThumbnailFailures.Inc()
			continue
		}
		w.log.Debug("thumbnail backfilled", "worker", id, "asset_id", job.AssetID)
		if w.onComplete != nil {
			w.onComplete(job, rel)
		}
	}
}

func (w *ThumbnailWorker) process(job ThumbnailJob) (string, error) {
	rel, err := processing.WriteThumbnail(job.Root, job.AssetID, job.SourcePath)
	if err != nil {
		return "", fmt.Errorf("thumbnail: %w", err)
	}
	if err := w.store.SetThumbnail(context.Background(), job.AssetID, rel); err != nil {
		return "", fmt.Errorf("db update: %w", err)
	}
	return rel, nil
}

// Queue enqueues job without blocking. It reports false when the queue is
// full or the worker has been shut down.
func (w *ThumbnailWorker) Queue(job ThumbnailJob) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.log.Debug("thumbnail worker stopped, skipping", "asset_id", job.AssetID)
		return false
	}
	select {
	case w.jobs <- job:
		observability.ThumbnailQueueDepth.Inc()
		return true
	default:
		w.log.Warn("thumbnail queue full, skipping", "asset_id", job.AssetID)
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (w *ThumbnailWorker) Shutdown() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// backfillBatch bounds how many assets one BackfillThumbnails call looks at.
const backfillBatch = 1000

// BackfillThumbnails queues every image asset that has no thumbnail yet and
// returns how many were queued.
func (s *Service) BackfillThumbnails(ctx context.Context) (int, error) {
	assets, err := s.repo.AssetsMissingThumbnail(ctx, backfillBatch)
	if err != nil {
		return 0, fmt.Errorf("list missing thumbnails: %w", err)
	}

	libs := make(map[string]*models.Library)
	queued := 0
	for _, a := range assets {
		lib, ok := libs[a.LibraryID]
		if !ok {
			lib, err = s.repo.GetLibrary(ctx, a.LibraryID)
			if err != nil {
				return queued, err
			}
			libs[a.LibraryID] = lib
		}
		if s.thumbs.Queue(ThumbnailJob{
			AssetID:    a.ID,
			LibraryID:  a.LibraryID,
			Root:       lib.RootPath,
			SourcePath: absPath(lib, a.RelativePath),
			FileName:   a.FileName,
		}) {
			queued++
		}
	}
	if queued > 0 {
		s.log.Info("thumbnail backfill queued", "count", queued)
	}
	return queued, nil
}
