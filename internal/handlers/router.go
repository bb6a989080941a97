package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assetlib/internal/library"
	"assetlib/internal/logger"
	mw "assetlib/internal/middleware"
	"assetlib/internal/ws"
)

type RouterConfig struct {
	Service   *library.Service
	Hub       *ws.Hub
	Log       *logger.Logger
	AITimeout time.Duration
	// Ping reports store health for /readyz. Nil means always ready.
	Ping func(r *http.Request) error
}

func NewRouter(cfg RouterConfig) http.Handler {
	libH := NewLibraryHandler(cfg.Service, cfg.Log)
	assetH := NewAssetHandler(cfg.Service, cfg.Log)
	uploadH := NewUploadHandler(cfg.Service, cfg.Log)
	fileH := NewFileHandler(cfg.Service, cfg.Log)
	tagH := NewTagHandler(cfg.Service, cfg.Log)
	searchH := NewSearchHandler(cfg.Service, cfg.Log)
	aiH := NewAIHandler(cfg.Service, cfg.Log, cfg.AITimeout)
	procH := NewProcessingHandler(cfg.Service, cfg.Log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mw.Metrics(cfg.Log))
	r.Use(mw.CorsMiddleware)

	// System endpoints
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ping != nil {
			if err := cfg.Ping(r); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Static files
	r.Get("/files/{libraryID}/*", fileH.Static)

	r.Route("/api", func(r chi.Router) {
		r.Route("/libraries", func(r chi.Router) {
			r.Post("/", libH.Create)
			r.Get("/", libH.List)
			r.Route("/{libraryID}", func(r chi.Router) {
				r.Get("/", libH.Get)
				r.Delete("/", libH.Delete)

				r.Get("/assets", assetH.List)
				r.Post("/import", assetH.Import)
				r.Post("/upload", uploadH.Upload)

				r.Get("/folders", libH.Folders)
				r.Post("/folders", libH.CreateFolder)
				r.Post("/folders/rename", libH.RenameFolder)

				r.Get("/tags", tagH.List)
				r.Post("/tags", tagH.Create)

				r.Get("/search", searchH.Keyword)
				r.Post("/search/tags", searchH.ByTags)
				r.Post("/search/semantic", searchH.Semantic)
			})
		})

		r.Route("/assets", func(r chi.Router) {
			r.Post("/delete", assetH.Delete)
			r.Post("/move", assetH.Move)
			r.Post("/tags", tagH.Assign)
			r.Post("/tags/remove", tagH.Remove)

			r.Route("/{assetID}", func(r chi.Router) {
				r.Get("/", assetH.Get)
				r.Patch("/", assetH.Update)
				r.Get("/file", fileH.Asset)
				r.Get("/thumbnail", fileH.Thumbnail)
				r.Get("/tags", tagH.ForAsset)
				r.Get("/related", searchH.Related)
				r.Post("/ai-tag", aiH.TagAsset)
				r.Post("/remove-background", procH.RemoveBackground)
				r.Post("/compress", procH.Compress)
				r.Post("/split", procH.Split)
			})
		})

		r.Post("/spritesheets", procH.Merge)

		r.Route("/tags/{tagID}", func(r chi.Router) {
			r.Patch("/", tagH.Rename)
			r.Delete("/", tagH.Delete)
		})

		r.Get("/ai/config", aiH.GetConfig)
		r.Put("/ai/config", aiH.SaveConfig)
		r.Post("/ai/test", aiH.TestConnection)
	})

	// WebSocket
	if cfg.Hub != nil {
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			ws.HandleWebSocket(cfg.Hub, w, r)
		})
	}

	return r
}
