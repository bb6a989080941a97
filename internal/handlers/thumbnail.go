package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"assetlib/internal/library"
	"assetlib/internal/logger"
)

// FileHandler serves asset files straight from the library roots.
type FileHandler struct {
	svc *library.Service
	log *logger.Logger
}

func NewFileHandler(svc *library.Service, log *logger.Logger) *FileHandler {
	return &FileHandler{svc: svc, log: log}
}

func (h *FileHandler) Asset(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.AssetFilePath(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	http.ServeFile(w, r, p)
}

func (h *FileHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.ThumbnailFilePath(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, p)
}

// Static serves /files/{libraryID}/* from that library's root directory.
func (h *FileHandler) Static(w http.ResponseWriter, r *http.Request) {
	libraryID := chi.URLParam(r, "libraryID")
	lib, err := h.svc.GetLibrary(r.Context(), libraryID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	prefix := strings.TrimSuffix(r.URL.Path, chi.URLParam(r, "*"))
	http.StripPrefix(prefix, http.FileServer(http.Dir(lib.RootPath))).ServeHTTP(w, r)
}
