package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetlib/internal/library"
	"assetlib/internal/logger"
)

type LibraryHandler struct {
	svc *library.Service
	log *logger.Logger
}

func NewLibraryHandler(svc *library.Service, log *logger.Logger) *LibraryHandler {
	return &LibraryHandler{svc: svc, log: log}
}

type createLibraryRequest struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
}

func (h *LibraryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLibraryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	lib, err := h.svc.CreateLibrary(r.Context(), req.Name, req.RootPath)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, lib)
}

func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	libs, err := h.svc.ListLibraries(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"libraries": libs, "total": len(libs)})
}

func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	lib, err := h.svc.GetLibrary(r.Context(), chi.URLParam(r, "libraryID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

func (h *LibraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteLibrary(r.Context(), chi.URLParam(r, "libraryID")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LibraryHandler) Folders(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListFolders(r.Context(), chi.URLParam(r, "libraryID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": list})
}

type createFolderRequest struct {
	Parent string `json:"parent"`
	Name   string `json:"name"`
}

func (h *LibraryHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	folder, err := h.svc.CreateFolder(r.Context(), chi.URLParam(r, "libraryID"), req.Parent, req.Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

type renameFolderRequest struct {
	Path    string `json:"path"`
	NewName string `json:"new_name"`
}

func (h *LibraryHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	var req renameFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	newPath, n, err := h.svc.RenameFolder(r.Context(), chi.URLParam(r, "libraryID"), req.Path, req.NewName)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": newPath, "updated": n})
}
