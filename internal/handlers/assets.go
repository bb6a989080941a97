package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetlib/internal/apperr"
	"assetlib/internal/library"
	"assetlib/internal/logger"
	"assetlib/internal/models"
)

type AssetHandler struct {
	svc *library.Service
	log *logger.Logger
}

func NewAssetHandler(svc *library.Service, log *logger.Logger) *AssetHandler {
	return &AssetHandler{svc: svc, log: log}
}

type importRequest struct {
	Paths  []string `json:"paths"`
	Folder string   `json:"folder"`
}

// Import indexes files that already exist on the server's filesystem.
func (h *AssetHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	assets, err := h.svc.ImportAssets(r.Context(), chi.URLParam(r, "libraryID"), req.Paths, req.Folder)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"assets": assets, "imported": len(assets)})
}

func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.ListAssets(r.Context(), models.AssetQuery{
		LibraryID:  chi.URLParam(r, "libraryID"),
		FolderPath: q.Get("folder"),
		FileType:   q.Get("type"),
		Page:       queryInt(r, "page", 1),
		PageSize:   queryInt(r, "page_size", 50),
		SortBy:     q.Get("sort"),
		SortOrder:  q.Get("order"),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetAssetDetail(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type updateAssetRequest struct {
	FileName    *string `json:"file_name"`
	Description *string `json:"description"`
}

func (h *AssetHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateAssetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.FileName == nil && req.Description == nil {
		writeError(w, h.log, apperr.Invalid("nothing to update"))
		return
	}

	ctx, id := r.Context(), chi.URLParam(r, "assetID")
	if req.FileName != nil {
		if err := h.svc.RenameAsset(ctx, id, *req.FileName); err != nil {
			writeError(w, h.log, err)
			return
		}
	}
	if req.Description != nil {
		if err := h.svc.UpdateDescription(ctx, id, *req.Description); err != nil {
			writeError(w, h.log, err)
			return
		}
	}
	detail, err := h.svc.GetAssetDetail(ctx, id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type idsRequest struct {
	IDs    []string `json:"ids"`
	Folder string   `json:"folder,omitempty"`
}

func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	n, err := h.svc.DeleteAssets(r.Context(), req.IDs)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (h *AssetHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	n, err := h.svc.MoveAssets(r.Context(), req.IDs, req.Folder)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": n})
}
