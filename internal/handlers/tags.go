package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetlib/internal/library"
	"assetlib/internal/logger"
)

type TagHandler struct {
	svc *library.Service
	log *logger.Logger
}

func NewTagHandler(svc *library.Service, log *logger.Logger) *TagHandler {
	return &TagHandler{svc: svc, log: log}
}

type createTagRequest struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Category string `json:"category"`
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	tag, err := h.svc.CreateTag(r.Context(), chi.URLParam(r, "libraryID"), req.Name, req.Color, req.Category)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context(), chi.URLParam(r, "libraryID"), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

type renameTagRequest struct {
	Name string `json:"name"`
}

func (h *TagHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.svc.RenameTag(r.Context(), chi.URLParam(r, "tagID"), req.Name); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTag(r.Context(), chi.URLParam(r, "tagID")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tagLinksRequest struct {
	AssetIDs []string `json:"asset_ids"`
	TagIDs   []string `json:"tag_ids"`
}

func (h *TagHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req tagLinksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.svc.AssignTags(r.Context(), req.AssetIDs, req.TagIDs); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req tagLinksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.svc.RemoveTags(r.Context(), req.AssetIDs, req.TagIDs); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) ForAsset(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.AssetTags(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}
