package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetlib/internal/library"
	"assetlib/internal/logger"
	"assetlib/internal/models"
)

type SearchHandler struct {
	svc *library.Service
	log *logger.Logger
}

func NewSearchHandler(svc *library.Service, log *logger.Logger) *SearchHandler {
	return &SearchHandler{svc: svc, log: log}
}

// Keyword handles GET ?q=&tags=a,b&type=&page=&page_size=.
func (h *SearchHandler) Keyword(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.SearchKeyword(r.Context(), models.KeywordQuery{
		LibraryID: chi.URLParam(r, "libraryID"),
		Query:     r.URL.Query().Get("q"),
		TagIDs:    queryList(r, "tags"),
		FileType:  r.URL.Query().Get("type"),
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "page_size", 50),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type byTagsRequest struct {
	TagIDs   []string `json:"tag_ids"`
	MatchAll bool     `json:"match_all"`
}

func (h *SearchHandler) ByTags(w http.ResponseWriter, r *http.Request) {
	var req byTagsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	assets, err := h.svc.SearchByTags(r.Context(), chi.URLParam(r, "libraryID"), req.TagIDs, req.MatchAll)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": assets, "total": len(assets)})
}

type semanticRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func (h *SearchHandler) Semantic(w http.ResponseWriter, r *http.Request) {
	var req semanticRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	hits, err := h.svc.SemanticSearch(r.Context(), chi.URLParam(r, "libraryID"), req.Query, req.K)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (h *SearchHandler) Related(w http.ResponseWriter, r *http.Request) {
	hits, err := h.svc.RelatedAssets(r.Context(), chi.URLParam(r, "assetID"), queryInt(r, "k", 0))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}
