package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetlib/internal/apperr"
	"assetlib/internal/library"
	"assetlib/internal/logger"
	"assetlib/internal/processing"
)

type ProcessingHandler struct {
	svc *library.Service
	log *logger.Logger
}

func NewProcessingHandler(svc *library.Service, log *logger.Logger) *ProcessingHandler {
	return &ProcessingHandler{svc: svc, log: log}
}

type removeBackgroundRequest struct {
	Color struct {
		R uint8 `json:"r"`
		G uint8 `json:"g"`
		B uint8 `json:"b"`
	} `json:"color"`
	Tolerance uint8 `json:"tolerance"`
}

func (h *ProcessingHandler) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	var req removeBackgroundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	key := processing.RGB{R: req.Color.R, G: req.Color.G, B: req.Color.B}
	asset, err := h.svc.RemoveBackground(r.Context(), chi.URLParam(r, "assetID"), key, req.Tolerance)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

type compressRequest struct {
	MaxWidth  int    `json:"max_width"`
	MaxHeight int    `json:"max_height"`
	Quality   int    `json:"quality"`
	Format    string `json:"format"`
	Suffix    string `json:"suffix"`
}

func (h *ProcessingHandler) Compress(w http.ResponseWriter, r *http.Request) {
	req := compressRequest{Quality: 85, Format: "jpeg"}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := h.svc.CompressImage(r.Context(), library.CompressRequest{
		AssetID:   chi.URLParam(r, "assetID"),
		MaxWidth:  req.MaxWidth,
		MaxHeight: req.MaxHeight,
		Quality:   req.Quality,
		Format:    req.Format,
		Suffix:    req.Suffix,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type splitRequest struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

func (h *ProcessingHandler) Split(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	parts, err := h.svc.SplitImage(r.Context(), chi.URLParam(r, "assetID"), req.Rows, req.Cols)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"assets": parts})
}

type mergeRequest struct {
	AssetIDs         []string `json:"asset_ids"`
	Columns          int      `json:"columns"`
	Padding          int      `json:"padding"`
	OutputName       string   `json:"output_name"`
	DescriptorFormat string   `json:"descriptor_format"`
}

func (h *ProcessingHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.Columns < 0 {
		writeError(w, h.log, apperr.Invalid("columns must not be negative"))
		return
	}
	res, err := h.svc.MergeSpritesheet(r.Context(), library.MergeRequest{
		AssetIDs:         req.AssetIDs,
		Columns:          req.Columns,
		Padding:          req.Padding,
		OutputName:       req.OutputName,
		DescriptorFormat: req.DescriptorFormat,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
