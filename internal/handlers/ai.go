package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"assetlib/internal/library"
	"assetlib/internal/logger"
)

type AIHandler struct {
	svc     *library.Service
	log     *logger.Logger
	timeout time.Duration
}

// NewAIHandler bounds every provider call by timeout; zero means no bound
// beyond the request's own context.
func NewAIHandler(svc *library.Service, log *logger.Logger, timeout time.Duration) *AIHandler {
	return &AIHandler{svc: svc, log: log, timeout: timeout}
}

func (h *AIHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *AIHandler) TagAsset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	res, err := h.svc.TagAsset(ctx, chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AIHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.AIConfig(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	cfg.APIKey = ""
	writeJSON(w, http.StatusOK, cfg)
}

func (h *AIHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var req library.AIConfigInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	cfg, err := h.svc.SaveAIConfig(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	cfg.APIKey = ""
	writeJSON(w, http.StatusOK, cfg)
}

func (h *AIHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req library.AIConfigInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	ok, err := h.svc.TestConnection(ctx, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}
