package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"assetlib/internal/apperr"
	"assetlib/internal/library"
	"assetlib/internal/logger"
)

const maxUploadSize = 512 << 20

type UploadHandler struct {
	svc *library.Service
	log *logger.Logger
}

func NewUploadHandler(svc *library.Service, log *logger.Logger) *UploadHandler {
	return &UploadHandler{svc: svc, log: log}
}

// Upload imports the files of a multipart form ("files" fields, optional
// "folder") into a library. Parts are spooled to a scratch directory first
// so the import path is the same as for server-side files.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, h.log, apperr.Invalid("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, h.log, apperr.Invalid("at least one file is required"))
		return
	}

	scratch, err := os.MkdirTemp("", "assetlib-upload-*")
	if err != nil {
		writeError(w, h.log, apperr.IO("create upload dir", err))
		return
	}
	defer os.RemoveAll(scratch)

	paths := make([]string, 0, len(files))
	for i, fh := range files {
		p, err := spool(scratch, i, fh)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		paths = append(paths, p)
	}

	assets, err := h.svc.ImportAssets(r.Context(), chi.URLParam(r, "libraryID"), paths, r.FormValue("folder"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"assets": assets, "imported": len(assets)})
}

// spool copies one uploaded part to its own subdirectory of dir, keeping its
// base name so the import records it as the original file name.
func spool(dir string, i int, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", apperr.IO("open upload "+fh.Filename, err)
	}
	defer src.Close()

	sub := filepath.Join(dir, strconv.Itoa(i))
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return "", apperr.IO("create upload dir", err)
	}
	name := filepath.Base(filepath.Clean("/" + fh.Filename))
	if name == "/" || name == "." {
		name = "upload"
	}
	p := filepath.Join(sub, name)
	dst, err := os.Create(p)
	if err != nil {
		return "", apperr.IO("create "+name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", apperr.IO("save "+name, err)
	}
	if err := dst.Close(); err != nil {
		return "", apperr.IO("save "+name, err)
	}
	return p, nil
}
