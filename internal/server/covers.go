package server

import (
	"net/http"

	"github.com/charmbracelet/log"
)

// coverHandler serves cached cover thumbnails under both the public and the API path.
type coverHandler struct {
	src    CoverSource
	logger *log.Logger
}

func (h *coverHandler) Routes() []string {
	return []string{
		"GET /covers/{isbn}",
		"GET /api/books/{isbn}/cover",
	}
}

func (h *coverHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.src == nil {
		writeError(w, r, http.StatusNotFound, "covers disabled")
		return
	}

	path, err := h.src.Path(r.Context(), r.PathValue("isbn"))
	if err != nil {
		failWith(h.logger, w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}
