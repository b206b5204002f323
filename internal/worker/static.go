package worker

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed static/*
var staticFS embed.FS

// staticSubFS is the static subdirectory filesystem
var staticSubFS fs.FS

// staticInitErr stores any error from static filesystem initialization
var staticInitErr error

func init() {
	staticSubFS, staticInitErr = fs.Sub(staticFS, "static")
	if staticInitErr != nil {
		log.Warn().Err(staticInitErr).Msg("Static filesystem initialization failed - upload page will be unavailable")
	}
}

// serveIndex serves the upload page for the root path
func serveIndex(w http.ResponseWriter, r *http.Request) {
	if staticInitErr != nil {
		writeError(w, r, http.StatusServiceUnavailable, "Upload page unavailable", staticInitErr)
		return
	}
	content, err := fs.ReadFile(staticSubFS, "index.html")
	if err != nil {
		writeError(w, r, http.StatusNotFound, "Upload page not found", nil)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write(content)
}
