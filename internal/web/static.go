package web

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// immutableCache is the policy for content-addressed assets: the name
// changes whenever the bytes change, so a year-long immutable cache
// is safe.
const immutableCache = "public, max-age=31536000, immutable"

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" || name != filepath.Base(name) || !s.store.Exists(name) {
		s.writeNotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", immutableCache)
	http.ServeFile(w, r, filepath.Join(s.store.Root(), name))
}

// handleFallthrough serves the client entry document for any path the
// router did not match, enabling client-side routing. Paths under the
// reserved prefixes never fall through; an unmatched one is a real
// 404.
func (s *Server) handleFallthrough(w http.ResponseWriter, r *http.Request) {
	base := s.basePrefix()
	path := r.URL.Path
	if strings.HasPrefix(path, base+"/api/") || strings.HasPrefix(path, base+"/assets/") {
		s.writeNotFound(w, r)
		return
	}

	index := filepath.Join(s.cfg.ClientDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.writeNotFound(w, r)
		return
	}
	noCache(w)
	http.ServeFile(w, r, index)
}

func (s *Server) writeNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": "not found",
		"path":  r.URL.Path,
	})
}
