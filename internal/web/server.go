// Package web wires the HTTP surface of the admission boundary:
// asset ingestion, existence probes, health/status reporting, the
// public environment artifact, WebSocket admission, and static client
// serving.
package web

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/worldgate/platform/server/internal/assets"
	"github.com/worldgate/platform/server/internal/config"
	"github.com/worldgate/platform/server/internal/gateway"
	"github.com/worldgate/platform/server/internal/scan"
	"github.com/worldgate/platform/server/internal/session"
)

// Server holds the request-handling dependencies. All fields are set
// at startup and read-only afterward; per-request state lives on the
// stack.
type Server struct {
	cfg        *config.Config
	store      *assets.Store
	replicator *assets.Replicator
	scanner    scan.Scanner
	gateway    *gateway.Gateway
	roster     session.Roster
	logger     zerolog.Logger
	started    time.Time
}

func NewServer(
	cfg *config.Config,
	store *assets.Store,
	replicator *assets.Replicator,
	scanner scan.Scanner,
	gw *gateway.Gateway,
	roster session.Roster,
	logger zerolog.Logger,
) *Server {
	return &Server{
		cfg:        cfg,
		store:      store,
		replicator: replicator,
		scanner:    scanner,
		gateway:    gw,
		roster:     roster,
		logger:     logger,
		started:    time.Now(),
	}
}

// basePrefix normalizes the configured base path into a route prefix:
// "" for root, otherwise "/prefix" with no trailing slash.
func (s *Server) basePrefix() string {
	base := strings.Trim(s.cfg.BasePath, "/")
	if base == "" {
		return ""
	}
	return "/" + base
}

// Routes builds the router. Reserved prefixes (api, assets) return
// structured 404s for unmatched paths; everything else falls through
// to the client entry document.
func (s *Server) Routes() http.Handler {
	base := s.basePrefix()
	p := func(route string) string { return base + route }

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get(p("/env.js"), s.handleEnvScript)
	r.Get(p("/health"), s.handleHealth)
	r.Get(p("/status"), s.handleStatus)
	r.Get(p("/ws"), s.gateway.ServeHTTP)
	r.Get(p("/api/upload-check"), s.handleUploadCheck)

	r.Group(func(upload chi.Router) {
		// Reject oversized bodies at the transport boundary, before
		// the handler retains anything.
		upload.Use(middleware.RequestSize(s.maxUploadBytes()))
		upload.Post(p("/api/upload"), s.handleUpload)
	})

	r.Get(p("/assets/*"), s.handleAsset)
	r.NotFound(s.handleFallthrough)

	return r
}

func (s *Server) uptime() float64 {
	return time.Since(s.started).Seconds()
}

func (s *Server) maxUploadBytes() int64 {
	if s.cfg.MaxUploadBytes > 0 {
		return s.cfg.MaxUploadBytes
	}
	return config.DefaultMaxUploadBytes
}

func (s *Server) handleEnvScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	noCache(w)
	_, _ = w.Write(s.cfg.Public.Script())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// The server is healthy when its one durable dependency, the
	// asset root, is reachable.
	if !dirReachable(s.store.Root()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "error",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    s.uptime(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	users := []string{}
	if s.roster != nil {
		users = s.roster.ConnectedUsers()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime":         s.uptime(),
		"protected":      s.cfg.Protected(),
		"connectedUsers": users,
		"world":          s.cfg.WorldName,
		"commitHash":     s.cfg.CommitHash,
	})
}

func (s *Server) handleUploadCheck(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		http.Error(w, "filename query parameter is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exists": s.store.Exists(filename),
	})
}

func dirReachable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
