// Package server exposes the catalog, pipeline, render queue, and export
// engine over HTTP.
//
// The surface is a plain JSON API plus raw file serving under /uploads/.
// Handlers translate pipeline sentinels into status codes and never leak
// internal paths in responses.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"gifshelf/internal/blobstore"
	"gifshelf/internal/catalog"
	"gifshelf/internal/config"
	"gifshelf/internal/deps"
	"gifshelf/internal/export"
	"gifshelf/internal/logging"
	"gifshelf/internal/pipeline"
	"gifshelf/internal/renderqueue"
)

// Server is the HTTP front end. Construct with New, then Start/Stop.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	pipeline *pipeline.Pipeline
	queue    *renderqueue.Queue
	exports  *export.Service
	blobs    *blobstore.Store
	store    *catalog.Store

	handler  http.Handler
	listener net.Listener
	server   *http.Server
	started  time.Time
}

// New wires the HTTP surface over the given collaborators.
func New(cfg *config.Config, store *catalog.Store, blobs *blobstore.Store, p *pipeline.Pipeline, queue *renderqueue.Queue, exports *export.Service, logger *slog.Logger) *Server {
	srv := &Server{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "api"),
		pipeline: p,
		queue:    queue,
		exports:  exports,
		blobs:    blobs,
		store:    store,
		started:  time.Now().UTC(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/catalog", srv.handleCatalog)
	mux.HandleFunc("/api/images", srv.handleImages)
	mux.HandleFunc("/api/images/", srv.handleImageItem)
	mux.HandleFunc("/api/folders", srv.handleFolders)
	mux.HandleFunc("/api/folders/", srv.handleFolderItem)
	mux.HandleFunc("/api/export", srv.handleExport)
	mux.HandleFunc("/api/admin/verify", srv.handleAdminVerify)
	mux.HandleFunc("/uploads/", srv.handleUploadedFile)

	srv.handler = srv.authMiddleware(mux)
	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the configured address and serves until ctx is cancelled or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address after Start, or empty.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// authMiddleware enforces the configured bearer token on every /api route.
// File serving under /uploads/ stays open so rendered media can be embedded
// directly. An empty configured token disables the check.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(s.cfg.Paths.APIToken)
		if token == "" || !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if header != "Bearer "+token {
			s.writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode api response", logging.Error(err))
	}
}

func decodeJSON(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writePipelineError maps pipeline and store sentinels onto status codes.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrUnsupportedMedia):
		s.writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, pipeline.ErrRenderFailed):
		s.writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, pipeline.ErrPartialCleanup):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrUnavailable):
		s.writeError(w, http.StatusInternalServerError, "catalog unavailable")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type dependencyStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type statusResponse struct {
	Running      bool               `json:"running"`
	StartedAt    string             `json:"startedAt"`
	CatalogPath  string             `json:"catalogPath"`
	Images       int                `json:"images"`
	Folders      int                `json:"folders"`
	DiskTotal    uint64             `json:"diskTotalBytes"`
	DiskFree     uint64             `json:"diskFreeBytes"`
	Dependencies []dependencyStatus `json:"dependencies"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	images, folders, err := s.store.Counts(r.Context())
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	payload := statusResponse{
		Running:     true,
		StartedAt:   s.started.Format(time.RFC3339),
		CatalogPath: s.store.Path(),
		Images:      images,
		Folders:     folders,
	}
	if usage, err := s.blobs.Usage(); err == nil {
		payload.DiskTotal = usage.TotalBytes
		payload.DiskFree = usage.FreeBytes
	}
	for _, dep := range deps.Check(deps.RendererRequirements(s.cfg)) {
		payload.Dependencies = append(payload.Dependencies, dependencyStatus{
			Name:      dep.Name,
			Available: dep.Available,
			Detail:    dep.Detail,
		})
	}
	s.writeJSON(w, http.StatusOK, payload)
}
