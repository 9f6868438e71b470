// Package webapi exposes the planning pipeline over HTTP: registry
// inspection and sync, requirement matching, and sequence building. It never
// executes agents; it only serves plans.
package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stagehand-dev/stagehand/pkg/docstate"
	"github.com/stagehand-dev/stagehand/pkg/logger"
	"github.com/stagehand-dev/stagehand/pkg/matcher"
	"github.com/stagehand-dev/stagehand/pkg/registry"
	"github.com/stagehand-dev/stagehand/pkg/sequencer"
	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// NewServerConfig returns the default server configuration.
func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Host: "localhost",
		Port: 8712,
	}
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Server serves the planning pipeline API.
type Server struct {
	router      *mux.Router
	config      *ServerConfig
	storeConfig *registry.StoreConfig
	checker     docstate.Checker
	server      *http.Server
}

// NewServer creates a web API server backed by the given catalog store
// configuration and document-state checker.
func NewServer(config *ServerConfig, storeConfig *registry.StoreConfig, checker docstate.Checker) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router:      mux.NewRouter(),
		config:      config,
		storeConfig: storeConfig,
		checker:     checker,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/registry", s.handleGetRegistry).Methods(http.MethodGet)
	api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	api.HandleFunc("/match", s.handleMatch).Methods(http.MethodPost)
	api.HandleFunc("/sequence", s.handleSequence).Methods(http.MethodPost)
}

// Start runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.G(ctx).WithField("addr", addr).Info("web API listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "web API server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Wrap(s.server.Shutdown(shutdownCtx), "failed to shut down web API server")
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) openStore(ctx context.Context) (registry.Store, error) {
	return registry.NewStore(ctx, s.storeConfig)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetRegistry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	store, err := s.openStore(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer store.Close()

	cat, err := store.Load(ctx)
	if errors.Is(err, registry.ErrNotSynced) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, cat)
}

type syncRequest struct {
	Path string `json:"path,omitempty"`
}

type syncResponse struct {
	Stats    *catalog.SyncStats `json:"stats"`
	Warnings string             `json:"warnings,omitempty"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	basePath := req.Path
	if basePath == "" {
		basePath = s.storeConfig.BasePath
	}

	builder, err := registry.NewBuilder(registry.WithBasePath(basePath))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	store, err := s.openStore(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer store.Close()

	existing, err := store.Load(ctx)
	if err != nil && !errors.Is(err, registry.ErrNotSynced) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	updated, stats, warn := builder.Sync(ctx, existing)
	if err := store.Save(ctx, updated); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := syncResponse{Stats: stats}
	if warn != nil {
		resp.Warnings = warn.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type matchRequest struct {
	Requirements  string   `json:"requirements"`
	Project       string   `json:"project,omitempty"`
	DetectProject bool     `json:"detect_project,omitempty"`
	Threshold     *float64 `json:"threshold,omitempty"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req matchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Requirements == "" {
		writeError(w, http.StatusBadRequest, errors.New("requirements text is required"))
		return
	}

	store, err := s.openStore(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer store.Close()

	cat, err := store.Load(ctx)
	if errors.Is(err, registry.ErrNotSynced) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	project := req.Project
	if req.DetectProject && project == "" {
		project = matcher.DetectProject(req.Requirements, cat)
	}

	threshold := matcher.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	writeJSON(w, http.StatusOK, matcher.Match(req.Requirements, cat, project, threshold))
}

type sequenceRequest struct {
	Matches        *catalog.MatchSet `json:"matches"`
	SkipValidation bool              `json:"skip_validation,omitempty"`
	FeaturePath    string            `json:"feature_path,omitempty"`
}

func (s *Server) handleSequence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sequenceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Matches == nil {
		writeError(w, http.StatusBadRequest, errors.New("match results are required"))
		return
	}

	builder := sequencer.NewBuilder(s.checker)
	plan, err := builder.Build(ctx, req.Matches, sequencer.Options{
		SkipValidation: req.SkipValidation,
		FeaturePath:    req.FeaturePath,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil && err.Error() != "EOF" {
		return errors.Wrap(err, "failed to decode request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
