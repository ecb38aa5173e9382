// Package server provides the HTTP server that hosts the gesture viewer page
// and its API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/gestureview/internal/app"
	"github.com/ayusman/gestureview/internal/capture"
	"github.com/ayusman/gestureview/internal/labels"
	"github.com/ayusman/gestureview/internal/logger"
	"github.com/ayusman/gestureview/internal/pipeline"
	"github.com/ayusman/gestureview/internal/server/api"
	"github.com/ayusman/gestureview/internal/store"
)

// Engine is the application surface the server drives. *app.App implements it.
type Engine interface {
	api.FrameClassifier
	StartSession(ctx context.Context, source string) (*pipeline.Session, error)
	EndSession(sess *pipeline.Session)
	Record(sess *pipeline.Session, res pipeline.Result)
	Status() app.Status
	Labels() labels.Set
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Camera    capture.Camera
	Engine    Engine
	Logger    *logger.Logger
}

// Server represents the HTTP server for the gesture viewer.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    *logger.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = logger.Discard()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register classification endpoints if an Engine is configured
	if s.config.Engine != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/labels", s.handleLabels)
		s.mux.Handle("/api/classify", api.NewClassifyHandler(s.config.Engine))
		s.mux.Handle("/api/session", NewSessionHandler(s.config.Engine, s.log))
	}

	// Register session history if Store is configured
	if s.config.Store != nil {
		sessionHandler := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessionHandler)
		s.mux.Handle("/api/sessions/", sessionHandler)
	}

	// Register camera stream endpoint if Camera is configured
	if s.config.Camera != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Camera, s.log))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	writeJSON(w, response)
}

// handleStatus handles GET requests to /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, s.config.Engine.Status())
}

// handleLabels handles GET requests to /api/labels.
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"labels": s.config.Engine.Labels().Names(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
