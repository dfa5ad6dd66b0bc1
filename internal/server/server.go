// Package server provides the HTTP server for posepad.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/posepad/internal/emulator"
	"github.com/ayusman/posepad/internal/gesture"
	"github.com/ayusman/posepad/internal/server/api"
	"github.com/ayusman/posepad/internal/store"
)

// Controller is the part of the running application the server reports on
// and toggles.
type Controller interface {
	Enabled() bool
	SetEnabled(enabled bool) error
	Session() emulator.Snapshot
	Bindings() emulator.Bindings
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store

	// Matcher receives templates trained through the API.
	Matcher *gesture.StaticMatcher

	// Controller backs /api/status. Without it the endpoint is not served.
	Controller Controller

	// OnBindings is called with the effective bindings after they change.
	OnBindings func(emulator.Bindings)
}

// Server represents the HTTP server for the posepad application.
type Server struct {
	config Config
	mux    *http.ServeMux
	events *EventsHandler
	start  time.Time

	httpMu sync.Mutex
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		events: NewEventsHandler(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/events", s.events)

	if s.config.Controller != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
	}

	if s.config.Store != nil {
		bindings := api.NewBindingHandler(s.config.Store, s.config.OnBindings)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)

		templates := api.NewTemplateHandler(s.config.Store, s.config.Matcher)
		s.mux.Handle("/api/templates", templates)
		s.mux.Handle("/api/templates/", templates)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Events returns the live event feed. Publish engine steps to it.
func (s *Server) Events() *EventsHandler {
	return s.events
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

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	writeJSON(w, http.StatusOK, response)
}

type statusResponse struct {
	Enabled  bool              `json:"enabled"`
	Session  emulator.Snapshot `json:"session"`
	Bindings emulator.Bindings `json:"bindings"`
	Clients  int               `json:"clients"`
}

type updateStatusRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleStatus reports the emulator state on GET and toggles it on PUT.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctrl := s.config.Controller

	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
			return
		}
		if err := ctrl.SetEnabled(*req.Enabled); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Enabled:  ctrl.Enabled(),
		Session:  ctrl.Session(),
		Bindings: ctrl.Bindings(),
		Clients:  s.events.Clients(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ListenAndServe starts the HTTP server on the given address. It returns nil
// after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.httpMu.Lock()
	s.http = srv
	s.httpMu.Unlock()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes the event feed and stops the listener, waiting for
// in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.events.Close()

	s.httpMu.Lock()
	srv := s.http
	s.httpMu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
