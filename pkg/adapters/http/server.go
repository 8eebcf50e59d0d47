// Package http exposes the wizard engine over HTTP with JSON and SSE.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/glaucoscan"
	"github.com/aretw0/glaucoscan/api"
	"github.com/aretw0/glaucoscan/internal/logging"
	"github.com/aretw0/glaucoscan/internal/presentation/graph"
	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/ports"
	"github.com/aretw0/glaucoscan/pkg/upload"
)

// Multipart envelopes carry some overhead on top of the file itself.
const multipartOverhead = 1 << 20

// Engine is the subset of the wizard engine the HTTP adapter needs.
type Engine interface {
	ports.WizardEngine
	Render(state *domain.State) domain.View
	Delay() time.Duration
	MaxUploadBytes() int64
}

// Server holds the HTTP handlers.
type Server struct {
	Engine  Engine
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(api.Raw())
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/upload", s.UploadImage)
			r.Post("/drop", s.DropImages)
			r.Post("/analyze", s.Analyze)
			r.Post("/reset", s.Reset)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>GlaucoScan API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// ListResponse is the body of GET /sessions.
type ListResponse struct {
	Sessions []string `json:"sessions"`
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotAnImage), errors.Is(err, domain.ErrContentMismatch):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrImageTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrEmptyImage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrStaleGeneration):
		return http.StatusConflict
	case errors.Is(err, glaucoscan.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusFor(err)
	attrs := []any{"op", op, "status", status, "request_id", middleware.GetReqID(r.Context()), "err", err}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", attrs...)
	} else {
		s.logger.Warn("Request rejected", attrs...)
	}

	resp := ErrorResponse{Error: err.Error()}
	if status == http.StatusUnsupportedMediaType || status == http.StatusRequestEntityTooLarge || status == http.StatusBadRequest {
		resp.Reason = domain.RejectionReason(err)
	}
	s.writeJSON(w, status, resp)
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.Engine.Start(r.Context())
	if err != nil {
		s.writeError(w, r, "create", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.Engine.Render(state))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.List(r.Context())
	if err != nil {
		s.writeError(w, r, "list", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ListResponse{Sessions: ids})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.Engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "get", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Engine.Render(state))
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /sessions/{id}/upload (multipart field "file").
func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	files, cleanup, err := s.readFiles(w, r, "file")
	if err != nil {
		s.writeError(w, r, "upload", err)
		return
	}
	defer cleanup()

	state, err := s.Engine.Upload(r.Context(), chi.URLParam(r, "id"), files[0])
	if err != nil {
		s.writeError(w, r, "upload", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Engine.Render(state))
}

// DropImages handles POST /sessions/{id}/drop (repeatable multipart field "files").
func (s *Server) DropImages(w http.ResponseWriter, r *http.Request) {
	files, cleanup, err := s.readFiles(w, r, "files")
	if err != nil {
		s.writeError(w, r, "drop", err)
		return
	}
	defer cleanup()

	state, err := s.Engine.Drop(r.Context(), chi.URLParam(r, "id"), files)
	if err != nil {
		s.writeError(w, r, "drop", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Engine.Render(state))
}

// readFiles opens every part under field. The declared Content-Type of each
// part is passed on untouched: validating it is the upload handler's job.
func (s *Server) readFiles(w http.ResponseWriter, r *http.Request, field string) ([]upload.Input, func(), error) {
	if limit := s.Engine.MaxUploadBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, nil, fmt.Errorf("%w: request body over %d bytes", domain.ErrImageTooLarge, tooBig.Limit)
		}
		return nil, nil, fmt.Errorf("%w: invalid multipart body: %v", domain.ErrEmptyImage, err)
	}

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		_ = r.MultipartForm.RemoveAll()
		return nil, nil, fmt.Errorf("%w: no %q part in request", domain.ErrEmptyImage, field)
	}

	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
		_ = r.MultipartForm.RemoveAll()
	}

	inputs := make([]upload.Input, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open %q: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		inputs = append(inputs, upload.Input{
			Name:      fh.Filename,
			MediaType: fh.Header.Get("Content-Type"),
			Size:      fh.Size,
			Reader:    f,
		})
	}
	return inputs, cleanup, nil
}

// Analyze handles POST /sessions/{id}/analyze.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	state, err := s.Engine.Analyze(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "analyze", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.Engine.Render(state))
}

// Reset handles POST /sessions/{id}/reset.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	state, err := s.Engine.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "reset", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Engine.Render(state))
}

// GetGraph handles GET /graph, overlaying a session when session_id is given.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.GraphOverlay
	if id := r.URL.Query().Get("session_id"); id != "" {
		state, err := s.Engine.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, "graph", err)
			return
		}
		overlay = graph.OverlayFor(state)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(graph.Options{Delay: s.Engine.Delay()}, overlay)))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := api.Load(r.Context()); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	} else if err != nil {
		s.logger.Error("Failed to load OpenAPI spec", "err", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "glaucoscan-http",
		"version":     glaucoscan.Version,
		"api_version": apiVersion,
	})
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
// The optional watch parameter keeps only diffs touching the listed fields.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	sessionID := chi.URLParam(r, "id")
	ch, cancel := s.Engine.Subscribe(sessionID)
	defer cancel()

	// Also adopts an analysis left running by another replica.
	if _, err := s.Engine.Get(r.Context(), sessionID); err != nil {
		s.writeError(w, r, "events", err)
		return
	}

	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			watch = append(watch, strings.TrimSpace(f))
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to Session Updates", "session_id", sessionID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "session_id", sessionID)
			return
		case diff, ok := <-ch:
			if !ok {
				return
			}
			if !matchesWatch(diff, watch) {
				continue
			}
			payload, err := json.Marshal(diff)
			if err != nil {
				s.logger.Error("SSE: diff encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func matchesWatch(diff *domain.StateDiff, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	for _, field := range watch {
		switch field {
		case "phase":
			if diff.Phase != nil {
				return true
			}
		case "image":
			if diff.Image != nil {
				return true
			}
		case "result":
			if diff.Result != nil {
				return true
			}
		case "history":
			if diff.HistoryParams != nil {
				return true
			}
		}
	}
	return false
}
