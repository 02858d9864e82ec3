// Package server exposes skill listing, selection and template rendering
// over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/jingkaihe/skillet/pkg/config"
	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/selector"
	"github.com/jingkaihe/skillet/pkg/service"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/jingkaihe/skillet/pkg/templates"
	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 20

// HistoryReader is the read side of the selection history.
type HistoryReader interface {
	List(ctx context.Context, opts history.ListOptions) ([]history.Entry, error)
	Stats(ctx context.Context) (history.Stats, error)
}

// Server serves the skill API
type Server struct {
	router  *mux.Router
	service *service.Service
	history HistoryReader
	config  config.ServerConfig
	server  *http.Server
}

// SelectRequest is the body of POST /api/select.
type SelectRequest struct {
	Text string `json:"text"`
	All  bool   `json:"all,omitempty"`
}

// SelectResponse reports the selected skill, if any.
type SelectResponse struct {
	Selected   bool               `json:"selected"`
	Skill      *service.Summary   `json:"skill,omitempty"`
	Score      float64            `json:"score,omitempty"`
	Reasons    []string           `json:"reasons,omitempty"`
	Candidates []CandidateSummary `json:"candidates,omitempty"`
}

// CandidateSummary is one ranked skill.
type CandidateSummary struct {
	Name    string   `json:"name"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// RenderRequest is the body of POST /api/skills/{name}/render.
type RenderRequest struct {
	Title       string            `json:"title"`
	Sections    map[string]string `json:"sections"`
	Placeholder string            `json:"placeholder,omitempty"`
}

// RenderResponse carries the rendered markdown.
type RenderResponse struct {
	Skill    string `json:"skill"`
	Markdown string `json:"markdown"`
}

// SkillResponse is the detail view of a skill.
type SkillResponse struct {
	service.Summary
	Triggers []string           `json:"triggers"`
	Patterns []string           `json:"patterns"`
	Priority int                `json:"priority"`
	Template templates.Template `json:"template"`
	Content  string             `json:"content"`
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the history endpoints.
func WithHistory(h HistoryReader) Option {
	return func(s *Server) {
		s.history = h
	}
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, svc *service.Service, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if svc == nil {
		return nil, errors.New("skill service is required")
	}

	s := &Server{
		router:  mux.NewRouter(),
		service: svc,
		config:  cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	// Plugin skill names contain slashes, so the render route has to be
	// tried before the catch-all skill route. OPTIONS is routed so that
	// corsMiddleware can answer preflight requests.
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET", "OPTIONS")
	api.HandleFunc("/skills/{name:.+}/render", s.handleRender).Methods("POST", "OPTIONS")
	api.HandleFunc("/skills/{name:.+}", s.handleGetSkill).Methods("GET", "OPTIONS")
	api.HandleFunc("/select", s.handleSelect).Methods("POST", "OPTIONS")
	api.HandleFunc("/history", s.handleListHistory).Methods("GET", "OPTIONS")
	api.HandleFunc("/history/stats", s.handleHistoryStats).Methods("GET", "OPTIONS")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"skills": s.service.Catalog().Len(),
	})
}

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, _ *http.Request) {
	list := s.service.List()
	s.writeJSONResponse(w, http.StatusOK, map[string]any{
		"skills": list,
		"total":  len(list),
	})
}

// handleGetSkill handles GET /api/skills/{name}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	sk, err := s.service.Get(name)
	if err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusNotFound, "skill not found", nil)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, skillResponse(sk))
}

// handleSelect handles POST /api/select
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp := SelectResponse{}
	if sel, ok := s.service.Select(r.Context(), req.Text, history.SurfaceHTTP); ok {
		summary := service.Summarize(sel.Skill)
		resp.Selected = true
		resp.Skill = &summary
		resp.Score = sel.Score
		resp.Reasons = sel.Reasons
	}
	if req.All {
		resp.Candidates = candidates(s.service.Rank(r.Context(), req.Text))
	}

	s.writeJSONResponse(w, http.StatusOK, resp)
}

// handleRender handles POST /api/skills/{name}/render
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req RenderRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var opts []templates.RenderOption
	if req.Placeholder != "" {
		opts = append(opts, templates.WithPlaceholder(req.Placeholder))
	}

	out, err := s.service.Render(r.Context(), name, templates.Content{
		Title:    req.Title,
		Sections: req.Sections,
	}, opts...)
	if err != nil {
		if errors.Is(err, service.ErrSkillNotFound) {
			s.writeErrorResponse(r.Context(), w, http.StatusNotFound, "skill not found", nil)
			return
		}
		s.writeErrorResponse(r.Context(), w, http.StatusInternalServerError, "failed to render template", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, RenderResponse{Skill: name, Markdown: out})
}

// handleListHistory handles GET /api/history
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorResponse(r.Context(), w, http.StatusNotFound, "history is disabled", nil)
		return
	}

	opts := history.ListOptions{Skill: r.URL.Query().Get("skill")}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			s.writeErrorResponse(r.Context(), w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		opts.Limit = limit
	}

	entries, err := s.history.List(r.Context(), opts)
	if err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusInternalServerError, "failed to list history", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

// handleHistoryStats handles GET /api/history/stats
func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorResponse(r.Context(), w, http.StatusNotFound, "history is disabled", nil)
		return
	}

	stats, err := s.history.Stats(r.Context())
	if err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusInternalServerError, "failed to compute history stats", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, stats)
}

func skillResponse(sk *skills.Skill) SkillResponse {
	resp := SkillResponse{
		Summary:  service.Summarize(sk),
		Triggers: sk.Triggers,
		Patterns: sk.Patterns,
		Priority: sk.Priority,
		Template: sk.Template,
		Content:  sk.Content,
	}
	if resp.Triggers == nil {
		resp.Triggers = []string{}
	}
	if resp.Patterns == nil {
		resp.Patterns = []string{}
	}
	return resp
}

func candidates(ranked []selector.Selection) []CandidateSummary {
	out := make([]CandidateSummary, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, CandidateSummary{Name: c.Skill.Name, Score: c.Score, Reasons: c.Reasons})
	}
	return out
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode request body")
	}
	return nil
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
	}
}

func (s *Server) writeErrorResponse(ctx context.Context, w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(ctx).WithError(err).Warn(message)
		message = fmt.Sprintf("%s: %v", message, err)
	}

	s.writeJSONResponse(w, statusCode, map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	presenter.Info(fmt.Sprintf("Serving skills API on http://%s", address))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "API server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop closes the server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
