// Package httpapi exposes the engine over a small JSON API. Chat front-ends post the
// text they received (typed, transcribed or OCR'd) and relay the replies.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/engine"
	"github.com/ginasoft/BotGastos/pkg/staging"
)

// InputRequest is the body of POST /v1/inputs.
type InputRequest struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	// Timestamp is optional; the server clock is used when absent.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// DecisionRequest is the body of POST /v1/users/{id}/decision.
type DecisionRequest struct {
	Decision string `json:"decision"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the JSON API.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
}

// New creates a server backed by e.
func New(e *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: e, logger: logger.With("component", "httpapi")}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/inputs", s.handleInput)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/pending", s.handlePending)
			r.Post("/decision", s.handleDecision)
			r.Post("/confirm", s.handleFixedDecision(staging.Confirm))
			r.Post("/cancel", s.handleFixedDecision(staging.Cancel))
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "staged": s.engine.Staged()})
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	in := api.RawInput{
		Text:     req.Text,
		Channel:  api.Channel(req.Channel),
		User:     api.UserID(req.UserID),
		UserName: req.UserName,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	reply, err := s.engine.Submit(r.Context(), in)
	if err != nil {
		if errors.Is(err, engine.ErrUnsupportedChannel) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("submit failed", "user", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not process input")
		return
	}

	status := http.StatusOK
	if reply.Kind == engine.KindRejected {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, reply)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	user, ok := userParam(w, r)
	if !ok {
		return
	}
	pending, found := s.engine.Pending(user)
	if !found {
		writeError(w, http.StatusNotFound, "no pending expense")
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	d, err := staging.ParseDecision(req.Decision)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.resolve(w, r, d)
}

func (s *Server) handleFixedDecision(d staging.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resolve(w, r, d)
	}
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, d staging.Decision) {
	user, ok := userParam(w, r)
	if !ok {
		return
	}

	reply, err := s.engine.Resolve(r.Context(), user, d)
	if err != nil {
		s.logger.Error("resolve failed", "user", user, "decision", d, "error", err)
		if reply.Kind == engine.KindFailed {
			writeJSON(w, http.StatusBadGateway, reply)
			return
		}
		writeError(w, http.StatusInternalServerError, "could not resolve decision")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func userParam(w http.ResponseWriter, r *http.Request) (api.UserID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return api.UserID(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
