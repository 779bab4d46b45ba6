// Package api exposes the decision engine to the UI collaborator over HTTP.
// Every route is a small control message; the engine owns all state, and the
// handlers translate between JSON bodies and engine calls.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"pantrywatch/internal/notify"
	"pantrywatch/internal/types"
)

// checkTimeout bounds a fire-and-forget check cycle kicked off by the API.
const checkTimeout = 30 * time.Second

// NotificationEngine is the engine surface the handlers depend on. Satisfied
// by *notify.Engine.
type NotificationEngine interface {
	RunCheck(ctx context.Context, r notify.Reason) error
	MarkSeen(ctx context.Context) error
	Snooze(ctx context.Context, d time.Duration) error
	SnoozeValue(ctx context.Context, value string) error
	Status(ctx context.Context) (notify.Status, error)
	ListPresets(ctx context.Context) ([]types.SnoozePreset, error)
	AddPreset(ctx context.Context, label, value string) error
}

// Pinger reports backing-store health; satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP routes to the engine.
type Server struct {
	engine   NotificationEngine
	presence *HeartbeatPresence
	db       Pinger
	validate *validator.Validate
	logger   types.Logger
}

// NewServer creates the API server. db may be nil, in which case the health
// endpoint only reports process liveness.
func NewServer(engine NotificationEngine, presence *HeartbeatPresence, db Pinger, logger types.Logger) *Server {
	return &Server{
		engine:   engine,
		presence: presence,
		db:       db,
		validate: validator.New(),
		logger:   logger,
	}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/checks", s.handleRunCheck)
		r.Route("/notifications", func(r chi.Router) {
			r.Post("/seen", s.handleMarkSeen)
			r.Post("/snooze", s.handleSnooze)
			r.Get("/status", s.handleStatus)
		})
		r.Route("/snooze-presets", func(r chi.Router) {
			r.Get("/", s.handleListPresets)
			r.Post("/", s.handleAddPreset)
		})
		r.Post("/presence/heartbeat", s.handleHeartbeat)
	})
	return r
}

// requestLogger logs one line per request with the outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err.Error())
			writeJSON(w, http.StatusServiceUnavailable, APIResponse{Data: map[string]string{"status": "degraded"}})
			return
		}
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: map[string]string{"status": "ok"}})
}

// RunCheckRequest asks for a check cycle. Force bypasses the delivery guards;
// UIOnly refreshes the attention lists without notifying.
type RunCheckRequest struct {
	Force  bool `json:"force"`
	UIOnly bool `json:"ui_only"`
}

// handleRunCheck kicks off a check cycle and returns immediately. The cycle
// runs detached from the request so a slow scan never blocks the client; its
// outcome lands in the logs.
func (s *Server) handleRunCheck(w http.ResponseWriter, r *http.Request) {
	var req RunCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reason := notify.AutoReason("")
	if req.Force || req.UIOnly {
		reason = notify.RefreshReason(req.UIOnly)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		if err := s.engine.RunCheck(ctx, reason); err != nil {
			s.logger.Error("api-triggered check failed", "error", err.Error())
		}
	}()

	writeJSON(w, http.StatusAccepted, APIResponse{Data: map[string]string{"status": "accepted"}})
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.MarkSeen(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SnoozeRequest starts a snooze episode. Value is a preset value, either a
// duration in milliseconds ("900000") or a wall-clock time today ("20:30");
// DurationMs is a raw duration for clients that do not use presets. Exactly
// one must be set.
type SnoozeRequest struct {
	Value      string `json:"value,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty" validate:"omitempty,gt=0"`
}

func (s *Server) handleSnooze(w http.ResponseWriter, r *http.Request) {
	var req SnoozeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, types.NewAppError(types.ErrCodeValidationSnoozeDuration,
			"snooze duration must be positive", err))
		return
	}

	var err error
	switch {
	case req.Value != "":
		err = s.engine.SnoozeValue(r.Context(), req.Value)
	case req.DurationMs > 0:
		err = s.engine.Snooze(r.Context(), time.Duration(req.DurationMs)*time.Millisecond)
	default:
		err = types.NewAppError(types.ErrCodeValidationMissingField,
			"either value or duration_ms is required", nil)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusResponse is the notification-center snapshot plus the ranked presets.
type statusResponse struct {
	notify.Status
	Presets []types.SnoozePreset `json:"presets"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	presets, err := s.engine.ListPresets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: statusResponse{Status: st, Presets: presets}})
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.engine.ListPresets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: presets})
}

// AddPresetRequest saves a named snooze choice.
type AddPresetRequest struct {
	Label string `json:"label" validate:"required,max=50"`
	Value string `json:"value" validate:"required,max=20"`
}

func (s *Server) handleAddPreset(w http.ResponseWriter, r *http.Request) {
	var req AddPresetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"preset label and value are required", err))
		return
	}
	if err := s.engine.AddPreset(r.Context(), req.Label, req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Data: types.SnoozePreset{Label: req.Label, Value: req.Value}})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	s.presence.Heartbeat()
	w.WriteHeader(http.StatusNoContent)
}
