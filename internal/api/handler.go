// Package api provides the HTTP handlers for the tutoring server.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"codetutor/internal/domain"
	"codetutor/internal/lesson"
	"codetutor/internal/reasoning"
	"codetutor/internal/sandbox"
	"codetutor/internal/session"
	"codetutor/internal/tutor"
)

// Handler wires the tutoring endpoints to their backing components. ai may
// be nil; review requests then use the local heuristic only.
type Handler struct {
	tutor       *tutor.Tutor
	lessons     lesson.Provider
	runner      sandbox.Runner
	store       *session.Store
	ai          reasoning.Client
	execTimeout time.Duration
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(t *tutor.Tutor, lessons lesson.Provider, runner sandbox.Runner, store *session.Store, ai reasoning.Client, execTimeout time.Duration) *Handler {
	return &Handler{
		tutor:       t,
		lessons:     lessons,
		runner:      runner,
		store:       store,
		ai:          ai,
		execTimeout: execTimeout,
	}
}

// RegisterRoutes registers the tutoring API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/lessons", h.ListLessons)
		r.Get("/lessons/{lessonID}", h.GetLesson)
		r.Post("/execute", h.Execute)
		r.Post("/review", h.Review)
		r.Post("/tutor/interact", h.Interact)
	})
	r.Get("/ws/session", h.SessionStream)
	r.Get("/health", h.Health)
}

// Health reports liveness plus basic capacity numbers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"lessons":         len(h.lessons.All()),
		"active_sessions": h.store.Len(),
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeError maps domain errors onto HTTP statuses: unknown sessions and
// lessons are 404, malformed requests are 400, everything else is a 500
// with the detail kept out of the response body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrLessonNotFound):
		Error(w, http.StatusNotFound, "lesson not found")
	case errors.Is(err, domain.ErrExerciseNotFound):
		Error(w, http.StatusNotFound, "exercise not found")
	case domain.IsClientError(err):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode parses a JSON request body into v.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.MissingFieldError{Field: "body"}
	}
	return nil
}
