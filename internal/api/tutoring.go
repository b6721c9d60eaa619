package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"codetutor/internal/domain"
	"codetutor/internal/review"
)

// ListLessons returns the lesson catalog as summaries.
func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.lessons.All())
}

// GetLesson returns one full lesson, including exercises and starter code.
func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	l, err := h.lessons.Get(chi.URLParam(r, "lessonID"))
	if err != nil {
		writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, l)
}

type executeRequest struct {
	Code       string `json:"code"`
	LessonID   string `json:"lesson_id,omitempty"`
	ExerciseID string `json:"exercise_id,omitempty"`
}

// Execute runs submitted code in the sandbox and returns the captured
// output. When an exercise is named, its grading code runs appended to the
// submission. Code that fails is still a 200 with success=false; only
// sandbox infrastructure failures are server errors.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Code == "" {
		writeError(w, &domain.MissingFieldError{Field: "code"})
		return
	}

	var result *domain.ExecutionResult
	var err error
	if req.ExerciseID != "" {
		l, lookupErr := h.lessons.Get(req.LessonID)
		if lookupErr != nil {
			writeError(w, lookupErr)
			return
		}
		ex, lookupErr := l.Exercise(req.ExerciseID)
		if lookupErr != nil {
			writeError(w, lookupErr)
			return
		}
		result, err = h.runner.ExecuteWithTests(r.Context(), req.Code, ex.TestCode)
	} else {
		result, err = h.runner.Execute(r.Context(), req.Code, h.execTimeout)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

type reviewRequest struct {
	LessonID string `json:"lesson_id"`
	Code     string `json:"code"`
}

// Review produces structured feedback on code against a lesson's
// objectives. The reasoning service is preferred; the heuristic reviewer
// answers when the service is absent or fails.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Code == "" {
		writeError(w, &domain.MissingFieldError{Field: "code"})
		return
	}

	l, err := h.lessons.Get(req.LessonID)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.ai != nil {
		rev, err := h.ai.Review(r.Context(), l, req.Code)
		if err == nil {
			JSON(w, http.StatusOK, rev)
			return
		}
		slog.Warn("Reasoning review failed, using heuristic", "error", err, "lesson_id", req.LessonID)
	}

	JSON(w, http.StatusOK, review.Heuristic(req.Code, l))
}

// Interact routes a tutoring request through the state machine. The
// session id is minted here when the client sends none, so a first
// start_lesson call needs no prior setup.
func (h *Handler) Interact(w http.ResponseWriter, r *http.Request) {
	var req domain.TutorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SessionID == uuid.Nil {
		if req.Kind != domain.KindStartLesson {
			writeError(w, &domain.MissingFieldError{Field: "session_id"})
			return
		}
		req.SessionID = uuid.New()
	}

	resp, err := h.tutor.HandleRequest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	JSON(w, http.StatusOK, struct {
		SessionID uuid.UUID `json:"session_id"`
		*domain.TutorResponse
	}{SessionID: req.SessionID, TutorResponse: resp})
}
