package domain

import "github.com/google/uuid"

// RequestKind selects the tutor operation a request performs.
type RequestKind string

const (
	KindStartLesson        RequestKind = "start_lesson"
	KindSendMessage        RequestKind = "send_message"
	KindSubmitCode         RequestKind = "submit_code"
	KindRequestHint        RequestKind = "request_hint"
	KindRequestWalkthrough RequestKind = "request_walkthrough"
)

// TutorRequest is one inbound learner interaction.
type TutorRequest struct {
	SessionID uuid.UUID   `json:"session_id"`
	LessonID  string      `json:"lesson_id"`
	Kind      RequestKind `json:"request_type"`
	Message   string      `json:"message,omitempty"`
	Code      string      `json:"code,omitempty"`
}

// TutorResponse carries the tutor's reply and resulting session phase.
type TutorResponse struct {
	Message          string           `json:"message"`
	Phase            TeachingPhase    `json:"phase"`
	CodeResult       *ExecutionResult `json:"code_result,omitempty"`
	ShowNewChallenge bool             `json:"show_new_challenge"`
}
