// Package domain holds the core types shared across the tutor server.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TeachingPhase is the discrete stage of the tutoring dialogue.
type TeachingPhase string

const (
	PhaseIntroduction TeachingPhase = "introduction"
	PhaseTeaching     TeachingPhase = "teaching"
	PhaseChallenge    TeachingPhase = "challenge"
	PhaseHelping      TeachingPhase = "helping"
	PhaseWalkthrough  TeachingPhase = "walkthrough"
	PhaseNewChallenge TeachingPhase = "new_challenge"
	PhaseMastery      TeachingPhase = "mastery"
)

// MessageRole identifies who authored a conversation message.
type MessageRole string

const (
	RoleTutor   MessageRole = "tutor"
	RoleStudent MessageRole = "student"
	RoleSystem  MessageRole = "system"
)

// Message is one entry in a session's conversation history. Append-only.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`
}

// Challenge is an active coding task posed to the learner. It is replaced,
// never mutated in place, when a new challenge is generated.
type Challenge struct {
	Description     string `json:"description"`
	ExerciseID      string `json:"exercise_id,omitempty"`
	HintsGiven      int    `json:"hints_given"`
	WalkthroughUsed bool   `json:"walkthrough_used"`
}

// Session holds one learner's ongoing interaction state for a lesson attempt.
// Sessions are owned by the session store and mutated only through its
// synchronized accessors.
type Session struct {
	ID                  uuid.UUID     `json:"session_id"`
	LessonID            string        `json:"current_lesson_id"`
	Phase               TeachingPhase `json:"teaching_phase"`
	ConversationHistory []Message     `json:"conversation_history"`
	CurrentChallenge    *Challenge    `json:"current_challenge,omitempty"`
	CompletedExercises  []string      `json:"completed_exercises"`
	CodeHistory         []string      `json:"code_history"`
	LastActive          time.Time     `json:"-"`
}

// NewSession creates a fresh session for a lesson, starting at Introduction.
func NewSession(id uuid.UUID, lessonID string) *Session {
	return &Session{
		ID:         id,
		LessonID:   lessonID,
		Phase:      PhaseIntroduction,
		LastActive: time.Now(),
	}
}

// Clone returns a deep copy of the session so callers can inspect state
// without holding store locks.
func (s *Session) Clone() *Session {
	cp := *s
	cp.ConversationHistory = append([]Message(nil), s.ConversationHistory...)
	cp.CompletedExercises = append([]string(nil), s.CompletedExercises...)
	cp.CodeHistory = append([]string(nil), s.CodeHistory...)
	if s.CurrentChallenge != nil {
		ch := *s.CurrentChallenge
		cp.CurrentChallenge = &ch
	}
	return &cp
}

// AppendMessage adds a message to the conversation history.
func (s *Session) AppendMessage(role MessageRole, content string) {
	s.ConversationHistory = append(s.ConversationHistory, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Unix(),
	})
}

// RecentMessages returns up to n of the most recent conversation entries.
func (s *Session) RecentMessages(n int) []Message {
	if n >= len(s.ConversationHistory) {
		return s.ConversationHistory
	}
	return s.ConversationHistory[len(s.ConversationHistory)-n:]
}
