// Package tutor implements the teaching state machine that drives the
// multi-turn tutoring dialogue. It is the only writer of session phase and
// challenge state.
package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"codetutor/internal/domain"
	"codetutor/internal/lesson"
	"codetutor/internal/reasoning"
	"codetutor/internal/sandbox"
	"codetutor/internal/session"
	"codetutor/internal/transcript"
)

// Tutor decides the learner-visible message and next phase for each request.
// When ai is nil, or any reasoning call fails, the deterministic offline path
// takes over; upstream failures never reach the learner.
type Tutor struct {
	store       *session.Store
	lessons     lesson.Provider
	runner      sandbox.Runner
	ai          reasoning.Client
	log         transcript.Logger
	execTimeout time.Duration
}

// New creates a tutor. ai may be nil to run fully offline.
func New(store *session.Store, lessons lesson.Provider, runner sandbox.Runner, ai reasoning.Client, log transcript.Logger, execTimeout time.Duration) *Tutor {
	if log == nil {
		log = noopTranscript{}
	}
	return &Tutor{
		store:       store,
		lessons:     lessons,
		runner:      runner,
		ai:          ai,
		log:         log,
		execTimeout: execTimeout,
	}
}

type noopTranscript struct{}

func (noopTranscript) Log(transcript.Event) {}
func (noopTranscript) Close() error         { return nil }

// HandleRequest routes one learner interaction through the state machine.
func (t *Tutor) HandleRequest(ctx context.Context, req domain.TutorRequest) (*domain.TutorResponse, error) {
	switch req.Kind {
	case domain.KindStartLesson:
		return t.startLesson(ctx, req)
	case domain.KindSendMessage:
		return t.sendMessage(ctx, req)
	case domain.KindSubmitCode:
		return t.submitCode(ctx, req)
	case domain.KindRequestHint:
		return t.requestHint(ctx, req)
	case domain.KindRequestWalkthrough:
		return t.requestWalkthrough(ctx, req)
	default:
		return nil, &domain.MissingFieldError{Field: "request_type"}
	}
}

// startLesson creates (or resets) the session and produces the introduction.
func (t *Tutor) startLesson(ctx context.Context, req domain.TutorRequest) (*domain.TutorResponse, error) {
	l, err := t.lessons.Get(req.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson %s: %w", req.LessonID, err)
	}

	t.store.Put(domain.NewSession(req.SessionID, req.LessonID))

	intro := ""
	if t.ai != nil {
		intro, err = t.ai.Introduce(ctx, l)
		if err != nil {
			slog.Warn("Reasoning introduction failed, using offline text", "error", err, "session_id", req.SessionID)
			intro = ""
		}
	}
	if intro == "" {
		intro = offlineIntroduction(l)
	}

	t.say(req.SessionID, req.LessonID, domain.PhaseIntroduction, intro)

	return &domain.TutorResponse{
		Message: intro,
		Phase:   domain.PhaseIntroduction,
	}, nil
}

// sendMessage continues the dialogue. In the teaching track a reply that
// constitutes a challenge offer materializes a new challenge and advances the
// phase; during an active challenge replies are Socratic guidance only.
func (t *Tutor) sendMessage(ctx context.Context, req domain.TutorRequest) (*domain.TutorResponse, error) {
	if req.Message == "" {
		return nil, &domain.MissingFieldError{Field: "message"}
	}

	if err := t.store.AppendMessage(req.SessionID, domain.RoleStudent, req.Message); err != nil {
		return nil, err
	}
	t.log.Log(transcript.Event{
		SessionID: req.SessionID.String(),
		Role:      string(domain.RoleStudent),
		Content:   req.Message,
	})

	sess, err := t.store.Get(req.SessionID)
	if err != nil {
		return nil, err
	}
	l, err := t.lessons.Get(sess.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson %s: %w", sess.LessonID, err)
	}

	var reply string
	phase := sess.Phase

	switch sess.Phase {
	case domain.PhaseIntroduction, domain.PhaseTeaching:
		teach := t.teach(ctx, l, sess, req.Message)
		reply = teach.Text
		if teach.OffersChallenge {
			phase = domain.PhaseChallenge
			err = t.store.Update(req.SessionID, func(s *domain.Session) error {
				s.Phase = domain.PhaseChallenge
				s.CurrentChallenge = &domain.Challenge{
					Description: teach.Text,
					ExerciseID:  teach.ExerciseID,
				}
				return nil
			})
		} else {
			phase = domain.PhaseTeaching
			err = t.store.SetPhase(req.SessionID, domain.PhaseTeaching)
		}
		if err != nil {
			return nil, err
		}

	case domain.PhaseChallenge, domain.PhaseNewChallenge:
		reply = t.guide(ctx, l, sess, req.Message)

	default:
		reply = "Please submit your code to continue."
	}

	t.say(req.SessionID, sess.LessonID, phase, reply)

	return &domain.TutorResponse{Message: reply, Phase: phase}, nil
}

// submitCode runs the submission in the sandbox and decides the phase
// transition from its outcome.
func (t *Tutor) submitCode(ctx context.Context, req domain.TutorRequest) (*domain.TutorResponse, error) {
	if req.Code == "" {
		return nil, &domain.MissingFieldError{Field: "code"}
	}

	sess, err := t.store.Get(req.SessionID)
	if err != nil {
		return nil, err
	}
	l, err := t.lessons.Get(sess.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson %s: %w", sess.LessonID, err)
	}

	result, err := t.runner.Execute(ctx, req.Code, t.execTimeout)
	if err != nil {
		return nil, fmt.Errorf("execute submission: %w", err)
	}

	feedback, nextPhase, showNew, newChallenge, completed := t.evaluateSubmission(ctx, sess, l, req.Code, result)

	err = t.store.Update(req.SessionID, func(s *domain.Session) error {
		s.Phase = nextPhase
		s.CodeHistory = append(s.CodeHistory, req.Code)
		if newChallenge != nil {
			s.CurrentChallenge = newChallenge
		}
		if completed != "" {
			s.CompletedExercises = append(s.CompletedExercises, completed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.say(req.SessionID, sess.LessonID, nextPhase, feedback)

	return &domain.TutorResponse{
		Message:          feedback,
		Phase:            nextPhase,
		CodeResult:       result,
		ShowNewChallenge: showNew,
	}, nil
}

// evaluateSubmission maps an execution result onto (feedback, phase,
// show_new_challenge, replacement challenge, completed exercise id).
func (t *Tutor) evaluateSubmission(ctx context.Context, sess *domain.Session, l *domain.Lesson, code string, result *domain.ExecutionResult) (string, domain.TeachingPhase, bool, *domain.Challenge, string) {
	if !result.Success {
		errText := result.Error
		if errText == "" {
			errText = "Unknown error"
		}
		feedback := fmt.Sprintf(
			"Your code has an error:\n%s\n\nDon't worry! Errors are part of learning. Can you figure out what went wrong? I'm here to help if you need it.",
			errText,
		)
		return feedback, domain.PhaseChallenge, false, nil, ""
	}

	// A walkthrough was used for this challenge: mastery must be shown on
	// a fresh, different challenge.
	if sess.CurrentChallenge != nil && sess.CurrentChallenge.WalkthroughUsed {
		text, exerciseID := t.newChallenge(ctx, l, sess)
		challenge := &domain.Challenge{Description: text, ExerciseID: exerciseID}
		return text, domain.PhaseNewChallenge, true, challenge, ""
	}

	ev := t.evaluateMastery(ctx, sess, l, code, result)
	if ev.Mastered {
		completed := ""
		if sess.CurrentChallenge != nil {
			completed = sess.CurrentChallenge.ExerciseID
		}
		return ev.Feedback, domain.PhaseMastery, false, nil, completed
	}
	return ev.Feedback, domain.PhaseChallenge, false, nil, ""
}

// requestHint moves the session to Helping and hands out exactly one hint.
func (t *Tutor) requestHint(ctx context.Context, req domain.TutorRequest) (*domain.TutorResponse, error) {
	sess, err := t.store.Get(req.SessionID)
	if err != nil {
		return nil, err
	}
	l, err := t.lessons.Get(sess.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson %s: %w", sess.LessonID, err)
	}

	hintsGiven := 0
	challengeDesc := ""
	if sess.CurrentChallenge != nil {
		hintsGiven = sess.CurrentChallenge.HintsGiven
		challengeDesc = sess.CurrentChallenge.Description
	}

	hint := ""
	if t.ai != nil && challengeDesc != "" {
		hint, err = t.ai.Hint(ctx, challengeDesc, hintsGiven)
		if err != nil {
			slog.Warn("Reasoning hint failed, using offline hint", "error", err, "session_id", req.SessionID)
			hint = ""
		}
	}
	if hint == "" {
		hint = offlineHint(l, hintsGiven)
	}

	err = t.store.Update(req.SessionID, func(s *domain.Session) error {
		if s.CurrentChallenge != nil {
			ch := *s.CurrentChallenge
			ch.HintsGiven++
			s.CurrentChallenge = &ch
			s.Phase = domain.PhaseHelping
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.say(req.SessionID, sess.LessonID, domain.PhaseHelping, hint)

	return &domain.TutorResponse{Message: hint, Phase: domain.PhaseHelping}, nil
}

// requestWalkthrough explains the solution and flags that the next
// successful submission must pass a brand-new challenge.
func (t *Tutor) requestWalkthrough(ctx context.Context, req domain.TutorRequest) (*domain.TutorResponse, error) {
	sess, err := t.store.Get(req.SessionID)
	if err != nil {
		return nil, err
	}
	l, err := t.lessons.Get(sess.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson %s: %w", sess.LessonID, err)
	}

	challengeDesc := ""
	if sess.CurrentChallenge != nil {
		challengeDesc = sess.CurrentChallenge.Description
	}

	walkthrough := ""
	if t.ai != nil && challengeDesc != "" {
		walkthrough, err = t.ai.Walkthrough(ctx, l.Title, challengeDesc)
		if err != nil {
			slog.Warn("Reasoning walkthrough failed, using offline text", "error", err, "session_id", req.SessionID)
			walkthrough = ""
		}
	}
	if walkthrough == "" {
		walkthrough = offlineWalkthrough(l, sess)
	}

	err = t.store.Update(req.SessionID, func(s *domain.Session) error {
		if s.CurrentChallenge != nil {
			ch := *s.CurrentChallenge
			ch.WalkthroughUsed = true
			s.CurrentChallenge = &ch
		}
		s.Phase = domain.PhaseWalkthrough
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.say(req.SessionID, sess.LessonID, domain.PhaseWalkthrough, walkthrough)

	return &domain.TutorResponse{
		Message:          walkthrough,
		Phase:            domain.PhaseWalkthrough,
		ShowNewChallenge: true,
	}, nil
}

// teachReply is a teaching response plus challenge-offer metadata. ExerciseID
// is set when the offline path poses a lesson exercise.
type teachReply struct {
	Text            string
	OffersChallenge bool
	ExerciseID      string
}

// teach produces the next teaching-track reply. The service path returns a
// tagged decision; the offline path relies on challenge markers in its own
// generated text.
func (t *Tutor) teach(ctx context.Context, l *domain.Lesson, sess *domain.Session, studentMsg string) teachReply {
	if t.ai != nil {
		reply, err := t.ai.Teach(ctx, l, sess.ConversationHistory, studentMsg)
		if err == nil {
			return teachReply{Text: reply.Text, OffersChallenge: reply.OffersChallenge}
		}
		slog.Warn("Reasoning teach failed, using offline path", "error", err, "session_id", sess.ID)
	}

	text, exerciseID := offlineTeaching(l, sess)
	return teachReply{
		Text:            text,
		OffersChallenge: containsChallengeMarkers(text),
		ExerciseID:      exerciseID,
	}
}

// guide produces Socratic guidance during an active challenge.
func (t *Tutor) guide(ctx context.Context, l *domain.Lesson, sess *domain.Session, studentMsg string) string {
	if t.ai != nil {
		challengeDesc := ""
		if sess.CurrentChallenge != nil {
			challengeDesc = sess.CurrentChallenge.Description
		}
		reply, err := t.ai.Guide(ctx, l, challengeDesc, sess.ConversationHistory, studentMsg)
		if err == nil {
			return reply
		}
		slog.Warn("Reasoning guidance failed, using offline text", "error", err, "session_id", sess.ID)
	}
	return "Think about the problem step by step. What do you need to do first?"
}

// newChallenge generates a challenge distinct from the current one.
func (t *Tutor) newChallenge(ctx context.Context, l *domain.Lesson, sess *domain.Session) (string, string) {
	previous := ""
	if sess.CurrentChallenge != nil {
		previous = sess.CurrentChallenge.Description
	}

	if t.ai != nil {
		text, err := t.ai.NewChallenge(ctx, l, previous)
		if err == nil && text != "" && text != previous {
			return text, ""
		}
		if err != nil {
			slog.Warn("Reasoning new-challenge failed, using offline text", "error", err, "session_id", sess.ID)
		}
	}
	return offlineNewChallenge(l, sess, previous)
}

// evaluateMastery judges a successful submission. The offline verdict is
// always mastery with the program output echoed back.
func (t *Tutor) evaluateMastery(ctx context.Context, sess *domain.Session, l *domain.Lesson, code string, result *domain.ExecutionResult) reasoning.Evaluation {
	if t.ai != nil {
		challengeDesc := ""
		if sess.CurrentChallenge != nil {
			challengeDesc = sess.CurrentChallenge.Description
		}
		ev, err := t.ai.Evaluate(ctx, l, challengeDesc, code, result.Output)
		if err == nil {
			return ev
		}
		slog.Warn("Reasoning evaluation failed, using offline verdict", "error", err, "session_id", sess.ID)
	}

	return reasoning.Evaluation{
		Mastered: true,
		Feedback: fmt.Sprintf(
			"Great job! Your code works! Output:\n%s\n\nYou've demonstrated understanding of this lesson!",
			result.Output,
		),
	}
}

// say records a tutor message in the session history and the transcript.
// Both are best-effort: a reply already produced is returned to the learner
// even if the session vanished under eviction meanwhile.
func (t *Tutor) say(sessionID uuid.UUID, lessonID string, phase domain.TeachingPhase, content string) {
	if err := t.store.AppendMessage(sessionID, domain.RoleTutor, content); err != nil {
		slog.Warn("Failed to record tutor message", "error", err, "session_id", sessionID)
	}
	t.log.Log(transcript.Event{
		SessionID: sessionID.String(),
		LessonID:  lessonID,
		Role:      string(domain.RoleTutor),
		Phase:     string(phase),
		Content:   content,
	})
}
