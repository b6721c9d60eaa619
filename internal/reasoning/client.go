// Package reasoning integrates the hosted reasoning service that generates
// tutoring prose. Every method returns structured output; callers fall back
// to local heuristics on any error, so failures here never reach the learner.
package reasoning

import (
	"context"

	"codetutor/internal/domain"
)

// TeachReply is a teaching response plus the service's tagged decision on
// whether it constitutes a challenge offer. Phase transitions key off the
// tag, not off prose scanning.
type TeachReply struct {
	Text            string
	OffersChallenge bool
}

// Evaluation is the structured verdict on a code submission.
type Evaluation struct {
	Mastered bool
	Feedback string
}

// Client generates tutoring text. Implementations must honor the context
// deadline; slow upstream responses are treated as failures by callers.
type Client interface {
	// Introduce produces the opening message for a lesson.
	Introduce(ctx context.Context, lesson *domain.Lesson) (string, error)

	// Teach continues the concept-teaching dialogue and decides whether
	// the reply poses a challenge.
	Teach(ctx context.Context, lesson *domain.Lesson, history []domain.Message, studentMsg string) (TeachReply, error)

	// Guide answers a student message during an active challenge with
	// Socratic questions; it must never contain the full solution.
	Guide(ctx context.Context, lesson *domain.Lesson, challenge string, history []domain.Message, studentMsg string) (string, error)

	// Hint produces one hint about a single aspect of the challenge,
	// more specific as hintsGiven grows.
	Hint(ctx context.Context, challenge string, hintsGiven int) (string, error)

	// Walkthrough explains the full solution step by step.
	Walkthrough(ctx context.Context, lessonTitle, challenge string) (string, error)

	// NewChallenge produces a fresh challenge testing the same
	// objectives, distinct from the previous one.
	NewChallenge(ctx context.Context, lesson *domain.Lesson, previousChallenge string) (string, error)

	// Evaluate judges whether a successful submission demonstrates
	// mastery of the lesson objectives.
	Evaluate(ctx context.Context, lesson *domain.Lesson, challenge, code, output string) (Evaluation, error)

	// Review produces structured feedback on a submission outside the
	// tutoring dialogue.
	Review(ctx context.Context, lesson *domain.Lesson, code string) (domain.Review, error)
}
