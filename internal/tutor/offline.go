package tutor

import (
	"fmt"
	"strings"

	"codetutor/internal/domain"
)

// challengeMarkers are the case-insensitive substrings that mark a teaching
// reply as a challenge offer. They apply only to the offline path; the
// reasoning service reports its decision as a structured tag instead.
var challengeMarkers = []string{"challenge", "try to", "your task"}

func containsChallengeMarkers(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func offlineIntroduction(l *domain.Lesson) string {
	var objectives strings.Builder
	for _, obj := range l.Objectives {
		fmt.Fprintf(&objectives, "• %s\n", obj)
	}
	return fmt.Sprintf(
		"Welcome to %s!\n\n%s\n\nIn this lesson, you'll learn:\n%s\nAre you ready to get started?",
		l.Title, l.Description, objectives.String(),
	)
}

// offlineTeaching produces the teaching-track reply without a reasoning
// service. The first exchange teaches; afterwards it poses the lesson's next
// open exercise so the dialogue can still reach the challenge phase offline.
func offlineTeaching(l *domain.Lesson, sess *domain.Session) (string, string) {
	studentTurns := 0
	for _, msg := range sess.ConversationHistory {
		if msg.Role == domain.RoleStudent {
			studentTurns++
		}
	}

	if studentTurns <= 1 {
		var b strings.Builder
		fmt.Fprintf(&b, "Let's learn about %s.", l.Title)
		if len(l.Concepts) > 0 {
			fmt.Fprintf(&b, " The key ideas are: %s.", strings.Join(l.Concepts, ", "))
		}
		if len(l.Examples) > 0 {
			fmt.Fprintf(&b, "\n\nHere's an example to study:\n%s", l.Examples[0])
		}
		b.WriteString("\n\nTell me when it makes sense and we'll move on.")
		return b.String(), ""
	}

	if ex := nextExercise(l, sess); ex != nil {
		return fmt.Sprintf("Here's a challenge for you!\n\nYour task: %s", ex.Description), ex.ID
	}

	return fmt.Sprintf("Let's keep practicing %s. Write some code that uses what we've covered and submit it.", l.Title), ""
}

func offlineHint(l *domain.Lesson, hintsGiven int) string {
	if len(l.Hints) > 0 {
		idx := hintsGiven
		if idx >= len(l.Hints) {
			idx = len(l.Hints) - 1
		}
		return l.Hints[idx]
	}
	return "Try breaking down the problem into smaller steps. What's the first thing you need to do?"
}

func offlineWalkthrough(l *domain.Lesson, sess *domain.Session) string {
	var b strings.Builder
	b.WriteString("Let me walk you through this step by step.")

	if sess.CurrentChallenge != nil && sess.CurrentChallenge.ExerciseID != "" {
		for i := range l.Exercises {
			ex := &l.Exercises[i]
			if ex.ID == sess.CurrentChallenge.ExerciseID && ex.Solution != "" {
				fmt.Fprintf(&b, " Here's one way to solve it:\n\n%s\n", ex.Solution)
				break
			}
		}
	}

	b.WriteString("\nSince I've helped you through this, I'll give you a new challenge to demonstrate your understanding.")
	return b.String()
}

// offlineNewChallenge yields a challenge guaranteed to differ textually from
// the previous one.
func offlineNewChallenge(l *domain.Lesson, sess *domain.Session, previous string) (string, string) {
	if ex := nextExercise(l, sess); ex != nil {
		text := fmt.Sprintf(
			"Since we worked through that one together, here's a new challenge to show what you've learned.\n\nYour task: %s",
			ex.Description,
		)
		if text != previous {
			return text, ex.ID
		}
	}

	text := "Great! Now try creating a similar solution but for a different scenario. You've got this!"
	if text == previous {
		text += " Pick an example we haven't used yet."
	}
	return text, ""
}

// nextExercise returns the first lesson exercise the learner has neither
// completed nor currently been posed, or nil.
func nextExercise(l *domain.Lesson, sess *domain.Session) *domain.Exercise {
	done := make(map[string]bool, len(sess.CompletedExercises))
	for _, id := range sess.CompletedExercises {
		done[id] = true
	}
	current := ""
	if sess.CurrentChallenge != nil {
		current = sess.CurrentChallenge.ExerciseID
	}

	for i := range l.Exercises {
		ex := &l.Exercises[i]
		if !done[ex.ID] && ex.ID != current {
			return ex
		}
	}
	return nil
}
