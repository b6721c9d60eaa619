// Package review grades code submissions with deterministic rules. It is the
// fallback path when no reasoning service is configured or reachable.
package review

import (
	"fmt"
	"strings"

	"codetutor/internal/domain"
)

const minCodeLength = 10

// Heuristic scores a submission on three presence signals: minimal length, a
// function definition when the lesson objectives call for one, and multi-line
// structure. The 0-3 score maps onto the four quality levels; a score of 2 or
// more counts as meeting the lesson objectives.
func Heuristic(code string, lesson *domain.Lesson) domain.Review {
	var suggestions []string
	score := 0

	if len(code) < minCodeLength {
		suggestions = append(suggestions, "Your code seems quite short. Make sure you've completed all the requirements.")
	} else {
		score++
	}

	wantsFunction := false
	for _, obj := range lesson.Objectives {
		if strings.Contains(strings.ToLower(obj), "function") {
			wantsFunction = true
			break
		}
	}
	hasDef := strings.Contains(code, "def ")
	switch {
	case hasDef:
		score++
	case wantsFunction:
		suggestions = append(suggestions, "This lesson requires defining a function. Consider using 'def' to create one.")
	}

	if len(strings.Split(code, "\n")) > 1 {
		score++
	}

	var quality domain.CodeQuality
	switch score {
	case 3:
		quality = domain.QualityExcellent
	case 2:
		quality = domain.QualityGood
	case 1:
		quality = domain.QualityNeedsImprovement
	default:
		quality = domain.QualityPoor
	}

	note := "Keep up the good work!"
	if len(suggestions) > 0 {
		note = "Here are some suggestions to improve your code."
	}

	return domain.Review{
		Feedback:                fmt.Sprintf("Code review for '%s': Your code has been submitted. %s", lesson.Title, note),
		Suggestions:             suggestions,
		CodeQuality:             quality,
		FollowsLessonObjectives: score >= 2,
	}
}
