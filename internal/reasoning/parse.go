package reasoning

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"codetutor/internal/domain"
)

// parseTeachReply splits the DECISION tag off a teaching response. A missing
// tag is treated as plain teaching prose.
func parseTeachReply(raw string) TeachReply {
	trimmed := strings.TrimSpace(raw)
	line, rest, found := strings.Cut(trimmed, "\n")
	if !found {
		line, rest = trimmed, ""
	}

	switch strings.ToUpper(strings.TrimSpace(line)) {
	case "DECISION: CHALLENGE":
		return TeachReply{Text: strings.TrimSpace(rest), OffersChallenge: true}
	case "DECISION: TEACH":
		return TeachReply{Text: strings.TrimSpace(rest)}
	default:
		return TeachReply{Text: trimmed}
	}
}

// parseEvaluation extracts the MASTERY verdict and FEEDBACK body.
func parseEvaluation(raw string) Evaluation {
	ev := Evaluation{
		Mastered: strings.Contains(strings.ToUpper(raw), "MASTERY: YES"),
	}

	if _, after, found := strings.Cut(raw, "FEEDBACK:"); found {
		ev.Feedback = strings.TrimSpace(after)
	} else {
		ev.Feedback = strings.TrimSpace(raw)
	}
	return ev
}

// parseReview derives a structured review from free-form feedback text.
func parseReview(raw string) domain.Review {
	lower := strings.ToLower(raw)

	quality := domain.QualityGood
	switch {
	case strings.Contains(lower, "excellent"):
		quality = domain.QualityExcellent
	case strings.Contains(lower, "needs improvement"), strings.Contains(lower, "poor"):
		quality = domain.QualityNeedsImprovement
	case strings.Contains(lower, "good"):
		quality = domain.QualityGood
	}

	followsObjectives := !strings.Contains(lower, "does not meet") &&
		!strings.Contains(lower, "doesn't meet")

	var suggestions []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		first, _ := utf8.DecodeRuneInString(trimmed)
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "•") || unicode.IsDigit(first) {
			suggestions = append(suggestions, trimmed)
		}
	}

	return domain.Review{
		Feedback:                raw,
		Suggestions:             suggestions,
		CodeQuality:             quality,
		FollowsLessonObjectives: followsObjectives,
	}
}
