package reasoning

import (
	"testing"

	"codetutor/internal/domain"
)

func TestParseTeachReplyChallengeTag(t *testing.T) {
	t.Parallel()

	reply := parseTeachReply("DECISION: CHALLENGE\nYour task: write a function that doubles a number.")
	if !reply.OffersChallenge {
		t.Error("expected challenge decision")
	}
	if reply.Text != "Your task: write a function that doubles a number." {
		t.Errorf("tag not stripped from text: %q", reply.Text)
	}
}

func TestParseTeachReplyTeachTag(t *testing.T) {
	t.Parallel()

	reply := parseTeachReply("decision: teach\nLet's look at variables next.")
	if reply.OffersChallenge {
		t.Error("expected teach decision")
	}
	if reply.Text != "Let's look at variables next." {
		t.Errorf("unexpected text: %q", reply.Text)
	}
}

func TestParseTeachReplyMissingTagIsProse(t *testing.T) {
	t.Parallel()

	reply := parseTeachReply("Variables hold values.\nTry to guess what x is.")
	if reply.OffersChallenge {
		t.Error("untagged reply must not be treated as a challenge offer")
	}
	if reply.Text == "" {
		t.Error("prose should be preserved")
	}
}

func TestParseEvaluation(t *testing.T) {
	t.Parallel()

	ev := parseEvaluation("MASTERY: YES\nFEEDBACK: Great work using a loop here.")
	if !ev.Mastered {
		t.Error("expected mastery")
	}
	if ev.Feedback != "Great work using a loop here." {
		t.Errorf("unexpected feedback: %q", ev.Feedback)
	}

	ev = parseEvaluation("MASTERY: NO\nFEEDBACK: Almost there, check your return value.")
	if ev.Mastered {
		t.Error("expected no mastery")
	}
}

func TestParseReview(t *testing.T) {
	t.Parallel()

	review := parseReview("Excellent work overall.\n- consider naming the variable\n1. add a docstring")
	if review.CodeQuality != domain.QualityExcellent {
		t.Errorf("unexpected quality: %v", review.CodeQuality)
	}
	if len(review.Suggestions) != 2 {
		t.Errorf("expected 2 suggestions, got %v", review.Suggestions)
	}
	if !review.FollowsLessonObjectives {
		t.Error("expected objectives met by default")
	}

	review = parseReview("This does not meet the objectives and needs improvement.")
	if review.FollowsLessonObjectives {
		t.Error("expected objectives not met")
	}
	if review.CodeQuality != domain.QualityNeedsImprovement {
		t.Errorf("unexpected quality: %v", review.CodeQuality)
	}
}

func TestParseReviewMultiByteLeadingRune(t *testing.T) {
	t.Parallel()

	// A full-width digit spans several bytes; the first byte alone would
	// not classify as a digit.
	review := parseReview("Good effort.\n１. split the logic into a helper")
	if len(review.Suggestions) != 1 {
		t.Errorf("full-width numbered line not collected: %v", review.Suggestions)
	}
}
