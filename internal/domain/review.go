package domain

// CodeQuality is a four-level rating assigned by a code review.
type CodeQuality string

const (
	QualityExcellent        CodeQuality = "excellent"
	QualityGood             CodeQuality = "good"
	QualityNeedsImprovement CodeQuality = "needs_improvement"
	QualityPoor             CodeQuality = "poor"
)

// Review is structured feedback on a code submission.
type Review struct {
	Feedback                string      `json:"feedback"`
	Suggestions             []string    `json:"suggestions"`
	CodeQuality             CodeQuality `json:"code_quality"`
	FollowsLessonObjectives bool        `json:"follows_lesson_objectives"`
}
