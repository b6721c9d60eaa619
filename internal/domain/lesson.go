package domain

// Lesson is a unit of curriculum loaded from a definition file.
type Lesson struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Objectives  []string   `json:"objectives" yaml:"objectives"`
	Concepts    []string   `json:"concepts" yaml:"concepts"`
	Examples    []string   `json:"examples" yaml:"examples"`
	StarterCode string     `json:"starter_code" yaml:"starter_code"`
	Exercises   []Exercise `json:"exercises" yaml:"exercises"`
	Hints       []string   `json:"hints" yaml:"hints"`
}

// Exercise is a gradable task belonging to a lesson. TestCode is appended to
// the learner's submission before sandbox execution.
type Exercise struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	TestCode    string `json:"test_code" yaml:"test_code"`
	Solution    string `json:"solution_example,omitempty" yaml:"solution_example"`
}

// LessonSummary is the listing form of a lesson.
type LessonSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Summary returns the listing form of the lesson.
func (l *Lesson) Summary() LessonSummary {
	return LessonSummary{ID: l.ID, Title: l.Title, Description: l.Description}
}

// Exercise returns the lesson's exercise with the given id, or
// ErrExerciseNotFound.
func (l *Lesson) Exercise(id string) (*Exercise, error) {
	for i := range l.Exercises {
		if l.Exercises[i].ID == id {
			return &l.Exercises[i], nil
		}
	}
	return nil, ErrExerciseNotFound
}
