package reasoning

import (
	"fmt"
	"strings"

	"codetutor/internal/domain"
)

// historyContext renders the most recent conversation entries for prompt
// inclusion.
func historyContext(history []domain.Message) string {
	start := 0
	if len(history) > 10 {
		start = len(history) - 10
	}
	var b strings.Builder
	for _, msg := range history[start:] {
		role := "System"
		switch msg.Role {
		case domain.RoleTutor:
			role = "Tutor"
		case domain.RoleStudent:
			role = "Student"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
	}
	return b.String()
}

func introducePrompt(lesson *domain.Lesson) string {
	return fmt.Sprintf(`You are an enthusiastic and encouraging Python programming tutor.

Introduce this lesson to a beginner:

Lesson: %s
Description: %s
Objectives: %s

Provide a warm, encouraging introduction that explains what they'll learn and
why it's useful, and gets them excited to start. Keep it to 2-3 paragraphs.
End by asking if they're ready to learn about the first concept.`,
		lesson.Title, lesson.Description, strings.Join(lesson.Objectives, ", "))
}

func teachPrompt(lesson *domain.Lesson, history []domain.Message, studentMsg string) string {
	return fmt.Sprintf(`You are a patient Python programming tutor using the Socratic method.

Lesson: %s
Objectives: %s
Key Concepts: %s

Previous conversation:
%s
Student's latest message: %q

Continue teaching about these concepts, one concept at a time, with simple
examples, checking for understanding. When you've covered the key concepts and
the student seems ready, present a coding challenge that tests the objectives.

Begin your reply with exactly one line:
DECISION: CHALLENGE    (if this reply poses a coding challenge)
DECISION: TEACH        (otherwise)
Then, on the following lines, write your message to the student.`,
		lesson.Title, strings.Join(lesson.Objectives, ", "), strings.Join(lesson.Concepts, ", "),
		historyContext(history), studentMsg)
}

func guidePrompt(lesson *domain.Lesson, challenge string, history []domain.Message, studentMsg string) string {
	return fmt.Sprintf(`You are a Python tutor helping a student solve a coding challenge using the Socratic method.

Lesson Objectives: %s
Challenge: %s

Conversation history:
%s
Student says: %q

Provide guidance using the Socratic method: ask guiding questions rather than
giving answers, suggest approaches without solving it for them, and encourage
them to try things. NEVER give the direct answer or complete solution. If they
seem very stuck, remind them they can request a hint or walkthrough.`,
		strings.Join(lesson.Objectives, ", "), challenge, historyContext(history), studentMsg)
}

func hintPrompt(challenge string, hintsGiven int) string {
	return fmt.Sprintf(`You are providing a hint to a student stuck on a Python coding challenge.

Challenge: %s
Hints already given: %d

Provide one helpful hint that points them in the right direction without
giving away the answer. Focus on ONE specific aspect they should consider,
and be progressively more specific the more hints have already been given.`,
		challenge, hintsGiven)
}

func walkthroughPrompt(lessonTitle, challenge string) string {
	return fmt.Sprintf(`You are walking a student through solving a Python coding challenge step-by-step.

Lesson: %s
Challenge: %s

Break down the problem, explain each step of the solution, and show the code
with detailed explanations. End by explaining that since you walked them
through this, you'll now give them a NEW, DIFFERENT challenge to prove they
understood.`, lessonTitle, challenge)
}

func newChallengePrompt(lesson *domain.Lesson, previousChallenge string) string {
	return fmt.Sprintf(`You are a Python tutor. The student needed a walkthrough for this challenge:

Previous Challenge: %s

Generate a NEW, DIFFERENT challenge that tests the same concepts and
objectives (%s), is similar in difficulty, uses a different scenario, and is
NOT the same as the previous challenge. Explain that since they needed help
with the first challenge, this new one lets them demonstrate they truly
understand the concept.`, previousChallenge, strings.Join(lesson.Objectives, ", "))
}

func evaluatePrompt(lesson *domain.Lesson, challenge, code, output string) string {
	return fmt.Sprintf(`You are evaluating a student's Python code for a learning challenge.

Lesson Objectives: %s
Challenge: %s

Student's Code:
`+"```python\n%s\n```"+`

Output: %s

Evaluate whether the student demonstrated understanding of the lesson
objectives: does the code solve the challenge, does it show understanding of
the key concepts, and is the approach reasonable for a beginner?

Respond in exactly this format:
MASTERY: [YES or NO]
FEEDBACK: [your encouraging feedback]

If YES, congratulate them and explain what they did well. If NO, provide
constructive feedback on what to improve without giving the answer.`,
		strings.Join(lesson.Objectives, ", "), challenge, code, output)
}

func reviewPrompt(lesson *domain.Lesson, code string) string {
	return fmt.Sprintf(`You are a helpful Python programming tutor. Review the following student code for a lesson.

Lesson: %s
Description: %s
Objectives: %s

Student Code:
`+"```python\n%s\n```"+`

Please provide overall feedback on quality and correctness, specific
suggestions for improvement (as bullet points), whether the code meets the
lesson objectives, and a code quality rating: Excellent, Good,
NeedsImprovement, or Poor. Keep the feedback encouraging and constructive.`,
		lesson.Title, lesson.Description, strings.Join(lesson.Objectives, ", "), code)
}
