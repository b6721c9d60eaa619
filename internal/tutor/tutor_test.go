package tutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"codetutor/internal/domain"
	"codetutor/internal/reasoning"
	"codetutor/internal/session"
)

type fakeLessons struct {
	lessons map[string]*domain.Lesson
}

func (f *fakeLessons) Get(id string) (*domain.Lesson, error) {
	l, ok := f.lessons[id]
	if !ok {
		return nil, domain.ErrLessonNotFound
	}
	return l, nil
}

func (f *fakeLessons) All() []domain.LessonSummary {
	var out []domain.LessonSummary
	for _, l := range f.lessons {
		out = append(out, l.Summary())
	}
	return out
}

type fakeRunner struct {
	result   *domain.ExecutionResult
	err      error
	lastCode string
	calls    int
}

func (f *fakeRunner) Execute(_ context.Context, code string, _ time.Duration) (*domain.ExecutionResult, error) {
	f.calls++
	f.lastCode = code
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

func (f *fakeRunner) ExecuteWithTests(ctx context.Context, code, testCode string) (*domain.ExecutionResult, error) {
	return f.Execute(ctx, code+"\n\n"+testCode, 0)
}

// fakeAI drives the structured service path deterministically.
type fakeAI struct {
	teach      reasoning.TeachReply
	teachErr   error
	evaluation reasoning.Evaluation
	evalErr    error
}

func (f *fakeAI) Introduce(context.Context, *domain.Lesson) (string, error) {
	return "service intro", nil
}

func (f *fakeAI) Teach(context.Context, *domain.Lesson, []domain.Message, string) (reasoning.TeachReply, error) {
	return f.teach, f.teachErr
}

func (f *fakeAI) Guide(context.Context, *domain.Lesson, string, []domain.Message, string) (string, error) {
	return "what would happen if you tried a smaller input?", nil
}

func (f *fakeAI) Hint(_ context.Context, _ string, hintsGiven int) (string, error) {
	return "service hint " + strings.Repeat("!", hintsGiven+1), nil
}

func (f *fakeAI) Walkthrough(context.Context, string, string) (string, error) {
	return "service walkthrough", nil
}

func (f *fakeAI) NewChallenge(context.Context, *domain.Lesson, string) (string, error) {
	return "a completely different task", nil
}

func (f *fakeAI) Evaluate(context.Context, *domain.Lesson, string, string, string) (reasoning.Evaluation, error) {
	return f.evaluation, f.evalErr
}

func (f *fakeAI) Review(context.Context, *domain.Lesson, string) (domain.Review, error) {
	return domain.Review{}, errors.New("not used")
}

func testLesson() *domain.Lesson {
	return &domain.Lesson{
		ID:          "02-functions",
		Title:       "Functions",
		Description: "Defining and calling functions.",
		Objectives:  []string{"write a function"},
		Concepts:    []string{"def", "return values"},
		Exercises: []domain.Exercise{
			{ID: "ex1", Description: "Write a function add(a, b) that returns their sum.", TestCode: "assert add(1, 2) == 3", Solution: "def add(a, b):\n    return a + b"},
			{ID: "ex2", Description: "Write a function double(n) that returns n * 2.", TestCode: "assert double(2) == 4"},
		},
		Hints: []string{"Start with the def keyword.", "Your function needs a return statement."},
	}
}

func newTestTutor(t *testing.T, ai reasoning.Client, runner *fakeRunner) (*Tutor, *session.Store) {
	t.Helper()
	store := session.NewStore()
	lessons := &fakeLessons{lessons: map[string]*domain.Lesson{"02-functions": testLesson()}}
	if runner == nil {
		runner = &fakeRunner{result: &domain.ExecutionResult{Success: true, Output: "3\n"}}
	}
	return New(store, lessons, runner, ai, nil, 10*time.Second), store
}

func startSession(t *testing.T, tut *Tutor) uuid.UUID {
	t.Helper()
	id := uuid.New()
	resp, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id,
		LessonID:  "02-functions",
		Kind:      domain.KindStartLesson,
	})
	if err != nil {
		t.Fatalf("StartLesson failed: %v", err)
	}
	if resp.Phase != domain.PhaseIntroduction {
		t.Fatalf("expected introduction phase, got %v", resp.Phase)
	}
	return id
}

func TestStartLessonUnknownLesson(t *testing.T) {
	t.Parallel()

	tut, _ := newTestTutor(t, nil, nil)
	_, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: uuid.New(),
		LessonID:  "missing",
		Kind:      domain.KindStartLesson,
	})
	if !errors.Is(err, domain.ErrLessonNotFound) {
		t.Errorf("expected ErrLessonNotFound, got %v", err)
	}
}

func TestStartLessonResetsSessionState(t *testing.T) {
	t.Parallel()

	tut, store := newTestTutor(t, nil, nil)
	id := startSession(t, tut)

	// Pollute the session, then restart the lesson.
	_ = store.Update(id, func(s *domain.Session) error {
		s.Phase = domain.PhaseMastery
		s.CurrentChallenge = &domain.Challenge{Description: "old"}
		return nil
	})

	if _, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, LessonID: "02-functions", Kind: domain.KindStartLesson,
	}); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	sess, _ := store.Get(id)
	if sess.Phase != domain.PhaseIntroduction {
		t.Errorf("phase not reset: %v", sess.Phase)
	}
	if sess.CurrentChallenge != nil {
		t.Error("challenge not cleared on restart")
	}
	if len(sess.ConversationHistory) != 1 {
		t.Errorf("history not reset, got %d messages", len(sess.ConversationHistory))
	}
}

func TestSendMessageValidation(t *testing.T) {
	t.Parallel()

	tut, _ := newTestTutor(t, nil, nil)
	id := startSession(t, tut)

	_, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, LessonID: "02-functions", Kind: domain.KindSendMessage,
	})
	var mf *domain.MissingFieldError
	if !errors.As(err, &mf) || mf.Field != "message" {
		t.Errorf("expected missing message field error, got %v", err)
	}

	_, err = tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: uuid.New(), Kind: domain.KindSendMessage, Message: "hi",
	})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestOfflineTeachingReachesChallenge(t *testing.T) {
	t.Parallel()

	tut, store := newTestTutor(t, nil, nil)
	id := startSession(t, tut)

	resp, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSendMessage, Message: "ready to learn",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if resp.Phase != domain.PhaseTeaching {
		t.Fatalf("first exchange should stay teaching, got %v", resp.Phase)
	}

	resp, err = tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSendMessage, Message: "makes sense",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if resp.Phase != domain.PhaseChallenge {
		t.Fatalf("second exchange should pose a challenge, got %v", resp.Phase)
	}
	if !strings.Contains(strings.ToLower(resp.Message), "your task") {
		t.Errorf("challenge reply missing task text: %q", resp.Message)
	}

	sess, _ := store.Get(id)
	if sess.CurrentChallenge == nil {
		t.Fatal("challenge not stored")
	}
	if sess.CurrentChallenge.Description != resp.Message {
		t.Error("stored challenge should carry the reply text")
	}
	if sess.CurrentChallenge.HintsGiven != 0 || sess.CurrentChallenge.WalkthroughUsed {
		t.Errorf("new challenge not pristine: %+v", sess.CurrentChallenge)
	}
}

func TestServiceTeachingUsesStructuredDecision(t *testing.T) {
	t.Parallel()

	// Prose mentioning "challenge" without the tag must NOT transition.
	ai := &fakeAI{teach: reasoning.TeachReply{Text: "A challenge I once faced was naming things."}}
	tut, store := newTestTutor(t, ai, nil)
	id := startSession(t, tut)

	resp, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSendMessage, Message: "tell me more",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if resp.Phase != domain.PhaseTeaching {
		t.Errorf("untagged prose should not transition, got %v", resp.Phase)
	}

	ai.teach = reasoning.TeachReply{Text: "Write a program that greets the user.", OffersChallenge: true}
	resp, err = tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSendMessage, Message: "I'm ready",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if resp.Phase != domain.PhaseChallenge {
		t.Errorf("tagged offer should transition, got %v", resp.Phase)
	}
	sess, _ := store.Get(id)
	if sess.CurrentChallenge == nil || sess.CurrentChallenge.Description != "Write a program that greets the user." {
		t.Errorf("challenge not materialized from tagged reply: %+v", sess.CurrentChallenge)
	}
}

func TestSubmitCodeValidation(t *testing.T) {
	t.Parallel()

	tut, _ := newTestTutor(t, nil, nil)
	id := startSession(t, tut)

	_, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSubmitCode,
	})
	var mf *domain.MissingFieldError
	if !errors.As(err, &mf) || mf.Field != "code" {
		t.Errorf("expected missing code field error, got %v", err)
	}
}

func TestSubmitCodeExecutionFailureStaysInChallenge(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: &domain.ExecutionResult{
		Success: false,
		Error:   "NameError: name 'ad' is not defined",
	}}
	tut, store := newTestTutor(t, nil, runner)
	id := startSession(t, tut)

	resp, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSubmitCode, Code: "ad(1, 2)",
	})
	if err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	if resp.Phase != domain.PhaseChallenge {
		t.Errorf("execution failure should land in challenge, got %v", resp.Phase)
	}
	if resp.ShowNewChallenge {
		t.Error("execution failure must not raise a new challenge")
	}
	if !strings.Contains(resp.Message, "NameError") {
		t.Errorf("feedback should surface the captured error: %q", resp.Message)
	}
	if resp.CodeResult == nil || resp.CodeResult.Success {
		t.Error("execution result should be attached and unsuccessful")
	}

	sess, _ := store.Get(id)
	if len(sess.CodeHistory) != 1 || sess.CodeHistory[0] != "ad(1, 2)" {
		t.Errorf("submission not recorded in code history: %v", sess.CodeHistory)
	}
}

func TestSubmitCodeInfrastructureFailurePropagates(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("create container: daemon unreachable")}
	tut, _ := newTestTutor(t, nil, runner)
	id := startSession(t, tut)

	if _, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSubmitCode, Code: "print(1)",
	}); err == nil {
		t.Fatal("expected sandbox infrastructure failure to propagate")
	}
}

func TestOfflineMasteryOnSuccessfulSubmission(t *testing.T) {
	t.Parallel()

	tut, store := newTestTutor(t, nil, nil)
	id := startSession(t, tut)

	// Pose a challenge first so mastery can record the exercise.
	for _, msg := range []string{"ready", "makes sense"} {
		if _, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
			SessionID: id, Kind: domain.KindSendMessage, Message: msg,
		}); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	resp, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSubmitCode, Code: "def add(a, b):\n    return a + b\nprint(add(1, 2))",
	})
	if err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	if resp.Phase != domain.PhaseMastery {
		t.Errorf("offline successful submission should reach mastery, got %v", resp.Phase)
	}
	if !strings.Contains(resp.Message, "3\n") {
		t.Errorf("offline feedback should echo stdout: %q", resp.Message)
	}

	sess, _ := store.Get(id)
	if len(sess.CompletedExercises) != 1 || sess.CompletedExercises[0] != "ex1" {
		t.Errorf("mastered exercise not recorded: %v", sess.CompletedExercises)
	}
}

func TestServiceEvaluationCanWithholdMastery(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{
		teach:      reasoning.TeachReply{Text: "Write a greeting program.", OffersChallenge: true},
		evaluation: reasoning.Evaluation{Mastered: false, Feedback: "Close, but your function never returns."},
	}
	tut, _ := newTestTutor(t, ai, nil)
	id := startSession(t, tut)

	if _, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSendMessage, Message: "ready",
	}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	resp, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSubmitCode, Code: "print('hi')",
	})
	if err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	if resp.Phase != domain.PhaseChallenge {
		t.Errorf("withheld mastery should stay in challenge, got %v", resp.Phase)
	}
	if resp.Message != "Close, but your function never returns." {
		t.Errorf("unexpected feedback: %q", resp.Message)
	}
}

func TestRequestHintIncrementsExactlyOncePerCall(t *testing.T) {
	t.Parallel()

	tut, store := newTestTutor(t, nil, nil)
	id := startSession(t, tut)
	for _, msg := range []string{"ready", "makes sense"} {
		if _, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
			SessionID: id, Kind: domain.KindSendMessage, Message: msg,
		}); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	first, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindRequestHint,
	})
	if err != nil {
		t.Fatalf("RequestHint failed: %v", err)
	}
	if first.Phase != domain.PhaseHelping {
		t.Errorf("expected helping phase, got %v", first.Phase)
	}
	if first.Message != "Start with the def keyword." {
		t.Errorf("expected first lesson hint, got %q", first.Message)
	}

	second, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindRequestHint,
	})
	if err != nil {
		t.Fatalf("RequestHint failed: %v", err)
	}
	if second.Message != "Your function needs a return statement." {
		t.Errorf("expected second lesson hint, got %q", second.Message)
	}

	sess, _ := store.Get(id)
	if sess.CurrentChallenge.HintsGiven != 2 {
		t.Errorf("expected hints_given == 2, got %d", sess.CurrentChallenge.HintsGiven)
	}
}

func TestWalkthroughForcesNewChallengeOnNextSuccess(t *testing.T) {
	t.Parallel()

	tut, store := newTestTutor(t, nil, nil)
	id := startSession(t, tut)
	for _, msg := range []string{"ready", "makes sense"} {
		if _, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
			SessionID: id, Kind: domain.KindSendMessage, Message: msg,
		}); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}
	posed, _ := store.Get(id)
	firstChallenge := posed.CurrentChallenge.Description

	resp, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindRequestWalkthrough,
	})
	if err != nil {
		t.Fatalf("RequestWalkthrough failed: %v", err)
	}
	if resp.Phase != domain.PhaseWalkthrough {
		t.Errorf("expected walkthrough phase, got %v", resp.Phase)
	}
	if !resp.ShowNewChallenge {
		t.Error("walkthrough must signal an upcoming new challenge")
	}
	if !strings.Contains(resp.Message, "def add(a, b)") {
		t.Errorf("offline walkthrough should include the exercise solution: %q", resp.Message)
	}

	sess, _ := store.Get(id)
	if !sess.CurrentChallenge.WalkthroughUsed {
		t.Fatal("walkthrough_used not set on stored challenge")
	}

	// The next successful submission must earn a brand-new challenge, not
	// mastery.
	resp, err = tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSubmitCode, Code: "def add(a, b):\n    return a + b",
	})
	if err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	if resp.Phase != domain.PhaseNewChallenge {
		t.Errorf("expected new_challenge phase, got %v", resp.Phase)
	}
	if !resp.ShowNewChallenge {
		t.Error("expected show_new_challenge after post-walkthrough success")
	}
	if resp.Message == firstChallenge {
		t.Error("new challenge must differ from the previous one")
	}

	sess, _ = store.Get(id)
	if sess.CurrentChallenge.Description == firstChallenge {
		t.Error("stored challenge not replaced")
	}
	if sess.CurrentChallenge.WalkthroughUsed {
		t.Error("replacement challenge must start with walkthrough_used=false")
	}
	if sess.CurrentChallenge.HintsGiven != 0 {
		t.Error("replacement challenge must start with zero hints")
	}
}

func TestGuidanceDuringChallengeDoesNotChangePhase(t *testing.T) {
	t.Parallel()

	tut, store := newTestTutor(t, nil, nil)
	id := startSession(t, tut)
	for _, msg := range []string{"ready", "makes sense"} {
		if _, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
			SessionID: id, Kind: domain.KindSendMessage, Message: msg,
		}); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	resp, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSendMessage, Message: "I'm stuck, what do I do?",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if resp.Phase != domain.PhaseChallenge {
		t.Errorf("guidance must not change phase, got %v", resp.Phase)
	}

	sess, _ := store.Get(id)
	if sess.Phase != domain.PhaseChallenge {
		t.Errorf("stored phase changed by guidance: %v", sess.Phase)
	}
}

func TestTeachFallsBackWhenServiceFails(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{teachErr: errors.New("upstream 529")}
	tut, _ := newTestTutor(t, ai, nil)
	id := startSession(t, tut)

	resp, err := tut.HandleRequest(context.Background(), domain.TutorRequest{
		SessionID: id, Kind: domain.KindSendMessage, Message: "ready",
	})
	if err != nil {
		t.Fatalf("upstream failure must not surface to the learner: %v", err)
	}
	if resp.Message == "" {
		t.Error("expected offline teaching text")
	}
}
