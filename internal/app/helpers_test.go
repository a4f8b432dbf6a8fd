package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

var quizStart = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	service *app.QuizService
	store   *memory.Store
	clock   *clock
}

// newFixture seeds quiz-1: open for two hours, 15 minute attempts, three
// mcq questions worth 1, 2 and 3 marks. The correct option of qN is qN-right.
func newFixture(t *testing.T, mutate func(*domain.Quiz)) *fixture {
	t.Helper()
	quiz := domain.Quiz{
		ID:        "quiz-1",
		Title:     "Arithmetic",
		StartTime: quizStart,
		EndTime:   quizStart.Add(2 * time.Hour),
		Duration:  15,
		Mode:      domain.ModeTest,
		Status:    domain.PhaseScheduled,
	}
	if mutate != nil {
		mutate(&quiz)
	}
	store := memory.NewStore()
	store.PutQuiz(quiz, []domain.Question{
		mcq("q1", 1, 1),
		mcq("q2", 2, 2),
		mcq("q3", 3, 3),
	})

	clk := &clock{now: quizStart.Add(time.Minute)}
	service := app.NewQuizService(app.Deps{
		Quizzes:   store,
		Attempts:  store,
		Requests:  store,
		Reports:   store,
		Gate:      memory.NewAccessGate(),
		Standings: memory.NewStandingsCache(store, 10, time.Minute),
		Feeds:     memory.NewFeedStore(),
		Now:       clk.Now,
	})
	return &fixture{service: service, store: store, clock: clk}
}

func mcq(id string, order, marks int) domain.Question {
	return domain.Question{
		ID:    id,
		Text:  "question " + id,
		Type:  domain.QuestionMCQ,
		Marks: marks,
		Order: order,
		Options: []domain.Option{
			{ID: id + "-wrong", Text: "wrong"},
			{ID: id + "-right", Text: "right", Correct: true},
		},
	}
}

func participant(id string) app.Participant {
	return app.Participant{UserID: id, Username: "name-" + id, SessionID: "session-" + id}
}

// begin visits and starts the quiz for p.
func (f *fixture) begin(t *testing.T, p app.Participant) app.Step {
	t.Helper()
	ctx := context.Background()
	if _, err := f.service.Detail(ctx, "quiz-1", p); err != nil {
		t.Fatalf("detail: %v", err)
	}
	step, err := f.service.Start(ctx, "quiz-1", p)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return step
}

func (f *fixture) answer(t *testing.T, p app.Participant, order int, optionID string) app.Step {
	t.Helper()
	step, err := f.service.SubmitAnswer(context.Background(), "quiz-1", p, order, app.AnswerPayload{OptionID: optionID})
	if err != nil {
		t.Fatalf("submit answer %d: %v", order, err)
	}
	return step
}

func (f *fixture) finish(t *testing.T, p app.Participant) app.Result {
	t.Helper()
	result, err := f.service.Finish(context.Background(), "quiz-1", p)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	return result
}
