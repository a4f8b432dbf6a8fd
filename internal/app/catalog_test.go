package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"timed-quiz-service/internal/domain"
)

func TestCreateQuizAppliesDefaults(t *testing.T) {
	f := newFixture(t, nil)
	created, err := f.service.CreateQuiz(context.Background(), domain.Quiz{
		Title:     "  History  ",
		StartTime: quizStart,
		EndTime:   quizStart.Add(time.Hour),
	}, []domain.Question{
		{Text: "Year of the moon landing?", Options: []domain.Option{{Text: "1969", Correct: true}, {Text: "1970"}}},
		{Text: "Describe the event", Type: domain.QuestionText, Options: []domain.Option{{Text: "ignored"}}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Title != "History" || created.Mode != domain.ModeTest || created.Duration != 10 || created.Status != domain.PhaseOngoing {
		t.Fatalf("unexpected defaults %+v", created)
	}

	questions, err := f.store.ListQuestions(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].Type != domain.QuestionMCQ || questions[0].Marks != 1 || questions[0].Order != 1 {
		t.Fatalf("unexpected mcq defaults %+v", questions[0])
	}
	if questions[1].Order != 2 || len(questions[1].Options) != 0 {
		t.Fatalf("text question must drop options, got %+v", questions[1])
	}
}

func TestCreateQuizValidation(t *testing.T) {
	valid := domain.Quiz{Title: "Quiz", StartTime: quizStart, EndTime: quizStart.Add(time.Hour)}
	tests := []struct {
		name      string
		quiz      func(q domain.Quiz) domain.Quiz
		questions []domain.Question
	}{
		{name: "missing title", quiz: func(q domain.Quiz) domain.Quiz { q.Title = " "; return q }},
		{name: "end before start", quiz: func(q domain.Quiz) domain.Quiz { q.EndTime = q.StartTime.Add(-time.Minute); return q }},
		{name: "missing schedule", quiz: func(q domain.Quiz) domain.Quiz { q.StartTime = time.Time{}; return q }},
		{name: "negative duration", quiz: func(q domain.Quiz) domain.Quiz { q.Duration = -5; return q }},
		{name: "negative cap", quiz: func(q domain.Quiz) domain.Quiz { q.MaxQuestions = -1; return q }},
		{name: "unknown mode", quiz: func(q domain.Quiz) domain.Quiz { q.Mode = "exam"; return q }},
		{name: "empty question", questions: []domain.Question{{Text: "  "}}},
		{name: "unknown type", questions: []domain.Question{{Text: "Q", Type: "essay"}}},
		{name: "negative marks", questions: []domain.Question{{Text: "Q", Marks: -1}}},
		{name: "duplicate order", questions: []domain.Question{{Text: "A", Order: 1}, {Text: "B", Order: 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			quiz := valid
			if tc.quiz != nil {
				quiz = tc.quiz(quiz)
			}
			_, err := f.service.CreateQuiz(context.Background(), quiz, tc.questions)
			if !errors.Is(err, domain.ErrInvalidQuiz) {
				t.Fatalf("expected ErrInvalidQuiz, got %v", err)
			}
		})
	}
}

func TestDeleteQuizRemovesEverything(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := participant("alice")
	f.begin(t, alice)
	f.finish(t, alice)

	if err := f.service.DeleteQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.service.Status(ctx, "quiz-1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound after delete, got %v", err)
	}
	if _, err := f.store.GetAttempt(ctx, "quiz-1", "alice"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("attempts must go with the quiz, got %v", err)
	}
	if err := f.service.DeleteQuiz(ctx, "quiz-1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound on second delete, got %v", err)
	}
}

func TestListQuizzesRefreshesStatusMemo(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	quizzes, err := f.service.ListQuizzes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0].Status != domain.PhaseOngoing {
		t.Fatalf("expected ongoing memo, got %+v", quizzes)
	}
	stored, _ := f.store.GetQuiz(ctx, "quiz-1")
	if stored.Status != domain.PhaseOngoing {
		t.Fatalf("memo was not persisted, got %q", stored.Status)
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice, bob := participant("alice"), participant("bob")

	f.begin(t, alice)
	f.answer(t, alice, 1, "q1-right")
	f.finish(t, alice)
	f.begin(t, bob)
	f.finish(t, bob)

	req, err := f.service.RequestReattempt(ctx, "quiz-1", alice, "retry")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.service.RequestReattempt(ctx, "quiz-1", bob, "retry"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.service.DecideReattempt(ctx, req.ID, false, "moderator"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	d, err := f.service.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(d.Pending) != 1 || d.Pending[0].UserID != "bob" {
		t.Fatalf("expected bob pending, got %+v", d.Pending)
	}
	if len(d.Rejected) != 1 || d.Rejected[0].ID != req.ID || len(d.Approved) != 0 {
		t.Fatalf("unexpected processed requests %+v / %+v", d.Rejected, d.Approved)
	}
	if len(d.QuizStats) != 1 || d.QuizStats[0].Attempts != 2 || d.QuizStats[0].TotalScore != 1 {
		t.Fatalf("unexpected quiz stats %+v", d.QuizStats)
	}
	if len(d.UserStats) != 2 {
		t.Fatalf("expected stats for both users, got %+v", d.UserStats)
	}
}
