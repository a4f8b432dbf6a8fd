package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"timed-quiz-service/internal/domain"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func seededStore() *Store {
	store := NewStore()
	store.PutQuiz(domain.Quiz{
		ID:        "quiz-1",
		Title:     "Arithmetic",
		StartTime: base,
		EndTime:   base.Add(time.Hour),
		Duration:  10,
	}, []domain.Question{
		{
			ID:    "q1",
			Text:  "What is 2 + 2?",
			Type:  domain.QuestionMCQ,
			Marks: 1,
			Order: 1,
			Options: []domain.Option{
				{ID: "o1", Text: "3"},
				{ID: "o2", Text: "4", Correct: true},
			},
		},
	})
	return store
}

func finishedAttempt(t *testing.T, store *Store, userID string, score int, at time.Time) domain.Attempt {
	t.Helper()
	ctx := context.Background()
	attempt, err := store.EnsureAttempt(ctx, "quiz-1", userID, userID, at)
	if err != nil {
		t.Fatalf("ensure attempt: %v", err)
	}
	if _, _, err := store.StartAttempt(ctx, attempt.ID, at, at.Add(10*time.Minute)); err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	attempt, _, err = store.FinishAttempt(ctx, attempt.ID, at.Add(time.Minute), score)
	if err != nil {
		t.Fatalf("finish attempt: %v", err)
	}
	return attempt
}

func TestEnsureAttemptIsUniquePerUser(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	first, err := store.EnsureAttempt(ctx, "quiz-1", "u1", "alice", base)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := store.EnsureAttempt(ctx, "quiz-1", "u1", "alice", base.Add(time.Minute))
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same attempt, got %s and %s", first.ID, second.ID)
	}
	if !second.JoinedAt.Equal(base) {
		t.Fatalf("joined-at changed to %v", second.JoinedAt)
	}

	if _, err := store.EnsureAttempt(ctx, "missing", "u1", "alice", base); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown quiz, got %v", err)
	}
}

func TestStartAndFinishStampOnce(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	attempt, _ := store.EnsureAttempt(ctx, "quiz-1", "u1", "alice", base)

	started, stamped, err := store.StartAttempt(ctx, attempt.ID, base, base.Add(10*time.Minute))
	if err != nil || !stamped {
		t.Fatalf("first start: stamped=%v err=%v", stamped, err)
	}
	again, stamped, err := store.StartAttempt(ctx, attempt.ID, base.Add(time.Minute), base.Add(11*time.Minute))
	if err != nil || stamped {
		t.Fatalf("second start: stamped=%v err=%v", stamped, err)
	}
	if !again.AllowedFinishAt.Equal(*started.AllowedFinishAt) {
		t.Fatalf("allowed finish moved from %v to %v", started.AllowedFinishAt, again.AllowedFinishAt)
	}

	if _, stamped, _ := store.FinishAttempt(ctx, attempt.ID, base.Add(5*time.Minute), 3); !stamped {
		t.Fatalf("expected first finish to stamp")
	}
	finished, stamped, _ := store.FinishAttempt(ctx, attempt.ID, base.Add(6*time.Minute), 9)
	if stamped || finished.Score != 3 {
		t.Fatalf("expected score kept at 3, got %d stamped=%v", finished.Score, stamped)
	}
}

func TestUpsertAnswerLastWriteWins(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	attempt, _ := store.EnsureAttempt(ctx, "quiz-1", "u1", "alice", base)

	first, err := store.UpsertAnswer(ctx, domain.Answer{AttemptID: attempt.ID, QuestionID: "q1", SelectedOptionID: "o1", AnsweredAt: base})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := store.UpsertAnswer(ctx, domain.Answer{AttemptID: attempt.ID, QuestionID: "q1", SelectedOptionID: "o2", MarksAwarded: 1, AnsweredAt: base.Add(time.Second)})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same answer row")
	}

	answers, _ := store.ListAnswers(ctx, attempt.ID)
	if len(answers) != 1 || answers[0].SelectedOptionID != "o2" || answers[0].MarksAwarded != 1 {
		t.Fatalf("unexpected answers %+v", answers)
	}
}

func TestConcurrentUpsertsConvergeOnOneRow(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	attempt, _ := store.EnsureAttempt(ctx, "quiz-1", "u1", "alice", base)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		answer := domain.Answer{AttemptID: attempt.ID, QuestionID: "q1", SelectedOptionID: "o1", AnsweredAt: base}
		if i%2 == 0 {
			answer.SelectedOptionID = "o2"
			answer.MarksAwarded = 1
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.UpsertAnswer(ctx, answer); err != nil {
				t.Errorf("upsert: %v", err)
			}
		}()
	}
	wg.Wait()

	answers, _ := store.ListAnswers(ctx, attempt.ID)
	if len(answers) != 1 {
		t.Fatalf("expected one answer row, got %d", len(answers))
	}
	want := 0
	if answers[0].SelectedOptionID == "o2" {
		want = 1
	}
	if answers[0].MarksAwarded != want {
		t.Fatalf("marks %d do not match option %s", answers[0].MarksAwarded, answers[0].SelectedOptionID)
	}
}

func TestCreateRequestBlocksWhileOpen(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	attempt := finishedAttempt(t, store, "u1", 1, base)

	req, err := store.CreateRequest(ctx, domain.ReattemptRequest{
		QuizID: "quiz-1", UserID: "u1", AttemptID: attempt.ID, Status: domain.RequestPending, CreatedAt: base,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateRequest(ctx, domain.ReattemptRequest{QuizID: "quiz-1", UserID: "u1", Status: domain.RequestPending}); !errors.Is(err, domain.ErrRequestOpen) {
		t.Fatalf("expected open request error, got %v", err)
	}

	if _, err := store.DecideRequest(ctx, req.ID, domain.Decision{Approve: false, Actor: "staff", DecidedAt: base}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := store.CreateRequest(ctx, domain.ReattemptRequest{QuizID: "quiz-1", UserID: "u1", Status: domain.RequestPending, CreatedAt: base.Add(time.Minute)}); err != nil {
		t.Fatalf("rejected request must not block a new one: %v", err)
	}
}

func TestApproveDetachesAndDeletesAttempts(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	attempt := finishedAttempt(t, store, "u1", 1, base)
	_, _ = store.UpsertAnswer(ctx, domain.Answer{AttemptID: attempt.ID, QuestionID: "q1", SelectedOptionID: "o2", MarksAwarded: 1})

	req, _ := store.CreateRequest(ctx, domain.ReattemptRequest{
		QuizID: "quiz-1", UserID: "u1", AttemptID: attempt.ID, Status: domain.RequestPending, CreatedAt: base,
	})
	decided, err := store.DecideRequest(ctx, req.ID, domain.Decision{Approve: true, Actor: "staff", DecidedAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decided.Status != domain.RequestApproved || decided.AttemptID != "" || decided.ProcessedBy != "staff" || decided.ProcessedAt == nil {
		t.Fatalf("unexpected decided request %+v", decided)
	}
	if _, err := store.GetAttempt(ctx, "quiz-1", "u1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt deleted, got %v", err)
	}
	if answers, _ := store.ListAnswers(ctx, attempt.ID); len(answers) != 0 {
		t.Fatalf("expected answers deleted, got %d", len(answers))
	}

	if _, err := store.DecideRequest(ctx, req.ID, domain.Decision{Approve: true}); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected second decision to miss, got %v", err)
	}

	used, _ := store.MarkRequestUsed(ctx, "quiz-1", "u1")
	if !used {
		t.Fatalf("expected approved request to be marked used")
	}
	if used, _ := store.MarkRequestUsed(ctx, "quiz-1", "u1"); used {
		t.Fatalf("expected used flag to flip only once")
	}
}

func TestMarkRequestNotifiedFlipsOnce(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	req, _ := store.CreateRequest(ctx, domain.ReattemptRequest{QuizID: "quiz-1", UserID: "u1", Status: domain.RequestPending})

	if flipped, _ := store.MarkRequestNotified(ctx, req.ID); !flipped {
		t.Fatalf("expected first flip")
	}
	if flipped, _ := store.MarkRequestNotified(ctx, req.ID); flipped {
		t.Fatalf("expected no second flip")
	}
	if _, err := store.MarkRequestNotified(ctx, "missing"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStandingsRanksAndLimits(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	finishedAttempt(t, store, "u1", 2, base.Add(2*time.Minute))
	finishedAttempt(t, store, "u2", 2, base)
	finishedAttempt(t, store, "u3", 5, base.Add(3*time.Minute))
	_, _ = store.EnsureAttempt(ctx, "quiz-1", "u4", "u4", base)

	entries, err := store.Standings(ctx, "quiz-1", 2)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != "u3" || entries[1].UserID != "u2" || entries[1].Rank != 2 {
		t.Fatalf("unexpected ranking %+v", entries)
	}
}

func TestDeleteQuizCascades(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	finishedAttempt(t, store, "u1", 1, base)
	_, _ = store.CreateRequest(ctx, domain.ReattemptRequest{QuizID: "quiz-1", UserID: "u1", Status: domain.RequestPending})

	if err := store.DeleteQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetQuiz(ctx, "quiz-1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz gone, got %v", err)
	}
	if pending, _ := store.ListRequests(ctx, domain.RequestPending, 0); len(pending) != 0 {
		t.Fatalf("expected requests gone, got %d", len(pending))
	}
	if stats, _ := store.UserStats(ctx, 10); len(stats) != 0 {
		t.Fatalf("expected attempts gone, got %+v", stats)
	}
}
