package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"timed-quiz-service/internal/domain"
)

func TestReattemptLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	alice := participant("alice")
	ctx := context.Background()

	f.begin(t, alice)
	if _, err := f.service.RequestReattempt(ctx, "quiz-1", alice, "lost connection"); !errors.Is(err, domain.ErrNotFinished) {
		t.Fatalf("expected ErrNotFinished before finishing, got %v", err)
	}
	f.answer(t, alice, 1, "q1-right")
	f.finish(t, alice)

	first, err := f.service.RequestReattempt(ctx, "quiz-1", alice, "  lost connection ")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if first.Status != domain.RequestPending || first.Reason != "lost connection" {
		t.Fatalf("unexpected request %+v", first)
	}
	if _, err := f.service.RequestReattempt(ctx, "quiz-1", alice, "again"); !errors.Is(err, domain.ErrRequestOpen) {
		t.Fatalf("expected ErrRequestOpen for second request, got %v", err)
	}

	f.clock.Advance(time.Minute)
	rejected, err := f.service.DecideReattempt(ctx, first.ID, false, "moderator")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.RequestRejected || rejected.ProcessedBy != "moderator" || rejected.ProcessedAt == nil {
		t.Fatalf("unexpected rejection %+v", rejected)
	}
	if _, err := f.service.DecideReattempt(ctx, first.ID, true, "moderator"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound for processed request, got %v", err)
	}

	detail, err := f.service.Detail(ctx, "quiz-1", alice)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Notice == nil || detail.Notice.Level != "error" || detail.State != domain.AttemptFinished {
		t.Fatalf("expected rejection notice on finished attempt, got %+v", detail)
	}
	detail, _ = f.service.Detail(ctx, "quiz-1", alice)
	if detail.Notice != nil {
		t.Fatalf("notice must be shown once, got %+v", detail.Notice)
	}

	f.clock.Advance(time.Minute)
	second, err := f.service.RequestReattempt(ctx, "quiz-1", alice, "please")
	if err != nil {
		t.Fatalf("request after rejection: %v", err)
	}
	if _, err := f.service.DecideReattempt(ctx, second.ID, true, "moderator"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.store.GetAttempt(ctx, "quiz-1", "alice"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("approval must delete the attempt, got %v", err)
	}
	lb, _ := f.service.Leaderboard(ctx, "quiz-1", "alice")
	if len(lb.Entries) != 0 || lb.YourRank != 0 {
		t.Fatalf("approval must drop the leaderboard entry, got %+v", lb)
	}

	detail, err = f.service.Detail(ctx, "quiz-1", alice)
	if err != nil {
		t.Fatalf("detail after approval: %v", err)
	}
	if detail.State != domain.AttemptNotStarted || detail.Notice == nil || detail.Notice.Level != "success" {
		t.Fatalf("expected fresh attempt with approval notice, got %+v", detail)
	}
	if _, err := f.service.RequestReattempt(ctx, "quiz-1", alice, "more"); !errors.Is(err, domain.ErrNotFinished) {
		t.Fatalf("expected ErrNotFinished on the fresh attempt, got %v", err)
	}

	step := f.begin(t, alice)
	if step.Question.RemainingSeconds != 15*60 {
		t.Fatalf("fresh attempt must get a full timer, got %d", step.Question.RemainingSeconds)
	}
	latest, _ := f.store.LatestRequest(ctx, "quiz-1", "alice")
	if latest.ID != second.ID || !latest.Used {
		t.Fatalf("starting must consume the approval, got %+v", latest)
	}

	f.finish(t, alice)
	if _, err := f.service.RequestReattempt(ctx, "quiz-1", alice, "third time"); err != nil {
		t.Fatalf("request after used approval: %v", err)
	}
}

func TestApprovalNoticeSkippedOnceUsed(t *testing.T) {
	f := newFixture(t, nil)
	alice := participant("alice")
	ctx := context.Background()

	f.begin(t, alice)
	f.finish(t, alice)
	req, err := f.service.RequestReattempt(ctx, "quiz-1", alice, "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.service.DecideReattempt(ctx, req.ID, true, "moderator"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Start without viewing the notice first.
	if _, err := f.service.EnsureAttempt(ctx, "quiz-1", alice); err != nil {
		t.Fatalf("ensure attempt: %v", err)
	}
	if _, err := f.service.Start(ctx, "quiz-1", alice); err != nil {
		t.Fatalf("start: %v", err)
	}
	detail, _ := f.service.Detail(ctx, "quiz-1", alice)
	if detail.Notice != nil {
		t.Fatalf("used approval must not produce a notice, got %+v", detail.Notice)
	}
}

func TestDecideUnknownRequest(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.service.DecideReattempt(context.Background(), "nope", true, "moderator"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}
