package app

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"timed-quiz-service/internal/domain"
)

// Notice is a one-shot message shown to a participant.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// RequestReattempt files a pending request against the participant's finished attempt.
func (s *QuizService) RequestReattempt(ctx context.Context, quizID string, p Participant, reason string) (domain.ReattemptRequest, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.ReattemptRequest{}, err
	}
	attempt, err := s.attempts.GetAttempt(ctx, quizID, p.UserID)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return domain.ReattemptRequest{}, domain.ErrNotFinished
	}
	if err != nil {
		return domain.ReattemptRequest{}, err
	}
	if attempt.FinishedAt == nil {
		return domain.ReattemptRequest{}, domain.ErrNotFinished
	}

	req, err := s.requests.CreateRequest(ctx, domain.ReattemptRequest{
		QuizID:    quizID,
		UserID:    p.UserID,
		Username:  p.Username,
		AttemptID: attempt.ID,
		Status:    domain.RequestPending,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.ReattemptRequest{}, err
	}
	s.log.Info("re-attempt requested", zap.String("quiz_id", quizID), zap.String("user_id", p.UserID))
	return req, nil
}

// DecideReattempt applies a staff decision to a pending request. Deciding a
// request that is no longer pending yields domain.ErrRequestNotFound.
func (s *QuizService) DecideReattempt(ctx context.Context, requestID string, approve bool, staff string) (domain.ReattemptRequest, error) {
	req, err := s.requests.DecideRequest(ctx, requestID, domain.Decision{
		Approve:   approve,
		Actor:     staff,
		DecidedAt: s.now(),
	})
	if err != nil {
		return domain.ReattemptRequest{}, err
	}
	s.observer.RequestDecided(req.Status)
	s.log.Info("re-attempt decided",
		zap.String("request_id", req.ID),
		zap.String("quiz_id", req.QuizID),
		zap.String("status", string(req.Status)),
		zap.String("staff", staff))

	if req.Status == domain.RequestApproved {
		s.standingsChanged(ctx, req.QuizID)
	}
	return req, nil
}

// notifyOnce returns the outcome message of a processed request the first
// time the requester sees it. The flag write decides who shows it, so
// concurrent views still show it once.
func (s *QuizService) notifyOnce(ctx context.Context, req *domain.ReattemptRequest, p Participant) *Notice {
	if req.UserID != p.UserID || req.Status == domain.RequestPending || req.UserNotified || req.Used {
		return nil
	}
	flipped, err := s.requests.MarkRequestNotified(ctx, req.ID)
	if err != nil {
		s.log.Warn("mark re-attempt notified", zap.String("request_id", req.ID), zap.Error(err))
		return nil
	}
	if !flipped {
		return nil
	}
	req.UserNotified = true

	if req.Status == domain.RequestApproved {
		return &Notice{
			Level:   "success",
			Message: "Your re-attempt request was approved. You may try the quiz again when it is active.",
		}
	}
	return &Notice{Level: "error", Message: "Your re-attempt request was rejected."}
}
