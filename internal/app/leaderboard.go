package app

import (
	"context"

	"timed-quiz-service/internal/domain"
)

// Leaderboard ranks every finished attempt of a quiz and reports the
// requesting user's rank when they have finished.
func (s *QuizService) Leaderboard(ctx context.Context, quizID, userID string) (domain.Leaderboard, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Leaderboard{}, err
	}
	attempts, err := s.attempts.ListFinished(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	lb := domain.Leaderboard{QuizID: quizID, Entries: domain.RankFinished(attempts)}
	if userID == "" {
		return lb, nil
	}
	for _, entry := range lb.Entries {
		if entry.UserID == userID {
			lb.YourRank = entry.Rank
			break
		}
	}
	return lb, nil
}

// Status is the pollable snapshot: phase computed from the schedule right now,
// cached top finishers and the server clock for client sync.
func (s *QuizService) Status(ctx context.Context, quizID string) (domain.Status, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Status{}, err
	}
	top, err := s.standings.Top(ctx, quizID)
	if err != nil {
		return domain.Status{}, err
	}
	now := s.now()
	return domain.Status{
		QuizID:      quizID,
		Phase:       quiz.PhaseAt(now),
		Leaderboard: top,
		ServerTime:  now,
	}, nil
}
