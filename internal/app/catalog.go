package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"timed-quiz-service/internal/domain"
)

// ListQuizzes returns every quiz, newest start first, with the status memo refreshed.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range quizzes {
		quizzes[i] = s.refreshStatus(ctx, quizzes[i], now)
	}
	sort.SliceStable(quizzes, func(i, j int) bool {
		return quizzes[i].StartTime.After(quizzes[j].StartTime)
	})
	return quizzes, nil
}

// CreateQuiz validates and stores a quiz with its questions in one call.
func (s *QuizService) CreateQuiz(ctx context.Context, quiz domain.Quiz, questions []domain.Question) (domain.Quiz, error) {
	quiz.Title = strings.TrimSpace(quiz.Title)
	quiz.Description = strings.TrimSpace(quiz.Description)
	quiz.AccessToken = strings.TrimSpace(quiz.AccessToken)
	if quiz.Mode == "" {
		quiz.Mode = domain.ModeTest
	}
	if quiz.Duration == 0 {
		quiz.Duration = 10
	}

	normalized, err := validateQuiz(quiz, questions)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Status = quiz.PhaseAt(s.now())

	created, err := s.quizzes.CreateQuiz(ctx, quiz, normalized)
	if err != nil {
		return domain.Quiz{}, err
	}
	s.log.Info("quiz created",
		zap.String("quiz_id", created.ID),
		zap.String("title", created.Title),
		zap.Int("questions", len(normalized)))
	return created, nil
}

func validateQuiz(quiz domain.Quiz, questions []domain.Question) ([]domain.Question, error) {
	switch {
	case quiz.Title == "":
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidQuiz)
	case quiz.StartTime.IsZero() || quiz.EndTime.IsZero():
		return nil, fmt.Errorf("%w: start and end time are required", domain.ErrInvalidQuiz)
	case !quiz.EndTime.After(quiz.StartTime):
		return nil, fmt.Errorf("%w: end time must be after start time", domain.ErrInvalidQuiz)
	case quiz.Duration < 1:
		return nil, fmt.Errorf("%w: duration must be at least one minute", domain.ErrInvalidQuiz)
	case quiz.MaxQuestions < 0:
		return nil, fmt.Errorf("%w: max questions cannot be negative", domain.ErrInvalidQuiz)
	}
	switch quiz.Mode {
	case domain.ModePractice, domain.ModeTest, domain.ModeCompetition:
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidQuiz, quiz.Mode)
	}

	out := make([]domain.Question, 0, len(questions))
	seen := make(map[int]bool, len(questions))
	for i, q := range questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			return nil, fmt.Errorf("%w: question %d has no text", domain.ErrInvalidQuiz, i+1)
		}
		if q.Type == "" {
			q.Type = domain.QuestionMCQ
		}
		if q.Type != domain.QuestionMCQ && q.Type != domain.QuestionText {
			return nil, fmt.Errorf("%w: question %d has unknown type %q", domain.ErrInvalidQuiz, i+1, q.Type)
		}
		if q.Marks == 0 {
			q.Marks = 1
		}
		if q.Marks < 1 {
			return nil, fmt.Errorf("%w: question %d marks must be at least 1", domain.ErrInvalidQuiz, i+1)
		}
		if q.Order == 0 {
			q.Order = i + 1
		}
		if seen[q.Order] {
			return nil, fmt.Errorf("%w: duplicate question order %d", domain.ErrInvalidQuiz, q.Order)
		}
		seen[q.Order] = true
		if q.Type == domain.QuestionText {
			q.Options = nil
		}
		out = append(out, q)
	}
	return out, nil
}

// DeleteQuiz removes a quiz together with its questions, attempts and requests.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID string) error {
	if err := s.quizzes.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.invalidateStandings(ctx, quizID)
	return nil
}

// Unlock opens a token-protected quiz for one session when the token matches exactly.
func (s *QuizService) Unlock(ctx context.Context, quizID, sessionID, token string) error {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if !quiz.RequiresToken() {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(quiz.AccessToken)) != 1 {
		return domain.ErrInvalidToken
	}
	return s.gate.Unlock(ctx, sessionID, quizID)
}

// Dashboard is the staff overview of activity and re-attempt requests.
type Dashboard struct {
	UserStats      []UserStat                `json:"userStats"`
	QuizStats      []QuizStat                `json:"quizStats"`
	RecentAttempts []domain.Attempt          `json:"recentAttempts"`
	Pending        []domain.ReattemptRequest `json:"pending"`
	Approved       []domain.ReattemptRequest `json:"approved"`
	Rejected       []domain.ReattemptRequest `json:"rejected"`
}

// Dashboard collects the staff overview.
func (s *QuizService) Dashboard(ctx context.Context) (Dashboard, error) {
	var (
		d   Dashboard
		err error
	)
	if d.UserStats, err = s.reports.UserStats(ctx, 25); err != nil {
		return Dashboard{}, err
	}
	if d.QuizStats, err = s.reports.QuizStats(ctx, 25); err != nil {
		return Dashboard{}, err
	}
	if d.RecentAttempts, err = s.reports.RecentAttempts(ctx, 20); err != nil {
		return Dashboard{}, err
	}
	if d.Pending, err = s.requests.ListRequests(ctx, domain.RequestPending, 0); err != nil {
		return Dashboard{}, err
	}
	if d.Approved, err = s.requests.ListRequests(ctx, domain.RequestApproved, 50); err != nil {
		return Dashboard{}, err
	}
	if d.Rejected, err = s.requests.ListRequests(ctx, domain.RequestRejected, 50); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
