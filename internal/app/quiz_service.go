package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"timed-quiz-service/internal/domain"
)

// QuizService contains the core quiz use cases: the attempt state machine,
// scoring, the re-attempt workflow and the leaderboard projections.
type QuizService struct {
	quizzes   QuizStore
	attempts  AttemptStore
	requests  ReattemptStore
	reports   ReportStore
	gate      AccessGate
	standings StandingsCache
	feeds     FeedRepository
	observer  Observer
	log       *zap.Logger
	now       func() time.Time
}

func NewQuizService(deps Deps) *QuizService {
	s := &QuizService{
		quizzes:   deps.Quizzes,
		attempts:  deps.Attempts,
		requests:  deps.Requests,
		reports:   deps.Reports,
		gate:      deps.Gate,
		standings: deps.Standings,
		feeds:     deps.Feeds,
		observer:  deps.Observer,
		log:       deps.Logger,
		now:       deps.Now,
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// EnsureAttempt gets or creates the participant's attempt. It has no timer side effects.
func (s *QuizService) EnsureAttempt(ctx context.Context, quizID string, p Participant) (domain.Attempt, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Attempt{}, err
	}
	return s.attempts.EnsureAttempt(ctx, quizID, p.UserID, p.Username, s.now())
}

// refreshStatus updates the persisted status memo when the schedule moved on.
// The memo is display only, so a failed write is logged and ignored.
func (s *QuizService) refreshStatus(ctx context.Context, quiz domain.Quiz, now time.Time) domain.Quiz {
	phase := quiz.PhaseAt(now)
	if phase == quiz.Status {
		return quiz
	}
	quiz.Status = phase
	if err := s.quizzes.SetQuizStatus(ctx, quiz.ID, phase); err != nil {
		s.log.Warn("persist quiz status", zap.String("quiz_id", quiz.ID), zap.Error(err))
	}
	return quiz
}

// standingsChanged drops cached standings and broadcasts a fresh snapshot to
// live subscribers on every instance.
func (s *QuizService) standingsChanged(ctx context.Context, quizID string) {
	s.invalidateStandings(ctx, quizID)
	status, err := s.Status(ctx, quizID)
	if err != nil {
		s.log.Warn("build status for feed", zap.String("quiz_id", quizID), zap.Error(err))
		return
	}
	if err := s.feeds.Broadcast(ctx, status); err != nil {
		s.log.Warn("broadcast status", zap.String("quiz_id", quizID), zap.Error(err))
	}
}

func (s *QuizService) invalidateStandings(ctx context.Context, quizID string) {
	if err := s.standings.Invalidate(ctx, quizID); err != nil {
		s.log.Warn("invalidate standings", zap.String("quiz_id", quizID), zap.Error(err))
	}
}

// Subscribe returns a channel of status snapshots for a quiz, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, quizID string) (<-chan domain.Status, func(), error) {
	status, err := s.Status(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	feed := s.feeds.GetOrCreate(quizID)
	ch, unsubscribe := feed.Subscribe(status)
	cancel := func() {
		unsubscribe()
		s.feeds.DeleteIfIdle(quizID)
	}
	return ch, cancel, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
