package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"timed-quiz-service/internal/domain"
)

// QuizStore holds quiz content. Questions are returned with their options.
type QuizStore interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	ListQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
	SetQuizStatus(ctx context.Context, quizID string, status domain.Phase) error
	CreateQuiz(ctx context.Context, quiz domain.Quiz, questions []domain.Question) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID string) error
}

// AttemptStore is the attempt + answer store. Only QuizService writes to it,
// except DecideRequest which is the one sanctioned attempt deletion path.
type AttemptStore interface {
	EnsureAttempt(ctx context.Context, quizID, userID, username string, now time.Time) (domain.Attempt, error)
	GetAttempt(ctx context.Context, quizID, userID string) (domain.Attempt, error)
	// StartAttempt stamps the timer only while started-at is unset; it returns
	// the stored attempt and whether this call stamped it.
	StartAttempt(ctx context.Context, attemptID string, startedAt, allowedFinishAt time.Time) (domain.Attempt, bool, error)
	// FinishAttempt stamps finished-at and score only while finished-at is unset.
	FinishAttempt(ctx context.Context, attemptID string, finishedAt time.Time, score int) (domain.Attempt, bool, error)
	// UpsertAnswer is last-write-wins on (attempt, question).
	UpsertAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error)
	ListAnswers(ctx context.Context, attemptID string) ([]domain.Answer, error)
	ListFinished(ctx context.Context, quizID string) ([]domain.Attempt, error)
}

// ReattemptStore persists re-attempt requests.
type ReattemptStore interface {
	// CreateRequest fails with domain.ErrRequestOpen when an open request exists.
	CreateRequest(ctx context.Context, req domain.ReattemptRequest) (domain.ReattemptRequest, error)
	LatestRequest(ctx context.Context, quizID, userID string) (domain.ReattemptRequest, error)
	// MarkRequestUsed flips used on the latest approved, unused request.
	MarkRequestUsed(ctx context.Context, quizID, userID string) (bool, error)
	// MarkRequestNotified flips user_notified from false to true.
	MarkRequestNotified(ctx context.Context, requestID string) (bool, error)
	// DecideRequest runs atomically on a pending request; on approval it
	// detaches the attempt reference and deletes the (quiz, user) attempts.
	DecideRequest(ctx context.Context, requestID string, decision domain.Decision) (domain.ReattemptRequest, error)
	ListRequests(ctx context.Context, status domain.RequestStatus, limit int) ([]domain.ReattemptRequest, error)
}

// UserStat aggregates attempts per participant for the admin dashboard.
type UserStat struct {
	Username     string `json:"username"`
	QuizzesTaken int    `json:"quizzesTaken"`
	TotalScore   int    `json:"totalScore"`
}

// QuizStat aggregates attempts per quiz for the admin dashboard.
type QuizStat struct {
	QuizID     string    `json:"quizId"`
	Title      string    `json:"title"`
	StartTime  time.Time `json:"startTime"`
	Attempts   int       `json:"attempts"`
	TotalScore int       `json:"totalScore"`
}

// ReportStore serves read-only projections.
type ReportStore interface {
	StandingsLoader
	UserStats(ctx context.Context, limit int) ([]UserStat, error)
	QuizStats(ctx context.Context, limit int) ([]QuizStat, error)
	RecentAttempts(ctx context.Context, limit int) ([]domain.Attempt, error)
}

// StandingsLoader ranks finished attempts of a quiz; limit <= 0 means all.
type StandingsLoader interface {
	Standings(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error)
}

// StandingsCache serves the top finishers to pollers.
type StandingsCache interface {
	Top(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error)
	Invalidate(ctx context.Context, quizID string) error
}

// AccessGate remembers which sessions unlocked which token-protected quizzes.
type AccessGate interface {
	Unlocked(ctx context.Context, sessionID, quizID string) (bool, error)
	Unlock(ctx context.Context, sessionID, quizID string) error
}

// FeedRepository keeps the live feeds of this instance and delivers status
// snapshots to them, possibly by way of other instances.
type FeedRepository interface {
	GetOrCreate(quizID string) *Feed
	Get(quizID string) (*Feed, bool)
	DeleteIfIdle(quizID string)
	Broadcast(ctx context.Context, status domain.Status) error
}

// Observer receives state machine events, typically for metrics.
type Observer interface {
	AttemptStarted(quizID string)
	AttemptFinished(quizID string, timeUp bool)
	AnswerRecorded(qtype domain.QuestionType)
	RequestDecided(status domain.RequestStatus)
}

type nopObserver struct{}

func (nopObserver) AttemptStarted(string)               {}
func (nopObserver) AttemptFinished(string, bool)        {}
func (nopObserver) AnswerRecorded(domain.QuestionType)  {}
func (nopObserver) RequestDecided(domain.RequestStatus) {}

// Participant identifies who is acting. Authentication happens upstream.
type Participant struct {
	UserID    string
	Username  string
	SessionID string
}

// Deps wires QuizService. Observer, Logger and Now are optional.
type Deps struct {
	Quizzes   QuizStore
	Attempts  AttemptStore
	Requests  ReattemptStore
	Reports   ReportStore
	Gate      AccessGate
	Standings StandingsCache
	Feeds     FeedRepository
	Observer  Observer
	Logger    *zap.Logger
	Now       func() time.Time
}
