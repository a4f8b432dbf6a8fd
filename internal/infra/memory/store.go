package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

type attemptKey struct {
	quizID string
	userID string
}

// Store is an in-memory implementation of every app store. A single lock
// makes each method atomic, which gives the same guarantees the Postgres
// store gets from constraints and transactions.
type Store struct {
	mu        sync.RWMutex
	quizzes   map[string]domain.Quiz
	questions map[string][]domain.Question
	attempts  map[string]domain.Attempt
	byKey     map[attemptKey]string
	answers   map[string]map[string]domain.Answer
	requests  []domain.ReattemptRequest
}

func NewStore() *Store {
	return &Store{
		quizzes:   make(map[string]domain.Quiz),
		questions: make(map[string][]domain.Question),
		attempts:  make(map[string]domain.Attempt),
		byKey:     make(map[attemptKey]string),
		answers:   make(map[string]map[string]domain.Answer),
	}
}

var (
	_ app.QuizStore      = (*Store)(nil)
	_ app.AttemptStore   = (*Store)(nil)
	_ app.ReattemptStore = (*Store)(nil)
	_ app.ReportStore    = (*Store)(nil)
)

func (s *Store) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (s *Store) ListQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	return cloneQuestions(s.questions[quizID]), nil
}

func (s *Store) SetQuizStatus(_ context.Context, quizID string, status domain.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Status = status
	s.quizzes[quizID] = quiz
	return nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz, questions []domain.Question) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	stored := cloneQuestions(questions)
	for i := range stored {
		stored[i].ID = uuid.NewString()
		stored[i].QuizID = quiz.ID
		for j := range stored[i].Options {
			stored[i].Options[j].ID = uuid.NewString()
			stored[i].Options[j].QuestionID = stored[i].ID
		}
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].Order < stored[j].Order })
	s.quizzes[quiz.ID] = quiz
	s.questions[quiz.ID] = stored
	return quiz, nil
}

// PutQuiz stores a quiz with caller-chosen IDs, useful for fixtures.
func (s *Store) PutQuiz(quiz domain.Quiz, questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneQuestions(questions)
	for i := range stored {
		stored[i].QuizID = quiz.ID
		for j := range stored[i].Options {
			stored[i].Options[j].QuestionID = stored[i].ID
		}
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].Order < stored[j].Order })
	s.quizzes[quiz.ID] = quiz
	s.questions[quiz.ID] = stored
}

// UpdateQuiz replaces quiz settings, as an authoring edit would.
func (s *Store) UpdateQuiz(quiz domain.Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = quiz
}

func (s *Store) DeleteQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	delete(s.quizzes, quizID)
	delete(s.questions, quizID)
	for key, id := range s.byKey {
		if key.quizID == quizID {
			s.deleteAttemptLocked(key, id)
		}
	}
	kept := s.requests[:0]
	for _, r := range s.requests {
		if r.QuizID != quizID {
			kept = append(kept, r)
		}
	}
	s.requests = kept
	return nil
}

func (s *Store) EnsureAttempt(_ context.Context, quizID, userID, username string, now time.Time) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.Attempt{}, domain.ErrQuizNotFound
	}
	key := attemptKey{quizID: quizID, userID: userID}
	if id, ok := s.byKey[key]; ok {
		return s.attempts[id], nil
	}
	attempt := domain.Attempt{
		ID:       uuid.NewString(),
		QuizID:   quizID,
		UserID:   userID,
		Username: username,
		JoinedAt: now,
	}
	s.attempts[attempt.ID] = attempt
	s.byKey[key] = attempt.ID
	return attempt, nil
}

func (s *Store) GetAttempt(_ context.Context, quizID, userID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[attemptKey{quizID: quizID, userID: userID}]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return s.attempts[id], nil
}

func (s *Store) StartAttempt(_ context.Context, attemptID string, startedAt, allowedFinishAt time.Time) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, false, domain.ErrAttemptNotFound
	}
	if attempt.StartedAt != nil {
		return attempt, false, nil
	}
	attempt.StartedAt = &startedAt
	attempt.AllowedFinishAt = &allowedFinishAt
	s.attempts[attemptID] = attempt
	return attempt, true, nil
}

func (s *Store) FinishAttempt(_ context.Context, attemptID string, finishedAt time.Time, score int) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, false, domain.ErrAttemptNotFound
	}
	if attempt.FinishedAt != nil {
		return attempt, false, nil
	}
	attempt.FinishedAt = &finishedAt
	attempt.Score = score
	s.attempts[attemptID] = attempt
	return attempt, true, nil
}

func (s *Store) UpsertAnswer(_ context.Context, answer domain.Answer) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[answer.AttemptID]; !ok {
		return domain.Answer{}, domain.ErrAttemptNotFound
	}
	byQuestion, ok := s.answers[answer.AttemptID]
	if !ok {
		byQuestion = make(map[string]domain.Answer)
		s.answers[answer.AttemptID] = byQuestion
	}
	if existing, ok := byQuestion[answer.QuestionID]; ok {
		answer.ID = existing.ID
	} else {
		answer.ID = uuid.NewString()
	}
	byQuestion[answer.QuestionID] = answer
	return answer, nil
}

func (s *Store) ListAnswers(_ context.Context, attemptID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0, len(s.answers[attemptID]))
	for _, a := range s.answers[attemptID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnsweredAt.Before(out[j].AnsweredAt) })
	return out, nil
}

func (s *Store) ListFinished(_ context.Context, quizID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finishedLocked(quizID), nil
}

func (s *Store) finishedLocked(quizID string) []domain.Attempt {
	var out []domain.Attempt
	for key, id := range s.byKey {
		if key.quizID != quizID {
			continue
		}
		if a := s.attempts[id]; a.FinishedAt != nil {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) deleteAttemptLocked(key attemptKey, attemptID string) {
	delete(s.byKey, key)
	delete(s.attempts, attemptID)
	delete(s.answers, attemptID)
	for i := range s.requests {
		if s.requests[i].AttemptID == attemptID {
			s.requests[i].AttemptID = ""
		}
	}
}

func cloneQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	for i, q := range in {
		q.Options = append([]domain.Option(nil), q.Options...)
		out[i] = q
	}
	return out
}
