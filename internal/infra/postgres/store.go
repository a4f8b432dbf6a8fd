package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// Store persists quizzes, attempts, answers and re-attempt requests through bun.
// Uniqueness of (quiz, user) attempts and (attempt, question) answers is
// enforced by the schema; multi-step writes run in a transaction.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

var (
	_ app.QuizStore      = (*Store)(nil)
	_ app.AttemptStore   = (*Store)(nil)
	_ app.ReattemptStore = (*Store)(nil)
)

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	row := new(quizRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var rows []quizRow
	if err := s.db.NewSelect().Model(&rows).Order("start_time DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]domain.Quiz, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	if _, err := s.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	var rows []questionRow
	if err := s.db.NewSelect().Model(&rows).Where("quiz_id = ?", quizID).Order("sort_order ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(rows) == 0 {
		return []domain.Question{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var opts []optionRow
	if err := s.db.NewSelect().Model(&opts).
		Where("question_id IN (?)", bun.In(ids)).
		Order("position ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	byQuestion := make(map[string][]domain.Option, len(rows))
	for _, o := range opts {
		byQuestion[o.QuestionID] = append(byQuestion[o.QuestionID], domain.Option{
			ID:         o.ID,
			QuestionID: o.QuestionID,
			Text:       o.Text,
			Correct:    o.IsCorrect,
		})
	}

	out := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Question{
			ID:      r.ID,
			QuizID:  r.QuizID,
			Text:    r.Text,
			Type:    domain.QuestionType(r.Type),
			Marks:   r.Marks,
			Order:   r.SortOrder,
			Options: byQuestion[r.ID],
		})
	}
	return out, nil
}

func (s *Store) SetQuizStatus(ctx context.Context, quizID string, status domain.Phase) error {
	res, err := s.db.NewUpdate().Model((*quizRow)(nil)).
		Set("status = ?", string(status)).
		Where("id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set quiz status: %w", err)
	}
	return requireAffected(res, domain.ErrQuizNotFound)
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz, questions []domain.Question) (domain.Quiz, error) {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	qrow := quizRowFrom(quiz)

	var (
		questionRows []questionRow
		optionRows   []optionRow
	)
	for _, q := range questions {
		id := uuid.NewString()
		questionRows = append(questionRows, questionRow{
			ID:        id,
			QuizID:    quiz.ID,
			Text:      q.Text,
			Type:      string(q.Type),
			Marks:     q.Marks,
			SortOrder: q.Order,
		})
		for i, o := range q.Options {
			optionRows = append(optionRows, optionRow{
				ID:         uuid.NewString(),
				QuestionID: id,
				Text:       o.Text,
				IsCorrect:  o.Correct,
				Position:   i,
			})
		}
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&qrow).Exec(ctx); err != nil {
			return err
		}
		if len(questionRows) > 0 {
			if _, err := tx.NewInsert().Model(&questionRows).Exec(ctx); err != nil {
				return err
			}
		}
		if len(optionRows) > 0 {
			if _, err := tx.NewInsert().Model(&optionRows).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	return quiz, nil
}

// DeleteQuiz relies on ON DELETE CASCADE for questions, attempts, answers and requests.
func (s *Store) DeleteQuiz(ctx context.Context, quizID string) error {
	res, err := s.db.NewDelete().Model((*quizRow)(nil)).Where("id = ?", quizID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return requireAffected(res, domain.ErrQuizNotFound)
}

func (s *Store) EnsureAttempt(ctx context.Context, quizID, userID, username string, now time.Time) (domain.Attempt, error) {
	if _, err := s.GetQuiz(ctx, quizID); err != nil {
		return domain.Attempt{}, err
	}
	row := attemptRow{
		ID:       uuid.NewString(),
		QuizID:   quizID,
		UserID:   userID,
		Username: username,
		JoinedAt: now,
	}
	if _, err := s.db.NewInsert().Model(&row).On("CONFLICT (quiz_id, user_id) DO NOTHING").Exec(ctx); err != nil {
		return domain.Attempt{}, fmt.Errorf("ensure attempt: %w", err)
	}
	return s.GetAttempt(ctx, quizID, userID)
}

func (s *Store) GetAttempt(ctx context.Context, quizID, userID string) (domain.Attempt, error) {
	row := new(attemptRow)
	err := s.db.NewSelect().Model(row).
		Where("quiz_id = ?", quizID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) attemptByID(ctx context.Context, attemptID string) (domain.Attempt, error) {
	row := new(attemptRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) StartAttempt(ctx context.Context, attemptID string, startedAt, allowedFinishAt time.Time) (domain.Attempt, bool, error) {
	res, err := s.db.NewUpdate().Model((*attemptRow)(nil)).
		Set("started_at = ?", startedAt).
		Set("allowed_finish_at = ?", allowedFinishAt).
		Where("id = ?", attemptID).
		Where("started_at IS NULL").
		Exec(ctx)
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("start attempt: %w", err)
	}
	attempt, err := s.attemptByID(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, false, err
	}
	return attempt, affected(res), nil
}

func (s *Store) FinishAttempt(ctx context.Context, attemptID string, finishedAt time.Time, score int) (domain.Attempt, bool, error) {
	res, err := s.db.NewUpdate().Model((*attemptRow)(nil)).
		Set("finished_at = ?", finishedAt).
		Set("score = ?", score).
		Where("id = ?", attemptID).
		Where("finished_at IS NULL").
		Exec(ctx)
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("finish attempt: %w", err)
	}
	attempt, err := s.attemptByID(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, false, err
	}
	return attempt, affected(res), nil
}

func (s *Store) UpsertAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error) {
	row := answerRow{
		ID:               uuid.NewString(),
		AttemptID:        answer.AttemptID,
		QuestionID:       answer.QuestionID,
		SelectedOptionID: answer.SelectedOptionID,
		TextAnswer:       answer.TextAnswer,
		MarksAwarded:     answer.MarksAwarded,
		AnsweredAt:       answer.AnsweredAt,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (attempt_id, question_id) DO UPDATE").
		Set("selected_option_id = EXCLUDED.selected_option_id").
		Set("text_answer = EXCLUDED.text_answer").
		Set("marks_awarded = EXCLUDED.marks_awarded").
		Set("answered_at = EXCLUDED.answered_at").
		Exec(ctx)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("upsert answer: %w", err)
	}

	stored := new(answerRow)
	if err := s.db.NewSelect().Model(stored).
		Where("attempt_id = ?", answer.AttemptID).
		Where("question_id = ?", answer.QuestionID).
		Scan(ctx); err != nil {
		return domain.Answer{}, fmt.Errorf("reload answer: %w", err)
	}
	return stored.toDomain(), nil
}

func (s *Store) ListAnswers(ctx context.Context, attemptID string) ([]domain.Answer, error) {
	var rows []answerRow
	if err := s.db.NewSelect().Model(&rows).
		Where("attempt_id = ?", attemptID).
		Order("answered_at ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]domain.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListFinished(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	if err := s.db.NewSelect().Model(&rows).
		Where("quiz_id = ?", quizID).
		Where("finished_at IS NOT NULL").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list finished attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

func requireAffected(res sql.Result, notFound error) error {
	if !affected(res) {
		return notFound
	}
	return nil
}
