package postgres

import (
	"time"

	"github.com/uptrace/bun"
	"timed-quiz-service/internal/domain"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID              string    `bun:"id,pk"`
	Title           string    `bun:"title,notnull"`
	Description     string    `bun:"description,notnull"`
	StartTime       time.Time `bun:"start_time,notnull"`
	EndTime         time.Time `bun:"end_time,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	Status          string    `bun:"status,notnull"`
	Mode            string    `bun:"mode,notnull"`
	MaxQuestions    int       `bun:"max_questions,notnull"`
	AccessToken     string    `bun:"access_token,notnull"`
}

func quizRowFrom(q domain.Quiz) quizRow {
	return quizRow{
		ID:              q.ID,
		Title:           q.Title,
		Description:     q.Description,
		StartTime:       q.StartTime,
		EndTime:         q.EndTime,
		DurationMinutes: q.Duration,
		Status:          string(q.Status),
		Mode:            string(q.Mode),
		MaxQuestions:    q.MaxQuestions,
		AccessToken:     q.AccessToken,
	}
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Duration:     r.DurationMinutes,
		Status:       domain.Phase(r.Status),
		Mode:         domain.Mode(r.Mode),
		MaxQuestions: r.MaxQuestions,
		AccessToken:  r.AccessToken,
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID        string `bun:"id,pk"`
	QuizID    string `bun:"quiz_id,notnull"`
	Text      string `bun:"text,notnull"`
	Type      string `bun:"qtype,notnull"`
	Marks     int    `bun:"marks,notnull"`
	SortOrder int    `bun:"sort_order,notnull"`
}

type optionRow struct {
	bun.BaseModel `bun:"table:options,alias:op"`

	ID         string `bun:"id,pk"`
	QuestionID string `bun:"question_id,notnull"`
	Text       string `bun:"text,notnull"`
	IsCorrect  bool   `bun:"is_correct,notnull"`
	Position   int    `bun:"position,notnull"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:at"`

	ID              string     `bun:"id,pk"`
	QuizID          string     `bun:"quiz_id,notnull"`
	UserID          string     `bun:"user_id,notnull"`
	Username        string     `bun:"username,notnull"`
	JoinedAt        time.Time  `bun:"joined_at,notnull"`
	StartedAt       *time.Time `bun:"started_at"`
	AllowedFinishAt *time.Time `bun:"allowed_finish_at"`
	FinishedAt      *time.Time `bun:"finished_at"`
	Score           int        `bun:"score,notnull"`
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:              r.ID,
		QuizID:          r.QuizID,
		UserID:          r.UserID,
		Username:        r.Username,
		JoinedAt:        r.JoinedAt,
		StartedAt:       r.StartedAt,
		AllowedFinishAt: r.AllowedFinishAt,
		FinishedAt:      r.FinishedAt,
		Score:           r.Score,
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:an"`

	ID               string    `bun:"id,pk"`
	AttemptID        string    `bun:"attempt_id,notnull"`
	QuestionID       string    `bun:"question_id,notnull"`
	SelectedOptionID string    `bun:"selected_option_id,nullzero"`
	TextAnswer       string    `bun:"text_answer,notnull"`
	MarksAwarded     int       `bun:"marks_awarded,notnull"`
	AnsweredAt       time.Time `bun:"answered_at,notnull"`
}

func (r answerRow) toDomain() domain.Answer {
	return domain.Answer{
		ID:               r.ID,
		AttemptID:        r.AttemptID,
		QuestionID:       r.QuestionID,
		SelectedOptionID: r.SelectedOptionID,
		TextAnswer:       r.TextAnswer,
		MarksAwarded:     r.MarksAwarded,
		AnsweredAt:       r.AnsweredAt,
	}
}

type requestRow struct {
	bun.BaseModel `bun:"table:reattempt_requests,alias:rr"`

	ID           string     `bun:"id,pk"`
	QuizID       string     `bun:"quiz_id,notnull"`
	UserID       string     `bun:"user_id,notnull"`
	Username     string     `bun:"username,notnull"`
	AttemptID    string     `bun:"attempt_id,nullzero"`
	Status       string     `bun:"status,notnull"`
	Reason       string     `bun:"reason,notnull"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`
	ProcessedAt  *time.Time `bun:"processed_at"`
	ProcessedBy  string     `bun:"processed_by,notnull"`
	UserNotified bool       `bun:"user_notified,notnull"`
	Used         bool       `bun:"used,notnull"`
}

func requestRowFrom(r domain.ReattemptRequest) requestRow {
	return requestRow{
		ID:           r.ID,
		QuizID:       r.QuizID,
		UserID:       r.UserID,
		Username:     r.Username,
		AttemptID:    r.AttemptID,
		Status:       string(r.Status),
		Reason:       r.Reason,
		CreatedAt:    r.CreatedAt,
		ProcessedAt:  r.ProcessedAt,
		ProcessedBy:  r.ProcessedBy,
		UserNotified: r.UserNotified,
		Used:         r.Used,
	}
}

func (r requestRow) toDomain() domain.ReattemptRequest {
	return domain.ReattemptRequest{
		ID:           r.ID,
		QuizID:       r.QuizID,
		UserID:       r.UserID,
		Username:     r.Username,
		AttemptID:    r.AttemptID,
		Status:       domain.RequestStatus(r.Status),
		Reason:       r.Reason,
		CreatedAt:    r.CreatedAt,
		ProcessedAt:  r.ProcessedAt,
		ProcessedBy:  r.ProcessedBy,
		UserNotified: r.UserNotified,
		Used:         r.Used,
	}
}
