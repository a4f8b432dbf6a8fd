package http

import (
	"time"

	"timed-quiz-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type notActiveResponse struct {
	Error      string       `json:"error"`
	Status     domain.Phase `json:"status"`
	ServerTime time.Time    `json:"serverTime"`
}

type unlockRequest struct {
	Token string `json:"token"`
}

type reattemptRequest struct {
	Reason string `json:"reason"`
}

type decisionRequest struct {
	Approve bool `json:"approve"`
}

type createQuizRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	StartTime    time.Time       `json:"startTime"`
	EndTime      time.Time       `json:"endTime"`
	Duration     int             `json:"duration"`
	Mode         domain.Mode     `json:"mode"`
	MaxQuestions int             `json:"maxQuestions"`
	AccessToken  string          `json:"accessToken"`
	Questions    []questionInput `json:"questions"`
}

type questionInput struct {
	Text    string              `json:"text"`
	Type    domain.QuestionType `json:"type"`
	Marks   int                 `json:"marks"`
	Order   int                 `json:"order"`
	Options []optionInput       `json:"options"`
}

type optionInput struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

func (r createQuizRequest) toDomain() (domain.Quiz, []domain.Question) {
	quiz := domain.Quiz{
		Title:        r.Title,
		Description:  r.Description,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Duration:     r.Duration,
		Mode:         r.Mode,
		MaxQuestions: r.MaxQuestions,
		AccessToken:  r.AccessToken,
	}
	questions := make([]domain.Question, 0, len(r.Questions))
	for _, q := range r.Questions {
		question := domain.Question{Text: q.Text, Type: q.Type, Marks: q.Marks, Order: q.Order}
		for _, o := range q.Options {
			question.Options = append(question.Options, domain.Option{Text: o.Text, Correct: o.Correct})
		}
		questions = append(questions, question)
	}
	return quiz, questions
}

type quizListResponse struct {
	Quizzes []domain.Quiz `json:"quizzes"`
}
