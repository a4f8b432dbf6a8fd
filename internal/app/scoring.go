package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"timed-quiz-service/internal/domain"
)

// AnswerDetail is the review line for one served question.
type AnswerDetail struct {
	Order          int                 `json:"order"`
	Question       string              `json:"question"`
	Type           domain.QuestionType `json:"type"`
	SelectedID     string              `json:"selectedId,omitempty"`
	SelectedText   string              `json:"selectedText"`
	CorrectOptions []string            `json:"correctOptions"`
	Correct        bool                `json:"correct"`
	Marks          int                 `json:"marks"`
}

// Result is the finished attempt with freshly computed aggregates.
type Result struct {
	Attempt        domain.Attempt           `json:"attempt"`
	Score          int                      `json:"score"`
	TotalMarks     int                      `json:"totalMarks"`
	Percentage     float64                  `json:"percentage"`
	TotalQuestions int                      `json:"totalQuestions"`
	Answered       int                      `json:"answered"`
	Correct        int                      `json:"correct"`
	Incorrect      int                      `json:"incorrect"`
	TimeUp         bool                     `json:"timeUp"`
	TimeTaken      float64                  `json:"timeTakenSeconds"`
	Details        []AnswerDetail           `json:"details"`
	Request        *domain.ReattemptRequest `json:"reattemptRequest,omitempty"`
}

type aggregates struct {
	score    int
	answered int
	correct  int
}

func aggregate(answers []domain.Answer) aggregates {
	var agg aggregates
	for _, a := range answers {
		agg.score += a.MarksAwarded
		agg.answered++
		if a.MarksAwarded > 0 {
			agg.correct++
		}
	}
	return agg
}

// Finish ends the attempt. finished-at and score are persisted by the first
// call only; every call recomputes the returned aggregates from current answers.
func (s *QuizService) Finish(ctx context.Context, quizID string, p Participant) (Result, error) {
	quiz, attempt, err := s.load(ctx, quizID, p)
	if err != nil {
		return Result{}, err
	}
	return s.finish(ctx, quiz, attempt, s.now())
}

func (s *QuizService) finishStep(ctx context.Context, quiz domain.Quiz, attempt domain.Attempt, now time.Time, recorded bool) (Step, error) {
	result, err := s.finish(ctx, quiz, attempt, now)
	if err != nil {
		return Step{}, err
	}
	return Step{Next: NextFinish, Recorded: recorded, Result: &result}, nil
}

func (s *QuizService) finish(ctx context.Context, quiz domain.Quiz, attempt domain.Attempt, now time.Time) (Result, error) {
	answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return Result{}, err
	}
	agg := aggregate(answers)

	if attempt.FinishedAt == nil {
		var stamped bool
		attempt, stamped, err = s.attempts.FinishAttempt(ctx, attempt.ID, now, agg.score)
		if err != nil {
			return Result{}, err
		}
		if stamped {
			s.observer.AttemptFinished(quiz.ID, attempt.TimeUp())
			s.log.Info("attempt finished",
				zap.String("quiz_id", quiz.ID),
				zap.String("user_id", attempt.UserID),
				zap.Int("score", attempt.Score),
				zap.Bool("time_up", attempt.TimeUp()))
			s.standingsChanged(ctx, quiz.ID)
		}
	}

	questions, err := s.quizzes.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return Result{}, err
	}
	served := domain.ServedQuestions(questions, quiz.MaxQuestions)
	totalMarks := domain.TotalMarks(served)

	result := Result{
		Attempt:        attempt,
		Score:          attempt.Score,
		TotalMarks:     totalMarks,
		Percentage:     domain.Percentage(attempt.Score, totalMarks),
		TotalQuestions: len(served),
		Answered:       agg.answered,
		Correct:        agg.correct,
		Incorrect:      max(0, agg.answered-agg.correct),
		TimeUp:         attempt.TimeUp(),
		TimeTaken:      attempt.TimeTaken().Seconds(),
		Details:        reviewDetails(served, answers),
	}

	req, err := s.requests.LatestRequest(ctx, quiz.ID, attempt.UserID)
	switch {
	case err == nil:
		result.Request = &req
	case ignoreNotFound(err) != nil:
		return Result{}, err
	}
	return result, nil
}

// reviewDetails builds one line per served question, with defaults for unanswered ones.
func reviewDetails(served []domain.Question, answers []domain.Answer) []AnswerDetail {
	byQuestion := make(map[string]domain.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	details := make([]AnswerDetail, 0, len(served))
	for _, q := range served {
		ans, answered := byQuestion[q.ID]
		d := AnswerDetail{
			Order:          q.Order,
			Question:       q.Text,
			Type:           q.Type,
			CorrectOptions: []string{},
			Marks:          q.Marks,
		}
		if q.Type == domain.QuestionMCQ {
			if answered && ans.SelectedOptionID != "" {
				if opt, ok := q.Option(ans.SelectedOptionID); ok {
					d.SelectedID = opt.ID
					d.SelectedText = opt.Text
					d.Correct = opt.Correct
				}
			}
			d.CorrectOptions = q.CorrectTexts()
		} else if answered {
			d.SelectedText = ans.TextAnswer
		}
		details = append(details, d)
	}
	return details
}
