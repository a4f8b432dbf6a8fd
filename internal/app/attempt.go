package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"timed-quiz-service/internal/domain"
)

// Next tells the caller where the participant goes after an action.
type Next string

const (
	NextQuestion Next = "question"
	NextFinish   Next = "finish"
)

// Step is the outcome of a state machine action: either the question to
// serve next or the finished result.
type Step struct {
	Next     Next          `json:"next"`
	Recorded bool          `json:"recorded"`
	Question *QuestionView `json:"question,omitempty"`
	Result   *Result       `json:"result,omitempty"`
}

// OptionView hides correctness from participants.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is a served question with the participant's progress.
type QuestionView struct {
	QuizID           string              `json:"quizId"`
	ID               string              `json:"id"`
	Order            int                 `json:"order"`
	Text             string              `json:"text"`
	Type             domain.QuestionType `json:"type"`
	Marks            int                 `json:"marks"`
	Options          []OptionView        `json:"options,omitempty"`
	Position         int                 `json:"position"`
	TotalQuestions   int                 `json:"totalQuestions"`
	AnsweredCount    int                 `json:"answeredCount"`
	RemainingSeconds int                 `json:"remainingSeconds"`
	Current          *domain.Answer      `json:"current,omitempty"`
}

// AnswerPayload is what a participant submits for one question.
type AnswerPayload struct {
	OptionID string `json:"optionId"`
	Text     string `json:"text"`
	// FinishNow ends the attempt without recording this submission.
	FinishNow bool `json:"finishNow"`
	// SubmitQuiz records this submission and then ends the attempt.
	SubmitQuiz bool `json:"submitQuiz"`
}

// Detail is the quiz landing view for a participant.
type Detail struct {
	Quiz             domain.Quiz              `json:"quiz"`
	Attempt          domain.Attempt           `json:"attempt"`
	State            domain.AttemptState      `json:"state"`
	HasAccess        bool                     `json:"hasAccess"`
	RemainingSeconds int                      `json:"remainingSeconds"`
	TotalQuestions   int                      `json:"totalQuestions"`
	TotalMarks       int                      `json:"totalMarks"`
	Request          *domain.ReattemptRequest `json:"reattemptRequest,omitempty"`
	Notice           *Notice                  `json:"notice,omitempty"`
	ServerTime       time.Time                `json:"serverTime"`
}

// Detail refreshes the status memo, ensures the attempt exists and surfaces a
// pending re-attempt outcome exactly once.
func (s *QuizService) Detail(ctx context.Context, quizID string, p Participant) (Detail, error) {
	now := s.now()
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Detail{}, err
	}
	quiz = s.refreshStatus(ctx, quiz, now)

	attempt, err := s.attempts.EnsureAttempt(ctx, quizID, p.UserID, p.Username, now)
	if err != nil {
		return Detail{}, err
	}
	questions, err := s.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		return Detail{}, err
	}
	served := domain.ServedQuestions(questions, quiz.MaxQuestions)

	detail := Detail{
		Quiz:             quiz,
		Attempt:          attempt,
		State:            attempt.State(),
		HasAccess:        true,
		RemainingSeconds: seconds(attempt.Remaining(now)),
		TotalQuestions:   len(served),
		TotalMarks:       domain.TotalMarks(served),
		ServerTime:       now,
	}

	req, err := s.requests.LatestRequest(ctx, quizID, p.UserID)
	switch {
	case err == nil:
		detail.Notice = s.notifyOnce(ctx, &req, p)
		detail.Request = &req
	case ignoreNotFound(err) != nil:
		return Detail{}, err
	}

	if quiz.RequiresToken() {
		detail.HasAccess, err = s.gate.Unlocked(ctx, p.SessionID, quizID)
		if err != nil {
			return Detail{}, err
		}
	}
	return detail, nil
}

// Start stamps the attempt timer on first call and serves the first question.
// allowed-finish-at is computed here once and never again.
func (s *QuizService) Start(ctx context.Context, quizID string, p Participant) (Step, error) {
	now := s.now()
	quiz, attempt, err := s.load(ctx, quizID, p)
	if err != nil {
		return Step{}, err
	}

	if quiz.RequiresToken() {
		ok, err := s.gate.Unlocked(ctx, p.SessionID, quizID)
		if err != nil {
			return Step{}, err
		}
		if !ok {
			return Step{}, domain.ErrAccessLocked
		}
	}
	if !quiz.ActiveAt(now) {
		return Step{}, domain.ErrQuizNotActive
	}
	if attempt.FinishedAt != nil {
		return s.finishStep(ctx, quiz, attempt, now, false)
	}

	if attempt.StartedAt == nil {
		var stamped bool
		attempt, stamped, err = s.attempts.StartAttempt(ctx, attempt.ID, now, now.Add(quiz.AttemptDuration()))
		if err != nil {
			return Step{}, err
		}
		if stamped {
			s.observer.AttemptStarted(quizID)
			s.log.Info("attempt started",
				zap.String("quiz_id", quizID),
				zap.String("user_id", p.UserID),
				zap.Timep("allowed_finish_at", attempt.AllowedFinishAt))
			s.consumeReattempt(ctx, quizID, p.UserID)
		}
	}

	if attempt.Expired(now) {
		return s.finishStep(ctx, quiz, attempt, now, false)
	}

	questions, err := s.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		return Step{}, err
	}
	served := domain.ServedQuestions(questions, quiz.MaxQuestions)
	if len(served) == 0 {
		return s.finishStep(ctx, quiz, attempt, now, false)
	}
	view, err := s.questionView(ctx, quiz, attempt, served, 0, now)
	if err != nil {
		return Step{}, err
	}
	return Step{Next: NextQuestion, Question: &view}, nil
}

// consumeReattempt marks an approved re-attempt used. It is best effort and never blocks starting.
func (s *QuizService) consumeReattempt(ctx context.Context, quizID, userID string) {
	if _, err := s.requests.MarkRequestUsed(ctx, quizID, userID); err != nil {
		s.log.Warn("mark re-attempt used",
			zap.String("quiz_id", quizID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// Question serves the question with the given order, or the finish step when
// the attempt can no longer be answered.
func (s *QuizService) Question(ctx context.Context, quizID string, p Participant, order int) (Step, error) {
	now := s.now()
	quiz, attempt, err := s.load(ctx, quizID, p)
	if err != nil {
		return Step{}, err
	}
	if attempt.FinishedAt != nil || attempt.Expired(now) || !quiz.ActiveAt(now) {
		return s.finishStep(ctx, quiz, attempt, now, false)
	}
	questions, err := s.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		return Step{}, err
	}
	served := domain.ServedQuestions(questions, quiz.MaxQuestions)
	idx := domain.IndexOfOrder(served, order)
	if idx < 0 {
		return s.finishStep(ctx, quiz, attempt, now, false)
	}
	view, err := s.questionView(ctx, quiz, attempt, served, idx, now)
	if err != nil {
		return Step{}, err
	}
	return Step{Next: NextQuestion, Question: &view}, nil
}

// SubmitAnswer records an answer and moves to the next question by position
// in the served set. Expired, inactive or stale requests go to Finish without
// recording anything.
func (s *QuizService) SubmitAnswer(ctx context.Context, quizID string, p Participant, order int, payload AnswerPayload) (Step, error) {
	now := s.now()
	quiz, attempt, err := s.load(ctx, quizID, p)
	if err != nil {
		return Step{}, err
	}
	if attempt.FinishedAt != nil || attempt.Expired(now) || !quiz.ActiveAt(now) {
		return s.finishStep(ctx, quiz, attempt, now, false)
	}

	questions, err := s.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		return Step{}, err
	}
	served := domain.ServedQuestions(questions, quiz.MaxQuestions)
	idx := domain.IndexOfOrder(served, order)
	if idx < 0 {
		return s.finishStep(ctx, quiz, attempt, now, false)
	}
	if payload.FinishNow {
		return s.finishStep(ctx, quiz, attempt, now, false)
	}
	if attempt.StartedAt == nil {
		return Step{}, domain.ErrAttemptNotStarted
	}

	recorded, err := s.record(ctx, attempt, served[idx], payload, now)
	if err != nil {
		return Step{}, err
	}

	if payload.SubmitQuiz || idx == len(served)-1 {
		return s.finishStep(ctx, quiz, attempt, now, recorded)
	}
	view, err := s.questionView(ctx, quiz, attempt, served, idx+1, now)
	if err != nil {
		return Step{}, err
	}
	return Step{Next: NextQuestion, Recorded: recorded, Question: &view}, nil
}

// record upserts the answer. Marks are derived from the question every time;
// a missing or foreign option or an empty text records nothing.
func (s *QuizService) record(ctx context.Context, attempt domain.Attempt, q domain.Question, payload AnswerPayload, now time.Time) (bool, error) {
	answer := domain.Answer{
		AttemptID:  attempt.ID,
		QuestionID: q.ID,
		AnsweredAt: now,
	}
	switch q.Type {
	case domain.QuestionMCQ:
		if _, ok := q.Option(payload.OptionID); !ok {
			return false, nil
		}
		answer.SelectedOptionID = payload.OptionID
	default:
		if strings.TrimSpace(payload.Text) == "" {
			return false, nil
		}
		answer.TextAnswer = payload.Text
	}
	answer.MarksAwarded = domain.AwardMarks(q, answer.SelectedOptionID)

	if _, err := s.attempts.UpsertAnswer(ctx, answer); err != nil {
		return false, err
	}
	s.observer.AnswerRecorded(q.Type)
	return true, nil
}

func (s *QuizService) questionView(ctx context.Context, quiz domain.Quiz, attempt domain.Attempt, served []domain.Question, idx int, now time.Time) (QuestionView, error) {
	answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return QuestionView{}, err
	}
	q := served[idx]
	view := QuestionView{
		QuizID:           quiz.ID,
		ID:               q.ID,
		Order:            q.Order,
		Text:             q.Text,
		Type:             q.Type,
		Marks:            q.Marks,
		Position:         idx + 1,
		TotalQuestions:   len(served),
		AnsweredCount:    len(answers),
		RemainingSeconds: seconds(attempt.Remaining(now)),
	}
	for _, opt := range q.Options {
		view.Options = append(view.Options, OptionView{ID: opt.ID, Text: opt.Text})
	}
	for i := range answers {
		if answers[i].QuestionID == q.ID {
			view.Current = &answers[i]
			break
		}
	}
	return view, nil
}

// load fetches the quiz and the participant's attempt. A participant who never
// visited the quiz gets domain.ErrAttemptNotFound.
func (s *QuizService) load(ctx context.Context, quizID string, p Participant) (domain.Quiz, domain.Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, domain.Attempt{}, err
	}
	attempt, err := s.attempts.GetAttempt(ctx, quizID, p.UserID)
	if err != nil {
		return domain.Quiz{}, domain.Attempt{}, err
	}
	return quiz, attempt, nil
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
