package domain

import "time"

// Mode describes how a quiz is presented to participants.
type Mode string

const (
	ModePractice    Mode = "practice"
	ModeTest        Mode = "test"
	ModeCompetition Mode = "competition"
)

// QuestionType is either multiple choice or free text.
type QuestionType string

const (
	QuestionMCQ  QuestionType = "mcq"
	QuestionText QuestionType = "text"
)

// Quiz is a scheduled, timed set of questions.
type Quiz struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	StartTime   time.Time `json:"startTime" yaml:"start_time"`
	EndTime     time.Time `json:"endTime" yaml:"end_time"`
	// Duration of a single attempt in minutes.
	Duration     int    `json:"duration" yaml:"duration"`
	Status       Phase  `json:"status" yaml:"-"` // display memo, see Schedule
	Mode         Mode   `json:"mode" yaml:"mode"`
	MaxQuestions int    `json:"maxQuestions,omitempty" yaml:"max_questions"` // 0 means no cap
	AccessToken  string `json:"-" yaml:"access_token"`
}

// AttemptDuration converts the configured minutes into a time.Duration.
func (q Quiz) AttemptDuration() time.Duration {
	return time.Duration(q.Duration) * time.Minute
}

// RequiresToken reports whether participants must unlock the quiz first.
func (q Quiz) RequiresToken() bool {
	return q.AccessToken != ""
}

// Option represents a possible answer for a multiple-choice question.
type Option struct {
	ID         string `json:"id" yaml:"-"`
	QuestionID string `json:"-" yaml:"-"`
	Text       string `json:"text" yaml:"text"`
	Correct    bool   `json:"correct" yaml:"correct"`
}

// Question belongs to exactly one quiz and is served by ascending Order.
type Question struct {
	ID      string       `json:"id" yaml:"-"`
	QuizID  string       `json:"-" yaml:"-"`
	Text    string       `json:"text" yaml:"text"`
	Type    QuestionType `json:"type" yaml:"type"`
	Marks   int          `json:"marks" yaml:"marks"`
	Order   int          `json:"order" yaml:"order"`
	Options []Option     `json:"options,omitempty" yaml:"options"`
}

// Option looks up one of the question's own options.
func (q Question) Option(optionID string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return opt, true
		}
	}
	return Option{}, false
}

// CorrectTexts lists the texts of every option flagged correct.
func (q Question) CorrectTexts() []string {
	out := make([]string, 0, 1)
	for _, opt := range q.Options {
		if opt.Correct {
			out = append(out, opt.Text)
		}
	}
	return out
}

// Attempt is one participant's run through one quiz. At most one exists per (quiz, user).
type Attempt struct {
	ID              string     `json:"id"`
	QuizID          string     `json:"quizId"`
	UserID          string     `json:"userId"`
	Username        string     `json:"username"`
	JoinedAt        time.Time  `json:"joinedAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	AllowedFinishAt *time.Time `json:"allowedFinishAt,omitempty"`
	Score           int        `json:"score"`
}

// AttemptState is the lifecycle position of an attempt.
type AttemptState string

const (
	AttemptNotStarted AttemptState = "not_started"
	AttemptInProgress AttemptState = "in_progress"
	AttemptFinished   AttemptState = "finished"
)

func (a Attempt) State() AttemptState {
	switch {
	case a.FinishedAt != nil:
		return AttemptFinished
	case a.StartedAt != nil:
		return AttemptInProgress
	default:
		return AttemptNotStarted
	}
}

// Expired reports whether the fixed deadline has passed at now.
func (a Attempt) Expired(now time.Time) bool {
	return a.AllowedFinishAt != nil && now.After(*a.AllowedFinishAt)
}

// InProgress is true while started, unfinished and within the deadline.
func (a Attempt) InProgress(now time.Time) bool {
	return a.StartedAt != nil && a.FinishedAt == nil && !a.Expired(now)
}

// Remaining is the time left before the deadline, zero once finished or expired.
func (a Attempt) Remaining(now time.Time) time.Duration {
	if a.AllowedFinishAt == nil || a.FinishedAt != nil {
		return 0
	}
	if left := a.AllowedFinishAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

// TimeTaken is finished-at minus started-at, zero if either is missing.
func (a Attempt) TimeTaken() time.Duration {
	if a.StartedAt == nil || a.FinishedAt == nil {
		return 0
	}
	return a.FinishedAt.Sub(*a.StartedAt)
}

// TimeUp reports whether the attempt was finished after its deadline.
func (a Attempt) TimeUp() bool {
	if a.AllowedFinishAt == nil || a.FinishedAt == nil {
		return false
	}
	return a.FinishedAt.After(*a.AllowedFinishAt)
}

// Answer is unique per (attempt, question). MarksAwarded is always derived, see AwardMarks.
type Answer struct {
	ID               string    `json:"id"`
	AttemptID        string    `json:"attemptId"`
	QuestionID       string    `json:"questionId"`
	SelectedOptionID string    `json:"selectedOptionId,omitempty"`
	TextAnswer       string    `json:"textAnswer,omitempty"`
	MarksAwarded     int       `json:"marksAwarded"`
	AnsweredAt       time.Time `json:"answeredAt"`
}

// RequestStatus is the staff decision state of a re-attempt request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// ReattemptRequest asks staff to reset a finished attempt.
type ReattemptRequest struct {
	ID          string        `json:"id"`
	QuizID      string        `json:"quizId"`
	UserID      string        `json:"userId"`
	Username    string        `json:"username"`
	AttemptID   string        `json:"attemptId,omitempty"` // empty once detached
	Status      RequestStatus `json:"status"`
	Reason      string        `json:"reason"`
	CreatedAt   time.Time     `json:"createdAt"`
	ProcessedAt *time.Time    `json:"processedAt,omitempty"`
	ProcessedBy string        `json:"processedBy,omitempty"`
	// UserNotified is flipped once the requester has seen the outcome.
	UserNotified bool `json:"userNotified"`
	// Used is flipped when an approved re-attempt is consumed by starting.
	Used bool `json:"used"`
}

// Open requests block a new request: pending, or approved and not yet used.
func (r ReattemptRequest) Open() bool {
	return r.Status == RequestPending || (r.Status == RequestApproved && !r.Used)
}

// Decision is the staff verdict applied to a pending request.
type Decision struct {
	Approve   bool
	Actor     string
	DecidedAt time.Time
}

// LeaderboardEntry is one ranked, finished attempt.
type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Score      int       `json:"score"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Leaderboard captures the ordered scoreboard for a quiz.
type Leaderboard struct {
	QuizID  string             `json:"quizId"`
	Entries []LeaderboardEntry `json:"entries"`
	// YourRank is 1-based; zero when the requester has no finished attempt.
	YourRank int `json:"yourRank,omitempty"`
}

// Status is the pollable snapshot of a quiz: fresh phase, top finishers and server time.
type Status struct {
	QuizID      string             `json:"quizId"`
	Phase       Phase              `json:"status"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	ServerTime  time.Time          `json:"serverTime"`
}
