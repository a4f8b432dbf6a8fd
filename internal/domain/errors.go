package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the parent of every lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequestState marks operations that are a no-op in the current state.
	ErrInvalidRequestState = errors.New("invalid request state")

	// ErrQuizNotFound indicates the quiz does not exist.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrAttemptNotFound is returned when a participant acts before Ensure-Attempt.
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)
	// ErrQuestionNotFound indicates a question outside the served set.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = fmt.Errorf("option %w", ErrNotFound)
	// ErrRequestNotFound covers missing and already processed re-attempt requests.
	ErrRequestNotFound = fmt.Errorf("re-attempt request %w", ErrNotFound)

	// ErrRequestOpen blocks a second pending or unused approved request.
	ErrRequestOpen = fmt.Errorf("re-attempt request already pending or approved: %w", ErrInvalidRequestState)
	// ErrNotFinished blocks re-attempt requests before the quiz was finished.
	ErrNotFinished = fmt.Errorf("attempt not finished: %w", ErrInvalidRequestState)
	// ErrAttemptNotStarted blocks answers before Start.
	ErrAttemptNotStarted = fmt.Errorf("attempt not started: %w", ErrInvalidRequestState)

	// ErrQuizNotActive is returned when the schedule gate fails.
	ErrQuizNotActive = errors.New("quiz is not active")
	// ErrTimeExpired is returned internally when the attempt deadline passed.
	ErrTimeExpired = errors.New("attempt time expired")
	// ErrAccessLocked means the quiz token has not been validated for the session.
	ErrAccessLocked = errors.New("quiz access token required")
	// ErrInvalidToken is returned when an unlock token does not match.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrInvalidQuiz wraps authoring validation failures.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrGenerationFailed wraps every failure of the draft generator.
	ErrGenerationFailed = errors.New("quiz draft generation failed")
)
