package domain

import "errors"

var (
	// ErrDuplicateEmail is returned when an attempt already exists for the participant email.
	ErrDuplicateEmail = errors.New("an attempt already exists for this email")
	// ErrInvalidWindow indicates a scheduled quiz window that is malformed or already closed.
	ErrInvalidWindow = errors.New("invalid scheduling window")
	// ErrInvalidDuration indicates a manual quiz without a positive duration.
	ErrInvalidDuration = errors.New("invalid quiz duration")
	// ErrModeLocked is returned when the scheduling of a quiz is changed after attempts exist.
	ErrModeLocked = errors.New("quiz scheduling is locked")
	// ErrInvalidScoreInput rejects negative or out-of-bounds score counts.
	ErrInvalidScoreInput = errors.New("invalid score input")

	// ErrQuizNotFound indicates the quiz configuration could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound indicates an unknown attempt ID.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAlreadySubmitted is returned on a second submission for the same attempt.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrInvalidQuiz indicates a quiz record missing required fields.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrIdentityBusy means another creation for the same email did not finish in time; retryable.
	ErrIdentityBusy = errors.New("another attempt for this email is being created")
	// ErrInvalidEmail indicates an empty participant email.
	ErrInvalidEmail = errors.New("invalid email")
)
