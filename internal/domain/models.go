package domain

import (
	"strings"
	"time"
)

// SchedulingMode selects how a quiz bounds its attempts in time.
type SchedulingMode string

const (
	// ModeScheduled binds every attempt to the quiz's absolute start/end window.
	ModeScheduled SchedulingMode = "scheduled"
	// ModeManual gives each attempt its own duration measured from the attempt start.
	ModeManual SchedulingMode = "manual"
)

// AttemptStatus is the lifecycle state derived for an attempt.
type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusCompleted  AttemptStatus = "completed"
	StatusExpired    AttemptStatus = "expired"
)

// Quiz carries the scheduling configuration of a quiz.
type Quiz struct {
	ID              string         `json:"id"`
	Mode            SchedulingMode `json:"mode"`
	StartsAt        *time.Time     `json:"startsAt,omitempty"`
	EndsAt          *time.Time     `json:"endsAt,omitempty"`
	DurationMinutes int            `json:"durationMinutes,omitempty"`
	Link            string         `json:"link,omitempty"`
	// Version increments on every schedule change; attempts are created against a known version.
	Version int `json:"version"`
	// Locked is set together with the first attempt and freezes the schedule.
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attempt is one participant's sitting of a quiz.
type Attempt struct {
	ID             string     `json:"id"`
	QuizID         string     `json:"quizId"`
	Email          string     `json:"email"`
	NIJ            string     `json:"nij,omitempty"`
	EffectiveStart time.Time  `json:"effectiveStart"`
	EffectiveEnd   *time.Time `json:"effectiveEnd,omitempty"`
	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
	Total          int        `json:"total"`
	Correct        int        `json:"correct"`
	Incorrect      int        `json:"incorrect"`
	ServoID        string     `json:"servoId,omitempty"`
	ServiceKey     string     `json:"serviceKey,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Window is the effective start/end applicable to a single attempt.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// QuizScoring is per-quiz scoring configuration. Scores are computed from
// correct/incorrect counts, so no aggregate score or time bonus lives here.
type QuizScoring struct {
	QuizID        string    `json:"quizId"`
	QuestionCount int       `json:"questionCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UserQuizAssignment is administrative metadata linking a participant to a quiz.
type UserQuizAssignment struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"userId"`
	QuizID     string    `json:"quizId"`
	AssignedBy string    `json:"assignedBy,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NormalizeEmail returns the canonical form used as the identity key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
