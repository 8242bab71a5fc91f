package domain

import (
	"fmt"
	"time"
)

// MaxDurationMinutes caps manual attempts at one leap year, well inside both
// time.Duration and the INTEGER column.
const MaxDurationMinutes = 60 * 24 * 366

// Validate checks the scheduling configuration for the quiz's mode.
func (q Quiz) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuiz)
	}
	switch q.Mode {
	case ModeScheduled:
		if q.StartsAt == nil || q.EndsAt == nil {
			return fmt.Errorf("%w: scheduled quiz needs start and end", ErrInvalidWindow)
		}
		if !q.StartsAt.Before(*q.EndsAt) {
			return fmt.Errorf("%w: start must be before end", ErrInvalidWindow)
		}
	case ModeManual:
		if q.DurationMinutes <= 0 {
			return fmt.Errorf("%w: manual quiz needs a positive duration", ErrInvalidDuration)
		}
		if q.DurationMinutes > MaxDurationMinutes {
			return fmt.Errorf("%w: duration exceeds %d minutes", ErrInvalidDuration, MaxDurationMinutes)
		}
	default:
		return fmt.Errorf("%w: unknown scheduling mode %q", ErrInvalidQuiz, q.Mode)
	}
	return nil
}

// ResolveWindow computes the effective window of an attempt starting at attemptStart.
// Scheduled attempts are clipped to the quiz opening and rejected once the quiz closed;
// manual attempts run for the configured duration from their own start.
func ResolveWindow(q Quiz, attemptStart time.Time) (Window, error) {
	switch q.Mode {
	case ModeScheduled:
		if q.StartsAt == nil || q.EndsAt == nil || !q.StartsAt.Before(*q.EndsAt) {
			return Window{}, fmt.Errorf("%w: quiz %s has no usable window", ErrInvalidWindow, q.ID)
		}
		if attemptStart.After(*q.EndsAt) {
			return Window{}, fmt.Errorf("%w: quiz %s closed at %s", ErrInvalidWindow, q.ID, q.EndsAt.Format(time.RFC3339))
		}
		start := attemptStart
		if q.StartsAt.After(start) {
			start = *q.StartsAt
		}
		return Window{Start: start, End: *q.EndsAt}, nil
	case ModeManual:
		if q.DurationMinutes <= 0 || q.DurationMinutes > MaxDurationMinutes {
			return Window{}, fmt.Errorf("%w: quiz %s", ErrInvalidDuration, q.ID)
		}
		return Window{
			Start: attemptStart,
			End:   attemptStart.Add(time.Duration(q.DurationMinutes) * time.Minute),
		}, nil
	default:
		return Window{}, fmt.Errorf("%w: unknown scheduling mode %q", ErrInvalidWindow, q.Mode)
	}
}

// ScheduleEqual reports whether two quizzes share the same scheduling configuration.
func ScheduleEqual(a, b Quiz) bool {
	return a.Mode == b.Mode &&
		a.DurationMinutes == b.DurationMinutes &&
		timePtrEqual(a.StartsAt, b.StartsAt) &&
		timePtrEqual(a.EndsAt, b.EndsAt)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
