package domain

import "fmt"

// Reconcile validates total/correct counts and derives the incorrect count.
// Inputs are rejected, never clamped.
func Reconcile(total, correct int) (int, int, error) {
	if total < 0 || correct < 0 {
		return 0, 0, fmt.Errorf("%w: negative count (total=%d correct=%d)", ErrInvalidScoreInput, total, correct)
	}
	if correct > total {
		return 0, 0, fmt.Errorf("%w: correct %d exceeds total %d", ErrInvalidScoreInput, correct, total)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return correct, total - correct, nil
}
