package domain

import "time"

// DeriveStatus computes the lifecycle state of an attempt at now.
// A submission always wins; expiry is strict (now must be past the end) and
// attempts without an effective end never expire. Expired is never stored.
func DeriveStatus(a Attempt, now time.Time) AttemptStatus {
	if a.SubmittedAt != nil {
		return StatusCompleted
	}
	if a.EffectiveEnd != nil && now.After(*a.EffectiveEnd) {
		return StatusExpired
	}
	return StatusInProgress
}
