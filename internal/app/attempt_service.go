package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuizRepository loads quiz configuration (usually through a cache).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID string) error
}

// QuizStore persists quiz configuration.
type QuizStore interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	// UpdateSchedule replaces the schedule of an unlocked quiz, bumping its version.
	// It returns domain.ErrModeLocked once any attempt exists for the quiz.
	UpdateSchedule(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
}

// AttemptStore persists attempts. Implementations must enforce a unique email
// across all attempts and report violations as domain.ErrDuplicateEmail.
type AttemptStore interface {
	// CreateAttempt inserts the attempt and locks the quiz schedule in one unit.
	// It returns domain.ErrModeLocked if the quiz version no longer matches.
	CreateAttempt(ctx context.Context, attempt domain.Attempt, quizVersion int) error
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	// SubmitAttempt records the submission once; a second call returns domain.ErrAlreadySubmitted.
	SubmitAttempt(ctx context.Context, attemptID string, submittedAt time.Time, total, correct, incorrect int) (domain.Attempt, error)
	// ListSubmitted pages submitted attempts ordered by ID, starting after afterID.
	ListSubmitted(ctx context.Context, afterID string, limit int) ([]domain.Attempt, error)
	UpdateIncorrect(ctx context.Context, attemptID string, incorrect int) error
}

// Clock supplies the current instant.
type Clock func() time.Time

// CreateAttemptRequest carries the participant identity for a new attempt.
type CreateAttemptRequest struct {
	QuizID     string
	Email      string
	NIJ        string
	ServoID    string
	ServiceKey string
}

// ScheduleChange replaces the scheduling configuration of a quiz.
type ScheduleChange struct {
	Mode            domain.SchedulingMode
	StartsAt        *time.Time
	EndsAt          *time.Time
	DurationMinutes int
}

// AttemptView is an attempt together with its status at read time.
type AttemptView struct {
	domain.Attempt
	Status domain.AttemptStatus `json:"status"`
}

// BackfillReport summarizes a score backfill run.
type BackfillReport struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// AttemptService contains the attempt lifecycle use cases.
type AttemptService struct {
	quizzes   QuizRepository
	quizStore QuizStore
	attempts  AttemptStore
	guard     *IdentityGuard
	now       Clock
	newID     func() string
	log       *zap.Logger
}

// Option customizes an AttemptService.
type Option func(*AttemptService)

// WithClock replaces time.Now, mostly for deterministic tests.
func WithClock(now Clock) Option {
	return func(s *AttemptService) { s.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *AttemptService) { s.log = log }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *AttemptService) { s.newID = gen }
}

// WithIdentityWait bounds how long CreateAttempt waits for a concurrent creation
// with the same email before giving up with domain.ErrIdentityBusy.
func WithIdentityWait(d time.Duration) Option {
	return func(s *AttemptService) { s.guard.maxWait = d }
}

// NewAttemptService wires the use cases. A nil locker leaves uniqueness to the store constraint.
func NewAttemptService(quizzes QuizRepository, quizStore QuizStore, attempts AttemptStore, locker IdentityLocker, opts ...Option) *AttemptService {
	s := &AttemptService{
		quizzes:   quizzes,
		quizStore: quizStore,
		attempts:  attempts,
		guard:     NewIdentityGuard(locker, attempts),
		now:       time.Now,
		newID:     uuid.NewString,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateQuiz validates and stores a new quiz configuration.
func (s *AttemptService) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	quiz.Version = 1
	quiz.Locked = false
	quiz.CreatedAt = s.now().UTC()
	if err := s.quizStore.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	s.log.Info("quiz created", zap.String("quiz_id", quiz.ID), zap.String("mode", string(quiz.Mode)))
	return quiz, nil
}

// ChangeQuizMode replaces the quiz schedule. Once an attempt exists the schedule
// is frozen and any change fails with domain.ErrModeLocked.
func (s *AttemptService) ChangeQuizMode(ctx context.Context, quizID string, change ScheduleChange) (domain.Quiz, error) {
	current, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	next := current
	next.Mode = change.Mode
	next.StartsAt = change.StartsAt
	next.EndsAt = change.EndsAt
	next.DurationMinutes = change.DurationMinutes
	if next.Mode == domain.ModeManual {
		next.StartsAt, next.EndsAt = nil, nil
	} else {
		next.DurationMinutes = 0
	}
	if domain.ScheduleEqual(current, next) {
		return current, nil
	}
	if current.Locked {
		return domain.Quiz{}, domain.ErrModeLocked
	}
	if err := next.Validate(); err != nil {
		return domain.Quiz{}, err
	}

	updated, err := s.quizStore.UpdateSchedule(ctx, next)
	if invErr := s.quizzes.Invalidate(ctx, quizID); invErr != nil {
		s.log.Warn("quiz cache invalidation failed", zap.String("quiz_id", quizID), zap.Error(invErr))
	}
	if err != nil {
		return domain.Quiz{}, err
	}
	s.log.Info("quiz schedule changed", zap.String("quiz_id", quizID), zap.String("mode", string(updated.Mode)), zap.Int("version", updated.Version))
	return updated, nil
}

// ResolveSchedulingWindow returns the effective window an attempt starting at attemptStart would get.
func (s *AttemptService) ResolveSchedulingWindow(ctx context.Context, quizID string, attemptStart time.Time) (domain.Window, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Window{}, err
	}
	return domain.ResolveWindow(quiz, attemptStart)
}

// CreateAttempt starts an attempt for the participant, enforcing one attempt per email.
func (s *AttemptService) CreateAttempt(ctx context.Context, req CreateAttemptRequest) (domain.Attempt, error) {
	email := domain.NormalizeEmail(req.Email)
	if email == "" {
		return domain.Attempt{}, domain.ErrInvalidEmail
	}

	quiz, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	now := s.now().UTC()
	window, err := domain.ResolveWindow(quiz, now)
	if err != nil {
		return domain.Attempt{}, err
	}

	end := window.End
	attempt := domain.Attempt{
		ID:             s.newID(),
		QuizID:         quiz.ID,
		Email:          email,
		NIJ:            req.NIJ,
		EffectiveStart: window.Start,
		EffectiveEnd:   &end,
		ServoID:        req.ServoID,
		ServiceKey:     req.ServiceKey,
		CreatedAt:      now,
	}

	created, err := s.guard.CheckAndReserve(ctx, attempt, quiz.Version)
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		s.log.Warn("duplicate attempt rejected", zap.String("quiz_id", quiz.ID), zap.String("identity", logging.HashIdentity(email)))
		return domain.Attempt{}, err
	case errors.Is(err, domain.ErrModeLocked):
		// The cached schedule is stale; drop it so the next request sees the stored one.
		_ = s.quizzes.Invalidate(ctx, quiz.ID)
		return domain.Attempt{}, err
	case err != nil:
		return domain.Attempt{}, err
	}

	if !quiz.Locked {
		_ = s.quizzes.Invalidate(ctx, quiz.ID)
	}
	s.log.Info("attempt created",
		zap.String("attempt_id", created.ID),
		zap.String("quiz_id", created.QuizID),
		zap.String("identity", logging.HashIdentity(email)),
		zap.Time("effective_end", end),
	)
	return created, nil
}

// GetStatus derives the status of an attempt at now.
func (s *AttemptService) GetStatus(ctx context.Context, attemptID string, now time.Time) (domain.AttemptStatus, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return "", err
	}
	return domain.DeriveStatus(attempt, now), nil
}

// GetAttempt returns the stored attempt with its status at the service clock.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string) (AttemptView, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	return AttemptView{Attempt: attempt, Status: domain.DeriveStatus(attempt, s.now())}, nil
}

// SubmitAttempt records the final score. Late submissions are accepted and
// complete the attempt; invalid counts leave it in progress.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID string, total, correct int) (domain.Attempt, error) {
	correct, incorrect, err := domain.Reconcile(total, correct)
	if err != nil {
		return domain.Attempt{}, err
	}

	attempt, err := s.attempts.SubmitAttempt(ctx, attemptID, s.now().UTC(), total, correct, incorrect)
	if err != nil {
		return domain.Attempt{}, err
	}
	s.log.Info("attempt submitted",
		zap.String("attempt_id", attempt.ID),
		zap.Int("total", attempt.Total),
		zap.Int("correct", attempt.Correct),
		zap.Int("incorrect", attempt.Incorrect),
	)
	return attempt, nil
}

// BackfillScores re-derives the incorrect count of every submitted attempt.
// Consistent records are left untouched, so repeated runs are no-ops.
func (s *AttemptService) BackfillScores(ctx context.Context, batchSize int) (BackfillReport, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var report BackfillReport
	afterID := ""
	for {
		batch, err := s.attempts.ListSubmitted(ctx, afterID, batchSize)
		if err != nil {
			return report, fmt.Errorf("list attempts: %w", err)
		}
		for _, a := range batch {
			report.Scanned++
			_, incorrect, err := domain.Reconcile(a.Total, a.Correct)
			if err != nil {
				report.Skipped++
				s.log.Warn("backfill skipped attempt", zap.String("attempt_id", a.ID), zap.Error(err))
				continue
			}
			if incorrect == a.Incorrect {
				continue
			}
			if err := s.attempts.UpdateIncorrect(ctx, a.ID, incorrect); err != nil {
				return report, fmt.Errorf("update attempt %s: %w", a.ID, err)
			}
			report.Updated++
		}
		if len(batch) < batchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	s.log.Info("score backfill finished", zap.Int("scanned", report.Scanned), zap.Int("updated", report.Updated), zap.Int("skipped", report.Skipped))
	return report, nil
}
