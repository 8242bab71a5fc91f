package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const attemptColumns = `id, quiz_id, email, nij, effective_start, effective_end, submitted_at,
	total, correct, incorrect, servo_id, service_key, created_at`

// AttemptStore persists attempts; the attempts_email_key constraint is the
// authoritative uniqueness check for participant emails.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// CreateAttempt locks the quiz schedule and inserts the attempt in one transaction.
func (s *AttemptStore) CreateAttempt(ctx context.Context, attempt domain.Attempt, quizVersion int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE quizzes SET mode_locked = TRUE WHERE id=$1 AND version=$2`, attempt.QuizID, quizVersion)
	if err != nil {
		return fmt.Errorf("lock quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quizzes WHERE id=$1)`, attempt.QuizID).Scan(&exists); err != nil {
			return fmt.Errorf("lock quiz: %w", err)
		}
		if !exists {
			return domain.ErrQuizNotFound
		}
		return domain.ErrModeLocked
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO attempts (id, quiz_id, email, nij, effective_start, effective_end, submitted_at,
			total, correct, incorrect, servo_id, service_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULL, 0, 0, 0, $7, $8, $9)`,
		attempt.ID, attempt.QuizID, attempt.Email, attempt.NIJ, attempt.EffectiveStart, attempt.EffectiveEnd,
		attempt.ServoID, attempt.ServiceKey, attempt.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("commit attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id=$1`, attemptID)
	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attempts WHERE email=$1)`, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("email exists: %w", err)
	}
	return exists, nil
}

func (s *AttemptStore) SubmitAttempt(ctx context.Context, attemptID string, submittedAt time.Time, total, correct, incorrect int) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE attempts SET submitted_at=$2, total=$3, correct=$4, incorrect=$5
		 WHERE id=$1 AND submitted_at IS NULL
		 RETURNING `+attemptColumns,
		attemptID, submittedAt, total, correct, incorrect,
	)
	attempt, err := scanAttempt(row)
	if err == nil {
		return attempt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, fmt.Errorf("submit attempt: %w", err)
	}
	if _, err := s.GetAttempt(ctx, attemptID); err != nil {
		return domain.Attempt{}, err
	}
	return domain.Attempt{}, domain.ErrAlreadySubmitted
}

func (s *AttemptStore) ListSubmitted(ctx context.Context, afterID string, limit int) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE submitted_at IS NOT NULL AND id > $1
		 ORDER BY id
		 LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list submitted: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}

func (s *AttemptStore) UpdateIncorrect(ctx context.Context, attemptID string, incorrect int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE attempts SET incorrect=$2 WHERE id=$1`, attemptID, incorrect)
	if err != nil {
		return fmt.Errorf("update incorrect: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var (
		a            domain.Attempt
		effectiveEnd *time.Time
		submittedAt  *time.Time
	)
	err := row.Scan(&a.ID, &a.QuizID, &a.Email, &a.NIJ, &a.EffectiveStart, &effectiveEnd, &submittedAt,
		&a.Total, &a.Correct, &a.Incorrect, &a.ServoID, &a.ServiceKey, &a.CreatedAt)
	if err != nil {
		return domain.Attempt{}, err
	}
	a.EffectiveStart = a.EffectiveStart.UTC()
	a.EffectiveEnd = utcPtr(effectiveEnd)
	a.SubmittedAt = utcPtr(submittedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
