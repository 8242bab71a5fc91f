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

const quizColumns = `id, mode, starts_at, ends_at, COALESCE(duration_minutes, 0), link, version, mode_locked, created_at`

// QuizStore persists quiz scheduling configuration.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

// LoadQuiz satisfies the cache loaders in infra/memory and infra/redis.
func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id=$1`, quizID)
	quiz, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizStore) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, mode, starts_at, ends_at, duration_minutes, link, version, mode_locked, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`,
		quiz.ID, string(quiz.Mode), quiz.StartsAt, quiz.EndsAt, nullablePositive(quiz.DurationMinutes), quiz.Link, quiz.Version, quiz.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: quiz %s already exists", domain.ErrInvalidQuiz, quiz.ID)
	}
	if err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

// UpdateSchedule relies on the row lock taken by UPDATE: a concurrent first
// attempt either commits its lock before this runs or waits for it to finish.
func (s *QuizStore) UpdateSchedule(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE quizzes
		 SET mode=$2, starts_at=$3, ends_at=$4, duration_minutes=$5, version=version+1
		 WHERE id=$1 AND NOT mode_locked
		 RETURNING `+quizColumns,
		quiz.ID, string(quiz.Mode), quiz.StartsAt, quiz.EndsAt, nullablePositive(quiz.DurationMinutes),
	)
	updated, err := scanQuiz(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, fmt.Errorf("update schedule: %w", err)
	}

	var locked bool
	err = s.pool.QueryRow(ctx, `SELECT mode_locked FROM quizzes WHERE id=$1`, quiz.ID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("update schedule: %w", err)
	}
	return domain.Quiz{}, domain.ErrModeLocked
}

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var (
		quiz     domain.Quiz
		mode     string
		startsAt *time.Time
		endsAt   *time.Time
	)
	if err := row.Scan(&quiz.ID, &mode, &startsAt, &endsAt, &quiz.DurationMinutes, &quiz.Link, &quiz.Version, &quiz.Locked, &quiz.CreatedAt); err != nil {
		return domain.Quiz{}, err
	}
	quiz.Mode = domain.SchedulingMode(mode)
	quiz.StartsAt = utcPtr(startsAt)
	quiz.EndsAt = utcPtr(endsAt)
	quiz.CreatedAt = quiz.CreatedAt.UTC()
	return quiz, nil
}

func nullablePositive(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
