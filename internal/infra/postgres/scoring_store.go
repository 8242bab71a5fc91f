package postgres

import (
	"context"
	"errors"
	"fmt"

	"quiz-attempt-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ScoringStore keeps per-quiz scoring configuration and participant assignments.
// Neither is read by the attempt lifecycle.
type ScoringStore struct {
	pool *pgxpool.Pool
}

func NewScoringStore(pool *pgxpool.Pool) *ScoringStore {
	return &ScoringStore{pool: pool}
}

func (s *ScoringStore) UpsertScoring(ctx context.Context, scoring domain.QuizScoring) (domain.QuizScoring, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO quiz_scoring (quiz_id, question_count, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (quiz_id) DO UPDATE SET question_count=EXCLUDED.question_count, updated_at=now()
		 RETURNING quiz_id, question_count, updated_at`,
		scoring.QuizID, scoring.QuestionCount,
	).Scan(&scoring.QuizID, &scoring.QuestionCount, &scoring.UpdatedAt)
	if err != nil {
		return domain.QuizScoring{}, fmt.Errorf("upsert scoring: %w", err)
	}
	return scoring, nil
}

func (s *ScoringStore) GetScoring(ctx context.Context, quizID string) (domain.QuizScoring, error) {
	var scoring domain.QuizScoring
	err := s.pool.QueryRow(ctx,
		`SELECT quiz_id, question_count, updated_at FROM quiz_scoring WHERE quiz_id=$1`, quizID,
	).Scan(&scoring.QuizID, &scoring.QuestionCount, &scoring.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizScoring{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizScoring{}, fmt.Errorf("get scoring: %w", err)
	}
	return scoring, nil
}

func (s *ScoringStore) Assign(ctx context.Context, a domain.UserQuizAssignment) (domain.UserQuizAssignment, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO user_quiz_assignments (user_id, quiz_id, assigned_by, notes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		a.UserID, a.QuizID, a.AssignedBy, a.Notes,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return domain.UserQuizAssignment{}, fmt.Errorf("assign quiz: %w", err)
	}
	return a, nil
}

func (s *ScoringStore) ListAssignments(ctx context.Context, userID string) ([]domain.UserQuizAssignment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, quiz_id, assigned_by, notes, created_at
		 FROM user_quiz_assignments WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []domain.UserQuizAssignment
	for rows.Next() {
		var a domain.UserQuizAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuizID, &a.AssignedBy, &a.Notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
