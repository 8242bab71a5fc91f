package app

import (
	"context"
	"fmt"
	"strings"

	"quiz-attempt-service/internal/domain"

	"go.uber.org/zap"
)

// ScoringStore persists per-quiz scoring configuration and participant assignments.
// GetScoring returns domain.ErrQuizNotFound when nothing is configured.
type ScoringStore interface {
	UpsertScoring(ctx context.Context, scoring domain.QuizScoring) (domain.QuizScoring, error)
	GetScoring(ctx context.Context, quizID string) (domain.QuizScoring, error)
	Assign(ctx context.Context, a domain.UserQuizAssignment) (domain.UserQuizAssignment, error)
	ListAssignments(ctx context.Context, userID string) ([]domain.UserQuizAssignment, error)
}

// ScoringService manages the administrative records around a quiz. None of it
// feeds back into attempt status or score reconciliation.
type ScoringService struct {
	quizzes QuizRepository
	store   ScoringStore
	now     Clock
	log     *zap.Logger
}

func NewScoringService(quizzes QuizRepository, store ScoringStore, now Clock, log *zap.Logger) *ScoringService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScoringService{quizzes: quizzes, store: store, now: now, log: log}
}

// SetScoring records the question count of an existing quiz.
func (s *ScoringService) SetScoring(ctx context.Context, quizID string, questionCount int) (domain.QuizScoring, error) {
	if questionCount < 0 {
		return domain.QuizScoring{}, fmt.Errorf("%w: negative question count", domain.ErrInvalidQuiz)
	}
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.QuizScoring{}, err
	}
	scoring, err := s.store.UpsertScoring(ctx, domain.QuizScoring{QuizID: quizID, QuestionCount: questionCount, UpdatedAt: s.now().UTC()})
	if err != nil {
		return domain.QuizScoring{}, err
	}
	s.log.Info("quiz scoring updated", zap.String("quiz_id", quizID), zap.Int("question_count", questionCount))
	return scoring, nil
}

func (s *ScoringService) GetScoring(ctx context.Context, quizID string) (domain.QuizScoring, error) {
	return s.store.GetScoring(ctx, quizID)
}

// AssignQuiz links a user to an existing quiz.
func (s *ScoringService) AssignQuiz(ctx context.Context, a domain.UserQuizAssignment) (domain.UserQuizAssignment, error) {
	a.UserID = strings.TrimSpace(a.UserID)
	if a.UserID == "" {
		return domain.UserQuizAssignment{}, fmt.Errorf("%w: missing user id", domain.ErrInvalidQuiz)
	}
	if _, err := s.quizzes.GetQuiz(ctx, a.QuizID); err != nil {
		return domain.UserQuizAssignment{}, err
	}
	a.CreatedAt = s.now().UTC()
	created, err := s.store.Assign(ctx, a)
	if err != nil {
		return domain.UserQuizAssignment{}, err
	}
	s.log.Info("quiz assigned", zap.String("quiz_id", created.QuizID), zap.Int64("assignment_id", created.ID))
	return created, nil
}

func (s *ScoringService) ListAssignments(ctx context.Context, userID string) ([]domain.UserQuizAssignment, error) {
	return s.store.ListAssignments(ctx, userID)
}
