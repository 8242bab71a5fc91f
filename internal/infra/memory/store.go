package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// Store is an in-memory implementation of app.QuizStore, app.AttemptStore and
// app.ScoringStore. The byEmail index plays the role of the unique email constraint.
type Store struct {
	mu          sync.RWMutex
	quizzes     map[string]domain.Quiz
	attempts    map[string]domain.Attempt
	byEmail     map[string]string
	scoring     map[string]domain.QuizScoring
	assignments []domain.UserQuizAssignment
	nextAssign  int64
}

func NewStore() *Store {
	return &Store{
		quizzes:  make(map[string]domain.Quiz),
		attempts: make(map[string]domain.Attempt),
		byEmail:  make(map[string]string),
		scoring:  make(map[string]domain.QuizScoring),
	}
}

// PutQuiz seeds or overwrites a quiz without any checks (tests/demos).
func (s *Store) PutQuiz(quiz domain.Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = quiz
}

// PutAttempt seeds an attempt as-is, bypassing the creation rules (tests/demos).
func (s *Store) PutAttempt(attempt domain.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = attempt
	s.byEmail[attempt.Email] = attempt.ID
}

func (s *Store) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.quizzes[quiz.ID]; exists {
		return domain.ErrInvalidQuiz
	}
	s.quizzes[quiz.ID] = quiz
	return nil
}

func (s *Store) UpdateSchedule(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.quizzes[quiz.ID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if current.Locked {
		return domain.Quiz{}, domain.ErrModeLocked
	}
	current.Mode = quiz.Mode
	current.StartsAt = quiz.StartsAt
	current.EndsAt = quiz.EndsAt
	current.DurationMinutes = quiz.DurationMinutes
	current.Version++
	s.quizzes[quiz.ID] = current
	return current, nil
}

func (s *Store) CreateAttempt(_ context.Context, attempt domain.Attempt, quizVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, ok := s.quizzes[attempt.QuizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if quiz.Version != quizVersion {
		return domain.ErrModeLocked
	}
	if _, taken := s.byEmail[attempt.Email]; taken {
		return domain.ErrDuplicateEmail
	}

	quiz.Locked = true
	s.quizzes[quiz.ID] = quiz
	s.attempts[attempt.ID] = attempt
	s.byEmail[attempt.Email] = attempt.ID
	return nil
}

func (s *Store) GetAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *Store) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *Store) SubmitAttempt(_ context.Context, attemptID string, submittedAt time.Time, total, correct, incorrect int) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if attempt.SubmittedAt != nil {
		return domain.Attempt{}, domain.ErrAlreadySubmitted
	}
	attempt.SubmittedAt = &submittedAt
	attempt.Total = total
	attempt.Correct = correct
	attempt.Incorrect = incorrect
	s.attempts[attemptID] = attempt
	return attempt, nil
}

func (s *Store) ListSubmitted(_ context.Context, afterID string, limit int) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Attempt, 0, len(s.attempts))
	for id, a := range s.attempts {
		if a.SubmittedAt != nil && id > afterID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateIncorrect(_ context.Context, attemptID string, incorrect int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	attempt.Incorrect = incorrect
	s.attempts[attemptID] = attempt
	return nil
}

func (s *Store) UpsertScoring(_ context.Context, scoring domain.QuizScoring) (domain.QuizScoring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[scoring.QuizID]; !ok {
		return domain.QuizScoring{}, domain.ErrQuizNotFound
	}
	s.scoring[scoring.QuizID] = scoring
	return scoring, nil
}

func (s *Store) GetScoring(_ context.Context, quizID string) (domain.QuizScoring, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scoring, ok := s.scoring[quizID]
	if !ok {
		return domain.QuizScoring{}, domain.ErrQuizNotFound
	}
	return scoring, nil
}

func (s *Store) Assign(_ context.Context, a domain.UserQuizAssignment) (domain.UserQuizAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[a.QuizID]; !ok {
		return domain.UserQuizAssignment{}, domain.ErrQuizNotFound
	}
	s.nextAssign++
	a.ID = s.nextAssign
	s.assignments = append(s.assignments, a)
	return a, nil
}

func (s *Store) ListAssignments(_ context.Context, userID string) ([]domain.UserQuizAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.UserQuizAssignment
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}
