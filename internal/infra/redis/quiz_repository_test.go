package redis

import (
	"context"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	store := memory.NewStore()
	store.PutQuiz(sampleQuiz())
	loader := &countingLoader{QuizLoader: store}
	repo := NewQuizRepository(client, loader, time.Minute)

	first, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:quiz-1:config") {
		t.Fatalf("expected config hash to be written")
	}

	// Second call should hit cache, loader not incremented.
	second, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if !domain.ScheduleEqual(first, second) || second.Version != first.Version || second.Locked != first.Locked {
		t.Fatalf("cached quiz differs: %+v vs %+v", first, second)
	}
}

func TestQuizRepositoryRoundTripsScheduledWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	store := memory.NewStore()
	store.PutQuiz(domain.Quiz{ID: "quiz-s", Mode: domain.ModeScheduled, StartsAt: &start, EndsAt: &end, Version: 3, Locked: true})
	repo := NewQuizRepository(newClient(mr), store, time.Minute)

	_, _ = repo.GetQuiz(context.Background(), "quiz-s")
	cached, err := repo.GetQuiz(context.Background(), "quiz-s")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if cached.StartsAt == nil || !cached.StartsAt.Equal(start) || !cached.EndsAt.Equal(end) {
		t.Fatalf("window lost in cache: %+v", cached)
	}
	if cached.Version != 3 || !cached.Locked {
		t.Fatalf("lock state lost in cache: %+v", cached)
	}
}

func TestQuizRepositoryInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := memory.NewStore()
	store.PutQuiz(sampleQuiz())
	loader := &countingLoader{QuizLoader: store}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	_, _ = repo.GetQuiz(ctx, "quiz-1")
	if err := repo.Invalidate(ctx, "quiz-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("quiz:quiz-1:config") {
		t.Fatalf("expected config hash removed")
	}
	_, _ = repo.GetQuiz(ctx, "quiz-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:              "quiz-1",
		Mode:            domain.ModeManual,
		DurationMinutes: 30,
		Version:         1,
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
