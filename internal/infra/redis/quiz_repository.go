package redis

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz configuration from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quiz scheduling config in Redis (hash per quiz) and
// falls back to a loader on cache miss:
//
//	HSET quiz:{quizID}:config mode ... starts_at ... ends_at ... duration_minutes ... version ... locked ...
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	key := r.configKey(quizID)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		if quiz, ok := quizFromCache(quizID, fields); ok {
			return quiz, nil
		}
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			if quiz, ok := quizFromCache(quizID, fields); ok {
				return quiz, nil
			}
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, quizToCache(quiz))
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate removes the cached config; every instance sharing Redis sees the change.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	r.sf.Forget(quizID)
	return r.client.Del(ctx, r.configKey(quizID)).Err()
}

func (r *QuizRepository) configKey(quizID string) string {
	return "quiz:" + quizID + ":config"
}

func quizToCache(q domain.Quiz) map[string]interface{} {
	fields := map[string]interface{}{
		"mode":             string(q.Mode),
		"duration_minutes": q.DurationMinutes,
		"link":             q.Link,
		"version":          q.Version,
		"locked":           strconv.FormatBool(q.Locked),
		"created_at":       q.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if q.StartsAt != nil {
		fields["starts_at"] = q.StartsAt.UTC().Format(time.RFC3339Nano)
	}
	if q.EndsAt != nil {
		fields["ends_at"] = q.EndsAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

// quizFromCache rebuilds a quiz; ok is false when the entry is unreadable and should be reloaded.
func quizFromCache(quizID string, fields map[string]string) (domain.Quiz, bool) {
	quiz := domain.Quiz{
		ID:   quizID,
		Mode: domain.SchedulingMode(fields["mode"]),
		Link: fields["link"],
	}
	if quiz.Mode == "" {
		return domain.Quiz{}, false
	}

	var err error
	if quiz.DurationMinutes, err = strconv.Atoi(fields["duration_minutes"]); err != nil {
		return domain.Quiz{}, false
	}
	if quiz.Version, err = strconv.Atoi(fields["version"]); err != nil {
		return domain.Quiz{}, false
	}
	if quiz.Locked, err = strconv.ParseBool(fields["locked"]); err != nil {
		return domain.Quiz{}, false
	}
	if raw, ok := fields["created_at"]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			quiz.CreatedAt = ts
		}
	}
	for name, dst := range map[string]**time.Time{"starts_at": &quiz.StartsAt, "ends_at": &quiz.EndsAt} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.Quiz{}, false
		}
		*dst = &ts
	}
	return quiz, true
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
