package cli

import (
	"context"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/memory"
	pgstore "quiz-attempt-service/internal/infra/postgres"
	redisinfra "quiz-attempt-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// backend holds the adapters chosen from config. Postgres and Redis are optional;
// without them the in-memory adapters are used.
type backend struct {
	quizzes  app.QuizRepository
	quizzesW app.QuizStore
	attempts app.AttemptStore
	scoring  app.ScoringStore
	locker   app.IdentityLocker
	closers  []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	b := &backend{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}

	var loader memory.QuizLoader
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		quizStore := pgstore.NewQuizStore(pool)
		loader = quizStore
		b.quizzesW = quizStore
		b.attempts = pgstore.NewAttemptStore(pool)
		b.scoring = pgstore.NewScoringStore(pool)
		log.Info("using postgres storage")
	} else {
		store := memory.NewStore()
		loader = store
		b.quizzesW = store
		b.attempts = store
		b.scoring = store
		log.Warn("postgres url not configured; using in-memory storage")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		b.quizzes = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
		b.locker = redisinfra.NewIdentityLocker(redisClient, config.TTLDuration(cfg.Identity.LockTTL, 10*time.Second))
	} else {
		b.quizzes = memory.NewQuizRepository(loader, quizTTL)
		b.locker = app.NewKeyedLocker()
	}
	return b, nil
}

func (b *backend) service(log *zap.Logger) *app.AttemptService {
	return app.NewAttemptService(b.quizzes, b.quizzesW, b.attempts, b.locker, app.WithLogger(log))
}

func (b *backend) scoringService(log *zap.Logger) *app.ScoringService {
	return app.NewScoringService(b.quizzes, b.scoring, time.Now, log)
}
