package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/cenkalti/backoff/v4"
)

const defaultIdentityWait = 2 * time.Second

var errIdentityHeld = errors.New("identity reservation held")

// IdentityLocker reserves an identity key for the duration of an attempt creation.
// ok is false when another creation for the same key is already in flight.
type IdentityLocker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// IdentityGuard enforces one attempt per email across all quizzes. The nij token
// is stored as given and never checked for uniqueness.
//
// The locker only serializes creations for one email; the store's unique email
// constraint is what keeps two attempts for the same email from ever coexisting.
// A caller that finds the email reserved waits for the holder and then asks the
// store, so a holder that fails (stale schedule, storage error) does not turn
// its waiters into duplicates.
type IdentityGuard struct {
	locker   IdentityLocker
	attempts AttemptStore
	maxWait  time.Duration
}

func NewIdentityGuard(locker IdentityLocker, attempts AttemptStore) *IdentityGuard {
	return &IdentityGuard{locker: locker, attempts: attempts, maxWait: defaultIdentityWait}
}

// CheckAndReserve persists attempt unless its email already holds an attempt.
func (g *IdentityGuard) CheckAndReserve(ctx context.Context, attempt domain.Attempt, quizVersion int) (domain.Attempt, error) {
	if attempt.Email == "" {
		return domain.Attempt{}, domain.ErrInvalidEmail
	}

	if g.locker != nil {
		unlock, err := g.reserve(ctx, attempt.Email)
		if err != nil {
			return domain.Attempt{}, err
		}
		defer unlock()
	}

	exists, err := g.attempts.EmailExists(ctx, attempt.Email)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("check identity: %w", err)
	}
	if exists {
		return domain.Attempt{}, domain.ErrDuplicateEmail
	}

	if err := g.attempts.CreateAttempt(ctx, attempt, quizVersion); err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

// reserve takes the identity lock, retrying with backoff while another creation holds it.
func (g *IdentityGuard) reserve(ctx context.Context, email string) (func(), error) {
	var unlock func()
	op := func() error {
		u, ok, err := g.locker.TryLock(ctx, email)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("reserve identity: %w", err))
		}
		if !ok {
			return errIdentityHeld
		}
		unlock = u
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = g.maxWait

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if errors.Is(err, errIdentityHeld) {
		return nil, domain.ErrIdentityBusy
	}
	if err != nil {
		return nil, err
	}
	return unlock, nil
}

// KeyedLocker is the in-process IdentityLocker.
type KeyedLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{held: make(map[string]struct{})}
}

func (l *KeyedLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
