package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the reservation only if it still holds our token, so an
// expired-then-retaken reservation is never released by the previous owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdentityLocker reserves participant identities across service instances
// with SET NX PX. The TTL bounds how long a crashed instance can hold a key.
type IdentityLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdentityLocker(client *redis.Client, ttl time.Duration) *IdentityLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &IdentityLocker{client: client, ttl: ttl}
}

func (l *IdentityLocker) TryLock(ctx context.Context, identity string) (func(), bool, error) {
	key := l.key(identity)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best-effort; the TTL cleans up if this fails
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, true, nil
}

func (l *IdentityLocker) key(identity string) string {
	return "attempt:identity:" + identity
}
