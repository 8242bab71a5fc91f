package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestIdentityLockerSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := NewIdentityLocker(client, time.Minute)
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, "alice@example.com")
	if err != nil || !ok {
		t.Fatalf("expected lock, ok=%v err=%v", ok, err)
	}
	if !mr.Exists("attempt:identity:alice@example.com") {
		t.Fatalf("expected redis key to be set")
	}

	if _, ok, err := locker.TryLock(ctx, "alice@example.com"); err != nil || ok {
		t.Fatalf("expected second lock to fail fast, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := locker.TryLock(ctx, "bob@example.com"); !ok {
		t.Fatalf("other identities must not be blocked")
	}

	unlock()
	if mr.Exists("attempt:identity:alice@example.com") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestIdentityLockerExpiredReservationNotReleasedByOldOwner(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := NewIdentityLocker(client, time.Second)
	ctx := context.Background()

	staleUnlock, ok, _ := locker.TryLock(ctx, "carol@example.com")
	if !ok {
		t.Fatalf("expected first lock")
	}
	mr.FastForward(2 * time.Second)

	_, ok, _ = locker.TryLock(ctx, "carol@example.com")
	if !ok {
		t.Fatalf("expected lock after ttl expiry")
	}
	staleUnlock()
	if !mr.Exists("attempt:identity:carol@example.com") {
		t.Fatalf("stale owner must not release the new reservation")
	}
}
