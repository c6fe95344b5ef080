package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestAcquireLock_Exclusive(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	ok, err := AcquireLock(ctx, rdb, "lock:acct-1", "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = AcquireLock(ctx, rdb, "lock:acct-1", "owner-b", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok {
		t.Fatalf("expected second owner to be rejected")
	}
	ok, _ = AcquireLock(ctx, rdb, "lock:acct-1", "owner-a", time.Minute)
	if !ok {
		t.Fatalf("expected re-entrant acquire for same owner")
	}
}

func TestReleaseLock_OnlyOwner(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	if ok, _ := AcquireLock(ctx, rdb, "lock:k", "a", time.Minute); !ok {
		t.Fatalf("expected acquire")
	}
	if err := ReleaseLock(ctx, rdb, "lock:k", "b"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !mr.Exists("lock:k") {
		t.Fatalf("non-owner must not release the lock")
	}
	if err := ReleaseLock(ctx, rdb, "lock:k", "a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("lock:k") {
		t.Fatalf("expected lock to be released")
	}
}

func TestAcquireLock_ExpiresWithTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	if ok, _ := AcquireLock(ctx, rdb, "lock:ttl", "a", time.Second); !ok {
		t.Fatalf("expected acquire")
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := AcquireLock(ctx, rdb, "lock:ttl", "b", time.Second); !ok {
		t.Fatalf("expected acquire after ttl expiry")
	}
}

func TestAcquireLock_RejectsBadArgs(t *testing.T) {
	_, rdb := newTestRedis(t)
	if _, err := AcquireLock(context.Background(), rdb, "", "a", time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := AcquireLock(context.Background(), rdb, "k", "a", 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestOpenRedis_PasswordAndDB(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")
	ctx := context.Background()

	if _, err := OpenRedis(ctx, RedisConfig{Addr: mr.Addr()}); err == nil {
		t.Fatalf("expected ping to fail without password")
	}

	rdb, err := OpenRedis(ctx, RedisConfig{Addr: mr.Addr(), Password: "s3cret", DB: 2})
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.Set(ctx, "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.Select(2)
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("expected key in db 2, got %q", got)
	}

	if _, err := OpenRedis(ctx, RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}
