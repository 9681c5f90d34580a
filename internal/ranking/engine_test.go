package ranking

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestScanNeedsUpdate(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	rdb.Set(ctx, "needs_update:11111111-1111-1111-1111-111111111111", "1", 0)
	rdb.Set(ctx, "needs_update:22222222-2222-2222-2222-222222222222", "1", 0)
	rdb.Set(ctx, "lock:ranking-run", "1", 0) // unrelated key must not be picked up

	e := &Engine{rdb: rdb}
	ids, err := e.scanNeedsUpdate(ctx)
	if err != nil {
		t.Fatalf("scanNeedsUpdate() error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("scanNeedsUpdate() = %v, want 2 ids", ids)
	}
}

func TestRunLockPreventsConcurrentTick(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	acquired, err := rdb.SetNX(ctx, runLockKey, "1", runLockTTL).Result()
	if err != nil || !acquired {
		t.Fatalf("SetNX first acquire = %v, %v, want true, nil", acquired, err)
	}

	acquired, err = rdb.SetNX(ctx, runLockKey, "1", runLockTTL).Result()
	if err != nil || acquired {
		t.Fatalf("SetNX second acquire = %v, %v, want false, nil", acquired, err)
	}
}
