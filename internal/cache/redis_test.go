package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// 需要真实 Redis；未设置 TEST_REDIS_ADDR 时跳过
func newTestRedisStore(t *testing.T, maxEntries int) EntryStore {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping Redis cache store tests")
	}
	store, err := NewRedisStore(context.Background(), addr, "", 15, time.Hour, maxEntries)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	flushRedisStore(t, store)
	return store
}

// flushRedisStore 清掉上次运行的残留条目；All 顺带清理悬空 index 项
func flushRedisStore(t *testing.T, s EntryStore) {
	t.Helper()
	ctx := context.Background()
	entries, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	for _, e := range entries {
		if err := s.Delete(ctx, e.Key); err != nil {
			t.Fatalf("Delete %s: %v", e.Key, err)
		}
	}
}

func TestRedisStore_PutSameKeyKeepsIndexDeduped(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t, 3)
	defer store.Close()

	// 同 key 重写不得在 index 里留重复项，
	// 否则占用被虚高统计，淘汰会误删刚重写的条目
	_ = store.Put(ctx, &Entry{Key: "rk1", Response: "a"})
	_ = store.Put(ctx, &Entry{Key: "rk1", Response: "b"})
	_ = store.Put(ctx, &Entry{Key: "rk2", Response: "c"})
	_ = store.Put(ctx, &Entry{Key: "rk3", Response: "d"})

	e, err := store.GetExact(ctx, "rk1")
	if err != nil {
		t.Fatalf("GetExact: %v", err)
	}
	if e == nil || e.Response != "b" {
		t.Errorf("re-set entry should survive under capacity, got %+v", e)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("entries: %d, want 3", len(all))
	}
	seen := map[string]bool{}
	for _, e := range all {
		if seen[e.Key] {
			t.Errorf("duplicate key %s in scan", e.Key)
		}
		seen[e.Key] = true
	}
}

func TestRedisStore_CapacityEviction(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t, 3)
	defer store.Close()

	for _, k := range []string{"rk1", "rk2", "rk3", "rk4"} {
		_ = store.Put(ctx, &Entry{Key: k, Response: "r"})
	}
	if e, _ := store.GetExact(ctx, "rk1"); e != nil {
		t.Error("oldest entry should be evicted")
	}
	for _, k := range []string{"rk2", "rk3", "rk4"} {
		if e, _ := store.GetExact(ctx, k); e == nil {
			t.Errorf("entry %s should survive", k)
		}
	}
}
