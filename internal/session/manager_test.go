package session

import (
	"context"
	"testing"
	"time"

	"assistant-core/internal/model/llm"
)

func TestManager_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 10, time.Hour, nil)

	// 空 id 创建新会话
	s1, err := m.GetOrCreate(ctx, "")
	if err != nil || s1 == nil || s1.ID == "" {
		t.Fatalf("GetOrCreate(\"\"): %+v, %v", s1, err)
	}

	// 指定 id 不存在时用该 id 创建
	s2, err := m.GetOrCreate(ctx, "fixed-id")
	if err != nil || s2.ID != "fixed-id" {
		t.Fatalf("GetOrCreate(fixed-id): %+v, %v", s2, err)
	}

	// 再取应得到同一会话
	s2.Append(llm.Message{Role: llm.RoleUser, Content: "hi"})
	_ = m.Save(ctx, s2)
	again, err := m.GetOrCreate(ctx, "fixed-id")
	if err != nil || again.Len() != 1 {
		t.Errorf("existing session not returned: %+v, %v", again, err)
	}
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 10, time.Hour, nil)
	s, _ := m.GetOrCreate(ctx, "gone")
	if err := m.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := m.Get(ctx, "gone")
	if err != nil || got != nil {
		t.Errorf("deleted session still present: %+v, %v", got, err)
	}
}

func TestManager_SweepRemovesIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, 10, 30*time.Millisecond, nil)

	idle, _ := m.GetOrCreate(ctx, "idle")
	_ = idle
	time.Sleep(60 * time.Millisecond)
	active, _ := m.GetOrCreate(ctx, "active")
	active.Append(llm.Message{Role: llm.RoleUser, Content: "ping"})
	_ = m.Save(ctx, active)

	m.sweep()

	if s, _ := store.Get(ctx, "idle"); s != nil {
		t.Error("idle session should be swept")
	}
	if s, _ := store.Get(ctx, "active"); s == nil {
		t.Error("active session should survive sweep")
	}
}

func TestManager_StartSweeper_Stop(t *testing.T) {
	m := NewManager(NewMemoryStore(), 10, time.Hour, nil)
	m.StartSweeper(10 * time.Millisecond)
	// Stop 应幂等且不阻塞
	m.Stop()
	m.Stop()
}
