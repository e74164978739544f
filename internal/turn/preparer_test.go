package turn

import (
	"context"
	"errors"
	"testing"
	"time"

	"assistant-core/internal/capability"
	"assistant-core/internal/cache"
	"assistant-core/internal/memory"
	"assistant-core/internal/model/llm"
	"assistant-core/internal/session"
)

// failingMemoryStore List 永远失败
type failingMemoryStore struct{}

func (f *failingMemoryStore) Upsert(ctx context.Context, record *memory.Record) error {
	return errors.New("store down")
}
func (f *failingMemoryStore) Get(ctx context.Context, key string) (*memory.Record, error) {
	return nil, errors.New("store down")
}
func (f *failingMemoryStore) Delete(ctx context.Context, key string) error {
	return errors.New("store down")
}
func (f *failingMemoryStore) List(ctx context.Context) ([]*memory.Record, error) {
	return nil, errors.New("store down")
}

func newTestCache(t *testing.T) *cache.ResponseCache {
	t.Helper()
	return cache.NewResponseCache(cache.NewMemoryStore(time.Hour, 10), nil, 0, nil)
}

func newTestSessions() *session.Manager {
	return session.NewManager(session.NewMemoryStore(), 50, time.Hour, nil)
}

func TestPreparer_JoinsAllThree(t *testing.T) {
	ctx := context.Background()
	sessions := newTestSessions()
	memStore := memory.NewMemStore()
	_ = memStore.Upsert(ctx, &memory.Record{Key: "home_city", Value: "the user lives in Paris France"})
	retriever := memory.NewRetriever(memStore, nil, memory.RetrievalOptions{}, nil)

	reg := capability.NewRegistry(nil, 0)
	_ = reg.Register(&echoCapability{})
	gate := NewGate(textClient("openai", "x"), textClient("ollama", "y"), nil)

	p := NewPreparer(sessions, retriever, gate, reg, nil)
	prepared, err := p.Prepare(ctx, &Request{Text: "what is the capital of France?"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if prepared.Session == nil || prepared.Session.Len() != 1 {
		t.Error("user message should be appended during prepare")
	}
	if len(prepared.History) != 1 || prepared.History[0].Role != llm.RoleUser {
		t.Errorf("History: %+v", prepared.History)
	}
	if len(prepared.Memories) == 0 {
		t.Error("expected keyword-matched memories")
	}
	if prepared.Route == nil || prepared.Route.Primary == nil {
		t.Error("route should be resolved")
	}
	if len(prepared.Tools) != 1 || prepared.Tools[0].Name != "echo" {
		t.Errorf("Tools: %+v", prepared.Tools)
	}
}

func TestPreparer_MemoryFailureNonFatal(t *testing.T) {
	retriever := memory.NewRetriever(&failingMemoryStore{}, nil, memory.RetrievalOptions{}, nil)
	gate := NewGate(textClient("openai", "x"), nil, nil)
	p := NewPreparer(newTestSessions(), retriever, gate, capability.NewRegistry(nil, 0), nil)

	prepared, err := p.Prepare(context.Background(), &Request{Text: "hello"})
	if err != nil {
		t.Fatalf("memory failure must not abort prepare: %v", err)
	}
	if prepared.Memories != nil {
		t.Errorf("Memories should be empty on failure: %+v", prepared.Memories)
	}
	if prepared.Session == nil || prepared.Route == nil {
		t.Error("fatal sub-operations should still complete")
	}
}

func TestPreparer_GateFailureFatal(t *testing.T) {
	gate := NewGate(textClient("openai", "x"), nil, nil)
	p := NewPreparer(newTestSessions(), nil, gate, capability.NewRegistry(nil, 0), nil)

	prepared, err := p.Prepare(context.Background(), &Request{Text: "hi", PrivacyMode: true})
	if !errors.Is(err, ErrPrivacyMisconfiguration) {
		t.Fatalf("expected ErrPrivacyMisconfiguration, got %v", err)
	}
	// 会话写入可能已发生，调用方需要它来回滚
	if prepared == nil || prepared.Session == nil {
		t.Error("prepared session should be returned for rollback")
	}
}

func TestPreparer_PrivacyFiltersNetworkTools(t *testing.T) {
	reg := capability.NewRegistry(nil, 0)
	_ = reg.Register(&echoCapability{})
	gate := NewGate(nil, textClient("ollama", "y"), nil)
	p := NewPreparer(newTestSessions(), nil, gate, reg, nil)

	prepared, err := p.Prepare(context.Background(), &Request{Text: "hi", PrivacyMode: true})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	// echo 不出网，隐私模式下仍可用
	if len(prepared.Tools) != 1 {
		t.Errorf("offline tool should survive privacy filter: %+v", prepared.Tools)
	}
	if prepared.Route.AllowNetwork {
		t.Error("privacy route must disallow network")
	}
}
