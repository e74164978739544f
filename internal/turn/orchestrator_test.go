// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package turn

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"assistant-core/internal/capability"
	"assistant-core/internal/memory"
	"assistant-core/internal/model/llm"
	"assistant-core/internal/session"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	sessions     *session.Manager
	memStore     memory.Store
}

// newFixture cloud 为主后端；memStore 可预置记忆（关键词检索路径）
func newFixture(t *testing.T, cloud, local llm.Client) *orchestratorFixture {
	t.Helper()
	sessions := session.NewManager(session.NewMemoryStore(), 50, time.Hour, nil)
	memStore := memory.NewMemStore()
	retriever := memory.NewRetriever(memStore, nil, memory.RetrievalOptions{}, nil)
	responseCache := newTestCache(t)

	registry := capability.NewRegistry(nil, 0)
	gate := NewGate(cloud, local, nil)
	generator := NewGenerator(nil)
	loop := NewLoop(generator, registry, 3, nil)
	preparer := NewPreparer(sessions, retriever, gate, registry, nil)

	o := NewOrchestrator(sessions, loop, preparer, responseCache, nil, Options{}, nil)
	return &orchestratorFixture{orchestrator: o, sessions: sessions, memStore: memStore}
}

func TestOrchestrator_EmptyInput(t *testing.T) {
	f := newFixture(t, textClient("openai", "hi"), nil)
	_, err := f.orchestrator.ProcessTurn(context.Background(), &Request{Text: "   "})
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	_, err = f.orchestrator.ProcessTurn(context.Background(), nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput for nil request, got %v", err)
	}
}

func TestOrchestrator_BasicTurn(t *testing.T) {
	f := newFixture(t, textClient("openai", "the answer"), nil)
	resp, err := f.orchestrator.ProcessTurn(context.Background(), &Request{Text: "a question"})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if resp.Text != "the answer" || resp.Cached || resp.Provider != "openai" {
		t.Errorf("response: %+v", resp)
	}
	if resp.SessionID == "" {
		t.Error("response should carry a session id")
	}

	sess, err := f.sessions.Get(context.Background(), resp.SessionID)
	if err != nil || sess == nil {
		t.Fatalf("session not persisted: %v", err)
	}
	history := sess.History()
	if len(history) != 2 {
		t.Fatalf("history: %d messages, want 2", len(history))
	}
	if history[0].Role != llm.RoleUser || history[1].Role != llm.RoleAssistant {
		t.Errorf("history roles: %s %s", history[0].Role, history[1].Role)
	}
}

func TestOrchestrator_CacheHitSecondTurn(t *testing.T) {
	client := &stubClient{
		provider: "openai",
		chat: func(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, options llm.GenerateOptions) (*llm.ChatResult, error) {
			return &llm.ChatResult{Text: "forty two", InputTokens: 12, OutputTokens: 6}, nil
		},
	}
	f := newFixture(t, client, nil)
	ctx := context.Background()

	first, err := f.orchestrator.ProcessTurn(ctx, &Request{Text: "meaning of life"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.Cached {
		t.Fatal("first turn must not be cached")
	}
	if first.TotalTokens != 18 {
		t.Fatalf("first turn tokens = %d, want 18", first.TotalTokens)
	}

	// 规范化后相同的查询应精确命中
	second, err := f.orchestrator.ProcessTurn(ctx, &Request{Text: "  Meaning   OF life "})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if !second.Cached || second.CacheKind != "exact" {
		t.Errorf("second turn: %+v", second)
	}
	if second.Text != "forty two" {
		t.Errorf("cached text: %q", second.Text)
	}
	// 命中要带回原回合的 token 消耗
	if second.TotalTokens != first.TotalTokens {
		t.Errorf("cached tokens = %d, want %d", second.TotalTokens, first.TotalTokens)
	}

	// 缓存命中也要落会话
	sess, _ := f.sessions.Get(ctx, second.SessionID)
	if sess == nil || sess.Len() != 2 {
		t.Errorf("cache-hit turn should persist the exchange")
	}
}

func TestOrchestrator_RollbackOnFailure(t *testing.T) {
	genErr := errors.New("invalid api key")
	f := newFixture(t, failingClient("openai", genErr), nil)
	ctx := context.Background()

	_, err := f.orchestrator.ProcessTurn(ctx, &Request{SessionID: "s1", Text: "hello"})
	if !errors.Is(err, genErr) {
		t.Fatalf("expected generation error, got %v", err)
	}

	// 失败回合不得留下没有回应的用户消息
	sess, _ := f.sessions.Get(ctx, "s1")
	if sess == nil {
		t.Fatal("session should exist")
	}
	if sess.Len() != 0 {
		t.Errorf("session should be rolled back, has %d messages", sess.Len())
	}
}

func TestOrchestrator_MemoryPreamble(t *testing.T) {
	var seenSystem string
	client := &stubClient{
		provider: "openai",
		chat: func(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, options llm.GenerateOptions) (*llm.ChatResult, error) {
			if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
				seenSystem = messages[0].Content
			}
			return &llm.ChatResult{Text: "noted"}, nil
		},
	}
	f := newFixture(t, client, nil)
	ctx := context.Background()
	_ = f.memStore.Upsert(ctx, &memory.Record{
		Key:   "favorite_language",
		Value: "user prefers golang for backend work",
	})

	_, err := f.orchestrator.ProcessTurn(ctx, &Request{Text: "which golang framework should I use?"})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !strings.Contains(seenSystem, "What you remember about the user:") {
		t.Errorf("system prompt missing memory preamble: %q", seenSystem)
	}
	if !strings.Contains(seenSystem, "favorite_language") {
		t.Errorf("system prompt missing memory record: %q", seenSystem)
	}
}

func TestOrchestrator_CustomSystemPromptBypassesCache(t *testing.T) {
	var seenSystem string
	client := &stubClient{
		provider: "openai",
		chat: func(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, options llm.GenerateOptions) (*llm.ChatResult, error) {
			seenSystem = messages[0].Content
			return &llm.ChatResult{Text: "pirate answer"}, nil
		},
	}
	f := newFixture(t, client, nil)
	ctx := context.Background()

	first, err := f.orchestrator.ProcessTurn(ctx, &Request{Text: "hello"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	_ = first

	resp, err := f.orchestrator.ProcessTurn(ctx, &Request{
		Text:         "hello",
		SystemPrompt: "You are a pirate.",
	})
	if err != nil {
		t.Fatalf("custom prompt turn: %v", err)
	}
	if resp.Cached {
		t.Error("custom system prompt must bypass the cache")
	}
	if seenSystem != "You are a pirate." {
		t.Errorf("custom system prompt not applied: %q", seenSystem)
	}
}

func TestOrchestrator_PrivacyMisconfiguration(t *testing.T) {
	f := newFixture(t, textClient("openai", "cloud"), nil)
	_, err := f.orchestrator.ProcessTurn(context.Background(), &Request{Text: "hi", PrivacyMode: true})
	if !errors.Is(err, ErrPrivacyMisconfiguration) {
		t.Errorf("expected ErrPrivacyMisconfiguration, got %v", err)
	}
}

func TestOrchestrator_PrivacyUsesLocal(t *testing.T) {
	cloudCalled := false
	cloud := &stubClient{
		provider: "openai",
		chat: func(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, options llm.GenerateOptions) (*llm.ChatResult, error) {
			cloudCalled = true
			return &llm.ChatResult{Text: "cloud"}, nil
		},
	}
	f := newFixture(t, cloud, textClient("ollama", "local answer"))
	resp, err := f.orchestrator.ProcessTurn(context.Background(), &Request{Text: "hi", PrivacyMode: true})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if resp.Provider != "ollama" || resp.Text != "local answer" {
		t.Errorf("response: %+v", resp)
	}
	if cloudCalled {
		t.Error("privacy turn must never reach the cloud backend")
	}
}

func TestOrchestrator_SessionContinuity(t *testing.T) {
	var lastHistoryLen int
	client := &stubClient{
		provider: "openai",
		chat: func(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, options llm.GenerateOptions) (*llm.ChatResult, error) {
			lastHistoryLen = len(messages)
			return &llm.ChatResult{Text: "reply"}, nil
		},
	}
	f := newFixture(t, client, nil)
	ctx := context.Background()

	first, err := f.orchestrator.ProcessTurn(ctx, &Request{Text: "first question"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	// system + user
	if lastHistoryLen != 2 {
		t.Errorf("first turn context: %d messages, want 2", lastHistoryLen)
	}

	_, err = f.orchestrator.ProcessTurn(ctx, &Request{SessionID: first.SessionID, Text: "second question"})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	// system + 上轮 user/assistant + 本轮 user
	if lastHistoryLen != 4 {
		t.Errorf("second turn context: %d messages, want 4", lastHistoryLen)
	}
}
