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

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// stubEmbedder 以固定映射返回向量
type stubEmbedder struct {
	vectors map[string][]float64
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = s.vectors[t]
	}
	return out, nil
}
func (s *stubEmbedder) EmbedOne(ctx context.Context, text string) ([]float64, error) {
	v, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}
func (s *stubEmbedder) Model() string  { return "stub" }
func (s *stubEmbedder) Dimension() int { return 3 }

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello World", "hello world"},
		{"  hello   world  ", "hello world"},
		{"HELLO\tworld\n", "hello world"},
		{"hello world", "hello world"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResponseCache_ExactHit(t *testing.T) {
	ctx := context.Background()
	c := NewResponseCache(NewMemoryStore(time.Hour, 10), nil, 0, nil)
	if err := c.Store(ctx, "What is Go?", "a language", 42, false); err != nil {
		t.Fatalf("Store: %v", err)
	}

	hit, err := c.Lookup(ctx, "  what IS go? ", false, false)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit == nil || hit.Kind != "exact" || hit.Response != "a language" {
		t.Errorf("hit: %+v", hit)
	}
	// 命中要带回写入时的 token 消耗
	if hit != nil && hit.Tokens != 42 {
		t.Errorf("Tokens = %d, want 42", hit.Tokens)
	}

	miss, err := c.Lookup(ctx, "what is rust?", false, false)
	if err != nil || miss != nil {
		t.Errorf("expected miss, got %+v err=%v", miss, err)
	}
}

func TestResponseCache_Bypass(t *testing.T) {
	ctx := context.Background()
	c := NewResponseCache(NewMemoryStore(time.Hour, 10), nil, 0, nil)
	_ = c.Store(ctx, "hello", "hi", 0, false)
	hit, err := c.Lookup(ctx, "hello", false, true)
	if err != nil || hit != nil {
		t.Errorf("bypass should return no hit, got %+v err=%v", hit, err)
	}
}

func TestResponseCache_ApproximateHit(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"what is the capital of france": {1, 0, 0},
		"capital city of france":        {0.95, 0.1, 0},
		"how do i cook pasta":           {0, 1, 0},
	}}
	c := NewResponseCache(NewMemoryStore(time.Hour, 10), embedder, 0.85, nil)
	if err := c.Store(ctx, "What is the capital of France", "Paris", 7, true); err != nil {
		t.Fatalf("Store: %v", err)
	}

	hit, err := c.Lookup(ctx, "Capital city of France", true, false)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit == nil || hit.Kind != "approximate" || hit.Response != "Paris" {
		t.Errorf("hit: %+v", hit)
	}
	if hit != nil && hit.Tokens != 7 {
		t.Errorf("Tokens = %d, want 7", hit.Tokens)
	}

	// 相似度低于阈值不命中
	miss, err := c.Lookup(ctx, "How do I cook pasta", true, false)
	if err != nil || miss != nil {
		t.Errorf("expected miss below threshold, got %+v err=%v", miss, err)
	}

	// 不允许向量化时只有精确命中
	offline, err := c.Lookup(ctx, "Capital city of France", false, false)
	if err != nil || offline != nil {
		t.Errorf("approximate path should be disabled offline, got %+v err=%v", offline, err)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(50*time.Millisecond, 10)
	_ = store.Put(ctx, &Entry{Key: "k1", Query: "q", Response: "r"})

	e, err := store.GetExact(ctx, "k1")
	if err != nil || e == nil {
		t.Fatalf("fresh entry missing: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	e, err = store.GetExact(ctx, "k1")
	if err != nil || e != nil {
		t.Errorf("expired entry should be gone, got %+v", e)
	}
}

func TestMemoryStore_CapacityEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, 3)
	for i := 1; i <= 4; i++ {
		_ = store.Put(ctx, &Entry{Key: fmt.Sprintf("k%d", i), Response: "r"})
	}

	// 插入序淘汰：最旧的 k1 被挤出
	if e, _ := store.GetExact(ctx, "k1"); e != nil {
		t.Error("oldest entry should be evicted")
	}
	for _, k := range []string{"k2", "k3", "k4"} {
		if e, _ := store.GetExact(ctx, k); e == nil {
			t.Errorf("entry %s should survive", k)
		}
	}
}

func TestMemoryStore_PutSameKeyNoEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, 2)
	_ = store.Put(ctx, &Entry{Key: "k1", Response: "a"})
	_ = store.Put(ctx, &Entry{Key: "k1", Response: "b"})
	_ = store.Put(ctx, &Entry{Key: "k2", Response: "c"})

	e, _ := store.GetExact(ctx, "k1")
	if e == nil || e.Response != "b" {
		t.Errorf("same-key put should overwrite, got %+v", e)
	}
	all, _ := store.All(ctx)
	if len(all) != 2 {
		t.Errorf("entries: %d, want 2", len(all))
	}
}
