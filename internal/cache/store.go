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
	"sync"
	"time"
)

// Entry 一条缓存的响应
type Entry struct {
	Key       string    `json:"key"`   // 规范化查询文本的 sha256
	Query     string    `json:"query"` // 规范化后的查询文本
	Response  string    `json:"response"`
	Tokens    int       `json:"tokens,omitempty"` // 原回合的 token 消耗，命中时原样返回
	Embedding []float64 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EntryStore 缓存条目存储抽象；TTL 和容量淘汰由实现负责
type EntryStore interface {
	Put(ctx context.Context, e *Entry) error
	// GetExact 按 key 精确查找；不存在或已过期返回 (nil, nil)
	GetExact(ctx context.Context, key string) (*Entry, error)
	// All 返回全部未过期条目（近似匹配扫描用）
	All(ctx context.Context) ([]*Entry, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// memoryStore 内存实现：map + 插入序队列，容量满时丢最旧
type memoryStore struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	order      []string // 插入序
	ttl        time.Duration
	maxEntries int
}

// NewMemoryStore 创建内存缓存存储
func NewMemoryStore(ttl time.Duration, maxEntries int) EntryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &memoryStore{
		entries:    make(map[string]*Entry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (s *memoryStore) Put(ctx context.Context, e *Entry) error {
	if e == nil || e.Key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *e
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	if _, exists := s.entries[clone.Key]; !exists {
		s.order = append(s.order, clone.Key)
	}
	s.entries[clone.Key] = &clone

	// 容量淘汰：按插入序丢最旧
	for len(s.entries) > s.maxEntries && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	return nil
}

func (s *memoryStore) GetExact(ctx context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.expired(e) {
		s.remove(key)
		return nil, nil
	}
	clone := *e
	return &clone, nil
}

func (s *memoryStore) All(ctx context.Context) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, 0, len(s.entries))
	for key, e := range s.entries {
		if s.expired(e) {
			s.remove(key)
			continue
		}
		clone := *e
		out = append(out, &clone)
	}
	return out, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(key)
	return nil
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) expired(e *Entry) bool {
	return time.Since(e.CreatedAt) > s.ttl
}

// remove 调用方需持有锁
func (s *memoryStore) remove(key string) {
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
