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

package session

import (
	"context"
	"sync"
	"time"

	"assistant-core/pkg/log"
)

// SessionManager 管理 Session 生命周期
type SessionManager interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	GetOrCreate(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Manager 基于 SessionStore 的实现，带空闲会话回收
type Manager struct {
	store       SessionStore
	maxMessages int
	idleTimeout time.Duration
	logger      *log.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewManager 创建 SessionManager
func NewManager(store SessionStore, maxMessages int, idleTimeout time.Duration, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{
		store:       store,
		maxMessages: maxMessages,
		idleTimeout: idleTimeout,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

// Create 创建新 Session
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := New("", m.maxMessages)
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get 按 ID 获取 Session；不存在时返回 (nil, nil)
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

// GetOrCreate 若 id 为空则 Create，否则 Get；not found 时用该 id 创建
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.Create(ctx)
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}
	s = New(id, m.maxMessages)
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save 持久化 Session
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	return m.store.Put(ctx, s)
}

// Delete 删除 Session
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// StartSweeper 启动空闲会话回收；interval 为扫描间隔
func (m *Manager) StartSweeper(interval time.Duration) {
	if m.idleTimeout <= 0 || interval <= 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop 停止回收并等待退出
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// sweep 扫描一遍，删除超过 idleTimeout 没有活动的会话
func (m *Manager) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := m.store.IDs(ctx)
	if err != nil {
		m.logger.Warn("session sweep list failed", "error", err)
		return
	}
	cutoff := time.Now().Add(-m.idleTimeout)
	removed := 0
	for _, id := range ids {
		s, err := m.store.Get(ctx, id)
		if err != nil || s == nil {
			continue
		}
		if s.LastActive().Before(cutoff) {
			if err := m.store.Delete(ctx, id); err != nil {
				m.logger.Warn("session sweep delete failed", "session_id", id, "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("swept idle sessions", "removed", removed)
	}
}
