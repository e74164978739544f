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
	"sync"
	"time"

	"github.com/google/uuid"

	"assistant-core/internal/model/llm"
)

// DefaultMaxMessages 每会话保留消息数上限缺省值
const DefaultMaxMessages = 50

// Session 单个对话会话：有界的消息历史载体
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	Messages []*Message // 对话历史，超出上限时丢最旧
	Metadata map[string]any

	maxMessages int
	mu          sync.RWMutex
}

// New 创建新 Session；id 为空时自动分配
func New(id string, maxMessages int) *Session {
	now := time.Now()
	if id == "" {
		id = "session-" + uuid.New().String()
	}
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Session{
		ID:          id,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    make(map[string]any),
		maxMessages: maxMessages,
	}
}

// Append 追加消息，超出上限时从头部丢弃最旧消息
func (s *Session) Append(msgs ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()
	for _, m := range msgs {
		s.Messages = append(s.Messages, FromLLM(m))
	}
	if overflow := len(s.Messages) - s.maxMessages; overflow > 0 {
		s.Messages = append([]*Message(nil), s.Messages[overflow:]...)
	}
}

// TruncateLast 从尾部移除最多 n 条消息；处理失败时回滚本轮写入
func (s *Session) TruncateLast(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return
	}
	if n > len(s.Messages) {
		n = len(s.Messages)
	}
	s.Messages = s.Messages[:len(s.Messages)-n]
	s.UpdatedAt = time.Now()
}

// History 返回对话历史的 llm.Message 副本
func (s *Session) History() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return MessagesToLLM(s.Messages)
}

// Len 当前消息数
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// LastActive 最近活跃时间（空闲回收判定）
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UpdatedAt
}

// CopyMessages 返回 Messages 的副本（只读使用）
func (s *Session) CopyMessages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Messages) == 0 {
		return nil
	}
	out := make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		clone := *m
		out[i] = &clone
	}
	return out
}
