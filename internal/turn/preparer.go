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
	"fmt"
	"sync"

	"assistant-core/internal/capability"
	"assistant-core/internal/memory"
	"assistant-core/internal/model/llm"
	"assistant-core/internal/session"
	"assistant-core/pkg/log"
)

// Prepared 回合准备结果。History 为落入会话后的有界历史，已含本次用户消息。
type Prepared struct {
	Session  *session.Session
	History  []llm.Message
	Memories []memory.Scored // 相关长期记忆，可为空
	Route    *Route
	Tools    []llm.ToolSpec // 按路由筛过的能力列表
}

// Preparer 回合准备：三个互不依赖的子操作并发执行后合流。
// 会话写入和路由解析失败是致命的；记忆检索失败只降级为无记忆上下文。
type Preparer struct {
	sessions  session.SessionManager
	retriever *memory.Retriever
	gate      *Gate
	registry  *capability.Registry
	logger    *log.Logger
}

// NewPreparer 创建回合准备器；retriever 可为 nil
func NewPreparer(sessions session.SessionManager, retriever *memory.Retriever, gate *Gate, registry *capability.Registry, logger *log.Logger) *Preparer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Preparer{
		sessions:  sessions,
		retriever: retriever,
		gate:      gate,
		registry:  registry,
		logger:    logger,
	}
}

// Prepare 并发执行会话写入、记忆检索、隐私路由解析。
// 致命失败时 err 非 nil；此时返回的 Prepared 仍携带已写入的 Session，
// 供调用方回滚本次用户消息。
func (p *Preparer) Prepare(ctx context.Context, req *Request) (*Prepared, error) {
	out := &Prepared{}
	var sessErr, routeErr error
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sess, err := p.sessions.GetOrCreate(ctx, req.SessionID)
		if err != nil {
			sessErr = fmt.Errorf("get session: %w", err)
			return
		}
		sess.Append(llm.Message{Role: llm.RoleUser, Content: req.Text})
		out.Session = sess
		out.History = sess.History()
	}()

	if p.retriever != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// 隐私回合不向量化（embedder 出网），直接走关键词路径
			memories, err := p.retriever.Retrieve(ctx, req.Text, !req.PrivacyMode)
			if err != nil {
				p.logger.Warn("memory retrieval failed", "error", err)
				return
			}
			out.Memories = memories
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		route, err := p.gate.Resolve(ctx, req.PrivacyMode)
		if err != nil {
			routeErr = err
			return
		}
		out.Route = route
		out.Tools = p.registry.Specs(route.AllowNetwork)
	}()

	wg.Wait()

	if sessErr != nil {
		return out, sessErr
	}
	if routeErr != nil {
		return out, routeErr
	}
	return out, nil
}
