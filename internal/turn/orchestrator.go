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
	"strings"
	"time"

	"assistant-core/internal/cache"
	"assistant-core/internal/memory"
	"assistant-core/internal/model/llm"
	"assistant-core/internal/session"
	"assistant-core/pkg/log"
	"assistant-core/pkg/metrics"
	"assistant-core/pkg/tracing"
)

// DefaultSystemPrompt 缺省 system prompt
const DefaultSystemPrompt = "You are a helpful personal assistant. Answer concisely and use the available tools when they help."

// Request 一次回合请求
type Request struct {
	SessionID    string `json:"session_id"`
	Text         string `json:"text"`
	PrivacyMode  bool   `json:"privacy_mode"`
	SystemPrompt string `json:"system_prompt,omitempty"` // 自定义 system prompt，设置后跳过缓存
}

// Response 一次回合响应
type Response struct {
	SessionID   string `json:"session_id"`
	Text        string `json:"text"`
	Provider    string `json:"provider,omitempty"`
	Cached      bool   `json:"cached"`
	CacheKind   string `json:"cache_kind,omitempty"` // exact | approximate
	Rounds      int    `json:"rounds"`
	TotalTokens int    `json:"total_tokens"`
}

// Orchestrator 串起一轮对话的全部阶段：
// 准备（会话/记忆/路由并发）→ 缓存查找 → 工具调用循环 → 会话落盘 → 缓存写入 → 后台记忆抽取
type Orchestrator struct {
	sessions     session.SessionManager
	loop         *Loop
	preparer     *Preparer
	cache        *cache.ResponseCache
	extractor    *memory.Extractor
	systemPrompt string
	options      llm.GenerateOptions
	logger       *log.Logger
}

// Options Orchestrator 可选配置
type Options struct {
	SystemPrompt    string
	GenerateOptions llm.GenerateOptions
}

// NewOrchestrator 创建回合编排器；cache 和 extractor 可为 nil
func NewOrchestrator(
	sessions session.SessionManager,
	loop *Loop,
	preparer *Preparer,
	responseCache *cache.ResponseCache,
	extractor *memory.Extractor,
	opts Options,
	logger *log.Logger,
) *Orchestrator {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Orchestrator{
		sessions:     sessions,
		loop:         loop,
		preparer:     preparer,
		cache:        responseCache,
		extractor:    extractor,
		systemPrompt: opts.SystemPrompt,
		options:      opts.GenerateOptions,
		logger:       logger,
	}
}

// ProcessTurn 处理一轮对话
func (o *Orchestrator) ProcessTurn(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyInput
	}

	start := time.Now()
	ctx, span := tracing.StartTurnSpan(ctx, req.SessionID, req.PrivacyMode)
	defer span.End()

	resp, err := o.processTurn(ctx, req)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "failed"
	case resp.Cached:
		outcome = "cached"
	}
	metrics.TurnTotal.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return resp, err
}

func (o *Orchestrator) processTurn(ctx context.Context, req *Request) (*Response, error) {
	// 准备阶段已把用户消息落入会话；之后任何致命失败都要回滚这条消息
	prepared, err := o.preparer.Prepare(ctx, req)
	if err != nil {
		o.rollback(ctx, prepared)
		return nil, err
	}
	sess := prepared.Session

	customPrompt := req.SystemPrompt != ""
	if o.cache != nil {
		hit, cerr := o.cache.Lookup(ctx, req.Text, prepared.Route.AllowNetwork, customPrompt)
		if cerr != nil {
			o.logger.Warn("cache lookup failed", "error", cerr)
		} else if hit != nil {
			// 缓存命中也要把回应落进会话，保持历史连贯
			sess.Append(llm.Message{Role: llm.RoleAssistant, Content: hit.Response})
			if err := o.sessions.Save(ctx, sess); err != nil {
				o.logger.Warn("session save failed after cache hit", "session_id", sess.ID, "error", err)
			}
			return &Response{
				SessionID:   sess.ID,
				Text:        hit.Response,
				Cached:      true,
				CacheKind:   hit.Kind,
				TotalTokens: hit.Tokens,
			}, nil
		}
	}

	systemPrompt := o.systemPrompt
	if customPrompt {
		systemPrompt = req.SystemPrompt
	}
	history := o.buildHistory(systemPrompt, prepared.Memories, prepared.History)

	result, err := o.loop.Run(ctx, prepared.Route, history, prepared.Tools, o.options)
	if err != nil {
		o.rollback(ctx, prepared)
		return nil, err
	}

	sess.Append(result.Messages...)
	if err := o.sessions.Save(ctx, sess); err != nil {
		o.logger.Warn("session save failed", "session_id", sess.ID, "error", err)
	}

	// 自定义 system prompt 的回合不写缓存，避免串答案
	if o.cache != nil && !customPrompt {
		if err := o.cache.Store(ctx, req.Text, result.FinalText, result.TotalTokens, prepared.Route.AllowNetwork); err != nil {
			o.logger.Warn("cache store failed", "error", err)
		}
	}

	// 记忆抽取走云端，隐私回合跳过
	if o.extractor != nil && !req.PrivacyMode {
		o.extractor.ExtractAsync(req.Text, result.FinalText)
	}

	return &Response{
		SessionID:   sess.ID,
		Text:        result.FinalText,
		Provider:    result.Provider,
		Rounds:      result.Rounds,
		TotalTokens: result.TotalTokens,
	}, nil
}

// rollback 撤掉准备阶段写入的用户消息，失败回合不留半轮
func (o *Orchestrator) rollback(ctx context.Context, prepared *Prepared) {
	if prepared == nil || prepared.Session == nil {
		return
	}
	prepared.Session.TruncateLast(1)
	if err := o.sessions.Save(ctx, prepared.Session); err != nil {
		o.logger.Warn("session rollback save failed", "session_id", prepared.Session.ID, "error", err)
	}
}

// buildHistory 组装完整上下文：system（含记忆前言）+ 有界会话历史（已含本次输入）
func (o *Orchestrator) buildHistory(systemPrompt string, memories []memory.Scored, history []llm.Message) []llm.Message {
	system := systemPrompt
	if len(memories) > 0 {
		var b strings.Builder
		b.WriteString(system)
		b.WriteString("\n\nWhat you remember about the user:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- %s: %s\n", m.Record.Key, m.Record.Value)
		}
		system = strings.TrimRight(b.String(), "\n")
	}

	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: system})
	out = append(out, history...)
	return out
}
