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

package http

import (
	"bytes"
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"assistant-core/internal/memory"
	"assistant-core/internal/session"
	"assistant-core/internal/turn"
	"assistant-core/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	orchestrator *turn.Orchestrator
	sessions     session.SessionManager
	memories     memory.Store
}

// NewHandler 创建新的 HTTP 处理器；memories 可为 nil（记忆端点返回 503）
func NewHandler(orchestrator *turn.Orchestrator, sessions session.SessionManager, memories memory.Store) *Handler {
	return &Handler{orchestrator: orchestrator, sessions: sessions, memories: memories}
}

// ProcessTurn 处理一轮对话
// POST /api/turn
func (h *Handler) ProcessTurn(c context.Context, ctx *app.RequestContext) {
	var req turn.Request
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	resp, err := h.orchestrator.ProcessTurn(c, &req)
	if err != nil {
		status := consts.StatusInternalServerError
		switch {
		case errors.Is(err, turn.ErrEmptyInput):
			status = consts.StatusBadRequest
		case errors.Is(err, turn.ErrPrivacyMisconfiguration):
			status = consts.StatusServiceUnavailable
		}
		hlog.CtxErrorf(c, "turn processing failed: %v", err)
		ctx.JSON(status, map[string]string{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

// GetSession 查询会话历史
// GET /api/sessions/:id
func (h *Handler) GetSession(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("id")
	sess, err := h.sessions.Get(c, id)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sess == nil {
		ctx.JSON(consts.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
		"updated_at": sess.LastActive(),
		"messages":   sess.CopyMessages(),
	})
}

// DeleteSession 删除会话
// DELETE /api/sessions/:id
func (h *Handler) DeleteSession(c context.Context, ctx *app.RequestContext) {
	if err := h.sessions.Delete(c, ctx.Param("id")); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{"status": "deleted"})
}

// ListMemories 列出全部长期记忆
// GET /api/memories
func (h *Handler) ListMemories(c context.Context, ctx *app.RequestContext) {
	if h.memories == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "memory store not configured"})
		return
	}
	records, err := h.memories.List(c)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	// embedding 不对外
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, map[string]any{
			"key":        r.Key,
			"value":      r.Value,
			"category":   r.Category,
			"created_at": r.CreatedAt,
			"updated_at": r.UpdatedAt,
		})
	}
	ctx.JSON(consts.StatusOK, map[string]any{"memories": out})
}

// PutMemory 写入/更新一条记忆
// PUT /api/memories/:key
func (h *Handler) PutMemory(c context.Context, ctx *app.RequestContext) {
	if h.memories == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "memory store not configured"})
		return
	}
	var body struct {
		Value    string `json:"value"`
		Category string `json:"category"`
	}
	if err := ctx.BindJSON(&body); err != nil || body.Value == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "value is required"})
		return
	}
	record := &memory.Record{Key: ctx.Param("key"), Value: body.Value, Category: body.Category}
	if err := h.memories.Upsert(c, record); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// DeleteMemory 删除一条记忆
// DELETE /api/memories/:key
func (h *Handler) DeleteMemory(c context.Context, ctx *app.RequestContext) {
	if h.memories == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "memory store not configured"})
		return
	}
	if err := h.memories.Delete(c, ctx.Param("key")); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{"status": "deleted"})
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// Metrics Prometheus 指标
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
