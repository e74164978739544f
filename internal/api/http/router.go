package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
)

// Router HTTP 路由器
type Router struct {
	handler *Handler
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(h *server.Hertz) {
	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.POST("/turn", r.handler.ProcessTurn)

	sessions := api.Group("/sessions")
	sessions.GET("/:id", r.handler.GetSession)
	sessions.DELETE("/:id", r.handler.DeleteSession)

	memories := api.Group("/memories")
	memories.GET("", r.handler.ListMemories)
	memories.PUT("/:key", r.handler.PutMemory)
	memories.DELETE("/:key", r.handler.DeleteMemory)
}
