package llm

import (
	"context"
	"fmt"
	"time"
)

// 消息角色常量（与会话层对齐）
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message 聊天消息；assistant 消息可携带待执行的工具调用，tool 消息为调用结果回灌
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool 结果消息关联的调用 ID
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall 模型请求的一次工具调用（provider 无关表示）
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolSpec 暴露给模型的工具描述
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ChatResult 统一的生成结果；ToolCalls 非空表示模型请求执行工具，
// 由调用方（turn.Loop）决定回合策略，Client 本身不执行工具
type ChatResult struct {
	Text         string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}

// HasToolCalls 是否存在待执行的工具调用
func (r *ChatResult) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// TotalTokens 输入+输出 token 合计
func (r *ChatResult) TotalTokens() int {
	if r == nil {
		return 0
	}
	return r.InputTokens + r.OutputTokens
}

// Client LLM 客户端接口
type Client interface {
	// ChatWithContext 使用上下文聊天；tools 为空时为纯文本生成
	ChatWithContext(ctx context.Context, messages []Message, tools []ToolSpec, options GenerateOptions) (*ChatResult, error)
	// Ping 轻量健康探测
	Ping(ctx context.Context) error
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
	// SetModel 设置模型
	SetModel(model string)
	// SetAPIKey 设置 API Key
	SetAPIKey(apiKey string)
}

// NewClient 创建新的 LLM 客户端；baseURL 用于 OpenAI 兼容端点（如 Qwen/DashScope）
// 或本地 Ollama 地址，空则用各 Provider 默认；timeout 为 0 时用各 Provider 默认
func NewClient(provider, model, apiKey, baseURL string, timeout time.Duration) (Client, error) {
	switch provider {
	case "openai", "qwen":
		return NewOpenAIClient(provider, model, apiKey, baseURL, timeout)
	case "claude":
		return NewClaudeClient(model, apiKey, baseURL, timeout)
	case "ollama":
		return NewOllamaClient(model, baseURL, timeout)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
