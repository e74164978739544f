package session

import (
	"time"

	"assistant-core/internal/model/llm"
)

// Message 对话消息（与 llm.Message 语义对齐，带时间戳）
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ToLLM 转为 llm.Message
func (m *Message) ToLLM() llm.Message {
	return llm.Message{
		Role:       m.Role,
		Content:    m.Content,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
	}
}

// FromLLM 从 llm.Message 创建
func FromLLM(l llm.Message) *Message {
	return &Message{
		Role:       l.Role,
		Content:    l.Content,
		ToolCalls:  l.ToolCalls,
		ToolCallID: l.ToolCallID,
		ToolName:   l.ToolName,
		Timestamp:  time.Now(),
	}
}

// MessagesToLLM 将 []*Message 转为 []llm.Message
func MessagesToLLM(list []*Message) []llm.Message {
	if len(list) == 0 {
		return nil
	}
	out := make([]llm.Message, len(list))
	for i, m := range list {
		out[i] = m.ToLLM()
	}
	return out
}
