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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIClient OpenAI 及兼容端点（Qwen/DashScope 等）客户端
type OpenAIClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewOpenAIClient 创建 OpenAI 兼容客户端；provider 记录真实提供商名（openai/qwen）
func NewOpenAIClient(provider, model, apiKey, baseURL string, timeout time.Duration) (*OpenAIClient, error) {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return &OpenAIClient{
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

// openai wire 结构：assistant 的 tool_calls 里 arguments 是 JSON 字符串
type openaiToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ChatWithContext 实现 Client.ChatWithContext
func (c *OpenAIClient) ChatWithContext(ctx context.Context, messages []Message, tools []ToolSpec, options GenerateOptions) (*ChatResult, error) {
	request := map[string]interface{}{
		"model":    c.model,
		"messages": toOpenAIMessages(messages),
	}
	if options.Temperature > 0 {
		request["temperature"] = options.Temperature
	}
	if options.MaxTokens > 0 {
		request["max_tokens"] = options.MaxTokens
	}
	if len(options.Stop) > 0 {
		request["stop"] = options.Stop
	}
	if len(tools) > 0 {
		wire := make([]map[string]interface{}, 0, len(tools))
		for _, t := range tools {
			wire = append(wire, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		request["tools"] = wire
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("调用 %s API 失败: %w", c.provider, err)
	}

	if response.StatusCode() != http.StatusOK {
		return nil, saturationOrStatusError(c.provider, response.StatusCode(), response.String())
	}

	var result openaiChatResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 %s 响应失败: %w", c.provider, err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%s API 没有返回结果", c.provider)
	}

	msg := result.Choices[0].Message
	out := &ChatResult{
		Text:         msg.Content,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			// arguments 为 JSON 字符串，解析失败时保留原文交给上层转为文本错误
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{"_raw": tc.Function.Arguments}
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return out, nil
}

// Ping 健康探测：列模型接口，不产生生成消耗
func (c *OpenAIClient) Ping(ctx context.Context) error {
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		Get(c.baseURL + "/models")
	if err != nil {
		return fmt.Errorf("ping %s 失败: %w", c.provider, err)
	}
	if response.StatusCode() != http.StatusOK {
		return fmt.Errorf("ping %s 返回 status %d", c.provider, response.StatusCode())
	}
	return nil
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string { return c.provider }

// SetModel 设置模型
func (c *OpenAIClient) SetModel(model string) { c.model = model }

// SetAPIKey 设置 API Key
func (c *OpenAIClient) SetAPIKey(apiKey string) { c.apiKey = apiKey }

// toOpenAIMessages 转换为 OpenAI wire 格式
func toOpenAIMessages(messages []Message) []openaiMessage {
	out := make([]openaiMessage, 0, len(messages))
	for _, m := range messages {
		om := openaiMessage{Role: m.Role, Content: m.Content}
		if m.Role == RoleTool {
			om.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			wire := openaiToolCall{ID: tc.ID, Type: "function"}
			wire.Function.Name = tc.Name
			if data, err := json.Marshal(tc.Arguments); err == nil {
				wire.Function.Arguments = string(data)
			}
			om.ToolCalls = append(om.ToolCalls, wire)
		}
		out = append(out, om)
	}
	return out
}
