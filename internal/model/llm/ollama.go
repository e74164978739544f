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

// OllamaClient 本地 Ollama 客户端；不需要 API Key，不出网
type OllamaClient struct {
	provider string
	model    string
	baseURL  string
	client   *resty.Client
}

// NewOllamaClient 创建 Ollama 客户端
func NewOllamaClient(model, baseURL string, timeout time.Duration) (*OllamaClient, error) {
	if model == "" {
		model = "llama3.1"
	}
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	if timeout <= 0 {
		// 本地推理比云端慢，默认放宽超时
		timeout = 120 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return &OllamaClient{
		provider: "ollama",
		model:    model,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

// ollama wire 结构：tool_calls 里 arguments 直接是 JSON 对象
type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// ChatWithContext 实现 Client.ChatWithContext
func (c *OllamaClient) ChatWithContext(ctx context.Context, messages []Message, tools []ToolSpec, options GenerateOptions) (*ChatResult, error) {
	request := map[string]interface{}{
		"model":    c.model,
		"messages": toOllamaMessages(messages),
		"stream":   false,
	}
	opts := map[string]interface{}{}
	if options.Temperature > 0 {
		opts["temperature"] = options.Temperature
	}
	if options.MaxTokens > 0 {
		opts["num_predict"] = options.MaxTokens
	}
	if len(options.Stop) > 0 {
		opts["stop"] = options.Stop
	}
	if len(opts) > 0 {
		request["options"] = opts
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
		SetBody(request).
		Post(c.baseURL + "/api/chat")
	if err != nil {
		return nil, fmt.Errorf("调用 Ollama API 失败: %w", err)
	}

	if response.StatusCode() != http.StatusOK {
		return nil, saturationOrStatusError(c.provider, response.StatusCode(), response.String())
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Ollama 响应失败: %w", err)
	}

	out := &ChatResult{
		Text:         result.Message.Content,
		InputTokens:  result.PromptEvalCount,
		OutputTokens: result.EvalCount,
	}
	for _, tc := range result.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// Ping 健康探测：本地服务是否可达
func (c *OllamaClient) Ping(ctx context.Context) error {
	response, err := c.client.R().
		SetContext(ctx).
		Get(c.baseURL + "/api/tags")
	if err != nil {
		return fmt.Errorf("ping ollama 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return fmt.Errorf("ping ollama 返回 status %d", response.StatusCode())
	}
	return nil
}

// Model 返回模型名称
func (c *OllamaClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *OllamaClient) Provider() string { return c.provider }

// SetModel 设置模型
func (c *OllamaClient) SetModel(model string) { c.model = model }

// SetAPIKey Ollama 不需要 API Key，空实现
func (c *OllamaClient) SetAPIKey(apiKey string) {}

// toOllamaMessages 转换为 Ollama wire 格式
func toOllamaMessages(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			wire := ollamaToolCall{}
			wire.Function.Name = tc.Name
			wire.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, wire)
		}
		out = append(out, om)
	}
	return out
}
