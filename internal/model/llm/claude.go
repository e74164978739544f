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

// ClaudeClient Claude 客户端
type ClaudeClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewClaudeClient 创建新的 Claude 客户端
func NewClaudeClient(model, apiKey, baseURL string, timeout time.Duration) (*ClaudeClient, error) {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return &ClaudeClient{
		provider: "claude",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

type claudeContentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type claudeResponse struct {
	Content    []claudeContentBlock `json:"content"`
	StopReason string               `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ChatWithContext 实现 Client.ChatWithContext
func (c *ClaudeClient) ChatWithContext(ctx context.Context, messages []Message, tools []ToolSpec, options GenerateOptions) (*ChatResult, error) {
	system, wireMessages := toClaudeMessages(messages)

	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096 // Claude 的 max_tokens 必填
	}
	request := map[string]interface{}{
		"model":      c.model,
		"messages":   wireMessages,
		"max_tokens": maxTokens,
	}
	if system != "" {
		request["system"] = system
	}
	if options.Temperature > 0 {
		request["temperature"] = options.Temperature
	}
	if len(options.Stop) > 0 {
		request["stop_sequences"] = options.Stop
	}
	if len(tools) > 0 {
		wire := make([]map[string]interface{}, 0, len(tools))
		for _, t := range tools {
			wire = append(wire, map[string]interface{}{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			})
		}
		request["tools"] = wire
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(request).
		Post(c.baseURL + "/messages")
	if err != nil {
		return nil, fmt.Errorf("调用 Claude API 失败: %w", err)
	}

	if response.StatusCode() != http.StatusOK {
		return nil, saturationOrStatusError(c.provider, response.StatusCode(), response.String())
	}

	var result claudeResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Claude 响应失败: %w", err)
	}
	if len(result.Content) == 0 {
		return nil, fmt.Errorf("Claude API 没有返回结果")
	}

	out := &ChatResult{
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
	}
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	return out, nil
}

// Ping 健康探测
func (c *ClaudeClient) Ping(ctx context.Context) error {
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		Get(c.baseURL + "/models")
	if err != nil {
		return fmt.Errorf("ping claude 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return fmt.Errorf("ping claude 返回 status %d", response.StatusCode())
	}
	return nil
}

// Model 返回模型名称
func (c *ClaudeClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *ClaudeClient) Provider() string { return c.provider }

// SetModel 设置模型
func (c *ClaudeClient) SetModel(model string) { c.model = model }

// SetAPIKey 设置 API Key
func (c *ClaudeClient) SetAPIKey(apiKey string) { c.apiKey = apiKey }

// toClaudeMessages 转换消息：system 提取为单独字段，tool 结果折叠进 user 消息的
// tool_result block，assistant 的工具调用还原为 tool_use block
func toClaudeMessages(messages []Message) (string, []map[string]interface{}) {
	system := ""
	out := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case RoleTool:
			out = append(out, map[string]interface{}{
				"role": "user",
				"content": []claudeContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, map[string]interface{}{"role": "assistant", "content": m.Content})
				continue
			}
			blocks := make([]claudeContentBlock, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, claudeContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, claudeContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments})
			}
			out = append(out, map[string]interface{}{"role": "assistant", "content": blocks})
		default:
			out = append(out, map[string]interface{}{"role": m.Role, "content": m.Content})
		}
	}
	return system, out
}
