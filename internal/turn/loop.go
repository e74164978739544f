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

	"assistant-core/internal/capability"
	"assistant-core/internal/model/llm"
	"assistant-core/pkg/log"
	"assistant-core/pkg/metrics"
)

// DefaultMaxRounds 工具调用循环轮数上限缺省值
const DefaultMaxRounds = 3

// 循环状态
type loopState int

const (
	stateGenerating loopState = iota
	stateExecuting
	stateDone
)

// LoopResult 工具调用循环的产出
type LoopResult struct {
	// Messages 循环期间新增的消息（assistant 工具调用、tool 结果、最终 assistant 回复），
	// 按产生顺序，供调用方落入会话
	Messages    []llm.Message
	FinalText   string
	Provider    string // 最终回复实际使用的 provider
	Rounds      int    // 执行了工具调用的轮数
	TotalTokens int
}

// Loop 工具调用循环：生成 → 执行工具 → 回灌结果，直到模型给出文本回复或触顶
type Loop struct {
	generator *Generator
	registry  *capability.Registry
	maxRounds int
	logger    *log.Logger
}

// NewLoop 创建工具调用循环
func NewLoop(generator *Generator, registry *capability.Registry, maxRounds int, logger *log.Logger) *Loop {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Loop{generator: generator, registry: registry, maxRounds: maxRounds, logger: logger}
}

// Run 执行循环。history 为已构建好的完整上下文（system + 记忆 + 会话历史 + 本次输入），
// tools 为准备阶段按隐私路由筛好的能力列表。
// 工具按模型给出的顺序串行执行，单个工具失败转为文本结果回灌，不中断循环。
// 无论模型连续请求多少轮工具，生成调用不超过轮数上限：触顶直接结束，
// 取已有的最后一段文本作为回复，不再发起新的生成。
func (l *Loop) Run(ctx context.Context, route *Route, history []llm.Message, tools []llm.ToolSpec, options llm.GenerateOptions) (*LoopResult, error) {
	messages := append([]llm.Message(nil), history...)
	result := &LoopResult{}

	state := stateGenerating
	for state != stateDone {
		switch state {
		case stateGenerating:
			if result.Rounds >= l.maxRounds {
				// 触顶：不再生成，用已有的最后一段文本兜底收尾
				result.FinalText = lastAssistantText(result.Messages)
				l.logger.Warn("tool round cap reached, returning last available text",
					"rounds", result.Rounds)
				state = stateDone
				continue
			}
			chat, provider, err := l.generator.Generate(ctx, route, messages, tools, options)
			if err != nil {
				return nil, err
			}
			result.Provider = provider
			result.TotalTokens += chat.TotalTokens()
			metrics.LLMTokensTotal.WithLabelValues("input").Add(float64(chat.InputTokens))
			metrics.LLMTokensTotal.WithLabelValues("output").Add(float64(chat.OutputTokens))

			assistant := llm.Message{Role: llm.RoleAssistant, Content: chat.Text, ToolCalls: chat.ToolCalls}
			messages = append(messages, assistant)
			result.Messages = append(result.Messages, assistant)

			if chat.HasToolCalls() {
				result.Rounds++
				state = stateExecuting
			} else {
				result.FinalText = chat.Text
				state = stateDone
			}

		case stateExecuting:
			last := messages[len(messages)-1]
			for _, call := range last.ToolCalls {
				output, err := l.registry.Invoke(ctx, call.Name, call.Arguments)
				if err != nil {
					// 工具失败作为文本结果回灌，让模型自行处理
					l.logger.Warn("capability invocation failed", "capability", call.Name, "error", err)
					output = fmt.Sprintf("error: %v", err)
				}
				toolMsg := llm.Message{
					Role:       llm.RoleTool,
					Content:    output,
					ToolCallID: call.ID,
					ToolName:   call.Name,
				}
				messages = append(messages, toolMsg)
				result.Messages = append(result.Messages, toolMsg)
			}
			state = stateGenerating
		}
	}
	return result, nil
}

// lastAssistantText 倒序找最近一条非空 assistant 文本；没有则空串
func lastAssistantText(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleAssistant && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}
