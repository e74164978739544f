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

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"assistant-core/internal/model/llm"
	"assistant-core/pkg/log"
)

const extractionPrompt = `You extract durable facts about the user from a conversation exchange.
Return a JSON array, each element {"key": "...", "value": "...", "category": "preference|fact|context"}.
Only include facts worth remembering across conversations (preferences, biography, ongoing projects).
Return [] if there is nothing durable. Return ONLY the JSON array.`

// Extractor 从完成的回合中抽取长期记忆；全程后台执行，不阻塞响应
type Extractor struct {
	client   llm.Client
	store    Store
	embedder interface {
		EmbedOne(ctx context.Context, text string) ([]float64, error)
	}
	logger  *log.Logger
	timeout time.Duration
}

// NewExtractor 创建记忆抽取器；embedder 可为 nil（记录无向量，检索走关键词）
func NewExtractor(client llm.Client, store Store, embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float64, error)
}, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Extractor{
		client:   client,
		store:    store,
		embedder: embedder,
		logger:   logger,
		timeout:  60 * time.Second,
	}
}

// ExtractAsync 启动后台抽取；失败只记日志，不影响已返回的响应
func (e *Extractor) ExtractAsync(userText, assistantText string) {
	if e == nil || e.client == nil || e.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if err := e.extract(ctx, userText, assistantText); err != nil {
			e.logger.Warn("memory extraction failed", "error", err)
		}
	}()
}

type extractedFact struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
}

func (e *Extractor) extract(ctx context.Context, userText, assistantText string) error {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: extractionPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("User: %s\nAssistant: %s", userText, assistantText)},
	}
	result, err := e.client.ChatWithContext(ctx, messages, nil, llm.GenerateOptions{MaxTokens: 512})
	if err != nil {
		return err
	}

	facts, err := parseFacts(result.Text)
	if err != nil {
		return err
	}
	for _, f := range facts {
		if f.Key == "" || f.Value == "" {
			continue
		}
		record := &Record{Key: f.Key, Value: f.Value, Category: f.Category}
		if e.embedder != nil {
			if vec, err := e.embedder.EmbedOne(ctx, f.Key+": "+f.Value); err == nil {
				record.Embedding = vec
			}
		}
		if err := e.store.Upsert(ctx, record); err != nil {
			e.logger.Warn("memory upsert failed", "key", f.Key, "error", err)
		}
	}
	return nil
}

// parseFacts 容忍模型在 JSON 外包裹说明文字或代码栅栏
func parseFacts(text string) ([]extractedFact, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in extraction output")
	}
	var facts []extractedFact
	if err := json.Unmarshal([]byte(text[start:end+1]), &facts); err != nil {
		return nil, fmt.Errorf("parse extraction output: %w", err)
	}
	return facts, nil
}
