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

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaEmbedder 本地 Ollama Embedding 客户端；隐私模式下不出网的向量化路径
type OllamaEmbedder struct {
	model     string
	baseURL   string
	dimension int
	client    *resty.Client
}

// NewOllamaEmbedder 创建 Ollama Embedding 客户端
func NewOllamaEmbedder(model, baseURL string, dimension int) *OllamaEmbedder {
	if model == "" {
		model = "nomic-embed-text"
	}
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	if dimension <= 0 {
		dimension = 768
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)

	return &OllamaEmbedder{
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
		client:    client,
	}
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed 实现 Embedder.Embed
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	response, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"model": e.model,
			"input": texts,
		}).
		Post(e.baseURL + "/api/embed")
	if err != nil {
		return nil, fmt.Errorf("调用 Ollama Embedding 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ollama embedding 返回错误 (status %d): %s", response.StatusCode(), response.String())
	}

	var result ollamaEmbedResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Ollama Embedding 响应失败: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedding 返回数量不匹配: 期望 %d，实际 %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

// EmbedOne 实现 Embedder.EmbedOne
func (e *OllamaEmbedder) EmbedOne(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("ollama embedding 没有返回结果")
	}
	return vectors[0], nil
}

// Model 返回模型名称
func (e *OllamaEmbedder) Model() string { return e.model }

// Dimension 返回向量维度
func (e *OllamaEmbedder) Dimension() int { return e.dimension }
