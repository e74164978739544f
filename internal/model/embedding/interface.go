package embedding

import (
	"context"
	"fmt"
	"math"
)

// Embedder 向量化接口；缓存近似命中和记忆检索共用
type Embedder interface {
	// Embed 对文本做向量化，返回与 texts 一一对应的向量
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	// EmbedOne 单条文本向量化
	EmbedOne(ctx context.Context, text string) ([]float64, error)
	// Model 返回模型名称
	Model() string
	// Dimension 返回向量维度
	Dimension() int
}

// NewEmbedder 创建 Embedder；provider 为 none 或空时返回 nil，
// 上层据此退化到关键词匹配路径
func NewEmbedder(provider, model, apiKey, baseURL string, dimension int) (Embedder, error) {
	switch provider {
	case "", "none":
		return nil, nil
	case "openai":
		return NewOpenAIEmbedder(model, apiKey, baseURL, dimension), nil
	case "ollama":
		return NewOllamaEmbedder(model, baseURL, dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}

// Cosine 计算两个向量的余弦相似度；维度不一致或零向量返回 0
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
