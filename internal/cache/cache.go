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

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"assistant-core/internal/model/embedding"
	"assistant-core/pkg/log"
	"assistant-core/pkg/metrics"
)

// 缓存缺省值
const (
	DefaultTTL                 = 2 * time.Hour
	DefaultMaxEntries          = 500
	DefaultSimilarityThreshold = 0.85
)

// Hit 缓存命中结果
type Hit struct {
	Response string
	Tokens   int    // 写入时记录的 token 消耗
	Kind     string // exact | approximate
}

// ResponseCache 响应缓存：规范化文本精确命中优先，其次向量近似命中
type ResponseCache struct {
	store               EntryStore
	embedder            embedding.Embedder
	similarityThreshold float64
	logger              *log.Logger
}

// NewResponseCache 创建响应缓存；embedder 可为 nil（只有精确命中）
func NewResponseCache(store EntryStore, embedder embedding.Embedder, similarityThreshold float64, logger *log.Logger) *ResponseCache {
	if similarityThreshold <= 0 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &ResponseCache{
		store:               store,
		embedder:            embedder,
		similarityThreshold: similarityThreshold,
		logger:              logger,
	}
}

// Lookup 查找缓存；bypass 为 true（如自定义 system prompt）时直接放行，
// allowEmbedding 为 false 时只做精确命中
func (c *ResponseCache) Lookup(ctx context.Context, query string, allowEmbedding, bypass bool) (*Hit, error) {
	if bypass {
		metrics.CacheLookupTotal.WithLabelValues("bypass").Inc()
		return nil, nil
	}

	normalized := Normalize(query)
	key := hashKey(normalized)

	entry, err := c.store.GetExact(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		metrics.CacheLookupTotal.WithLabelValues("exact").Inc()
		return &Hit{Response: entry.Response, Tokens: entry.Tokens, Kind: "exact"}, nil
	}

	if c.embedder != nil && allowEmbedding {
		hit, err := c.lookupApproximate(ctx, normalized)
		if err != nil {
			// 近似路径故障降级为 miss，不阻断回合
			c.logger.Warn("approximate cache lookup failed", "error", err)
		} else if hit != nil {
			metrics.CacheLookupTotal.WithLabelValues("approximate").Inc()
			return hit, nil
		}
	}

	metrics.CacheLookupTotal.WithLabelValues("miss").Inc()
	return nil, nil
}

// lookupApproximate 对全部未过期条目做余弦相似度扫描，取最高且达阈值者
func (c *ResponseCache) lookupApproximate(ctx context.Context, normalized string) (*Hit, error) {
	queryVec, err := c.embedder.EmbedOne(ctx, normalized)
	if err != nil {
		return nil, err
	}
	entries, err := c.store.All(ctx)
	if err != nil {
		return nil, err
	}
	var best *Entry
	bestScore := 0.0
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		score := embedding.Cosine(queryVec, e.Embedding)
		if score >= c.similarityThreshold && score > bestScore {
			best = e
			bestScore = score
		}
	}
	if best == nil {
		return nil, nil
	}
	return &Hit{Response: best.Response, Tokens: best.Tokens, Kind: "approximate"}, nil
}

// Store 写入一条响应；tokens 记录原回合消耗，命中时随响应一起返回。
// allowEmbedding 为 true 且 embedder 可用时带向量
func (c *ResponseCache) Store(ctx context.Context, query, response string, tokens int, allowEmbedding bool) error {
	normalized := Normalize(query)
	entry := &Entry{
		Key:      hashKey(normalized),
		Query:    normalized,
		Response: response,
		Tokens:   tokens,
	}
	if c.embedder != nil && allowEmbedding {
		if vec, err := c.embedder.EmbedOne(ctx, normalized); err == nil {
			entry.Embedding = vec
		} else {
			c.logger.Warn("cache entry embedding failed", "error", err)
		}
	}
	return c.store.Put(ctx, entry)
}

// Close 关闭底层存储
func (c *ResponseCache) Close() error {
	return c.store.Close()
}

// Normalize 小写并压缩空白，得到缓存键的规范形式
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func hashKey(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
