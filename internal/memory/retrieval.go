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
	"math"
	"sort"
	"strings"
	"time"

	"assistant-core/internal/model/embedding"
	"assistant-core/pkg/log"
	"assistant-core/pkg/metrics"
)

// 混合打分缺省值
const (
	DefaultRetrievalLimit   = 5
	DefaultThreshold        = 0.35
	DefaultSimilarityWeight = 0.7
	DefaultRecencyWeight    = 0.3
	DefaultGraceDays        = 7
	recencyDecayFactor      = 0.95 // 宽限期外每天乘以该系数
)

// RetrievalOptions 混合检索打分配置
type RetrievalOptions struct {
	Limit            int
	Threshold        float64
	SimilarityWeight float64
	RecencyWeight    float64
	GraceDays        int
}

func (o RetrievalOptions) withDefaults() RetrievalOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultRetrievalLimit
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.SimilarityWeight <= 0 {
		o.SimilarityWeight = DefaultSimilarityWeight
	}
	if o.RecencyWeight <= 0 {
		o.RecencyWeight = DefaultRecencyWeight
	}
	if o.GraceDays <= 0 {
		o.GraceDays = DefaultGraceDays
	}
	return o
}

// Scored 带分数的检索结果
type Scored struct {
	Record *Record
	Score  float64
}

// Retriever 混合检索：向量相似度 + 新鲜度加权；embedder 不可用时退化到关键词匹配
type Retriever struct {
	store    Store
	embedder embedding.Embedder
	opts     RetrievalOptions
	logger   *log.Logger
}

// NewRetriever 创建检索器；embedder 可为 nil（只走关键词路径）
func NewRetriever(store Store, embedder embedding.Embedder, opts RetrievalOptions, logger *log.Logger) *Retriever {
	if logger == nil {
		logger = log.Nop()
	}
	return &Retriever{store: store, embedder: embedder, opts: opts.withDefaults(), logger: logger}
}

// Retrieve 按查询检索相关记忆；allowEmbedding 为 false（隐私模式下 embedder 出网）
// 或向量化失败时走关键词匹配
func (r *Retriever) Retrieve(ctx context.Context, query string, allowEmbedding bool) ([]Scored, error) {
	records, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var results []Scored
	mode := "semantic"
	if r.embedder != nil && allowEmbedding {
		queryVec, err := r.embedder.EmbedOne(ctx, query)
		if err == nil {
			results = r.scoreHybrid(records, queryVec)
		} else {
			// 向量化故障不阻断回合，降级为关键词
			r.logger.Warn("embedding failed, falling back to keyword retrieval", "error", err)
		}
	}
	if results == nil {
		mode = "keyword"
		results = scoreKeyword(records, query)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > r.opts.Limit {
		results = results[:r.opts.Limit]
	}
	metrics.MemoryRetrievedTotal.WithLabelValues(mode).Add(float64(len(results)))
	return results, nil
}

// scoreHybrid score = w_sim*cosine + w_rec*recency，低于阈值丢弃
func (r *Retriever) scoreHybrid(records []*Record, queryVec []float64) []Scored {
	now := time.Now()
	out := make([]Scored, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			continue
		}
		sim := embedding.Cosine(queryVec, rec.Embedding)
		rcy := recencyScore(now, rec.UpdatedAt, r.opts.GraceDays)
		score := r.opts.SimilarityWeight*sim + r.opts.RecencyWeight*rcy
		if score <= r.opts.Threshold {
			continue
		}
		out = append(out, Scored{Record: rec, Score: score})
	}
	return out
}

// recencyScore 宽限期内为 1.0，之后每天衰减
func recencyScore(now, updatedAt time.Time, graceDays int) float64 {
	days := now.Sub(updatedAt).Hours() / 24
	past := days - float64(graceDays)
	if past <= 0 {
		return 1.0
	}
	return math.Pow(recencyDecayFactor, past)
}

// scoreKeyword 关键词重叠率打分，零重叠丢弃
func scoreKeyword(records []*Record, query string) []Scored {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}
	out := make([]Scored, 0, len(records))
	for _, rec := range records {
		recTokens := tokenize(rec.Key + " " + rec.Value)
		if len(recTokens) == 0 {
			continue
		}
		set := make(map[string]bool, len(recTokens))
		for _, t := range recTokens {
			set[t] = true
		}
		overlap := 0
		for _, t := range queryTokens {
			if set[t] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		out = append(out, Scored{Record: rec, Score: float64(overlap) / float64(len(queryTokens))})
	}
	return out
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"be": true, "to": true, "of": true, "in": true, "on": true, "at": true,
	"and": true, "or": true, "it": true, "my": true, "i": true, "you": true,
	"me": true, "do": true, "what": true, "how": true, "for": true, "with": true,
}

// tokenize 小写切词并去停用词
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r >= 0x80)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}
