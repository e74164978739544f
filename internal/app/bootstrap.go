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

package app

import (
	"context"
	"fmt"
	"time"

	"assistant-core/internal/cache"
	"assistant-core/internal/capability"
	"assistant-core/internal/capability/builtin"
	"assistant-core/internal/memory"
	"assistant-core/internal/model/embedding"
	"assistant-core/internal/model/llm"
	"assistant-core/internal/session"
	"assistant-core/internal/turn"
	"assistant-core/pkg/config"
	"assistant-core/pkg/log"
	"assistant-core/pkg/secrets"
	"assistant-core/pkg/utils"
)

// Bootstrap 装配完成的应用依赖
type Bootstrap struct {
	Config       *config.Config
	Logger       *log.Logger
	Orchestrator *turn.Orchestrator
	Sessions     *session.Manager
	Memories     memory.Store

	closers []func()
}

// NewBootstrap 按配置装配全部依赖
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	b := &Bootstrap{Config: cfg, Logger: logger}

	secretStore, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Config:   cfg.Secrets.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 secret store 失败: %w", err)
	}

	// 生成后端：cloud 主、local 备
	cloudClient, err := buildClient(cfg.Providers.Cloud, secretStore, "providers/cloud/api_key")
	if err != nil {
		return nil, fmt.Errorf("初始化云端后端失败: %w", err)
	}
	localClient, err := buildClient(cfg.Providers.Local, secretStore, "providers/local/api_key")
	if err != nil {
		return nil, fmt.Errorf("初始化本地后端失败: %w", err)
	}
	if cloudClient == nil && localClient == nil {
		return nil, fmt.Errorf("providers.cloud 和 providers.local 至少配置一个")
	}

	// Provider 维度限流
	if len(cfg.RateLimits.LLM) > 0 {
		limits := make(map[string]llm.LLMLimitConfig, len(cfg.RateLimits.LLM))
		for provider, lc := range cfg.RateLimits.LLM {
			limits[provider] = llm.LLMLimitConfig{
				TokensPerMinute:   lc.TokensPerMinute,
				RequestsPerMinute: lc.RequestsPerMinute,
				MaxConcurrent:     lc.MaxConcurrent,
			}
		}
		rateLimiter := llm.NewLLMRateLimiter(limits, nil)
		if cloudClient != nil {
			cloudClient = llm.NewRateLimitedClient(cloudClient, rateLimiter)
		}
		if localClient != nil {
			localClient = llm.NewRateLimitedClient(localClient, rateLimiter)
		}
	}

	// Embedding：缓存近似命中和记忆检索共用，provider none 时两者退化
	embedder, err := embedding.NewEmbedder(
		cfg.Embedding.Provider, cfg.Embedding.Model,
		cfg.Embedding.APIKey, cfg.Embedding.BaseURL, cfg.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("初始化 embedding 失败: %w", err)
	}

	// 会话存储
	sessionStore, err := b.buildSessionStore(cfg)
	if err != nil {
		return nil, err
	}
	idleTimeout := utils.ParseDuration(cfg.Session.IdleTimeout, 30*time.Minute)
	sessions := session.NewManager(sessionStore, cfg.Session.MaxMessages, idleTimeout, logger)
	sessions.StartSweeper(utils.ParseDuration(cfg.Session.SweepInterval, 5*time.Minute))
	b.Sessions = sessions
	b.closers = append(b.closers, sessions.Stop)

	// 长期记忆
	memoryStore, err := b.buildMemoryStore(cfg)
	if err != nil {
		return nil, err
	}
	b.Memories = memoryStore
	retriever := memory.NewRetriever(memoryStore, embedder, memory.RetrievalOptions{
		Limit:            cfg.Memory.Retrieval.Limit,
		Threshold:        cfg.Memory.Retrieval.Threshold,
		SimilarityWeight: cfg.Memory.Retrieval.SimilarityWeight,
		RecencyWeight:    cfg.Memory.Retrieval.RecencyWeight,
		GraceDays:        cfg.Memory.Retrieval.GraceDays,
	}, logger)

	var extractor *memory.Extractor
	if cfg.Memory.Extraction.Enable && cloudClient != nil {
		extractor = memory.NewExtractor(cloudClient, memoryStore, embedder, logger)
	}

	// 响应缓存
	responseCache, err := b.buildResponseCache(cfg, embedder, logger)
	if err != nil {
		return nil, err
	}

	// 能力注册表
	registry := capability.NewRegistry(logger, utils.ParseDuration(cfg.Turn.CapabilityTimeout, 15*time.Second))
	if err := builtin.Register(registry, &cfg.Capabilities); err != nil {
		return nil, fmt.Errorf("注册内置能力失败: %w", err)
	}

	gate := turn.NewGate(cloudClient, localClient, logger)
	generator := turn.NewGenerator(logger)
	loop := turn.NewLoop(generator, registry, cfg.Turn.MaxRounds, logger)
	preparer := turn.NewPreparer(sessions, retriever, gate, registry, logger)

	b.Orchestrator = turn.NewOrchestrator(sessions, loop, preparer, responseCache, extractor,
		turn.Options{
			SystemPrompt: cfg.Turn.SystemPrompt,
			GenerateOptions: llm.GenerateOptions{
				Temperature: cfg.Providers.Cloud.Temperature,
				MaxTokens:   cfg.Providers.Cloud.MaxTokens,
			},
		}, logger)
	return b, nil
}

// Close 释放全部资源（逆序）
func (b *Bootstrap) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// buildClient 创建 LLM 客户端；API Key 为空时从 secret store 兜底
func buildClient(pc config.ProviderConfig, secretStore secrets.Store, secretKey string) (llm.Client, error) {
	if pc.Provider == "" {
		return nil, nil
	}
	apiKey := pc.APIKey
	if apiKey == "" && pc.Provider != "ollama" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if v, err := secretStore.Get(ctx, secretKey); err == nil {
			apiKey = v
		}
	}
	return llm.NewClient(pc.Provider, pc.Model, apiKey, pc.BaseURL, utils.ParseDuration(pc.Timeout, 0))
}

func (b *Bootstrap) buildSessionStore(cfg *config.Config) (session.SessionStore, error) {
	switch cfg.Session.Store.Type {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "postgres":
		store, err := session.NewPgStore(context.Background(), cfg.Session.Store.DSN, cfg.Session.MaxMessages)
		if err != nil {
			return nil, fmt.Errorf("初始化会话存储(postgres)失败: %w", err)
		}
		b.closers = append(b.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Session.Store.Type)
	}
}

func (b *Bootstrap) buildMemoryStore(cfg *config.Config) (memory.Store, error) {
	switch cfg.Memory.Store.Type {
	case "", "memory":
		return memory.NewMemStore(), nil
	case "postgres":
		store, err := memory.NewPgStore(context.Background(), cfg.Memory.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("初始化记忆存储(postgres)失败: %w", err)
		}
		b.closers = append(b.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported memory store type: %s", cfg.Memory.Store.Type)
	}
}

func (b *Bootstrap) buildResponseCache(cfg *config.Config, embedder embedding.Embedder, logger *log.Logger) (*cache.ResponseCache, error) {
	ttl := utils.ParseDuration(cfg.Cache.TTL, cache.DefaultTTL)
	var store cache.EntryStore
	switch cfg.Cache.Store.Type {
	case "", "memory":
		store = cache.NewMemoryStore(ttl, cfg.Cache.MaxEntries)
	case "redis":
		var err error
		store, err = cache.NewRedisStore(context.Background(),
			cfg.Cache.Store.Addr, cfg.Cache.Store.Password, cfg.Cache.Store.DB,
			ttl, cfg.Cache.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("初始化缓存(redis)失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的缓存类型: %s", cfg.Cache.Store.Type)
	}
	responseCache := cache.NewResponseCache(store, embedder, cfg.Cache.SimilarityThreshold, logger)
	b.closers = append(b.closers, func() { _ = responseCache.Close() })
	return responseCache, nil
}
