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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "response_cache:"
	redisIndexKey  = "response_cache_index" // 插入序 list，容量淘汰用
)

// redisStore Redis 实现；条目 TTL 由 redis 过期负责，容量淘汰按插入序 list
type redisStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxEntries int
}

// NewRedisStore 创建 Redis 缓存存储
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration, maxEntries int) (EntryStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &redisStore{client: client, ttl: ttl, maxEntries: maxEntries}, nil
}

func (s *redisStore) Put(ctx context.Context, e *Entry) error {
	if e == nil || e.Key == "" {
		return nil
	}
	clone := *e
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	data, err := json.Marshal(&clone)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+clone.Key, data, s.ttl).Err(); err != nil {
		return err
	}
	// 同 key 重写先摘掉旧 index 项，保持 list 与条目一一对应，
	// 否则 LLen 虚高，淘汰会弹出旧副本误删刚写入的条目
	if err := s.client.LRem(ctx, redisIndexKey, 0, clone.Key).Err(); err != nil {
		return err
	}
	if err := s.client.RPush(ctx, redisIndexKey, clone.Key).Err(); err != nil {
		return err
	}

	// 容量淘汰：超出上限时从 list 头部弹出并删除
	size, err := s.client.LLen(ctx, redisIndexKey).Result()
	if err != nil {
		return err
	}
	for size > int64(s.maxEntries) {
		oldest, err := s.client.LPop(ctx, redisIndexKey).Result()
		if err != nil {
			break
		}
		_ = s.client.Del(ctx, redisKeyPrefix+oldest).Err()
		size--
	}
	return nil
}

func (s *redisStore) GetExact(ctx context.Context, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *redisStore) All(ctx context.Context) ([]*Entry, error) {
	keys, err := s.client.LRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(keys))
	for _, key := range keys {
		e, err := s.GetExact(ctx, key)
		if err != nil {
			return nil, err
		}
		if e == nil {
			// 已被 redis 过期回收，顺手清掉 index
			_ = s.client.LRem(ctx, redisIndexKey, 1, key).Err()
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return err
	}
	return s.client.LRem(ctx, redisIndexKey, 1, key).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
