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
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore Postgres 实现的记忆存储；向量序列化为 JSONB
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 创建基于 PostgreSQL 的记忆存储
func NewPgStore(ctx context.Context, dsn string) (*PgStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PgStore{pool: pool}, nil
}

// Close 关闭连接池
func (s *PgStore) Close() {
	s.pool.Close()
}

func (s *PgStore) Upsert(ctx context.Context, record *Record) error {
	if record == nil || record.Key == "" {
		return nil
	}
	embedding, _ := json.Marshal(record.Embedding)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memories (key, value, category, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 ON CONFLICT (key) DO UPDATE SET value = $2, category = $3, embedding = $4, updated_at = now()`,
		record.Key, record.Value, record.Category, embedding)
	return err
}

func (s *PgStore) Get(ctx context.Context, key string) (*Record, error) {
	var value, category string
	var embedding []byte
	var createdAt, updatedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT value, COALESCE(category,''), COALESCE(embedding, 'null'::jsonb), created_at, updated_at
		 FROM memories WHERE key = $1`,
		key).Scan(&value, &category, &embedding, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	out := &Record{Key: key, Value: value, Category: category, CreatedAt: createdAt, UpdatedAt: updatedAt}
	if len(embedding) > 0 {
		_ = json.Unmarshal(embedding, &out.Embedding)
	}
	return out, nil
}

func (s *PgStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE key = $1`, key)
	return err
}

func (s *PgStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value, COALESCE(category,''), COALESCE(embedding, 'null'::jsonb), created_at, updated_at
		 FROM memories ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		var r Record
		var embedding []byte
		if err := rows.Scan(&r.Key, &r.Value, &r.Category, &embedding, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if len(embedding) > 0 {
			_ = json.Unmarshal(embedding, &r.Embedding)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
