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

package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore Postgres 实现的 SessionStore；消息历史序列化为 JSONB
type PgStore struct {
	pool        *pgxpool.Pool
	maxMessages int
}

// NewPgStore 创建基于 PostgreSQL 的 SessionStore
func NewPgStore(ctx context.Context, dsn string, maxMessages int) (*PgStore, error) {
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
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &PgStore{pool: pool, maxMessages: maxMessages}, nil
}

// Close 关闭连接池
func (s *PgStore) Close() {
	s.pool.Close()
}

// Get 实现 SessionStore；不存在时返回 (nil, nil)
func (s *PgStore) Get(ctx context.Context, id string) (*Session, error) {
	var createdAt, updatedAt time.Time
	var messages, metadata []byte
	err := s.pool.QueryRow(ctx,
		`SELECT created_at, updated_at, COALESCE(messages, '[]'::jsonb), COALESCE(metadata, '{}'::jsonb)
		 FROM sessions WHERE id = $1`,
		id).Scan(&createdAt, &updatedAt, &messages, &metadata)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	out := New(id, s.maxMessages)
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	if len(messages) > 0 {
		_ = json.Unmarshal(messages, &out.Messages)
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &out.Metadata)
	}
	return out, nil
}

// Put 实现 SessionStore
func (s *PgStore) Put(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return nil
	}
	messages, _ := json.Marshal(sess.CopyMessages())
	metadata, _ := json.Marshal(sess.Metadata)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, created_at, updated_at, messages, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at,
		 messages = EXCLUDED.messages, metadata = EXCLUDED.metadata`,
		sess.ID, sess.CreatedAt, sess.LastActive(), messages, metadata)
	return err
}

// Delete 实现 SessionStore
func (s *PgStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// IDs 实现 SessionStore
func (s *PgStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM sessions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
