package memory

import (
	"context"
	"time"
)

// Record 单条长期记忆：键值事实，带类别和向量
type Record struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Category  string    `json:"category"` // preference / fact / context
	Embedding []float64 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store 长期记忆存储抽象；同 Key 重复写入为更新（保留 CreatedAt，刷新 UpdatedAt）
type Store interface {
	Upsert(ctx context.Context, record *Record) error
	Get(ctx context.Context, key string) (*Record, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*Record, error)
}
