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

package capability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeCapability 测试用能力实现
type fakeCapability struct {
	name    string
	network bool
	schema  map[string]any
	execute func(ctx context.Context, args map[string]any) (string, error)
}

func (f *fakeCapability) Name() string          { return f.name }
func (f *fakeCapability) Description() string   { return "fake " + f.name }
func (f *fakeCapability) Schema() map[string]any { return f.schema }
func (f *fakeCapability) RequiresNetwork() bool { return f.network }
func (f *fakeCapability) Execute(ctx context.Context, args map[string]any) (string, error) {
	if f.execute != nil {
		return f.execute(ctx, args)
	}
	return "ok", nil
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	r := NewRegistry(nil, 0)
	if err := r.Register(&fakeCapability{name: "echo"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := r.Register(&fakeCapability{name: "echo"})
	if !errors.Is(err, ErrDuplicateCapability) {
		t.Errorf("expected ErrDuplicateCapability, got %v", err)
	}
}

func TestRegistry_List_FiltersNetwork(t *testing.T) {
	r := NewRegistry(nil, 0)
	_ = r.Register(&fakeCapability{name: "zeta", network: false})
	_ = r.Register(&fakeCapability{name: "alpha", network: true})
	_ = r.Register(&fakeCapability{name: "mid", network: false})

	all := r.List(true)
	if len(all) != 3 {
		t.Fatalf("List(true) = %d capabilities, want 3", len(all))
	}
	// 名称有序，保证暴露给模型的顺序稳定
	if all[0].Name() != "alpha" || all[1].Name() != "mid" || all[2].Name() != "zeta" {
		t.Errorf("List order: %s %s %s", all[0].Name(), all[1].Name(), all[2].Name())
	}

	offline := r.List(false)
	if len(offline) != 2 {
		t.Fatalf("List(false) = %d capabilities, want 2", len(offline))
	}
	for _, c := range offline {
		if c.RequiresNetwork() {
			t.Errorf("network capability %s leaked into offline list", c.Name())
		}
	}
}

func TestRegistry_Specs(t *testing.T) {
	r := NewRegistry(nil, 0)
	schema := map[string]any{"type": "object"}
	_ = r.Register(&fakeCapability{name: "echo", schema: schema})
	specs := r.Specs(true)
	if len(specs) != 1 {
		t.Fatalf("Specs: %d, want 1", len(specs))
	}
	if specs[0].Name != "echo" || specs[0].Description == "" {
		t.Errorf("spec: %+v", specs[0])
	}
}

func TestRegistry_Invoke_Unknown(t *testing.T) {
	r := NewRegistry(nil, 0)
	_, err := r.Invoke(context.Background(), "nope", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown capability") {
		t.Errorf("expected unknown capability error, got %v", err)
	}
}

func TestRegistry_Invoke_ValidatesArgs(t *testing.T) {
	r := NewRegistry(nil, 0)
	_ = r.Register(&fakeCapability{
		name: "echo",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []any{"text"},
		},
	})
	_, err := r.Invoke(context.Background(), "echo", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "missing required argument") {
		t.Errorf("expected missing argument error, got %v", err)
	}
	out, err := r.Invoke(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil || out != "ok" {
		t.Errorf("Invoke: out=%q err=%v", out, err)
	}
}

func TestRegistry_Invoke_PanicRecovered(t *testing.T) {
	r := NewRegistry(nil, 0)
	_ = r.Register(&fakeCapability{
		name: "boom",
		execute: func(ctx context.Context, args map[string]any) (string, error) {
			panic("kaput")
		},
	})
	out, err := r.Invoke(context.Background(), "boom", nil)
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Errorf("expected panic error, got out=%q err=%v", out, err)
	}
}

func TestRegistry_Invoke_Timeout(t *testing.T) {
	r := NewRegistry(nil, 50*time.Millisecond)
	_ = r.Register(&fakeCapability{
		name: "slow",
		execute: func(ctx context.Context, args map[string]any) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(2 * time.Second):
				return "late", nil
			}
		},
	})
	_, err := r.Invoke(context.Background(), "slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
