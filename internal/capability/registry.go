package capability

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"assistant-core/internal/model/llm"
	"assistant-core/pkg/log"
	"assistant-core/pkg/metrics"
)

// ErrDuplicateCapability 重复注册同名能力
var ErrDuplicateCapability = fmt.Errorf("capability already registered")

// Registry 模型可发现的能力注册表
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
	logger       *log.Logger
	timeout      time.Duration // 单次能力执行上限，<=0 不限
}

// NewRegistry 创建新 Registry
func NewRegistry(logger *log.Logger, timeout time.Duration) *Registry {
	if logger == nil {
		logger = log.Nop()
	}
	return &Registry{
		capabilities: make(map[string]Capability),
		logger:       logger,
		timeout:      timeout,
	}
}

// Register 注册能力；同名重复注册返回 ErrDuplicateCapability
func (r *Registry) Register(c Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.capabilities[c.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCapability, c.Name())
	}
	r.capabilities[c.Name()] = c
	return nil
}

// Get 按名称获取能力
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[name]
	return c, ok
}

// List 返回能力列表；allowNetwork 为 false 时过滤掉出网能力
func (r *Registry) List(allowNetwork bool) []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Capability, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		if !allowNetwork && c.RequiresNetwork() {
			continue
		}
		list = append(list, c)
	}
	// map 遍历无序，按名称排序保证暴露给模型的顺序稳定
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Specs 返回暴露给模型的工具描述列表
func (r *Registry) Specs(allowNetwork bool) []llm.ToolSpec {
	list := r.List(allowNetwork)
	specs := make([]llm.ToolSpec, 0, len(list))
	for _, c := range list {
		specs = append(specs, llm.ToolSpec{
			Name:        c.Name(),
			Description: c.Description(),
			Parameters:  c.Schema(),
		})
	}
	return specs
}

// Invoke 执行一次能力调用：校验参数、限时执行、panic 兜底。
// 返回的 error 由调用方转成文本结果回灌给模型，不中断整轮处理。
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (output string, err error) {
	c, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown capability: %s", name)
	}

	if err := ValidateArgs(c.Schema(), args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		metrics.CapabilityDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		// 能力实现 panic 不能拖垮整轮处理
		if rec := recover(); rec != nil {
			r.logger.Error("capability panic", "capability", name, "panic", rec, "stack", string(debug.Stack()))
			output = ""
			err = fmt.Errorf("capability %s panicked: %v", name, rec)
		}
	}()

	return c.Execute(ctx, args)
}
