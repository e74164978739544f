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

package turn

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"assistant-core/internal/model/llm"
	"assistant-core/pkg/log"
	"assistant-core/pkg/metrics"
)

// saturationMemoryTTL 主后端饱和记号的存活时间：窗口内的后续调用
// 直接先试备用后端，省掉一次大概率仍饱和的主后端调用
const saturationMemoryTTL = 30 * time.Second

// Generator 带切换的生成入口：主后端饱和（限流/配额）或超时时切备用后端，
// 其他失败原地返回，不做重试。饱和记号进程内共享，不落盘。
type Generator struct {
	logger *log.Logger

	mu             sync.Mutex
	saturatedUntil map[string]time.Time // provider -> 记号过期时间
}

// NewGenerator 创建生成入口
func NewGenerator(logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Generator{logger: logger, saturatedUntil: make(map[string]time.Time)}
}

func (g *Generator) markSaturated(provider string) {
	g.mu.Lock()
	g.saturatedUntil[provider] = time.Now().Add(saturationMemoryTTL)
	g.mu.Unlock()
}

func (g *Generator) recentlySaturated(provider string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.saturatedUntil[provider]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(g.saturatedUntil, provider)
		return false
	}
	return true
}

// Generate 执行一次生成；返回实际使用的 provider 名称
func (g *Generator) Generate(ctx context.Context, route *Route, messages []llm.Message, tools []llm.ToolSpec, options llm.GenerateOptions) (*llm.ChatResult, string, error) {
	primary := route.Primary.Provider()

	// 饱和记号窗口内直接先走备用；备用失败再按正常路径试主后端（记号可能失真）
	if route.Secondary != nil && g.recentlySaturated(primary) {
		secondary := route.Secondary.Provider()
		metrics.ProviderFallbackTotal.WithLabelValues(primary, secondary).Inc()
		result, err := route.Secondary.ChatWithContext(ctx, messages, tools, options)
		if err == nil {
			metrics.ProviderCallTotal.WithLabelValues(secondary, "ok").Inc()
			return result, secondary, nil
		}
		g.logger.Warn("secondary provider failed during saturation window, retrying primary",
			"secondary", secondary, "error", err)
	}

	result, err := route.Primary.ChatWithContext(ctx, messages, tools, options)
	if err == nil {
		metrics.ProviderCallTotal.WithLabelValues(primary, "ok").Inc()
		return result, primary, nil
	}
	// 饱和与超时都算后端失败，走切换；逻辑错误切了备用多半也一样错，直接透传
	status := "error"
	switch {
	case llm.IsSaturation(err):
		status = "saturated"
		g.markSaturated(primary)
	case isGenerationTimeout(err):
		status = "timeout"
	}
	metrics.ProviderCallTotal.WithLabelValues(primary, status).Inc()
	if status == "error" || route.Secondary == nil {
		return nil, primary, err
	}

	secondary := route.Secondary.Provider()
	g.logger.Warn("primary provider failed, falling back",
		"primary", primary, "secondary", secondary, "status", status, "error", err)
	metrics.ProviderFallbackTotal.WithLabelValues(primary, secondary).Inc()

	result, serr := route.Secondary.ChatWithContext(ctx, messages, tools, options)
	if serr != nil {
		metrics.ProviderCallTotal.WithLabelValues(secondary, "error").Inc()
		return nil, secondary, &ExhaustedError{
			PrimaryProvider:   primary,
			PrimaryErr:        err,
			SecondaryProvider: secondary,
			SecondaryErr:      serr,
		}
	}
	metrics.ProviderCallTotal.WithLabelValues(secondary, "ok").Inc()
	return result, secondary, nil
}

// isGenerationTimeout 生成调用超时：上下文超时或底层网络超时，视同后端失败参与切换。
// 调用方主动取消（context.Canceled）不算超时，原样透传
func isGenerationTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
