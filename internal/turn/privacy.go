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
	"fmt"
	"time"

	"assistant-core/internal/model/llm"
	"assistant-core/pkg/log"
)

// Route 一次回合的生成路由
type Route struct {
	Primary   llm.Client
	Secondary llm.Client // 饱和时的备用后端，可为 nil
	// AllowNetwork 是否允许出网：隐私模式下出网能力、云端向量化、缓存近似命中全部关闭
	AllowNetwork bool
}

// Gate 隐私路由：决定回合走云端还是只走本地
type Gate struct {
	cloud  llm.Client
	local  llm.Client
	logger *log.Logger
}

// NewGate 创建隐私路由；local 可为 nil（隐私模式会直接报配置错误）
func NewGate(cloud, local llm.Client, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.Nop()
	}
	return &Gate{cloud: cloud, local: local, logger: logger}
}

// Resolve 解析路由。隐私模式：只用本地后端，且先探活，不可用立即失败而不是
// 悄悄把数据发给云端。普通模式：云端主、本地备。
func (g *Gate) Resolve(ctx context.Context, privacyMode bool) (*Route, error) {
	if privacyMode {
		if g.local == nil {
			return nil, ErrPrivacyMisconfiguration
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := g.local.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPrivacyMisconfiguration, err)
		}
		return &Route{Primary: g.local, AllowNetwork: false}, nil
	}

	if g.cloud == nil {
		// 没配云端时退化为纯本地，但网络能力不受限
		if g.local == nil {
			return nil, fmt.Errorf("no generation provider configured")
		}
		return &Route{Primary: g.local, AllowNetwork: true}, nil
	}
	return &Route{Primary: g.cloud, Secondary: g.local, AllowNetwork: true}, nil
}
