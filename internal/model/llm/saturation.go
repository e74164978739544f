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

package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// SaturationError 后端饱和（限流/配额）错误，区别于一般失败：
// 上层 fallback 策略只对该类错误切换备用后端
type SaturationError struct {
	Provider   string
	StatusCode int
	Msg        string
}

func (e *SaturationError) Error() string {
	return fmt.Sprintf("provider %s saturated (status %d): %s", e.Provider, e.StatusCode, e.Msg)
}

// 各家 API 对限流/配额的措辞并不一致，按已知片段做子串匹配；
// 新 Provider 可通过 RegisterSaturationSignature 注册自己的措辞
var (
	saturationMu         sync.RWMutex
	saturationSignatures = []string{
		"rate limit",
		"rate_limit",
		"ratelimit",
		"too many requests",
		"quota",
		"insufficient_quota",
		"overloaded",
		"overloaded_error",
		"capacity",
		"resource has been exhausted",
	}
)

// 饱和语义的 HTTP 状态码：429 标准限流，529 为 Anthropic overloaded
var saturationStatusCodes = map[int]bool{
	http.StatusTooManyRequests: true,
	529:                        true,
}

// RegisterSaturationSignature 注册新的饱和错误措辞片段（不区分大小写）
func RegisterSaturationSignature(sig string) {
	sig = strings.ToLower(strings.TrimSpace(sig))
	if sig == "" {
		return
	}
	saturationMu.Lock()
	defer saturationMu.Unlock()
	for _, s := range saturationSignatures {
		if s == sig {
			return
		}
	}
	saturationSignatures = append(saturationSignatures, sig)
}

// IsSaturation 判断错误是否为后端饱和：
// 类型匹配优先；其次状态码；最后对错误文本做措辞匹配
func IsSaturation(err error) bool {
	if err == nil {
		return false
	}
	var se *SaturationError
	if errors.As(err, &se) {
		return true
	}

	msg := strings.ToLower(err.Error())
	saturationMu.RLock()
	defer saturationMu.RUnlock()
	for _, sig := range saturationSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// saturationOrStatusError 按状态码归类：饱和状态码返回 SaturationError，其余返回普通错误
func saturationOrStatusError(provider string, statusCode int, body string) error {
	if saturationStatusCodes[statusCode] {
		return &SaturationError{Provider: provider, StatusCode: statusCode, Msg: body}
	}
	return fmt.Errorf("%s API 返回错误 (status %d): %s", provider, statusCode, body)
}
