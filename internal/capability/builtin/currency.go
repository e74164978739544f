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

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// CurrencyCapability 汇率换算能力；依赖外部汇率 API，出网
type CurrencyCapability struct {
	baseURL string
	apiKey  string
	client  *resty.Client
}

// NewCurrencyCapability 创建汇率换算能力
func NewCurrencyCapability(baseURL, apiKey string) *CurrencyCapability {
	if baseURL == "" {
		baseURL = "https://api.exchangerate.host"
	}
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	return &CurrencyCapability{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (c *CurrencyCapability) Name() string { return "currency_convert" }

func (c *CurrencyCapability) Description() string {
	return "按当前汇率把金额从一种货币换算成另一种货币，货币用三位代码（如 USD、CNY、EUR）"
}

func (c *CurrencyCapability) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount": map[string]any{"type": "number", "description": "金额"},
			"from":   map[string]any{"type": "string", "description": "源货币代码"},
			"to":     map[string]any{"type": "string", "description": "目标货币代码"},
		},
		"required": []any{"amount", "from", "to"},
	}
}

func (c *CurrencyCapability) RequiresNetwork() bool { return true }

type currencyConvertResponse struct {
	Success bool    `json:"success"`
	Result  float64 `json:"result"`
	Info    struct {
		Rate float64 `json:"rate"`
	} `json:"info"`
}

// Execute 实现 Capability.Execute
func (c *CurrencyCapability) Execute(ctx context.Context, args map[string]any) (string, error) {
	amount, _ := args["amount"].(float64)
	from, _ := args["from"].(string)
	to, _ := args["to"].(string)
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return "", fmt.Errorf("from/to 货币代码不能为空")
	}

	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("from", from).
		SetQueryParam("to", to).
		SetQueryParam("amount", fmt.Sprintf("%v", amount))
	if c.apiKey != "" {
		req.SetQueryParam("access_key", c.apiKey)
	}
	response, err := req.Get(c.baseURL + "/convert")
	if err != nil {
		return "", fmt.Errorf("调用汇率 API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("汇率 API 返回错误 (status %d)", response.StatusCode())
	}

	var result currencyConvertResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("解析汇率响应失败: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("汇率 API 换算失败: %s -> %s", from, to)
	}
	return fmt.Sprintf("%.2f %s = %.2f %s (rate %.6f)", amount, from, result.Result, to, result.Info.Rate), nil
}
