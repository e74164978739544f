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

// JobsCapability 职位检索能力；依赖外部招聘 API，出网
type JobsCapability struct {
	baseURL string
	apiKey  string
	client  *resty.Client
}

// NewJobsCapability 创建职位检索能力
func NewJobsCapability(baseURL, apiKey string) *JobsCapability {
	client := resty.New()
	client.SetTimeout(15 * time.Second)
	return &JobsCapability{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (c *JobsCapability) Name() string { return "job_search" }

func (c *JobsCapability) Description() string {
	return "按关键词和城市检索在招职位，返回前若干条标题、公司和地点"
}

func (c *JobsCapability) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":    map[string]any{"type": "string", "description": "职位关键词"},
			"location": map[string]any{"type": "string", "description": "城市，可选"},
			"limit":    map[string]any{"type": "integer", "description": "返回条数上限，默认 5"},
		},
		"required": []any{"query"},
	}
}

func (c *JobsCapability) RequiresNetwork() bool { return true }

type jobsSearchResponse struct {
	Results []struct {
		Title    string `json:"title"`
		Company  string `json:"company"`
		Location string `json:"location"`
		URL      string `json:"url"`
	} `json:"results"`
}

// Execute 实现 Capability.Execute
func (c *JobsCapability) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query 不能为空")
	}
	location, _ := args["location"].(string)
	limit := 5
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("limit", fmt.Sprintf("%d", limit))
	if location != "" {
		req.SetQueryParam("location", location)
	}
	if c.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+c.apiKey)
	}
	response, err := req.Get(c.baseURL + "/search")
	if err != nil {
		return "", fmt.Errorf("调用职位 API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("职位 API 返回错误 (status %d)", response.StatusCode())
	}

	var result jobsSearchResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("解析职位响应失败: %w", err)
	}
	if len(result.Results) == 0 {
		return fmt.Sprintf("没有找到与 %q 相关的职位", query), nil
	}

	var b strings.Builder
	for i, job := range result.Results {
		if i >= limit {
			break
		}
		fmt.Fprintf(&b, "%d. %s - %s (%s)\n", i+1, job.Title, job.Company, job.Location)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
