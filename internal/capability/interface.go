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
)

// Capability 模型可调用的能力接口
type Capability interface {
	Name() string
	Description() string
	// Schema 参数 JSON Schema（object：type/properties/required 子集）
	Schema() map[string]any
	// RequiresNetwork 是否需要出网；隐私模式下出网能力不会暴露给模型
	RequiresNetwork() bool
	// Execute 执行能力，返回回灌给模型的文本结果
	Execute(ctx context.Context, args map[string]any) (string, error)
}
