package capability

import (
	"fmt"
)

// ValidateArgs 按 JSON Schema 的 type/properties/required 子集校验参数。
// schema 为空或非 object 时不校验（能力自行处理）。
func ValidateArgs(schema map[string]any, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	if t, _ := schema["type"].(string); t != "" && t != "object" {
		return nil
	}

	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			name, _ := r.(string)
			if name == "" {
				continue
			}
			if _, present := args[name]; !present {
				return fmt.Errorf("missing required argument: %s", name)
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range args {
		propSchema, ok := properties[name].(map[string]any)
		if !ok {
			continue // 未声明的参数放行，由能力自行忽略
		}
		expected, _ := propSchema["type"].(string)
		if expected == "" || value == nil {
			continue
		}
		if !typeMatches(expected, value) {
			return fmt.Errorf("argument %s: expected %s, got %T", name, expected, value)
		}
	}
	return nil
}

// typeMatches JSON 类型与 Go 反序列化值的对应关系；JSON 数字统一为 float64
func typeMatches(jsonType string, value any) bool {
	switch jsonType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
