package capability

import (
	"strings"
	"testing"
)

func objectSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":  map[string]any{"type": "string"},
			"amount": map[string]any{"type": "number"},
			"count":  map[string]any{"type": "integer"},
			"strict": map[string]any{"type": "boolean"},
		},
		"required": []any{"query"},
	}
}

func TestValidateArgs_Required(t *testing.T) {
	err := ValidateArgs(objectSchema(), map[string]any{"amount": 1.5})
	if err == nil || !strings.Contains(err.Error(), "query") {
		t.Errorf("expected missing query error, got %v", err)
	}
	if err := ValidateArgs(objectSchema(), map[string]any{"query": "x"}); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}
}

func TestValidateArgs_Types(t *testing.T) {
	base := map[string]any{"query": "x"}

	bad := map[string]any{"query": 42}
	if err := ValidateArgs(objectSchema(), bad); err == nil {
		t.Error("number for string should fail")
	}

	// JSON 反序列化的数字统一为 float64，整数值应通过 integer 校验
	ok := map[string]any{"query": "x", "count": float64(3)}
	if err := ValidateArgs(objectSchema(), ok); err != nil {
		t.Errorf("whole float64 for integer rejected: %v", err)
	}
	frac := map[string]any{"query": "x", "count": 3.5}
	if err := ValidateArgs(objectSchema(), frac); err == nil {
		t.Error("fractional float64 for integer should fail")
	}

	num := map[string]any{"query": "x", "amount": float64(3)}
	if err := ValidateArgs(objectSchema(), num); err != nil {
		t.Errorf("number rejected: %v", err)
	}
	boolArg := map[string]any{"query": "x", "strict": true}
	if err := ValidateArgs(objectSchema(), boolArg); err != nil {
		t.Errorf("boolean rejected: %v", err)
	}

	// 未声明的参数放行
	extra := map[string]any{"query": "x", "unknown": []any{1, 2}}
	if err := ValidateArgs(objectSchema(), extra); err != nil {
		t.Errorf("undeclared arg rejected: %v", err)
	}
	_ = base
}

func TestValidateArgs_NonObjectSchema(t *testing.T) {
	if err := ValidateArgs(nil, map[string]any{"x": 1}); err != nil {
		t.Errorf("empty schema should not validate: %v", err)
	}
	if err := ValidateArgs(map[string]any{"type": "string"}, nil); err != nil {
		t.Errorf("non-object schema should not validate: %v", err)
	}
}
