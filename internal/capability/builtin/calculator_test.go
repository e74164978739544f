package builtin

import (
	"context"
	"testing"
)

func TestCalculator_Execute(t *testing.T) {
	c := NewCalculatorCapability()
	cases := []struct {
		expr string
		want string
	}{
		{"1+2", "3"},
		{"2*3+4", "10"},
		{"2+3*4", "14"},
		{"(2+3)*4", "20"},
		{"10/4", "2.5"},
		{"-3+5", "2"},
		{" 1 + 2 * ( 3 - 1 ) ", "5"},
	}
	for _, tc := range cases {
		out, err := c.Execute(context.Background(), map[string]any{"expression": tc.expr})
		if err != nil {
			t.Errorf("Execute(%q): %v", tc.expr, err)
			continue
		}
		if out != tc.want {
			t.Errorf("Execute(%q) = %q, want %q", tc.expr, out, tc.want)
		}
	}
}

func TestCalculator_Execute_Errors(t *testing.T) {
	c := NewCalculatorCapability()
	for _, expr := range []string{"", "1/0", "(1+2", "1+", "abc"} {
		if _, err := c.Execute(context.Background(), map[string]any{"expression": expr}); err == nil {
			t.Errorf("Execute(%q) should fail", expr)
		}
	}
}

func TestCalculator_Metadata(t *testing.T) {
	c := NewCalculatorCapability()
	if c.Name() != "calculator" {
		t.Errorf("Name: %s", c.Name())
	}
	if c.RequiresNetwork() {
		t.Error("calculator should not require network")
	}
	schema := c.Schema()
	if schema["type"] != "object" {
		t.Errorf("schema type: %v", schema["type"])
	}
}
