package embedding

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		a, b []float64
		want float64
	}{
		{[]float64{1, 0}, []float64{1, 0}, 1},
		{[]float64{1, 0}, []float64{0, 1}, 0},
		{[]float64{1, 0}, []float64{-1, 0}, -1},
		{[]float64{1, 2, 3}, []float64{1, 2}, 0},  // 维度不一致
		{[]float64{0, 0}, []float64{1, 1}, 0},     // 零向量
		{nil, nil, 0},
	}
	for _, c := range cases {
		if got := Cosine(c.a, c.b); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Cosine(%v, %v) = %f, want %f", c.a, c.b, got, c.want)
		}
	}
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder("none", "", "", "", 0)
	if err != nil || e != nil {
		t.Errorf("none provider: %v, %v", e, err)
	}
	e, err = NewEmbedder("", "", "", "", 0)
	if err != nil || e != nil {
		t.Errorf("empty provider: %v, %v", e, err)
	}
	if _, err = NewEmbedder("bogus", "", "", "", 0); err == nil {
		t.Error("unknown provider should error")
	}
	e, err = NewEmbedder("openai", "", "key", "", 0)
	if err != nil || e == nil {
		t.Fatalf("openai embedder: %v", err)
	}
	if e.Model() == "" || e.Dimension() <= 0 {
		t.Errorf("defaults not applied: model=%s dim=%d", e.Model(), e.Dimension())
	}
}
