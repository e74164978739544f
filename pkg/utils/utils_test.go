package utils

import (
	"testing"
	"time"
)

func TestCoalesceString(t *testing.T) {
	if got := CoalesceString("", "", "x", "y"); got != "x" {
		t.Errorf("CoalesceString = %q", got)
	}
	if got := CoalesceString(); got != "" {
		t.Errorf("CoalesceString() = %q", got)
	}
}

func TestDefaults(t *testing.T) {
	if DefaultInt(0, 7) != 7 || DefaultInt(3, 7) != 3 {
		t.Error("DefaultInt")
	}
	if DefaultFloat(0, 0.5) != 0.5 || DefaultFloat(0.3, 0.5) != 0.3 {
		t.Error("DefaultFloat")
	}
	if DefaultDuration(0, time.Minute) != time.Minute {
		t.Error("DefaultDuration")
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("30m", time.Hour); got != 30*time.Minute {
		t.Errorf("ParseDuration(30m) = %v", got)
	}
	if got := ParseDuration("", time.Hour); got != time.Hour {
		t.Errorf("empty should default, got %v", got)
	}
	if got := ParseDuration("banana", time.Hour); got != time.Hour {
		t.Errorf("invalid should default, got %v", got)
	}
	if got := ParseDuration("-5m", time.Hour); got != time.Hour {
		t.Errorf("negative should default, got %v", got)
	}
}
