package turn

import (
	"context"
	"errors"
	"testing"
)

func TestGate_PrivacyMode_LocalOnly(t *testing.T) {
	local := textClient("ollama", "hi")
	g := NewGate(textClient("openai", "cloud"), local, nil)
	route, err := g.Resolve(context.Background(), true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.Primary != local {
		t.Error("privacy route should use local backend")
	}
	if route.Secondary != nil {
		t.Error("privacy route must not carry a cloud secondary")
	}
	if route.AllowNetwork {
		t.Error("privacy route must disallow network")
	}
}

func TestGate_PrivacyMode_NoLocal(t *testing.T) {
	g := NewGate(textClient("openai", "cloud"), nil, nil)
	_, err := g.Resolve(context.Background(), true)
	if !errors.Is(err, ErrPrivacyMisconfiguration) {
		t.Errorf("expected ErrPrivacyMisconfiguration, got %v", err)
	}
}

func TestGate_PrivacyMode_PingFails(t *testing.T) {
	local := textClient("ollama", "hi")
	local.pingErr = errors.New("connection refused")
	g := NewGate(nil, local, nil)
	_, err := g.Resolve(context.Background(), true)
	if !errors.Is(err, ErrPrivacyMisconfiguration) {
		t.Errorf("expected ErrPrivacyMisconfiguration when local unreachable, got %v", err)
	}
}

func TestGate_NormalMode(t *testing.T) {
	cloud := textClient("openai", "cloud")
	local := textClient("ollama", "local")
	g := NewGate(cloud, local, nil)
	route, err := g.Resolve(context.Background(), false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.Primary != cloud || route.Secondary != local {
		t.Error("normal route should be cloud primary, local secondary")
	}
	if !route.AllowNetwork {
		t.Error("normal route should allow network")
	}
}

func TestGate_NormalMode_LocalOnlyDeployment(t *testing.T) {
	local := textClient("ollama", "local")
	g := NewGate(nil, local, nil)
	route, err := g.Resolve(context.Background(), false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.Primary != local || route.Secondary != nil {
		t.Error("should degrade to local primary without secondary")
	}
	// 没配云端不等于隐私模式，出网能力照常
	if !route.AllowNetwork {
		t.Error("local-only deployment should still allow network")
	}
}

func TestGate_NoProviders(t *testing.T) {
	g := NewGate(nil, nil, nil)
	if _, err := g.Resolve(context.Background(), false); err == nil {
		t.Error("expected error with no providers configured")
	}
}
