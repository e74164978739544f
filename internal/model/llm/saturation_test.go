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
	"testing"
)

func TestIsSaturation_TypeMatch(t *testing.T) {
	err := &SaturationError{Provider: "openai", StatusCode: 429, Msg: "slow down"}
	if !IsSaturation(err) {
		t.Error("SaturationError should be saturation")
	}
	wrapped := fmt.Errorf("chat failed: %w", err)
	if !IsSaturation(wrapped) {
		t.Error("wrapped SaturationError should be saturation")
	}
}

func TestIsSaturation_Signatures(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"Rate limit reached for gpt-4o-mini", true},
		{"error: insufficient_quota", true},
		{"Overloaded", true},
		{"too many requests, retry later", true},
		{"Resource has been exhausted (e.g. check quota)", true},
		{"invalid api key", false},
		{"model not found", false},
		{"context deadline exceeded", false},
	}
	for _, c := range cases {
		if got := IsSaturation(errors.New(c.msg)); got != c.want {
			t.Errorf("IsSaturation(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
	if IsSaturation(nil) {
		t.Error("nil error should not be saturation")
	}
}

func TestRegisterSaturationSignature(t *testing.T) {
	err := errors.New("backend melting down")
	if IsSaturation(err) {
		t.Fatal("unexpected match before registration")
	}
	RegisterSaturationSignature("Melting Down")
	if !IsSaturation(err) {
		t.Error("registered signature should match case-insensitively")
	}
	// 空串和重复注册都应是 no-op
	RegisterSaturationSignature("")
	RegisterSaturationSignature("melting down")
}

func TestSaturationOrStatusError(t *testing.T) {
	err := saturationOrStatusError("openai", 429, "rate limited")
	var se *SaturationError
	if !errors.As(err, &se) {
		t.Fatalf("status 429 should produce SaturationError, got %T", err)
	}
	if se.Provider != "openai" || se.StatusCode != 429 {
		t.Errorf("SaturationError fields: %+v", se)
	}

	err = saturationOrStatusError("claude", 529, "overloaded_error")
	if !errors.As(err, &se) {
		t.Errorf("status 529 should produce SaturationError, got %T", err)
	}

	err = saturationOrStatusError("openai", 400, "bad request")
	if errors.As(err, &se) {
		t.Errorf("status 400 should not produce SaturationError")
	}
}

func TestChatResult_Helpers(t *testing.T) {
	var nilResult *ChatResult
	if nilResult.HasToolCalls() || nilResult.TotalTokens() != 0 {
		t.Error("nil ChatResult helpers should be zero values")
	}
	r := &ChatResult{
		ToolCalls:    []ToolCall{{Name: "calculator"}},
		InputTokens:  12,
		OutputTokens: 34,
	}
	if !r.HasToolCalls() {
		t.Error("HasToolCalls should be true")
	}
	if r.TotalTokens() != 46 {
		t.Errorf("TotalTokens = %d, want 46", r.TotalTokens())
	}
}
