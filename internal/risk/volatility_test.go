package risk

import (
	"context"
	"fmt"
	"math"
	"testing"
)

// swings returns n prices alternating around 1 by the given amplitude, so the
// coefficient of variation equals amp.
func swings(n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 - amp
		if i%2 == 1 {
			out[i] = 1 + amp
		}
	}
	return out
}

func TestVolatilityFactor(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"too few prices", swings(10, 0.5), 1},
		{"calm", swings(12, 0.02), 1},
		{"mild", swings(12, 0.07), 0.9},
		{"elevated", swings(12, 0.12), 0.75},
		{"wild", swings(12, 0.3), 0.5},
		{"old swings fall out of the window", append(swings(10, 0.5), swings(20, 0.02)...), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VolatilityFactor(tt.prices); got != tt.want {
				t.Errorf("Expected factor %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRiskManager_SizeForVolatility(t *testing.T) {
	ctx := context.Background()
	manager := NewRiskManager(RiskConfig{VolatilitySizing: true})
	for _, p := range swings(12, 0.3) {
		manager.ObservePrice("WILD", p)
	}
	manager.ObservePrice("WILD", 0) // Ignored

	if got := manager.SizeForVolatility(ctx, "WILD", 0.2); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("Expected volatile token sized to 0.1, got %v", got)
	}
	if got := manager.SizeForVolatility(ctx, "UNSEEN", 0.2); got != 0.2 {
		t.Errorf("Expected unseen token unchanged, got %v", got)
	}

	off := NewRiskManager(RiskConfig{})
	for _, p := range swings(12, 0.3) {
		off.ObservePrice("WILD", p)
	}
	if got := off.SizeForVolatility(ctx, "WILD", 0.2); got != 0.2 {
		t.Errorf("Expected size unchanged with sizing off, got %v", got)
	}
}

func TestRiskManager_ObservePriceBounded(t *testing.T) {
	manager := NewRiskManager(RiskConfig{VolatilitySizing: true})
	for i := 0; i < 30; i++ {
		manager.ObservePrice("TOKEN", 1)
	}
	if n := len(manager.prices["TOKEN"]); n != volatilityWindow {
		t.Errorf("Expected %d prices kept, got %d", volatilityWindow, n)
	}

	for i := 0; i < maxTrackedTokens; i++ {
		manager.ObservePrice(fmt.Sprintf("T%d", i), 1)
	}
	if _, ok := manager.prices["TOKEN"]; ok {
		t.Error("Expected the oldest token to be evicted")
	}
	if len(manager.prices) != maxTrackedTokens || len(manager.tracked) != maxTrackedTokens {
		t.Errorf("Expected %d tracked tokens, got %d/%d", maxTrackedTokens, len(manager.prices), len(manager.tracked))
	}
}
