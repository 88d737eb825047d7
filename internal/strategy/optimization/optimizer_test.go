package optimization

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
	"sniperBot/internal/strategy"
	"sniperBot/internal/strategy/analytics"
	"sniperBot/internal/strategy/backtesting"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func path(prices ...float64) []backtesting.Tick {
	ticks := make([]backtesting.Tick, len(prices))
	for i, p := range prices {
		ticks[i] = backtesting.Tick{Time: start.Add(time.Duration(i) * time.Second), Price: p}
	}
	return ticks
}

func baseConfig() OptimizerConfig {
	return OptimizerConfig{
		Base: strategy.Config{
			Strategy:     domain.ExitTrailingStop,
			ProfitTarget: 50,
			StopLoss:     -30,
			TrailingGap:  15,
		},
		Backtest:      backtesting.BacktestConfig{BuyAmount: 0.1},
		InitialFunds:  1,
		ScoreFunction: func(m *analytics.PerformanceMetrics) float64 { return m.TotalProfit },
	}
}

func TestOptimizer(t *testing.T) {
	cfg := baseConfig()
	cfg.ParameterRanges = []ParameterRange{{Name: ParamStopLoss, Min: -50, Max: -10, Step: 20}}
	o, err := NewOptimizer(cfg)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}

	paths := map[string][]backtesting.Tick{
		"runner": path(1.0, 1.5, 1.4, 1.3), // Trailing stop at 1.3 for +0.03
		"dumper": path(1.0, 0.8, 0.6),      // -20% then -40%
	}
	results, err := o.Optimize(context.Background(), paths)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	wantOrder := []float64{-50, -10, -30}
	wantProfit := []float64{0.03, 0.01, -0.01}
	for i, r := range results {
		if r.Parameters[ParamStopLoss] != wantOrder[i] {
			t.Errorf("Result %d: expected stop loss %v, got %v", i, wantOrder[i], r.Parameters[ParamStopLoss])
		}
		if math.Abs(r.Metrics.TotalProfit-wantProfit[i]) > 1e-9 {
			t.Errorf("Result %d: expected profit %v, got %v", i, wantProfit[i], r.Metrics.TotalProfit)
		}
		if r.Metrics.Positions != 2 {
			t.Errorf("Result %d: expected 2 positions, got %d", i, r.Metrics.Positions)
		}
	}
}

func TestOptimizerSkipsInvalidCombinations(t *testing.T) {
	cfg := baseConfig()
	cfg.ParameterRanges = []ParameterRange{{Name: ParamStopLoss, Min: -20, Max: 0, Step: 20}}
	o, err := NewOptimizer(cfg)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	results, err := o.Optimize(context.Background(), map[string][]backtesting.Tick{"a": path(1.0, 1.1)})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(results) != 1 || results[0].Parameters[ParamStopLoss] != -20 {
		t.Errorf("Expected only the -20 stop loss, got %+v", results)
	}
}

func TestOptimizerErrors(t *testing.T) {
	tests := []struct {
		name   string
		ranges []ParameterRange
	}{
		{"unknown parameter", []ParameterRange{{Name: "leverage", Min: 1, Max: 2, Step: 1}}},
		{"zero step", []ParameterRange{{Name: ParamTrailingGap, Min: 1, Max: 2}}},
		{"inverted range", []ParameterRange{{Name: ParamTrailingGap, Min: 5, Max: 2, Step: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.ParameterRanges = tt.ranges
			if _, err := NewOptimizer(cfg); !errors.Is(err, ports.ErrConfigurationError) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}

	o, err := NewOptimizer(baseConfig())
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	if _, err := o.Optimize(context.Background(), nil); !errors.Is(err, ports.ErrInvalidRequest) {
		t.Errorf("Expected invalid request without paths, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Optimize(ctx, map[string][]backtesting.Tick{"a": path(1.0, 1.1)}); !errors.Is(err, ports.ErrContextCanceled) {
		t.Errorf("Expected canceled error, got %v", err)
	}
}

func TestGenerateParameterCombinations(t *testing.T) {
	o, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: ParamTrailingGap, Min: 0.1, Max: 0.3, Step: 0.1},
			{Name: ParamMaxHold, Min: 10, Max: 20, Step: 10},
		},
	})
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	combos := o.generateParameterCombinations()
	if len(combos) != 6 {
		t.Fatalf("Expected 6 combinations, got %d", len(combos))
	}
	if combos[2][ParamTrailingGap] != 0.2 || combos[5][ParamTrailingGap] != 0.3 {
		t.Errorf("Unexpected gap values: %v, %v", combos[2], combos[5])
	}

	cfg := apply(strategy.Config{}, combos[5])
	if cfg.TrailingGap != 0.3 || cfg.MaxHold != 20*time.Minute {
		t.Errorf("Unexpected applied config: %+v", cfg)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    ParameterRange
		wantErr bool
	}{
		{"stop_loss=-40:-10:10", ParameterRange{Name: ParamStopLoss, Min: -40, Max: -10, Step: 10}, false},
		{" trailing_gap = 5 : 25 : 5 ", ParameterRange{Name: ParamTrailingGap, Min: 5, Max: 25, Step: 5}, false},
		{"stop_loss", ParameterRange{}, true},
		{"stop_loss=1:2", ParameterRange{}, true},
		{"stop_loss=a:2:1", ParameterRange{}, true},
	}
	for _, tt := range tests {
		got, err := ParseRange(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRange(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
