package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"sniperBot/internal/ports"
)

func TestRiskManager(t *testing.T) {
	// Create risk manager configuration
	config := RiskConfig{
		MaxBuyAmount:        0.5,
		MaxOpenPositions:    2,
		MaxDailyTrades:      3,
		MaxDailyLoss:        0.2,
		PositionSizePercent: 5,
		FeeReserve:          0.01,
	}

	manager := NewRiskManager(config)
	ctx := context.Background()

	// Valid intent
	if err := manager.ValidateIntent(ctx, 0.05, 10); err != nil {
		t.Errorf("Expected no error for valid intent, got %v", err)
	}

	// Buy amount limit
	err := manager.ValidateIntent(ctx, 0.6, 10)
	if !errors.Is(err, ports.ErrRiskLimit) {
		t.Errorf("Expected risk limit error for large buy, got %v", err)
	}

	// Balance check includes the fee reserve
	err = manager.ValidateIntent(ctx, 0.05, 0.055)
	if !errors.Is(err, ports.ErrInsufficientFunds) {
		t.Errorf("Expected insufficient funds error, got %v", err)
	}

	// Open position limit
	manager.RecordBuy(ctx)
	manager.RecordBuy(ctx)
	err = manager.ValidateIntent(ctx, 0.05, 10)
	if !errors.Is(err, ports.ErrRiskLimit) {
		t.Errorf("Expected risk limit error for open positions, got %v", err)
	}

	// Closing one frees a slot, daily trades still counted
	manager.RecordSell(ctx, 0.01, true)
	if err := manager.ValidateIntent(ctx, 0.05, 10); err != nil {
		t.Errorf("Expected no error after close, got %v", err)
	}
	stats := manager.GetStats()
	if stats.OpenPositions != 1 || stats.DailyTrades != 2 {
		t.Errorf("Unexpected stats after close: %+v", stats)
	}

	// Daily trade limit
	manager.RecordBuy(ctx)
	err = manager.ValidateIntent(ctx, 0.05, 10)
	if !errors.Is(err, ports.ErrRiskLimit) {
		t.Errorf("Expected risk limit error for daily trades, got %v", err)
	}

	// Reset daily stats
	manager.ResetDailyStats(ctx)
	stats = manager.GetStats()
	if stats.DailyTrades != 0 || stats.DailyPnL != 0 {
		t.Errorf("Expected daily stats to be reset, got %+v", stats)
	}
}

func TestRiskManager_DailyLoss(t *testing.T) {
	manager := NewRiskManager(RiskConfig{MaxDailyLoss: 0.1})
	ctx := context.Background()

	manager.RecordBuy(ctx)
	manager.RecordSell(ctx, -0.04, false)
	if err := manager.ValidateIntent(ctx, 0.05, 1); err != nil {
		t.Errorf("Expected no error below loss limit, got %v", err)
	}

	manager.RecordSell(ctx, -0.07, true)
	if err := manager.ValidateIntent(ctx, 0.05, 1); !errors.Is(err, ports.ErrRiskLimit) {
		t.Errorf("Expected risk limit error after daily loss, got %v", err)
	}
}

func TestRiskManager_RollsOverAtMidnight(t *testing.T) {
	now := time.Date(2026, 5, 1, 23, 59, 0, 0, time.Local)
	manager := NewRiskManager(RiskConfig{MaxDailyTrades: 1})
	manager.now = func() time.Time { return now }
	manager.ResetDailyStats(context.Background())

	manager.RecordBuy(context.Background())
	if err := manager.ValidateIntent(context.Background(), 0.05, 1); err == nil {
		t.Error("Expected daily trade limit before midnight")
	}

	now = now.Add(2 * time.Minute)
	if err := manager.ValidateIntent(context.Background(), 0.05, 1); err != nil {
		t.Errorf("Expected limits to reset after midnight, got %v", err)
	}
}

func TestGetPositionSize(t *testing.T) {
	tests := []struct {
		name      string
		config    RiskConfig
		requested float64
		balance   float64
		expected  float64
	}{
		{"requested fits", RiskConfig{PositionSizePercent: 5, MaxBuyAmount: 1}, 0.05, 10, 0.05},
		{"capped by balance percent", RiskConfig{PositionSizePercent: 5}, 1, 10, 0.5},
		{"capped by max buy", RiskConfig{MaxBuyAmount: 0.2}, 1, 100, 0.2},
		{"no caps", RiskConfig{}, 0.3, 0.1, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := NewRiskManager(tt.config).GetPositionSize(context.Background(), tt.requested, tt.balance)
			if size != tt.expected {
				t.Errorf("Expected position size %f, got %f", tt.expected, size)
			}
		})
	}
}
