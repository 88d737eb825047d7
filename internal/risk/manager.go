package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"sniperBot/internal/ports"
)

// RiskConfig holds configuration for risk management
type RiskConfig struct {
	MaxBuyAmount        float64 // Base units per buy, 0 disables
	MaxOpenPositions    int     // 0 disables
	MaxDailyTrades      int     // 0 disables
	MaxDailyLoss        float64 // Realized base units lost per day, 0 disables
	PositionSizePercent float64 // Max share of the base balance per buy, 0 disables
	FeeReserve          float64 // Base units kept aside for network fees
	VolatilitySizing    bool    // Shrink buys of tokens with volatile recent prices
}

// RiskManager gates new positions and tracks daily statistics
type RiskManager struct {
	mu      sync.Mutex
	config  RiskConfig
	stats   RiskStats
	now     func() time.Time
	prices  map[string][]float64 // Recent observed prices per token
	tracked []string             // Tokens in prices, oldest first
}

// RiskStats holds risk management statistics
type RiskStats struct {
	DailyPnL      float64
	OpenPositions int
	DailyTrades   int
	LastResetTime int64
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) *RiskManager {
	r := &RiskManager{config: config, now: time.Now, prices: make(map[string][]float64)}
	r.stats.LastResetTime = r.now().Unix()
	return r
}

// ValidateIntent checks whether a buy of amount base units may be opened
// given the current base balance.
func (r *RiskManager) ValidateIntent(ctx context.Context, amount, balance float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDay()

	if amount <= 0 {
		return fmt.Errorf("%w: buy amount must be positive", ports.ErrInvalidRequest)
	}
	if r.config.MaxBuyAmount > 0 && amount > r.config.MaxBuyAmount {
		return fmt.Errorf("%w: buy amount %f exceeds maximum allowed %f", ports.ErrRiskLimit, amount, r.config.MaxBuyAmount)
	}
	if r.config.MaxOpenPositions > 0 && r.stats.OpenPositions >= r.config.MaxOpenPositions {
		return fmt.Errorf("%w: open positions %d reached maximum allowed %d", ports.ErrRiskLimit, r.stats.OpenPositions, r.config.MaxOpenPositions)
	}
	if r.config.MaxDailyTrades > 0 && r.stats.DailyTrades >= r.config.MaxDailyTrades {
		return fmt.Errorf("%w: daily trades %d reached maximum allowed %d", ports.ErrRiskLimit, r.stats.DailyTrades, r.config.MaxDailyTrades)
	}
	if r.config.MaxDailyLoss > 0 && r.stats.DailyPnL <= -r.config.MaxDailyLoss {
		return fmt.Errorf("%w: daily loss %f exceeds maximum allowed %f", ports.ErrRiskLimit, -r.stats.DailyPnL, r.config.MaxDailyLoss)
	}
	if amount+r.config.FeeReserve > balance {
		return fmt.Errorf("%w: need %f plus %f reserve, have %f", ports.ErrInsufficientFunds, amount, r.config.FeeReserve, balance)
	}
	return nil
}

// GetPositionSize caps the requested buy by the configured maximum and the
// allowed share of the balance.
func (r *RiskManager) GetPositionSize(ctx context.Context, requested, balance float64) float64 {
	size := requested
	if r.config.PositionSizePercent > 0 {
		size = math.Min(size, balance*r.config.PositionSizePercent/100)
	}
	if r.config.MaxBuyAmount > 0 {
		size = math.Min(size, r.config.MaxBuyAmount)
	}
	return math.Max(size, 0)
}

// RecordBuy counts a newly opened position
func (r *RiskManager) RecordBuy(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDay()
	r.stats.OpenPositions++
	r.stats.DailyTrades++
}

// RecordSell adds realized PnL from a (partial) sell; closed marks the
// position as fully exited.
func (r *RiskManager) RecordSell(ctx context.Context, pnl float64, closed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDay()
	r.stats.DailyPnL += pnl
	if closed && r.stats.OpenPositions > 0 {
		r.stats.OpenPositions--
	}
}

// SeedDailyTrades sets the daily trade count, e.g. from persisted history.
func (r *RiskManager) SeedDailyTrades(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.DailyTrades = n
}

// ResetDailyStats resets daily statistics
func (r *RiskManager) ResetDailyStats(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetDaily()
}

// GetStats returns a copy of the current statistics
func (r *RiskManager) GetStats() RiskStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *RiskManager) rollDay() {
	last := time.Unix(r.stats.LastResetTime, 0).In(time.Local)
	now := r.now().In(time.Local)
	if now.YearDay() != last.YearDay() || now.Year() != last.Year() {
		r.resetDaily()
	}
}

func (r *RiskManager) resetDaily() {
	r.stats.DailyPnL = 0
	r.stats.DailyTrades = 0
	r.stats.LastResetTime = r.now().Unix()
}
