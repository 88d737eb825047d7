package risk

import (
	"context"

	"sniperBot/internal/strategy/indicators"
)

const (
	volatilityWindow    = 20
	volatilityMinPoints = 11
	maxTrackedTokens    = 512
)

var volatility = indicators.NewVolatility(volatilityWindow, volatilityMinPoints)

// VolatilityFactor maps the coefficient of variation of recent prices to a
// buy size multiplier. Fewer than 11 prices leave the size unchanged.
func VolatilityFactor(prices []float64) float64 {
	cv, err := volatility.Calculate(prices)
	if err != nil {
		return 1
	}
	switch {
	case cv > 0.15:
		return 0.5
	case cv > 0.10:
		return 0.75
	case cv > 0.05:
		return 0.9
	default:
		return 1
	}
}

// ObservePrice remembers a price seen for token. Only the last 20 prices of
// the most recently seen tokens are kept.
func (r *RiskManager) ObservePrice(token string, price float64) {
	if price <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	series, ok := r.prices[token]
	if !ok {
		if len(r.tracked) >= maxTrackedTokens {
			delete(r.prices, r.tracked[0])
			r.tracked = r.tracked[1:]
		}
		r.tracked = append(r.tracked, token)
	}
	series = append(series, price)
	if len(series) > volatilityWindow {
		series = series[len(series)-volatilityWindow:]
	}
	r.prices[token] = series
}

// SizeForVolatility scales size down for tokens whose observed prices are
// volatile. It returns size unchanged when volatility sizing is off.
func (r *RiskManager) SizeForVolatility(ctx context.Context, token string, size float64) float64 {
	if !r.config.VolatilitySizing {
		return size
	}
	r.mu.Lock()
	prices := append([]float64(nil), r.prices[token]...)
	r.mu.Unlock()
	return size * VolatilityFactor(prices)
}
