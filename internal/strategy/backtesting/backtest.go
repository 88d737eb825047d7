package backtesting

import (
	"context"
	"fmt"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
	"sniperBot/internal/strategy/indicators"
)

// Tick is one observed price for a token, with the volume traded since the
// previous tick when known.
type Tick struct {
	Time   time.Time
	Price  float64 // Base units per token
	Volume float64
}

// BacktestConfig holds configuration for a replay
type BacktestConfig struct {
	TokenID    string
	BuyAmount  float64 // Base units spent at the first tick
	FeePerSell float64 // Base units charged on every sell
	// Volume enables volume signals from tick volumes when non-nil.
	Volume *indicators.VolumeConfig
}

// BacktestResult holds the outcome of replaying one price path
type BacktestResult struct {
	Trades        []*domain.Trade // Buy first, then sells in order
	Position      domain.Position // State after the last processed tick
	Closed        bool
	TotalProfit   float64 // Realized, base units
	UnrealizedPNL float64 // Remaining holding marked at the last price
	MaxROI        float64
	MinROI        float64
	Ticks         int
}

// Backtest buys at the first tick and feeds every later tick through the
// exit evaluator the same way the live poller does, applying each sell
// decision at the tick price until the position is fully sold or the path ends.
func Backtest(ctx context.Context, evaluator ports.ExitEvaluator, ticks []Tick, config BacktestConfig) (*BacktestResult, error) {
	if len(ticks) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 ticks, got %d", ports.ErrInvalidRequest, len(ticks))
	}
	if config.BuyAmount <= 0 {
		return nil, fmt.Errorf("%w: buy amount must be positive", ports.ErrInvalidRequest)
	}
	entry := ticks[0]
	if entry.Price <= 0 {
		return nil, fmt.Errorf("%w: entry price must be positive", ports.ErrInvalidRequest)
	}

	token := config.TokenID
	if token == "" {
		token = "backtest"
	}
	id := fmt.Sprintf("bt-%s-%d", token, entry.Time.Unix())
	pos := domain.NewPosition(id, token, entry.Price, config.BuyAmount, 0, domain.BaseDecimals, entry.Time)
	pos.Source = "backtest"

	var volume *indicators.VolumeMonitor
	if config.Volume != nil {
		volume = indicators.NewVolumeMonitor(*config.Volume)
	}

	result := &BacktestResult{
		Trades: []*domain.Trade{{
			ID:         id + "-buy",
			PositionID: id,
			TokenID:    token,
			Side:       domain.Buy,
			BaseAmount: config.BuyAmount,
			Price:      entry.Price,
			Source:     pos.Source,
			Paper:      true,
			ExecutedAt: entry.Time,
		}},
	}

	for i, tick := range ticks[1:] {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
		}
		if tick.Price <= 0 {
			continue // Failed probe, the poller skips these too
		}
		result.Ticks++
		pos.ObservePrice(tick.Price, tick.Time)

		var signal domain.VolumeSignal
		if volume != nil && tick.Volume > 0 {
			volume.Record(token, tick.Volume, tick.Time)
			signal = volume.Check(token, tick.Time)
		}

		decision := evaluator.Evaluate(pos, signal, tick.Time)
		pos.TrailingStopPrice = decision.TrailingStopPrice
		pos.TrailingStopROI = decision.TrailingStopROI
		if !decision.ShouldSell {
			continue
		}

		pct := min(decision.SellPercent, pos.RemainingPercent())
		if pct <= 0 {
			continue
		}
		cost := config.BuyAmount * pct / 100
		proceeds := cost*tick.Price/entry.Price - config.FeePerSell
		pnl := proceeds - cost
		result.TotalProfit += pnl
		result.Trades = append(result.Trades, &domain.Trade{
			ID:            fmt.Sprintf("%s-sell-%d", id, i+1),
			PositionID:    id,
			TokenID:       token,
			Side:          domain.Sell,
			BaseAmount:    proceeds,
			Price:         tick.Price,
			SoldPercent:   pct,
			ProfitPercent: pos.PercentChange,
			PNL:           pnl,
			Reason:        decision.Reason,
			Source:        pos.Source,
			Paper:         true,
			ExecutedAt:    tick.Time,
		})
		pos.AddSold(pct)
		if pos.SoldPercent >= 100 {
			pos.Status = domain.StatusClosed
			result.Closed = true
			break
		}
	}

	if !result.Closed {
		held := config.BuyAmount * pos.RemainingPercent() / 100
		result.UnrealizedPNL = held*pos.CurrentPrice/entry.Price - held
	}
	result.Position = pos
	result.MaxROI = pos.HighROI()
	result.MinROI = domain.ROI(entry.Price, pos.LowPrice)
	return result, nil
}
