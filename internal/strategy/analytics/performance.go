package analytics

import (
	"math"
	"sort"
	"time"

	"sniperBot/internal/domain"
)

// PerformanceMetrics holds realized performance over a trade history.
// Each sell counts as one trade; buys supply entry times and volume.
type PerformanceMetrics struct {
	// Basic Metrics
	Positions          int // Distinct positions opened
	TotalTrades        int // Sells, partial or full
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	GrossProfit        float64
	GrossLoss          float64
	MaxDrawdown        float64
	ProfitFactor       float64
	AverageWin         float64
	AverageLoss        float64
	FinalBalance       float64
	ReturnOnInvestment float64
	VolumeBase         float64 // Base units spent on buys
	VolumeUSD          float64

	// Advanced Metrics
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageHoldTime      time.Duration
	Expectancy           float64
	RiskRewardRatio      float64
	AverageMaxROI        float64
	ExitReasons          map[domain.ExitReason]int
	MonthlyReturns       map[string]float64
	Drawdowns            []Drawdown
	EquityCurve          []EquityPoint
}

// Drawdown represents a drawdown period
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue float64
	EndValue   float64
	Depth      float64
	Duration   time.Duration
}

// EquityPoint represents a point on the equity curve
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// AnalyzePerformance calculates performance metrics from trades. maxROI maps
// position IDs to the highest ROI each position reached and may be nil.
func AnalyzePerformance(trades []*domain.Trade, initialBalance float64, maxROI map[string]float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		ExitReasons:    make(map[domain.ExitReason]int),
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}

	sorted := make([]*domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t != nil {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExecutedAt.Before(sorted[j].ExecutedAt)
	})

	entries := make(map[string]time.Time)
	var currentBalance = initialBalance
	var peakBalance = initialBalance
	var currentDrawdown *Drawdown
	var consecutiveWins, consecutiveLosses int
	var holdTotal time.Duration
	var holdCount int
	var lastSell time.Time

	for _, trade := range sorted {
		if trade.Side == domain.Buy {
			metrics.Positions++
			metrics.VolumeBase += trade.BaseAmount
			metrics.VolumeUSD += trade.USDValue
			entries[trade.PositionID] = trade.ExecutedAt
			continue
		}

		metrics.TotalTrades++
		metrics.ExitReasons[trade.Reason]++
		if trade.PNL > 0 {
			metrics.WinningTrades++
			metrics.GrossProfit += trade.PNL
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			metrics.LosingTrades++
			metrics.GrossLoss -= trade.PNL
			consecutiveLosses++
			consecutiveWins = 0
		}
		metrics.MaxConsecutiveWins = max(metrics.MaxConsecutiveWins, consecutiveWins)
		metrics.MaxConsecutiveLosses = max(metrics.MaxConsecutiveLosses, consecutiveLosses)

		if entry, ok := entries[trade.PositionID]; ok {
			holdTotal += trade.ExecutedAt.Sub(entry)
			holdCount++
		}

		// Update balance and equity curve
		currentBalance += trade.PNL
		metrics.TotalProfit += trade.PNL
		metrics.FinalBalance = currentBalance
		metrics.MonthlyReturns[trade.ExecutedAt.Format("2006-01")] += trade.PNL
		lastSell = trade.ExecutedAt

		// Update drawdown tracking
		if currentBalance > peakBalance {
			peakBalance = currentBalance
			if currentDrawdown != nil {
				currentDrawdown.EndTime = trade.ExecutedAt
				currentDrawdown.EndValue = currentBalance
				currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
				metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
				currentDrawdown = nil
			}
		} else if peakBalance > currentBalance {
			drawdown := depth(peakBalance, currentBalance)
			if currentDrawdown == nil {
				currentDrawdown = &Drawdown{
					StartTime:  trade.ExecutedAt,
					StartValue: peakBalance,
					Depth:      drawdown,
				}
			} else {
				currentDrawdown.Depth = math.Max(currentDrawdown.Depth, drawdown)
			}
			metrics.MaxDrawdown = math.Max(metrics.MaxDrawdown, drawdown)
		}

		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     trade.ExecutedAt,
			Value:    currentBalance,
			Drawdown: depth(peakBalance, currentBalance),
		})
	}

	// Close any open drawdown
	if currentDrawdown != nil {
		currentDrawdown.EndTime = lastSell
		currentDrawdown.EndValue = currentBalance
		currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
	}

	if len(maxROI) > 0 {
		var sum float64
		for _, roi := range maxROI {
			sum += roi
		}
		metrics.AverageMaxROI = sum / float64(len(maxROI))
	}

	if metrics.TotalTrades == 0 {
		return metrics
	}

	// Calculate final metrics
	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = metrics.GrossProfit / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = -metrics.GrossLoss / float64(metrics.LosingTrades)
	}
	if metrics.GrossLoss > 0 {
		metrics.ProfitFactor = metrics.GrossProfit / metrics.GrossLoss
	}
	if metrics.AverageLoss != 0 {
		metrics.RiskRewardRatio = metrics.AverageWin / -metrics.AverageLoss
	}
	if initialBalance > 0 {
		metrics.ReturnOnInvestment = (metrics.FinalBalance - initialBalance) / initialBalance
	}
	if holdCount > 0 {
		metrics.AverageHoldTime = holdTotal / time.Duration(holdCount)
	}
	metrics.Expectancy = (metrics.WinRate * metrics.AverageWin) + ((1 - metrics.WinRate) * metrics.AverageLoss)

	return metrics
}

// depth is the fractional drop from peak to value.
func depth(peak, value float64) float64 {
	if peak <= 0 {
		return 0
	}
	return (peak - value) / peak
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}
