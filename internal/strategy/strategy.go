package strategy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sniperBot/internal/domain"
)

// TakeProfitLevel is one rung of the multi-level take profit ladder.
type TakeProfitLevel struct {
	SellPercent    float64 // Percent of the original position sold at this rung
	TriggerPercent float64 // Profit percent that triggers the rung
}

// Config holds the exit rules.
type Config struct {
	Strategy     domain.ExitStrategy
	ProfitTarget float64 // Percent, FULL_TP only
	StopLoss     float64 // Percent, negative
	TrailingGap  float64 // Percent below the high-water ROI
	MaxHold      time.Duration
	MultiTP      bool
	Levels       []TakeProfitLevel
	VolumeExit   bool
}

// Evaluator maps a position snapshot to an exit decision.
// It holds no mutable state; all trailing stop state lives on the position.
type Evaluator struct {
	cfg        Config
	cumulative []float64
}

// New validates cfg and returns an Evaluator.
func New(cfg Config) (*Evaluator, error) {
	if cfg.Strategy != domain.ExitFullTakeProfit && cfg.Strategy != domain.ExitTrailingStop {
		return nil, fmt.Errorf("unknown exit strategy %q", cfg.Strategy)
	}
	if cfg.StopLoss >= 0 {
		return nil, fmt.Errorf("stop loss must be negative, got %v", cfg.StopLoss)
	}
	if cfg.Strategy == domain.ExitFullTakeProfit && cfg.ProfitTarget <= 0 {
		return nil, fmt.Errorf("profit target must be positive, got %v", cfg.ProfitTarget)
	}
	if cfg.Strategy == domain.ExitTrailingStop && cfg.TrailingGap <= 0 {
		return nil, fmt.Errorf("trailing gap must be positive, got %v", cfg.TrailingGap)
	}

	cumulative := make([]float64, len(cfg.Levels))
	var total, lastTrigger float64
	for i, lvl := range cfg.Levels {
		if lvl.SellPercent <= 0 {
			return nil, fmt.Errorf("take profit level %d: sell percent must be positive", i+1)
		}
		if i > 0 && lvl.TriggerPercent <= lastTrigger {
			return nil, fmt.Errorf("take profit level %d: triggers must be strictly increasing", i+1)
		}
		total += lvl.SellPercent
		lastTrigger = lvl.TriggerPercent
		cumulative[i] = total
	}
	if total > 100 {
		return nil, fmt.Errorf("take profit levels sell %.2f%% in total, more than 100%%", total)
	}
	if cfg.MultiTP && len(cfg.Levels) == 0 {
		return nil, fmt.Errorf("multi take profit enabled without levels")
	}
	return &Evaluator{cfg: cfg, cumulative: cumulative}, nil
}

// Config returns the evaluator's configuration.
func (e *Evaluator) Config() Config { return e.cfg }

// Evaluate runs the exit rules in order and returns the first match.
func (e *Evaluator) Evaluate(pos domain.Position, vol domain.VolumeSignal, now time.Time) domain.ExitDecision {
	d := domain.ExitDecision{
		TrailingStopPrice: pos.TrailingStopPrice,
		TrailingStopROI:   pos.TrailingStopROI,
	}
	if pos.BuyPrice <= 0 || pos.SoldPercent >= 100 {
		return d
	}
	if e.cfg.Strategy == domain.ExitTrailingStop {
		d.TrailingStopPrice, d.TrailingStopROI = e.trailingStop(pos)
	}

	change := pos.PercentChange
	remaining := pos.RemainingPercent()

	if e.cfg.MultiTP {
		for i, lvl := range e.cfg.Levels {
			if lvl.TriggerPercent <= change && e.cumulative[i] > pos.SoldPercent {
				return e.sell(d, domain.ExitReasonMultiTakeProfit, e.cumulative[i]-pos.SoldPercent,
					fmt.Sprintf("take profit level %d reached at %.2f%% (trigger %.2f%%)", i+1, change, lvl.TriggerPercent))
			}
		}
	}

	if e.cfg.VolumeExit {
		switch {
		case vol.Spike:
			return e.sell(d, domain.ExitReasonVolumeSpike, remaining,
				fmt.Sprintf("volume spike %.2fx the 5m average", vol.Ratio))
		case vol.DryUp:
			return e.sell(d, domain.ExitReasonVolumeDryUp, remaining,
				fmt.Sprintf("volume dried up: 5m %.4f vs 30m %.4f", vol.Windows.Vol5m, vol.Windows.Vol30m))
		}
	}

	if change <= e.cfg.StopLoss {
		return e.sell(d, domain.ExitReasonStopLoss, remaining,
			fmt.Sprintf("stop loss hit at %.2f%% (limit %.2f%%)", change, e.cfg.StopLoss))
	}

	switch e.cfg.Strategy {
	case domain.ExitTrailingStop:
		if d.TrailingStopPrice > 0 && pos.CurrentPrice < d.TrailingStopPrice {
			return e.sell(d, domain.ExitReasonTrailingStop, remaining,
				fmt.Sprintf("trailing stop hit at exit ROI %.2f%% (high %.2f%%, now %.2f%%)", d.TrailingStopROI, pos.HighROI(), change))
		}
	case domain.ExitFullTakeProfit:
		if change >= e.cfg.ProfitTarget {
			return e.sell(d, domain.ExitReasonTakeProfit, remaining,
				fmt.Sprintf("profit target reached at %.2f%% (target %.2f%%)", change, e.cfg.ProfitTarget))
		}
	}

	if e.cfg.MaxHold > 0 {
		if held := now.Sub(pos.BuyTime); held > e.cfg.MaxHold {
			return e.sell(d, domain.ExitReasonMaxHold, remaining,
				fmt.Sprintf("max hold time exceeded after %s at %.2f%%", held.Round(time.Second), change))
		}
	}
	return d
}

// trailingStop returns the trailing stop for pos. The stop arms once the
// high-water ROI is positive and only ever moves up.
func (e *Evaluator) trailingStop(pos domain.Position) (float64, float64) {
	highROI := pos.HighROI()
	if highROI <= 0 {
		return pos.TrailingStopPrice, pos.TrailingStopROI
	}
	candidate := pos.BuyPrice * (1 + (highROI-e.cfg.TrailingGap)/100)
	stop := math.Max(pos.TrailingStopPrice, candidate)
	if stop <= 0 {
		return pos.TrailingStopPrice, pos.TrailingStopROI
	}
	return stop, domain.ROI(pos.BuyPrice, stop)
}

func (e *Evaluator) sell(d domain.ExitDecision, reason domain.ExitReason, pct float64, msg string) domain.ExitDecision {
	d.ShouldSell = true
	d.Reason = reason
	d.SellPercent = pct
	d.Message = msg
	return d
}

// ParseLevels parses "pct:trigger,pct:trigger" into take profit levels.
func ParseLevels(s string) ([]TakeProfitLevel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var levels []TakeProfitLevel
	for _, part := range strings.Split(s, ",") {
		pct, trigger, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("invalid take profit level %q, want pct:trigger", part)
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sell percent in %q: %w", part, err)
		}
		tr, err := strconv.ParseFloat(strings.TrimSpace(trigger), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid trigger in %q: %w", part, err)
		}
		levels = append(levels, TakeProfitLevel{SellPercent: p, TriggerPercent: tr})
	}
	return levels, nil
}
