package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
	"sniperBot/internal/strategy"
	"sniperBot/internal/strategy/analytics"
	"sniperBot/internal/strategy/backtesting"
)

// Parameter names accepted in ParameterRange.Name.
const (
	ParamStopLoss     = "stop_loss"
	ParamTrailingGap  = "trailing_gap"
	ParamProfitTarget = "profit_target"
	ParamMaxHold      = "max_hold_minutes"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name string
	Min  float64
	Max  float64
	Step float64
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters map[string]float64
	Metrics    *analytics.PerformanceMetrics
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	Base            strategy.Config // Parameters not under optimization
	ParameterRanges []ParameterRange
	Backtest        backtesting.BacktestConfig // TokenID is set per path
	InitialFunds    float64
	Concurrency     int
	ScoreFunction   func(*analytics.PerformanceMetrics) float64
}

// Optimizer implements exit parameter optimization
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) (*Optimizer, error) {
	for _, r := range config.ParameterRanges {
		switch r.Name {
		case ParamStopLoss, ParamTrailingGap, ParamProfitTarget, ParamMaxHold:
		default:
			return nil, fmt.Errorf("%w: unknown parameter %q", ports.ErrConfigurationError, r.Name)
		}
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("%w: invalid range for %s", ports.ErrConfigurationError, r.Name)
		}
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	return &Optimizer{config: config}, nil
}

// Optimize replays every price path under each parameter combination and
// returns the results best score first. Combinations the exit strategy
// rejects, such as a non-negative stop loss, are left out.
func (o *Optimizer) Optimize(ctx context.Context, paths map[string][]backtesting.Tick) ([]OptimizationResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no price paths", ports.ErrInvalidRequest)
	}
	tokens := make([]string, 0, len(paths))
	for token := range paths {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	combinations := o.generateParameterCombinations()
	slots := make([]*OptimizationResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)
	for i, params := range combinations {
		g.Go(func() error {
			evaluator, err := strategy.New(apply(o.config.Base, params))
			if err != nil {
				return nil // Not a valid exit configuration
			}

			var trades []*domain.Trade
			maxROI := make(map[string]float64, len(tokens))
			for _, token := range tokens {
				btCfg := o.config.Backtest
				btCfg.TokenID = token
				result, err := backtesting.Backtest(gctx, evaluator, paths[token], btCfg)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return err
					}
					continue // Path too short or unusable
				}
				trades = append(trades, result.Trades...)
				maxROI[result.Position.ID] = result.MaxROI
			}

			metrics := analytics.AnalyzePerformance(trades, o.config.InitialFunds, maxROI)
			slots[i] = &OptimizationResult{
				Parameters: params,
				Metrics:    metrics,
				Score:      o.config.ScoreFunction(metrics),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]OptimizationResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	sortResultsByScore(results)
	return results, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	var currentCombination map[string]float64

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(currentCombination))
			for k, v := range currentCombination {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for s := 0; s <= steps; s++ {
			// Rounded to absorb floating point drift in the step sum
			currentCombination[param.Name] = math.Round((param.Min+float64(s)*param.Step)*1e6) / 1e6
			generate(paramIndex + 1)
		}
	}

	currentCombination = make(map[string]float64)
	generate(0)
	return combinations
}

func apply(base strategy.Config, params map[string]float64) strategy.Config {
	cfg := base
	for name, v := range params {
		switch name {
		case ParamStopLoss:
			cfg.StopLoss = v
		case ParamTrailingGap:
			cfg.TrailingGap = v
		case ParamProfitTarget:
			cfg.ProfitTarget = v
		case ParamMaxHold:
			cfg.MaxHold = time.Duration(v * float64(time.Minute))
		}
	}
	return cfg
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction provides a default scoring function for optimization
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	// Weighted blend of several metrics
	score := 0.0
	score += metrics.WinRate * 0.3
	score += math.Min(metrics.ProfitFactor, 10) * 0.2
	score += (1 - metrics.MaxDrawdown) * 0.2
	score += metrics.ReturnOnInvestment * 0.2
	score += math.Min(metrics.RiskRewardRatio, 10) * 0.1
	return score
}

// ParseRange parses "name=min:max:step" into a ParameterRange.
func ParseRange(s string) (ParameterRange, error) {
	name, spec, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok {
		return ParameterRange{}, fmt.Errorf("invalid range %q, want name=min:max:step", s)
	}
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return ParameterRange{}, fmt.Errorf("invalid range %q, want name=min:max:step", s)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return ParameterRange{}, fmt.Errorf("invalid range %q: %w", s, err)
		}
		vals[i] = v
	}
	return ParameterRange{Name: strings.TrimSpace(name), Min: vals[0], Max: vals[1], Step: vals[2]}, nil
}
