package indicators

import (
	"fmt"
	"math"
)

// Volatility is the coefficient of variation (population standard deviation
// over mean) of the last Period prices.
type Volatility struct {
	BaseIndicator
	minPoints int
}

// NewVolatility creates the indicator over the last period prices, requiring
// at least minPoints of them.
func NewVolatility(period, minPoints int) *Volatility {
	if period < 2 {
		period = 20
	}
	if minPoints < 2 || minPoints > period {
		minPoints = period
	}
	return &Volatility{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}}, minPoints: minPoints}
}

// Name returns the name of the indicator
func (v *Volatility) Name() string { return fmt.Sprintf("CV%d", v.Config.Period) }

// RequiredDataPoints returns the minimum number of prices needed for calculation
func (v *Volatility) RequiredDataPoints() int { return v.minPoints }

// Calculate returns the coefficient of variation of the most recent prices.
func (v *Volatility) Calculate(prices []float64) (float64, error) {
	if len(prices) < v.minPoints {
		return 0, fmt.Errorf("not enough data (%d) to calculate %s, need %d", len(prices), v.Name(), v.minPoints)
	}
	if len(prices) > v.Config.Period {
		prices = prices[len(prices)-v.Config.Period:]
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))
	if mean <= 0 {
		return 0, nil
	}
	var sq float64
	for _, p := range prices {
		sq += (p - mean) * (p - mean)
	}
	return math.Sqrt(sq/float64(len(prices))) / mean, nil
}
