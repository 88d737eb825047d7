package indicators

import "fmt"

// Indicator is a value computed from a price series, oldest first.
type Indicator interface {
	// Calculate computes the indicator value for the given prices
	Calculate(prices []float64) (float64, error)

	// RequiredDataPoints returns the minimum number of prices needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of prices needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

func (b *BaseIndicator) checkLength(name string, prices []float64) error {
	if len(prices) < b.RequiredDataPoints() {
		return fmt.Errorf("not enough data (%d) to calculate %s for period %d", len(prices), name, b.Config.Period)
	}
	return nil
}
