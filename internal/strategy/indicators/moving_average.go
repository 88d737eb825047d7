package indicators

import "fmt"

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA over a price series
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return fmt.Sprintf("%s%d", m.config.Type, m.Config.Period)
}

// Calculate computes the moving average value based on the configured type
func (m *MovingAverage) Calculate(prices []float64) (float64, error) {
	if m.Config.Period <= 0 {
		return 0, fmt.Errorf("moving average period must be positive")
	}
	switch m.config.Type {
	case SimpleMovingAverage:
		return m.calculateSMA(prices)
	case ExponentialMovingAverage:
		return m.calculateEMA(prices)
	default:
		return 0, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

func (m *MovingAverage) calculateSMA(prices []float64) (float64, error) {
	if err := m.checkLength("SMA", prices); err != nil {
		return 0, err
	}
	total := 0.0
	for _, p := range prices[len(prices)-m.Config.Period:] {
		total += p
	}
	return total / float64(m.Config.Period), nil
}

// calculateEMA seeds with the SMA of the first period prices
func (m *MovingAverage) calculateEMA(prices []float64) (float64, error) {
	if err := m.checkLength("EMA", prices); err != nil {
		return 0, err
	}

	multiplier := 2.0 / float64(m.Config.Period+1)
	ema, err := m.calculateSMA(prices[:m.Config.Period])
	if err != nil {
		return 0, fmt.Errorf("failed to calculate initial SMA for EMA: %w", err)
	}
	for _, p := range prices[m.Config.Period:] {
		ema = (p-ema)*multiplier + ema
	}
	return ema, nil
}
