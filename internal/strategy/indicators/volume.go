package indicators

import (
	"math"
	"sync"
	"time"

	"sniperBot/internal/domain"
)

const (
	volumeRetention = time.Hour
	volumeScale     = 10000
)

// VolumeEstimator approximates trading activity from price movement:
// the mean absolute change over the last Period prices, scaled.
type VolumeEstimator struct {
	BaseIndicator
}

// NewVolumeEstimator creates an estimator over the last period prices.
func NewVolumeEstimator(period int) *VolumeEstimator {
	if period < 2 {
		period = 10
	}
	return &VolumeEstimator{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}}}
}

// Name returns the name of the indicator
func (v *VolumeEstimator) Name() string { return "VOLUME_EST" }

// RequiredDataPoints returns the minimum number of prices needed for calculation
func (v *VolumeEstimator) RequiredDataPoints() int { return 2 }

// Calculate returns the scaled mean absolute change of the most recent prices.
func (v *VolumeEstimator) Calculate(prices []float64) (float64, error) {
	if err := v.checkLength("VOLUME_EST", prices); err != nil {
		return 0, err
	}
	if len(prices) > v.Config.Period {
		prices = prices[len(prices)-v.Config.Period:]
	}
	var sum float64
	for i := 1; i < len(prices); i++ {
		sum += math.Abs(prices[i] - prices[i-1])
	}
	return sum / float64(len(prices)-1) * volumeScale, nil
}

// VolumeConfig configures anomaly detection.
type VolumeConfig struct {
	SpikeMultiplier float64 // 1m volume vs the 5m per-minute average
	DryUpPercent    float64 // 5m average as a percent of the 30m average
	MinSamples      int
}

type volumeSample struct {
	at     time.Time
	volume float64
}

// VolumeMonitor keeps a per-token series of volume samples for the last hour.
type VolumeMonitor struct {
	cfg    VolumeConfig
	mu     sync.Mutex
	series map[string][]volumeSample
}

// NewVolumeMonitor creates a monitor.
func NewVolumeMonitor(cfg VolumeConfig) *VolumeMonitor {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 10
	}
	return &VolumeMonitor{cfg: cfg, series: make(map[string][]volumeSample)}
}

// Record appends a sample and evicts samples older than one hour.
func (m *VolumeMonitor) Record(token string, volume float64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := append(m.series[token], volumeSample{at: at, volume: volume})
	cutoff := at.Add(-volumeRetention)
	i := 0
	for i < len(s) && s[i].at.Before(cutoff) {
		i++
	}
	m.series[token] = s[i:]
}

// Windows sums volume over the 1, 5 and 30 minute windows ending at now.
func (m *VolumeMonitor) Windows(token string, now time.Time) domain.VolumeWindows {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.series[token]
	w := domain.VolumeWindows{Samples: len(s)}
	for _, sample := range s {
		age := now.Sub(sample.at)
		if age < 0 {
			continue
		}
		if age <= time.Minute {
			w.Vol1m += sample.volume
		}
		if age <= 5*time.Minute {
			w.Vol5m += sample.volume
		}
		if age <= 30*time.Minute {
			w.Vol30m += sample.volume
		}
	}
	return w
}

// Check returns the anomaly signal for token. Fewer than MinSamples samples
// never produce a signal.
func (m *VolumeMonitor) Check(token string, now time.Time) domain.VolumeSignal {
	w := m.Windows(token, now)
	sig := domain.VolumeSignal{Windows: w}
	if w.Samples < m.cfg.MinSamples {
		return sig
	}

	avg5 := w.Vol5m / 5
	if avg5 > 0 {
		sig.Ratio = w.Vol1m / avg5
		sig.Spike = m.cfg.SpikeMultiplier > 0 && sig.Ratio >= m.cfg.SpikeMultiplier
	}
	avg30 := w.Vol30m / 30
	if avg30 > 0 && m.cfg.DryUpPercent > 0 {
		sig.DryUp = avg5 < avg30*m.cfg.DryUpPercent/100
	}
	return sig
}

// Forget drops all samples for token.
func (m *VolumeMonitor) Forget(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.series, token)
}
