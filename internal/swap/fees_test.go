package swap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLoad(t *testing.T) {
	tests := []struct {
		load float64
		want Tier
	}{
		{0, TierLow},
		{999, TierLow},
		{1000, TierMedium},
		{2999, TierMedium},
		{3000, TierHigh},
		{4999, TierHigh},
		{5000, TierExtreme},
		{20000, TierExtreme},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyLoad(tt.load), "load %v", tt.load)
	}
}

func TestFeeSelector_FixedMode(t *testing.T) {
	sampler := &mockSampler{load: 10000}
	f := NewFeeSelector(FeeConfig{Fixed: true, FixedTip: 500_000}, sampler, &mockLogger{})

	assert.Equal(t, uint64(500_000), f.TipAmount(context.Background()))
	assert.Equal(t, 0, sampler.calls)
}

func TestFeeSelector_CachesTier(t *testing.T) {
	sampler := &mockSampler{load: 4000}
	f := NewFeeSelector(FeeConfig{RefreshInterval: time.Minute}, sampler, &mockLogger{})
	now := time.Unix(1_700_000_000, 0)
	f.now = func() time.Time { return now }

	assert.Equal(t, uint64(1_000_000), f.TipAmount(context.Background()))
	now = now.Add(30 * time.Second)
	sampler.load = 100
	assert.Equal(t, uint64(1_000_000), f.TipAmount(context.Background()))
	assert.Equal(t, 1, sampler.calls)

	now = now.Add(31 * time.Second)
	assert.Equal(t, uint64(100_000), f.TipAmount(context.Background()))
	assert.Equal(t, 2, sampler.calls)
}

func TestFeeSelector_SamplingFailureDefaultsToMedium(t *testing.T) {
	sampler := &mockSampler{err: errBoom}
	logger := &mockLogger{}
	f := NewFeeSelector(FeeConfig{}, sampler, logger)

	assert.Equal(t, TierMedium, f.Tier(context.Background()))
	assert.Equal(t, uint64(300_000), f.TipAmount(context.Background()))
	assert.Equal(t, 1, sampler.calls)
	assert.Len(t, logger.warnMsgs, 1)
}

func TestFeeSelector_RefreshIntervalFloor(t *testing.T) {
	f := NewFeeSelector(FeeConfig{RefreshInterval: time.Second}, &mockSampler{}, &mockLogger{})
	assert.Equal(t, 60*time.Second, f.cfg.RefreshInterval)
}

func TestFeeSelector_NoSamplerIsMedium(t *testing.T) {
	f := NewFeeSelector(FeeConfig{FixedTip: 250_000}, nil, &mockLogger{})

	assert.Equal(t, TierMedium, f.Tier(context.Background()))
	assert.Equal(t, uint64(250_000), f.TipAmount(context.Background()))
}
