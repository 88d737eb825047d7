package swap

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sniperBot/internal/ports"
)

// Tier is a network congestion level.
type Tier string

const (
	TierLow     Tier = "low"
	TierMedium  Tier = "medium"
	TierHigh    Tier = "high"
	TierExtreme Tier = "extreme"
)

// DefaultTips maps congestion tiers to tips in lamports.
var DefaultTips = map[Tier]uint64{
	TierLow:     100_000,
	TierMedium:  300_000,
	TierHigh:    1_000_000,
	TierExtreme: 5_000_000,
}

// ClassifyLoad maps average transactions per slot onto a tier.
func ClassifyLoad(txPerSlot float64) Tier {
	switch {
	case txPerSlot < 1000:
		return TierLow
	case txPerSlot < 3000:
		return TierMedium
	case txPerSlot < 5000:
		return TierHigh
	default:
		return TierExtreme
	}
}

// FeeConfig configures the fee selector.
type FeeConfig struct {
	Fixed           bool   // Use FixedTip instead of sampling congestion
	FixedTip        uint64 // Lamports
	RefreshInterval time.Duration
	SampleTimeout   time.Duration
	Tips            map[Tier]uint64 // Optional override of DefaultTips
}

// FeeSelector picks a tip from a cached congestion tier.
type FeeSelector struct {
	cfg     FeeConfig
	sampler ports.CongestionSampler
	logger  ports.Logger
	now     func() time.Time

	group     singleflight.Group
	mu        sync.Mutex
	tier      Tier
	sampledAt time.Time
}

// NewFeeSelector creates a fee selector. sampler may be nil in fixed mode.
func NewFeeSelector(cfg FeeConfig, sampler ports.CongestionSampler, logger ports.Logger) *FeeSelector {
	if cfg.RefreshInterval < 60*time.Second {
		cfg.RefreshInterval = 60 * time.Second
	}
	if cfg.SampleTimeout <= 0 {
		cfg.SampleTimeout = 3 * time.Second
	}
	if cfg.Tips == nil {
		cfg.Tips = DefaultTips
	}
	return &FeeSelector{cfg: cfg, sampler: sampler, logger: logger, now: time.Now}
}

// TipAmount returns the tip in lamports for the next transaction.
func (f *FeeSelector) TipAmount(ctx context.Context) uint64 {
	if f.cfg.Fixed || f.sampler == nil {
		return f.cfg.FixedTip
	}
	return f.cfg.Tips[f.Tier(ctx)]
}

// Tier returns the cached tier, refreshing it when stale.
// Sampling failures cache the medium tier until the next refresh.
// Without a sampler the tier is always medium.
func (f *FeeSelector) Tier(ctx context.Context) Tier {
	if f.sampler == nil {
		return TierMedium
	}
	f.mu.Lock()
	if f.tier != "" && f.now().Sub(f.sampledAt) < f.cfg.RefreshInterval {
		tier := f.tier
		f.mu.Unlock()
		return tier
	}
	f.mu.Unlock()

	v, _, _ := f.group.Do("sample", func() (interface{}, error) {
		return f.refresh(ctx), nil
	})
	return v.(Tier)
}

func (f *FeeSelector) refresh(ctx context.Context) Tier {
	sctx, cancel := context.WithTimeout(ctx, f.cfg.SampleTimeout)
	defer cancel()

	tier := TierMedium
	load, err := f.sampler.SampleLoad(sctx)
	if err != nil {
		f.logger.Warn(ctx, "Congestion sampling failed, using medium tier", map[string]interface{}{"error": err.Error()})
	} else {
		tier = ClassifyLoad(load)
		f.logger.Debug(ctx, "Congestion sampled", map[string]interface{}{"txPerSlot": load, "tier": string(tier)})
	}

	f.mu.Lock()
	f.tier = tier
	f.sampledAt = f.now()
	f.mu.Unlock()
	return tier
}
