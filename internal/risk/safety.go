package risk

import (
	"context"
	"errors"
	"fmt"
	"math"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// SafetyConfig holds the pre-buy token checks.
type SafetyConfig struct {
	BaseMint           string
	PoolCheckAmount    float64 // Base units quoted to find a pool
	ImpactAbortPercent float64
	MinLiquidityUSD    float64 // 0 disables
	MaxLiquidityShare  float64 // Percent of estimated liquidity one buy may take, 0 disables
	CheckHoneypot      bool    // Consult the blacklist and require a sell route
	FallbackUSDPrice   float64 // USD per base unit when no reference price is available
}

// SafetyReport describes a token that passed the checks.
type SafetyReport struct {
	PriceImpact float64 // Percent, for the full buy amount
	Liquidity   float64 // Estimated depth in base units, +Inf when the buy moves nothing
	MaxSize     float64 // Largest buy the liquidity share allows, 0 when uncapped
	SpotPrice   float64 // Base units per token at the pool check size
}

// SafetyChecker vets a token before it is bought.
type SafetyChecker struct {
	cfg       SafetyConfig
	quoter    ports.Quoter
	blacklist ports.TokenBlacklist
	reference ports.ReferencePriceProvider
	logger    ports.Logger
}

// NewSafetyChecker creates a checker. blacklist and reference may be nil.
func NewSafetyChecker(cfg SafetyConfig, quoter ports.Quoter, blacklist ports.TokenBlacklist,
	reference ports.ReferencePriceProvider, logger ports.Logger) (*SafetyChecker, error) {
	if quoter == nil || logger == nil {
		return nil, fmt.Errorf("%w: safety checker needs a quoter and a logger", ports.ErrConfigurationError)
	}
	if cfg.BaseMint == "" {
		return nil, fmt.Errorf("%w: safety checker needs the base mint", ports.ErrConfigurationError)
	}
	if cfg.PoolCheckAmount <= 0 {
		cfg.PoolCheckAmount = 0.001
	}
	if cfg.FallbackUSDPrice <= 0 {
		cfg.FallbackUSDPrice = 100
	}
	return &SafetyChecker{cfg: cfg, quoter: quoter, blacklist: blacklist, reference: reference, logger: logger}, nil
}

// Check vets a buy of amount base units of token. A token that fails a check
// yields ports.ErrTokenUnsafe; provider trouble yields a plain error so the
// token is not condemned for it. A token without a sell route is blacklisted.
func (c *SafetyChecker) Check(ctx context.Context, token string, decimals uint8, amount float64) (SafetyReport, error) {
	var report SafetyReport

	if c.cfg.CheckHoneypot && c.blacklist != nil {
		listed, err := c.blacklist.IsBlacklisted(ctx, token)
		if err != nil {
			return report, fmt.Errorf("failed to check blacklist: %w", err)
		}
		if listed {
			return report, fmt.Errorf("%w: %s is blacklisted", ports.ErrTokenUnsafe, token)
		}
	}

	spot, err := c.quote(ctx, c.cfg.BaseMint, token, domain.FromUI(c.cfg.PoolCheckAmount, domain.BaseDecimals))
	if err != nil {
		return report, c.unsafe(err, "no liquidity pool found")
	}
	report.SpotPrice = domain.UnitPrice(spot.InAmount, domain.BaseDecimals, spot.OutAmount, decimals)

	if c.cfg.CheckHoneypot {
		if _, err := c.quote(ctx, token, c.cfg.BaseMint, spot.OutAmount); err != nil {
			err = c.unsafe(err, "no sell route")
			if errors.Is(err, ports.ErrTokenUnsafe) && c.blacklist != nil {
				if berr := c.blacklist.Blacklist(ctx, token, err.Error()); berr != nil {
					c.logger.Error(ctx, berr, "Failed to blacklist token", map[string]interface{}{"token": token})
				}
			}
			return report, err
		}
	}

	buy, err := c.quote(ctx, c.cfg.BaseMint, token, domain.FromUI(amount, domain.BaseDecimals))
	if err != nil {
		return report, c.unsafe(err, "no quote for the buy amount")
	}
	report.PriceImpact = buy.PriceImpactPct
	if c.cfg.ImpactAbortPercent > 0 && buy.PriceImpactPct > c.cfg.ImpactAbortPercent {
		return report, fmt.Errorf("%w: %w: %.2f%% > %.2f%%", ports.ErrTokenUnsafe, ports.ErrImpactTooHigh, buy.PriceImpactPct, c.cfg.ImpactAbortPercent)
	}

	// A buy moving the price by impact percent implies a pool roughly
	// amount/impact*100 deep.
	report.Liquidity = math.Inf(1)
	if buy.PriceImpactPct > 0 {
		report.Liquidity = amount / buy.PriceImpactPct * 100
	}
	if c.cfg.MinLiquidityUSD > 0 {
		minBase := c.cfg.MinLiquidityUSD / c.usdPerBase(ctx)
		if report.Liquidity < minBase {
			return report, fmt.Errorf("%w: liquidity ~%.4f base below minimum %.4f", ports.ErrTokenUnsafe, report.Liquidity, minBase)
		}
	}
	if c.cfg.MaxLiquidityShare > 0 && !math.IsInf(report.Liquidity, 1) {
		report.MaxSize = report.Liquidity * c.cfg.MaxLiquidityShare / 100
	}

	c.logger.Debug(ctx, "Token passed safety checks", map[string]interface{}{
		"token":     token,
		"impact":    report.PriceImpact,
		"liquidity": report.Liquidity,
		"maxSize":   report.MaxSize,
	})
	return report, nil
}

func (c *SafetyChecker) quote(ctx context.Context, in, out string, amount uint64) (*domain.Quote, error) {
	q, err := c.quoter.Quote(ctx, domain.QuoteRequest{InputMint: in, OutputMint: out, Amount: amount, SlippageBps: 100})
	if err != nil {
		return nil, err
	}
	if q == nil || q.OutAmount == 0 {
		return nil, fmt.Errorf("%w: empty quote", ports.ErrQuoteUnavailable)
	}
	return q, nil
}

// unsafe condemns the token for err unless err is provider trouble.
func (c *SafetyChecker) unsafe(err error, what string) error {
	for _, transient := range []error{
		ports.ErrTimeout, ports.ErrConnectionFailed, ports.ErrRateLimited, ports.ErrContextCanceled,
		context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, transient) {
			return fmt.Errorf("safety check: %s: %w", what, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", ports.ErrTokenUnsafe, what, err)
}

func (c *SafetyChecker) usdPerBase(ctx context.Context) float64 {
	if c.reference != nil {
		px, err := c.reference.ReferencePrice(ctx)
		if err == nil && px > 0 {
			return px
		}
		c.logger.Warn(ctx, "Reference price unavailable for liquidity check", map[string]interface{}{"fallback": c.cfg.FallbackUSDPrice})
	}
	return c.cfg.FallbackUSDPrice
}
