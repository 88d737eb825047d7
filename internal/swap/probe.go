package swap

import (
	"context"
	"fmt"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// Prober prices a token by quoting a small sell of the current holdings.
type Prober struct {
	quoter      ports.Quoter
	baseMint    string
	probePct    float64
	slippageBps int
	timeout     time.Duration
	limiter     *Limiter
}

// NewProber creates a prober quoting probePct percent of holdings.
func NewProber(quoter ports.Quoter, baseMint string, probePct float64, limiter *Limiter) *Prober {
	if probePct <= 0 || probePct > 100 {
		probePct = 1
	}
	return &Prober{
		quoter:      quoter,
		baseMint:    baseMint,
		probePct:    probePct,
		slippageBps: 100,
		timeout:     5 * time.Second,
		limiter:     limiter,
	}
}

// Price returns the current price in base units per token.
func (p *Prober) Price(ctx context.Context, token string, decimals uint8, holdings uint64) (float64, error) {
	amount := domain.ScaleRaw(holdings, p.probePct)
	if amount == 0 {
		amount = 1
	}

	var quote *domain.Quote
	err := p.limiter.Do(ctx, func(ctx context.Context) error {
		qctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		var err error
		quote, err = p.quoter.Quote(qctx, domain.QuoteRequest{
			InputMint:   token,
			OutputMint:  p.baseMint,
			Amount:      amount,
			SlippageBps: p.slippageBps,
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ports.ErrQuoteUnavailable, err)
	}
	if quote == nil || quote.OutAmount == 0 || quote.InAmount == 0 {
		return 0, fmt.Errorf("%w: empty probe quote for %s", ports.ErrQuoteUnavailable, token)
	}
	return domain.UnitPrice(quote.OutAmount, domain.BaseDecimals, quote.InAmount, decimals), nil
}
