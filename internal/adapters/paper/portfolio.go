// Package paper simulates transaction building, submission and settlement
// against an in-memory portfolio. Quotes still come from the live provider so
// fills track the real market.
package paper

import (
	"context"
	"fmt"
	"math/big"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

const (
	defaultMinFee      = 5_000 // Lamports
	defaultMaxFee      = 10_000
	defaultLatency     = 100 * time.Millisecond
	latencyRefresh     = 5 * time.Minute
	latencySampleLimit = 10
)

// Config configures a simulated portfolio.
type Config struct {
	BaseMint        string
	StartingBalance uint64        // Raw base units
	Latency         time.Duration // Fixed simulated latency, zero measures it with Probe
	MinFee          uint64
	MaxFee          uint64
	// Probe is timed to estimate network latency when Latency is zero.
	Probe func(ctx context.Context) error
}

type order struct {
	quote   domain.Quote
	tip     uint64
	settled bool
	fee     uint64
}

// Fill describes a settled simulated swap.
type Fill struct {
	Signature string
	InputMint string
	InAmount  uint64
	OutMint   string
	OutAmount uint64
	Fee       uint64
	At        time.Time
}

// Summary is a point in time view of the portfolio.
type Summary struct {
	Base     decimal.Decimal
	Fees     decimal.Decimal
	Holdings map[string]uint64
	Fills    int
	Pending  int
	Start    decimal.Decimal
}

// Portfolio implements the builder, sender, confirmer and balance ports
// without touching the chain.
type Portfolio struct {
	cfg    Config
	logger ports.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	fee    func(min, max uint64) uint64

	mu         sync.Mutex
	base       uint64
	tokens     map[string]uint64
	orders     map[string]*order
	fills      []Fill
	feesPaid   uint64
	samples    []time.Duration
	measured   time.Duration
	measuredAt time.Time
}

// NewPortfolio creates a portfolio holding cfg.StartingBalance.
func NewPortfolio(cfg Config, logger ports.Logger) (*Portfolio, error) {
	if cfg.BaseMint == "" {
		return nil, fmt.Errorf("base mint is required: %w", ports.ErrConfigurationError)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required: %w", ports.ErrConfigurationError)
	}
	if cfg.MinFee == 0 && cfg.MaxFee == 0 {
		cfg.MinFee, cfg.MaxFee = defaultMinFee, defaultMaxFee
	}
	if cfg.MaxFee < cfg.MinFee {
		cfg.MaxFee = cfg.MinFee
	}
	return &Portfolio{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
		fee:      randomFee,
		base:     cfg.StartingBalance,
		tokens:   make(map[string]uint64),
		orders:   make(map[string]*order),
		measured: defaultLatency,
	}, nil
}

// BuildAndSign records the quote as a pending order under a fresh signature.
func (p *Portfolio) BuildAndSign(ctx context.Context, quote *domain.Quote, tip uint64) (*domain.SignedTx, error) {
	if quote == nil {
		return nil, fmt.Errorf("%w: nil quote", ports.ErrBuildOrSignFailed)
	}
	sig := "paper-" + uuid.NewString()

	p.mu.Lock()
	p.orders[sig] = &order{quote: *quote, tip: tip}
	p.mu.Unlock()
	return &domain.SignedTx{Raw: []byte(sig), Signature: sig}, nil
}

// Channel returns a named submission channel backed by the portfolio.
// Orders settle once no matter how many channels send them.
func (p *Portfolio) Channel(name string) ports.TxSender {
	return &channel{p: p, name: name}
}

type channel struct {
	p    *Portfolio
	name string
}

func (c *channel) Name() string { return c.name }

func (c *channel) Send(ctx context.Context, tx *domain.SignedTx) (string, error) {
	return c.p.Send(ctx, tx)
}

// Name identifies the portfolio as a submission channel.
func (p *Portfolio) Name() string { return "paper" }

// Send waits out the simulated latency and settles the order.
func (p *Portfolio) Send(ctx context.Context, tx *domain.SignedTx) (string, error) {
	if tx == nil || tx.Signature == "" {
		return "", fmt.Errorf("%w: empty transaction", ports.ErrInvalidRequest)
	}
	if err := p.sleep(ctx, p.latency(ctx)); err != nil {
		return "", fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[tx.Signature]
	if !ok {
		return "", fmt.Errorf("%w: unknown order %s", ports.ErrProviderRejected, tx.Signature)
	}
	if o.settled {
		return tx.Signature, nil
	}
	if err := p.settle(tx.Signature, o); err != nil {
		delete(p.orders, tx.Signature)
		return "", err
	}
	return tx.Signature, nil
}

// settle moves balances for o. Caller holds p.mu.
func (p *Portfolio) settle(sig string, o *order) error {
	q := o.quote
	fee := p.fee(p.cfg.MinFee, p.cfg.MaxFee)

	if q.InputMint == p.cfg.BaseMint {
		if q.InAmount+fee > p.base {
			return fmt.Errorf("%w: need %d, have %d", ports.ErrInsufficientFunds, q.InAmount+fee, p.base)
		}
		p.base -= q.InAmount + fee
		p.tokens[q.OutputMint] += q.OutAmount
	} else {
		held := p.tokens[q.InputMint]
		if q.InAmount > held {
			return fmt.Errorf("%w: need %d %s, have %d", ports.ErrInsufficientFunds, q.InAmount, q.InputMint, held)
		}
		if q.OutAmount < fee {
			return fmt.Errorf("%w: proceeds %d below network fee %d", ports.ErrInsufficientFunds, q.OutAmount, fee)
		}
		p.tokens[q.InputMint] = held - q.InAmount
		if p.tokens[q.InputMint] == 0 {
			delete(p.tokens, q.InputMint)
		}
		p.base += q.OutAmount - fee
	}

	o.settled = true
	o.fee = fee
	p.feesPaid += fee
	p.fills = append(p.fills, Fill{
		Signature: sig,
		InputMint: q.InputMint,
		InAmount:  q.InAmount,
		OutMint:   q.OutputMint,
		OutAmount: q.OutAmount,
		Fee:       fee,
		At:        p.now(),
	})
	p.logger.Info(context.Background(), "Paper swap settled", map[string]interface{}{
		"signature": sig,
		"in_mint":   q.InputMint,
		"in":        q.InAmount,
		"out_mint":  q.OutputMint,
		"out":       q.OutAmount,
		"fee":       fee,
		"tip":       o.tip,
		"base":      toBase(p.base).String(),
	})
	return nil
}

// Confirm reports whether the order behind signature has settled.
func (p *Portfolio) Confirm(ctx context.Context, signature string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[signature]
	if !ok {
		return false, fmt.Errorf("%w: unknown signature %s", ports.ErrTransactionFailed, signature)
	}
	return o.settled, nil
}

// BaseBalance returns the simulated base balance.
func (p *Portfolio) BaseBalance(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.base, nil
}

// TokenBalance returns the simulated holdings of mint.
func (p *Portfolio) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mint == p.cfg.BaseMint {
		return p.base, nil
	}
	return p.tokens[mint], nil
}

// Fills returns settled swaps, oldest first.
func (p *Portfolio) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Fill, len(p.fills))
	copy(out, p.fills)
	return out
}

// Summary returns balances in base units and counts of settled and pending orders.
func (p *Portfolio) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	holdings := make(map[string]uint64, len(p.tokens))
	for mint, amount := range p.tokens {
		holdings[mint] = amount
	}
	pending := 0
	for _, o := range p.orders {
		if !o.settled {
			pending++
		}
	}
	return Summary{
		Base:     toBase(p.base),
		Fees:     toBase(p.feesPaid),
		Holdings: holdings,
		Fills:    len(p.fills),
		Pending:  pending,
		Start:    toBase(p.cfg.StartingBalance),
	}
}

// Report logs the portfolio summary.
func (p *Portfolio) Report(ctx context.Context) {
	s := p.Summary()
	mints := make([]string, 0, len(s.Holdings))
	for mint := range s.Holdings {
		mints = append(mints, mint)
	}
	sort.Strings(mints)
	p.logger.Info(ctx, "Paper portfolio", map[string]interface{}{
		"base":     s.Base.StringFixed(6),
		"start":    s.Start.StringFixed(6),
		"change":   s.Base.Sub(s.Start).StringFixed(6),
		"fees":     s.Fees.StringFixed(6),
		"fills":    s.Fills,
		"holdings": mints,
	})
}

// latency returns the configured delay or the average of recent probe timings,
// re-measuring at most every five minutes.
func (p *Portfolio) latency(ctx context.Context) time.Duration {
	if p.cfg.Latency > 0 {
		return p.cfg.Latency
	}
	p.mu.Lock()
	stale := p.cfg.Probe != nil && p.now().Sub(p.measuredAt) >= latencyRefresh
	if stale {
		p.measuredAt = p.now()
	}
	current := p.measured
	p.mu.Unlock()
	if !stale {
		return current
	}

	start := time.Now()
	if err := p.cfg.Probe(ctx); err != nil {
		p.logger.Warn(ctx, "Latency probe failed, keeping previous estimate", map[string]interface{}{"error": err.Error(), "latency_ms": current.Milliseconds()})
		return current
	}
	took := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples = append(p.samples, took)
	if len(p.samples) > latencySampleLimit {
		p.samples = p.samples[len(p.samples)-latencySampleLimit:]
	}
	var sum time.Duration
	for _, s := range p.samples {
		sum += s
	}
	p.measured = sum / time.Duration(len(p.samples))
	p.logger.Debug(ctx, "Latency measured", map[string]interface{}{"sample_ms": took.Milliseconds(), "avg_ms": p.measured.Milliseconds()})
	return p.measured
}

func toBase(raw uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(domain.BaseDecimals))
}

func randomFee(min, max uint64) uint64 {
	if max <= min {
		return min
	}
	return min + rand.Uint64N(max-min+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
