package swap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// TipSource supplies the tip attached to each transaction.
type TipSource interface {
	TipAmount(ctx context.Context) uint64
}

// Config holds execution pipeline parameters.
type Config struct {
	BaseMint            string
	MaxRetries          int
	RetryBackoff        time.Duration
	ConfirmRetryBackoff time.Duration
	ImpactWarnPercent   float64
	ImpactAbortPercent  float64
	MinOutputBase       uint64  // Dust threshold for sells, raw base units
	DustReductionFactor float64 // Applied to the amount on each dust retry
	CallTimeout         time.Duration
	ConfirmTimeout      time.Duration
	SlippageEscalation  float64 // Extra slippage fraction per transient or ambiguous retry
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:          5,
		RetryBackoff:        time.Second,
		ConfirmRetryBackoff: 1500 * time.Millisecond,
		ImpactWarnPercent:   5,
		ImpactAbortPercent:  10,
		MinOutputBase:       5_000_000,
		DustReductionFactor: 0.8,
		CallTimeout:         5 * time.Second,
		ConfirmTimeout:      30 * time.Second,
		SlippageEscalation:  0.5,
	}
}

// Executor runs quote, build, submit and confirm as one bounded retry loop.
type Executor struct {
	cfg       Config
	quoter    ports.Quoter
	builder   ports.TxBuilder
	submitter ports.Submitter
	confirmer ports.Confirmer
	tips      TipSource
	limiter   *Limiter
	logger    ports.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// Dependencies groups the collaborators of an Executor.
type Dependencies struct {
	Quoter    ports.Quoter
	Builder   ports.TxBuilder
	Submitter ports.Submitter
	Confirmer ports.Confirmer
	Tips      TipSource
	Limiter   *Limiter
	Logger    ports.Logger
}

// NewExecutor creates an execution pipeline.
func NewExecutor(cfg Config, deps Dependencies) (*Executor, error) {
	if deps.Quoter == nil || deps.Builder == nil || deps.Submitter == nil || deps.Confirmer == nil || deps.Tips == nil || deps.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Executor")
	}
	if cfg.BaseMint == "" {
		return nil, fmt.Errorf("base mint is required: %w", ports.ErrConfigurationError)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative: %w", ports.ErrConfigurationError)
	}
	if cfg.DustReductionFactor <= 0 || cfg.DustReductionFactor >= 1 {
		cfg.DustReductionFactor = 0.8
	}
	if cfg.SlippageEscalation <= 0 {
		cfg.SlippageEscalation = 0.5
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	return &Executor{
		cfg:       cfg,
		quoter:    deps.Quoter,
		builder:   deps.Builder,
		submitter: deps.Submitter,
		confirmer: deps.Confirmer,
		tips:      deps.Tips,
		limiter:   deps.Limiter,
		logger:    deps.Logger,
		sleep:     sleepCtx,
	}, nil
}

// Execute performs the swap, retrying up to MaxRetries times.
// Transient and ambiguous failures escalate slippage for the next attempt.
// Dust output shrinks the amount at unchanged slippage. Excessive price
// impact aborts at once.
func (e *Executor) Execute(ctx context.Context, req domain.SwapRequest) (*domain.SwapResult, error) {
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: zero amount", ports.ErrInvalidRequest)
	}

	amount := req.Amount
	slipStep := 0
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
		}

		slippage := req.MaxSlippage * (1 + e.cfg.SlippageEscalation*float64(slipStep))
		result, err := e.attempt(ctx, req, amount, slippage)
		if err == nil {
			result.Attempts = attempt + 1
			e.logger.Info(ctx, "Swap confirmed", map[string]interface{}{
				"side":      string(req.Side),
				"tag":       req.Tag,
				"signature": result.Signature,
				"attempt":   attempt,
				"slippage":  slippage,
				"price":     result.Price,
			})
			return result, nil
		}
		lastErr = err

		class := Classify(err)
		fields := map[string]interface{}{
			"side":     string(req.Side),
			"tag":      req.Tag,
			"attempt":  attempt,
			"slippage": slippage,
			"class":    class.String(),
		}
		if class == FatalToAttempt {
			e.logger.Error(ctx, err, "Swap aborted", fields)
			return nil, fmt.Errorf("%w: %w", ports.ErrExecutionFailed, err)
		}
		e.logger.Warn(ctx, "Swap attempt failed", mergeFields(fields, map[string]interface{}{"error": err.Error()}))

		if attempt == e.cfg.MaxRetries {
			break
		}

		backoff := e.cfg.RetryBackoff
		switch class {
		case Policy:
			amount = uint64(float64(amount) * e.cfg.DustReductionFactor)
			if amount == 0 {
				return nil, fmt.Errorf("%w: amount reduced to zero: %w", ports.ErrExecutionFailed, err)
			}
		case Ambiguous:
			backoff = e.cfg.ConfirmRetryBackoff
			slipStep++
		default:
			slipStep++
		}
		if err := e.sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ports.ErrExecutionFailed, e.cfg.MaxRetries+1, lastErr)
}

func (e *Executor) attempt(ctx context.Context, req domain.SwapRequest, amount uint64, slippage float64) (*domain.SwapResult, error) {
	var quote *domain.Quote
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		quote, err = e.quoter.Quote(ctx, domain.QuoteRequest{
			InputMint:   req.InputMint,
			OutputMint:  req.OutputMint,
			Amount:      amount,
			SlippageBps: int(math.Round(slippage * 100)),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrQuoteUnavailable, err)
	}
	if quote == nil {
		return nil, ports.ErrQuoteUnavailable
	}

	if quote.PriceImpactPct > e.cfg.ImpactAbortPercent {
		return nil, fmt.Errorf("%w: %.2f%% > %.2f%%", ports.ErrImpactTooHigh, quote.PriceImpactPct, e.cfg.ImpactAbortPercent)
	}
	if quote.PriceImpactPct > e.cfg.ImpactWarnPercent {
		e.logger.Warn(ctx, "High price impact", map[string]interface{}{
			"tag":    req.Tag,
			"impact": quote.PriceImpactPct,
		})
	}

	if req.Side == domain.Sell && req.InputMint != e.cfg.BaseMint && quote.OutAmount < e.cfg.MinOutputBase {
		return nil, fmt.Errorf("%w: %d < %d", ports.ErrOutputTooSmall, quote.OutAmount, e.cfg.MinOutputBase)
	}

	tip := e.tips.TipAmount(ctx)

	var signed *domain.SignedTx
	err = e.call(ctx, func(ctx context.Context) error {
		var err error
		signed, err = e.builder.BuildAndSign(ctx, quote, tip)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrBuildOrSignFailed, err)
	}

	var signature string
	err = e.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		signature, err = e.submitter.Submit(ctx, signed, tip)
		return err
	})
	if err != nil {
		if errors.Is(err, ports.ErrSubmissionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ports.ErrSubmissionFailed, err)
	}

	var confirmed bool
	err = e.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		confirmed, err = e.confirmer.Confirm(ctx, signature, e.cfg.ConfirmTimeout)
		return err
	})
	if err != nil {
		if errors.Is(err, ports.ErrTransactionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ports.ErrConfirmationTimeout, signature, err)
	}
	if !confirmed {
		return nil, fmt.Errorf("%w: %s", ports.ErrConfirmationTimeout, signature)
	}

	result := &domain.SwapResult{
		Success:   true,
		Signature: signature,
		InAmount:  quote.InAmount,
		OutAmount: quote.OutAmount,
		Tip:       tip,
	}
	if req.Side == domain.Buy {
		result.Price = domain.UnitPrice(quote.InAmount, req.InputDecimals, quote.OutAmount, req.OutputDecimals)
	} else {
		result.Proceeds = domain.ToUI(quote.OutAmount, req.OutputDecimals)
		result.Price = domain.UnitPrice(quote.OutAmount, req.OutputDecimals, quote.InAmount, req.InputDecimals)
	}
	return result, nil
}

// call runs fn through the limiter under the per-call timeout.
func (e *Executor) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return e.limiter.Do(ctx, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
		return fn(cctx)
	})
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

func mergeFields(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
