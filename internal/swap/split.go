package swap

import (
	"context"
	"fmt"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// Runner executes one swap end to end.
type Runner interface {
	Execute(ctx context.Context, req domain.SwapRequest) (*domain.SwapResult, error)
}

// SplitConfig controls order splitting.
type SplitConfig struct {
	ThresholdImpact float64       // Orders quoted above this impact percent are split
	ChunkDelay      time.Duration // Pause after each landed chunk
}

// Splitter executes high impact orders as several smaller swaps.
type Splitter struct {
	next   Runner
	cfg    SplitConfig
	logger ports.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewSplitter wraps next.
func NewSplitter(next Runner, cfg SplitConfig, logger ports.Logger) (*Splitter, error) {
	if next == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Splitter")
	}
	if cfg.ThresholdImpact <= 0 {
		return nil, fmt.Errorf("split threshold must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	return &Splitter{next: next, cfg: cfg, logger: logger, sleep: sleepCtx}, nil
}

// Chunks returns the number of pieces an order quoted at impact percent is
// split into: 1 at or below the threshold, then 2, 3 above 3% and 4 above 5%.
func (s *Splitter) Chunks(impact float64) int {
	switch {
	case impact <= s.cfg.ThresholdImpact:
		return 1
	case impact > 5:
		return 4
	case impact > 3:
		return 3
	default:
		return 2
	}
}

// Execute runs req, split into Chunks(impact) sequential swaps. The last
// chunk takes the remainder. A failed chunk does not stop the rest; the
// result adds up the chunks that landed and fails only when none did.
func (s *Splitter) Execute(ctx context.Context, req domain.SwapRequest, impact float64) (*domain.SwapResult, error) {
	n := s.Chunks(impact)
	if n == 1 || req.Amount < uint64(n) {
		return s.next.Execute(ctx, req)
	}

	chunk := req.Amount / uint64(n)
	s.logger.Info(ctx, "Splitting order", map[string]interface{}{
		"tag":    req.Tag,
		"impact": impact,
		"chunks": n,
		"chunk":  chunk,
	})

	total := &domain.SwapResult{}
	var signatures []string
	var lastErr error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			lastErr = fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
			break
		}
		part := req
		part.Amount = chunk
		if i == n-1 {
			part.Amount = req.Amount - chunk*uint64(n-1)
		}

		res, err := s.next.Execute(ctx, part)
		if err != nil {
			lastErr = err
			s.logger.Warn(ctx, "Order chunk failed, continuing", map[string]interface{}{
				"tag":   req.Tag,
				"chunk": i + 1,
				"of":    n,
				"error": err.Error(),
			})
			continue
		}
		signatures = append(signatures, res.Signature)
		total.InAmount += res.InAmount
		total.OutAmount += res.OutAmount
		total.Proceeds += res.Proceeds
		total.Tip += res.Tip
		total.Attempts += res.Attempts

		if i < n-1 && s.cfg.ChunkDelay > 0 {
			if err := s.sleep(ctx, s.cfg.ChunkDelay); err != nil {
				lastErr = fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
				break
			}
		}
	}

	if len(signatures) == 0 {
		return nil, fmt.Errorf("%w: all %d chunks failed: %w", ports.ErrExecutionFailed, n, lastErr)
	}
	total.Success = true
	total.Signature = signatures[0]
	if req.Side == domain.Buy {
		total.Price = domain.UnitPrice(total.InAmount, req.InputDecimals, total.OutAmount, req.OutputDecimals)
	} else {
		total.Price = domain.UnitPrice(total.OutAmount, req.OutputDecimals, total.InAmount, req.InputDecimals)
	}
	s.logger.Info(ctx, "Order splitting complete", map[string]interface{}{
		"tag":        req.Tag,
		"landed":     len(signatures),
		"chunks":     n,
		"signatures": signatures,
		"inAmount":   total.InAmount,
		"outAmount":  total.OutAmount,
	})
	return total, nil
}
