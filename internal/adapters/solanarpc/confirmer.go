package solanarpc

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"sniperBot/internal/ports"
)

// ConfirmerConfig bounds signature status polling.
type ConfirmerConfig struct {
	InitialDelay time.Duration // First poll interval
	MaxDelay     time.Duration
	Growth       float64 // Interval multiplier per poll
	MaxPolls     int
}

// DefaultConfirmerConfig polls from 50ms, growing 1.2x up to 2s, 20 times at most.
func DefaultConfirmerConfig() ConfirmerConfig {
	return ConfirmerConfig{InitialDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second, Growth: 1.2, MaxPolls: 20}
}

// Confirmer implements ports.Confirmer by polling signature statuses.
type Confirmer struct {
	api    API
	cfg    ConfirmerConfig
	logger ports.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewConfirmer creates a confirmer. Zero config fields take defaults.
func NewConfirmer(api API, cfg ConfirmerConfig, logger ports.Logger) *Confirmer {
	def := DefaultConfirmerConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Growth < 1 {
		cfg.Growth = def.Growth
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = def.MaxPolls
	}
	return &Confirmer{api: api, cfg: cfg, logger: logger, sleep: sleepCtx}
}

// Confirm waits until signature reaches confirmed or finalized commitment.
// Processed alone does not count, since a processed slot can still be
// skipped. It returns false without error when the timeout or poll budget
// runs out, and ErrTransactionFailed when the transaction landed with an error.
func (c *Confirmer) Confirm(ctx context.Context, signature string, timeout time.Duration) (bool, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return false, fmt.Errorf("%w: invalid signature %q: %w", ports.ErrInvalidRequest, signature, err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for poll := 0; poll < c.cfg.MaxPolls; poll++ {
		if poll > 0 {
			if err := c.sleep(ctx, c.delay(poll-1)); err != nil {
				return false, nil
			}
		}
		out, err := c.api.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			c.logger.Debug(ctx, "Signature status poll failed", map[string]interface{}{"signature": signature, "poll": poll + 1, "error": err.Error()})
			continue
		}
		if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
			continue
		}
		status := out.Value[0]
		if status.Err != nil {
			return false, fmt.Errorf("%w: %s: %v", ports.ErrTransactionFailed, signature, status.Err)
		}
		if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			return true, nil
		}
	}
	return false, nil
}

// delay returns the jittered interval before poll n+1.
func (c *Confirmer) delay(n int) time.Duration {
	d := float64(c.cfg.InitialDelay) * math.Pow(c.cfg.Growth, float64(n))
	d = math.Min(d, float64(c.cfg.MaxDelay))
	jitter := 0.9 + rand.Float64()*0.2
	return time.Duration(d * jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
