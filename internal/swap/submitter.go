package swap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// DualSubmitter races a priority channel against a plain broadcast channel.
type DualSubmitter struct {
	channels []ports.TxSender
	timeout  time.Duration
	logger   ports.Logger
}

// NewDualSubmitter creates a submitter over the given channels. A nil channel
// is skipped so a single configured channel still works.
func NewDualSubmitter(priority, broadcast ports.TxSender, timeout time.Duration, logger ports.Logger) (*DualSubmitter, error) {
	var channels []ports.TxSender
	for _, ch := range []ports.TxSender{priority, broadcast} {
		if ch != nil {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one submission channel is required: %w", ports.ErrConfigurationError)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DualSubmitter{channels: channels, timeout: timeout, logger: logger}, nil
}

type sendResult struct {
	channel   string
	signature string
	err       error
}

// Submit sends tx on every channel concurrently and returns the first
// non-empty signature. Remaining sends are canceled and not awaited; they may
// still land, which is not treated as an error.
func (s *DualSubmitter) Submit(ctx context.Context, tx *domain.SignedTx, tip uint64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make(chan sendResult, len(s.channels))
	start := time.Now()
	for _, ch := range s.channels {
		go func(ch ports.TxSender) {
			sig, err := ch.Send(ctx, tx)
			results <- sendResult{channel: ch.Name(), signature: sig, err: err}
		}(ch)
	}

	var errs []error
	for range s.channels {
		select {
		case res := <-results:
			if res.err == nil && res.signature != "" {
				s.logger.Debug(ctx, "Transaction accepted", map[string]interface{}{
					"channel":   res.channel,
					"signature": res.signature,
					"tip":       tip,
					"latencyMs": time.Since(start).Milliseconds(),
				})
				return res.signature, nil
			}
			if res.err == nil {
				res.err = errors.New("empty signature")
			}
			errs = append(errs, fmt.Errorf("%s: %w", res.channel, res.err))
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			return "", fmt.Errorf("%w: %w", ports.ErrSubmissionFailed, errors.Join(errs...))
		}
	}
	return "", fmt.Errorf("%w: %w", ports.ErrSubmissionFailed, errors.Join(errs...))
}
