package swap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// scriptedRunner fills each request in full, failing the calls listed in fail.
type scriptedRunner struct {
	fail     map[int]error
	requests []domain.SwapRequest
}

func (r *scriptedRunner) Execute(ctx context.Context, req domain.SwapRequest) (*domain.SwapResult, error) {
	r.requests = append(r.requests, req)
	n := len(r.requests)
	if err := r.fail[n]; err != nil {
		return nil, err
	}
	return &domain.SwapResult{
		Success:   true,
		Signature: fmt.Sprintf("sig%d", n),
		InAmount:  req.Amount,
		OutAmount: req.Amount * 2,
		Attempts:  1,
		Tip:       100,
	}, nil
}

func newTestSplitter(t *testing.T, runner Runner) (*Splitter, *[]time.Duration) {
	t.Helper()
	s, err := NewSplitter(runner, SplitConfig{ThresholdImpact: 2, ChunkDelay: 500 * time.Millisecond}, &mockLogger{})
	require.NoError(t, err)
	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return s, &sleeps
}

func splitBuy(amount uint64) domain.SwapRequest {
	return domain.SwapRequest{
		Side:           domain.Buy,
		InputMint:      testBase,
		OutputMint:     testToken,
		Amount:         amount,
		MaxSlippage:    1,
		InputDecimals:  9,
		OutputDecimals: 9,
		Tag:            "buy",
	}
}

func TestSplitter_Chunks(t *testing.T) {
	s, _ := newTestSplitter(t, &scriptedRunner{})
	tests := []struct {
		impact float64
		want   int
	}{
		{0, 1},
		{2, 1},
		{2.5, 2},
		{3, 2},
		{3.5, 3},
		{5, 3},
		{5.1, 4},
		{9, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Chunks(tt.impact), "impact %v", tt.impact)
	}
}

func TestSplitter_BelowThresholdPassesThrough(t *testing.T) {
	runner := &scriptedRunner{}
	s, sleeps := newTestSplitter(t, runner)

	res, err := s.Execute(context.Background(), splitBuy(1_000), 1.5)
	require.NoError(t, err)
	require.Len(t, runner.requests, 1)
	assert.Equal(t, uint64(1_000), runner.requests[0].Amount)
	assert.Equal(t, "sig1", res.Signature)
	assert.Empty(t, *sleeps)
}

func TestSplitter_SplitsWithRemainderInLastChunk(t *testing.T) {
	runner := &scriptedRunner{}
	s, sleeps := newTestSplitter(t, runner)

	res, err := s.Execute(context.Background(), splitBuy(1_000), 4)
	require.NoError(t, err)

	var amounts []uint64
	for _, r := range runner.requests {
		amounts = append(amounts, r.Amount)
		assert.Equal(t, 1.0, r.MaxSlippage)
	}
	assert.Equal(t, []uint64{333, 333, 334}, amounts)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, *sleeps)

	assert.True(t, res.Success)
	assert.Equal(t, uint64(1_000), res.InAmount)
	assert.Equal(t, uint64(2_000), res.OutAmount)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, uint64(300), res.Tip)
	assert.Equal(t, "sig1", res.Signature)
	assert.InDelta(t, 0.5, res.Price, 1e-12)
}

func TestSplitter_FailedChunkIsSkipped(t *testing.T) {
	runner := &scriptedRunner{fail: map[int]error{1: ports.ErrExecutionFailed}}
	s, sleeps := newTestSplitter(t, runner)
	logger := s.logger.(*mockLogger)

	res, err := s.Execute(context.Background(), splitBuy(1_000), 6)
	require.NoError(t, err)
	require.Len(t, runner.requests, 4)
	assert.Equal(t, uint64(750), res.InAmount, "only landed chunks count")
	assert.Equal(t, "sig2", res.Signature)
	assert.Len(t, *sleeps, 2, "no pause after a failed chunk or the last one")
	assert.Contains(t, logger.warnMsgs, "Order chunk failed, continuing")
}

func TestSplitter_AllChunksFail(t *testing.T) {
	runner := &scriptedRunner{fail: map[int]error{1: errBoom, 2: errBoom}}
	s, _ := newTestSplitter(t, runner)

	_, err := s.Execute(context.Background(), splitBuy(1_000), 2.5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrExecutionFailed)
	assert.ErrorIs(t, err, errBoom)
}

func TestSplitter_CanceledStopsRemainingChunks(t *testing.T) {
	runner := &scriptedRunner{}
	s, _ := newTestSplitter(t, runner)
	ctx, cancel := context.WithCancel(context.Background())
	s.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	res, err := s.Execute(ctx, splitBuy(1_000), 6)
	require.NoError(t, err, "a landed chunk is reported even when the rest is canceled")
	assert.Len(t, runner.requests, 1)
	assert.Equal(t, uint64(250), res.InAmount)
}

func TestNewSplitter_Validates(t *testing.T) {
	_, err := NewSplitter(&scriptedRunner{}, SplitConfig{}, &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
	_, err = NewSplitter(nil, SplitConfig{ThresholdImpact: 2}, &mockLogger{})
	assert.Error(t, err)
}
