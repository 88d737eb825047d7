package swap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/ports"
)

func TestProber_Price(t *testing.T) {
	quoter := &mockQuoter{script: []quoteStep{{out: 1_000_000}}} // 0.001 base
	p := NewProber(quoter, testBase, 1, NewLimiter(1))

	price, err := p.Price(context.Background(), testToken, 6, 1_000_000_000)
	require.NoError(t, err)

	require.Len(t, quoter.requests, 1)
	req := quoter.requests[0]
	assert.Equal(t, uint64(10_000_000), req.Amount)
	assert.Equal(t, testToken, req.InputMint)
	assert.Equal(t, testBase, req.OutputMint)
	// 0.001 base for 10 tokens
	assert.InDelta(t, 0.0001, price, 1e-12)
}

func TestProber_Errors(t *testing.T) {
	p := NewProber(&mockQuoter{script: []quoteStep{{err: errBoom}}}, testBase, 1, nil)
	_, err := p.Price(context.Background(), testToken, 6, 100)
	assert.ErrorIs(t, err, ports.ErrQuoteUnavailable)

	p = NewProber(&mockQuoter{script: []quoteStep{{out: 0}}}, testBase, 1, nil)
	_, err = p.Price(context.Background(), testToken, 6, 100)
	assert.ErrorIs(t, err, ports.ErrQuoteUnavailable)
}
