package solanarpc

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

const performanceSampleLimit = 5

// Chain reads wallet balances, mint metadata and network load.
type Chain struct {
	api   API
	owner solana.PublicKey
	base  string

	mu       sync.RWMutex
	decimals map[string]uint8
}

// NewChain creates a reader for owner's holdings. baseMint resolves to
// domain.BaseDecimals without a lookup.
func NewChain(api API, owner solana.PublicKey, baseMint string) *Chain {
	return &Chain{api: api, owner: owner, base: baseMint, decimals: make(map[string]uint8)}
}

// BaseBalance returns the wallet's native balance in lamports.
func (c *Chain) BaseBalance(ctx context.Context) (uint64, error) {
	out, err := c.api.GetBalance(ctx, c.owner, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, wrapRPC(err, "getBalance")
	}
	return out.Value, nil
}

// TokenBalance sums the raw balance of every token account the wallet holds
// for mint. A wallet without an account holds zero.
func (c *Chain) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	mintKey, err := parseKey(mint)
	if err != nil {
		return 0, err
	}
	out, err := c.api.GetTokenAccountsByOwner(ctx, c.owner,
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed, Encoding: solana.EncodingBase64})
	if err != nil {
		return 0, wrapRPC(err, "getTokenAccountsByOwner")
	}
	var total uint64
	for _, acc := range out.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		// SPL token account layout: mint(32) owner(32) amount(u64 LE)
		data := acc.Account.Data.GetBinary()
		if len(data) < 72 {
			continue
		}
		total += binary.LittleEndian.Uint64(data[64:72])
	}
	return total, nil
}

// Decimals returns the mint's decimals, cached after the first lookup.
func (c *Chain) Decimals(ctx context.Context, mint string) (uint8, error) {
	if mint == c.base {
		return domain.BaseDecimals, nil
	}
	c.mu.RLock()
	d, ok := c.decimals[mint]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	mintKey, err := parseKey(mint)
	if err != nil {
		return 0, err
	}
	out, err := c.api.GetTokenSupply(ctx, mintKey, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, wrapRPC(err, "getTokenSupply")
	}
	if out == nil || out.Value == nil {
		return 0, fmt.Errorf("%w: no supply for mint %s", ports.ErrNotFound, mint)
	}

	c.mu.Lock()
	c.decimals[mint] = out.Value.Decimals
	c.mu.Unlock()
	return out.Value.Decimals, nil
}

// SampleLoad returns the average transactions per slot over recent samples.
func (c *Chain) SampleLoad(ctx context.Context) (float64, error) {
	limit := uint(performanceSampleLimit)
	samples, err := c.api.GetRecentPerformanceSamples(ctx, &limit)
	if err != nil {
		return 0, wrapRPC(err, "getRecentPerformanceSamples")
	}
	var txs, slots uint64
	for _, s := range samples {
		if s == nil {
			continue
		}
		txs += s.NumTransactions
		slots += s.NumSlots
	}
	if slots == 0 {
		return 0, fmt.Errorf("%w: no performance samples", ports.ErrNotFound)
	}
	return float64(txs) / float64(slots), nil
}
