package solanarpc

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// SwapTxFetcher returns an unsigned serialized swap transaction for a quote.
type SwapTxFetcher interface {
	SwapTransaction(ctx context.Context, quote *domain.Quote, user string, priorityFee uint64) ([]byte, error)
}

// Builder implements ports.TxBuilder by fetching the swap transaction from
// the aggregator and signing it with the wallet.
type Builder struct {
	fetcher SwapTxFetcher
	wallet  solana.PrivateKey
}

// NewBuilder creates a builder signing with wallet.
func NewBuilder(fetcher SwapTxFetcher, wallet solana.PrivateKey) *Builder {
	return &Builder{fetcher: fetcher, wallet: wallet}
}

// Owner returns the wallet address.
func (b *Builder) Owner() string { return b.wallet.PublicKey().String() }

// BuildAndSign fetches, signs and serializes the swap for quote.
func (b *Builder) BuildAndSign(ctx context.Context, quote *domain.Quote, tip uint64) (*domain.SignedTx, error) {
	raw, err := b.fetcher.SwapTransaction(ctx, quote, b.Owner(), tip)
	if err != nil {
		return nil, err
	}
	return b.Sign(raw)
}

// Sign signs a serialized transaction with the wallet key.
func (b *Builder) Sign(raw []byte) (*domain.SignedTx, error) {
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse transaction: %w", ports.ErrBuildOrSignFailed, err)
	}
	owner := b.wallet.PublicKey()
	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(owner) {
			return &b.wallet
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: sign: %w", ports.ErrBuildOrSignFailed, err)
	}
	out, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: serialize: %w", ports.ErrBuildOrSignFailed, err)
	}
	return &domain.SignedTx{Raw: out, Signature: tx.Signatures[0].String()}, nil
}
