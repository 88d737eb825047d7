package ports

import (
	"context"
	"time"

	"sniperBot/internal/domain"
)

// Quoter returns executable quotes for exact-in swaps.
type Quoter interface {
	Quote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error)
}

// TxBuilder turns a quote into a signed transaction. The tip is the priority
// fee in lamports that the transaction should carry.
type TxBuilder interface {
	BuildAndSign(ctx context.Context, quote *domain.Quote, tip uint64) (*domain.SignedTx, error)
}

// TxSender is a single submission channel.
type TxSender interface {
	// Name identifies the channel in logs.
	Name() string
	// Send broadcasts the transaction and returns its signature.
	Send(ctx context.Context, tx *domain.SignedTx) (string, error)
}

// Submitter submits a signed transaction and returns the first accepted signature.
type Submitter interface {
	Submit(ctx context.Context, tx *domain.SignedTx, tip uint64) (string, error)
}

// Confirmer waits for a signature to reach confirmed commitment.
// It returns false without error when the timeout elapses first.
type Confirmer interface {
	Confirm(ctx context.Context, signature string, timeout time.Duration) (bool, error)
}

// CongestionSampler reports current network load as average transactions per slot.
type CongestionSampler interface {
	SampleLoad(ctx context.Context) (float64, error)
}

// BalanceProvider reports wallet holdings in raw units.
type BalanceProvider interface {
	TokenBalance(ctx context.Context, mint string) (uint64, error)
	BaseBalance(ctx context.Context) (uint64, error)
}

// MintInfo resolves token metadata needed for amount conversion.
type MintInfo interface {
	Decimals(ctx context.Context, mint string) (uint8, error)
}

// ReferencePriceProvider values the base asset in USD.
type ReferencePriceProvider interface {
	ReferencePrice(ctx context.Context) (float64, error)
}
