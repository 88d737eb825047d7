// Package solanarpc adapts a Solana JSON-RPC node to the swap and balance ports.
package solanarpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"sniperBot/internal/ports"
)

// API is the subset of the RPC client used by the adapters.
type API interface {
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetRecentPerformanceSamples(ctx context.Context, limit *uint) ([]*rpc.GetRecentPerformanceSamplesResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
	GetTokenSupply(ctx context.Context, mint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
}

// Dial returns an RPC client for endpoint.
func Dial(endpoint string) (*rpc.Client, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("%w: rpc url must be http(s), got %q", ports.ErrConfigurationError, endpoint)
	}
	return rpc.New(endpoint), nil
}

// LoadWallet parses a base58 encoded private key.
func LoadWallet(secret string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid wallet key: %w", ports.ErrConfigurationError, err)
	}
	return key, nil
}

func parseKey(s string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: invalid address %q: %w", ports.ErrInvalidRequest, s, err)
	}
	return key, nil
}

// wrapRPC tags a node error with the matching port error.
func wrapRPC(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.Canceled) || strings.Contains(msg, "context canceled"):
		return fmt.Errorf("%s: %w: %w", op, ports.ErrContextCanceled, err)
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "deadline exceeded"):
		return fmt.Errorf("%s: %w: %w", op, ports.ErrTimeout, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return fmt.Errorf("%s: %w: %w", op, ports.ErrRateLimited, err)
	case strings.Contains(msg, "insufficient"):
		return fmt.Errorf("%s: %w: %w", op, ports.ErrInsufficientFunds, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ports.ErrConnectionFailed, err)
}
