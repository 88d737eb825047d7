package solanarpc

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// Sender implements ports.TxSender over a plain RPC node.
type Sender struct {
	api  API
	name string
}

// NewSender creates an RPC broadcast channel.
func NewSender(api API, name string) *Sender {
	if name == "" {
		name = "rpc"
	}
	return &Sender{api: api, name: name}
}

// Name identifies the channel in logs.
func (s *Sender) Name() string { return s.name }

// Send broadcasts tx without preflight simulation.
func (s *Sender) Send(ctx context.Context, tx *domain.SignedTx) (string, error) {
	if tx == nil || len(tx.Raw) == 0 {
		return "", fmt.Errorf("%w: empty transaction", ports.ErrInvalidRequest)
	}
	parsed, err := solana.TransactionFromBytes(tx.Raw)
	if err != nil {
		return "", fmt.Errorf("%w: parse transaction: %w", ports.ErrInvalidRequest, err)
	}
	sig, err := s.api.SendTransactionWithOpts(ctx, parsed, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return "", wrapRPC(err, "sendTransaction")
	}
	return sig.String(), nil
}
