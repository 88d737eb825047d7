package domain

import "encoding/json"

// QuoteRequest asks a quote provider for an exact-in swap.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // Raw input units
	SlippageBps int
}

// Quote is an executable price quote. Route carries provider specific
// metadata needed to build the transaction.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct float64
	SlippageBps    int
	Route          json.RawMessage
}

// SignedTx is a serialized, signed transaction ready for submission.
type SignedTx struct {
	Raw       []byte
	Signature string
}

// SwapRequest is the input to one swap execution.
type SwapRequest struct {
	Side           OrderSide
	InputMint      string
	OutputMint     string
	Amount         uint64  // Raw input units
	MaxSlippage    float64 // Percent
	InputDecimals  uint8
	OutputDecimals uint8
	Tag            string
}

// SwapResult is the terminal outcome of a successful execution.
type SwapResult struct {
	Success   bool
	Signature string
	InAmount  uint64
	OutAmount uint64
	Price     float64 // Base units per token
	Proceeds  float64 // Base units received, sells only
	Attempts  int
	Tip       uint64
}
