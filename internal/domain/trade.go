package domain

import "time"

// Trade represents an executed swap on a position.
type Trade struct {
	ID            string
	PositionID    string
	TokenID       string
	Side          OrderSide
	Signature     string
	BaseAmount    float64 // Base units spent (buy) or received (sell)
	TokenAmount   uint64  // Raw token units bought or sold
	Price         float64 // Base units per token
	SoldPercent   float64 // Percent of the original position covered by this sell
	ProfitPercent float64 // ROI of Price against the position's buy price (sells only)
	PNL           float64 // Realized profit in base units (sells only)
	USDValue      float64 // BaseAmount valued at the reference price, zero if unknown
	Reason        ExitReason
	Source        string
	Paper         bool
	ExecutedAt    time.Time
}

// TradeIntent is a request to open a position, produced by an intent source.
type TradeIntent struct {
	TokenID    string    `json:"token_id"`
	Amount     float64   `json:"amount"`   // Base units to spend, zero uses the configured default
	Slippage   float64   `json:"slippage"` // Percent, zero uses the configured default
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
}
