package domain

import "time"

// PriceHistoryCapacity bounds the number of price points kept per position.
const PriceHistoryCapacity = 100

// PricePoint is a single observed price.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// PriceHistory is a fixed-capacity ring buffer of price points.
// It is a value type so copying a Position copies its history.
type PriceHistory struct {
	points [PriceHistoryCapacity]PricePoint
	start  int
	size   int
}

// Append adds a point, evicting the oldest once the buffer is full.
func (h *PriceHistory) Append(p PricePoint) {
	if h.size < PriceHistoryCapacity {
		h.points[(h.start+h.size)%PriceHistoryCapacity] = p
		h.size++
		return
	}
	h.points[h.start] = p
	h.start = (h.start + 1) % PriceHistoryCapacity
}

// Len returns the number of stored points.
func (h *PriceHistory) Len() int { return h.size }

// Points returns the stored points, oldest first.
func (h *PriceHistory) Points() []PricePoint {
	out := make([]PricePoint, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.points[(h.start+i)%PriceHistoryCapacity]
	}
	return out
}

// Prices returns the stored prices, oldest first.
func (h *PriceHistory) Prices() []float64 {
	out := make([]float64, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.points[(h.start+i)%PriceHistoryCapacity].Price
	}
	return out
}

// Position represents a token holding managed by the engine.
type Position struct {
	ID            string // Unique identifier, also used in persisted events
	TokenID       string // Token mint (unique key in the registry)
	Source        string // Provenance tag of the intent that opened it
	BuySignature  string
	BuyPrice      float64 // Base units per token
	CurrentPrice  float64
	HighPrice     float64
	LowPrice      float64
	PercentChange float64 // ROI of CurrentPrice against BuyPrice
	BuyAmount     float64 // Base units spent
	TokenAmount   uint64  // Raw token units acquired
	TokenDecimals uint8
	SoldPercent   float64 // Percent of the original position already sold (0..100)
	BuyTime       time.Time
	LastCheckTime time.Time

	// Trailing stop state, zero until armed
	TrailingStopPrice float64
	TrailingStopROI   float64

	History        PriceHistory
	SellInProgress bool
	Status         PositionStatus
}

// NewPosition creates an open position from a confirmed buy.
func NewPosition(id, token string, buyPrice, buyAmount float64, tokens uint64, decimals uint8, at time.Time) Position {
	p := Position{
		ID:            id,
		TokenID:       token,
		BuyPrice:      buyPrice,
		CurrentPrice:  buyPrice,
		HighPrice:     buyPrice,
		LowPrice:      buyPrice,
		BuyAmount:     buyAmount,
		TokenAmount:   tokens,
		TokenDecimals: decimals,
		BuyTime:       at,
		LastCheckTime: at,
		Status:        StatusOpen,
	}
	p.History.Append(PricePoint{Time: at, Price: buyPrice})
	return p
}

// IsOpen checks if the position can still be traded.
func (p *Position) IsOpen() bool {
	return p.Status != StatusClosed
}

// RemainingPercent is the share of the original position still held.
func (p *Position) RemainingPercent() float64 {
	return 100 - p.SoldPercent
}

// HighROI returns the ROI of the high watermark.
func (p *Position) HighROI() float64 {
	return ROI(p.BuyPrice, p.HighPrice)
}

// TrailingArmed reports whether a trailing stop has been set.
func (p *Position) TrailingArmed() bool {
	return p.TrailingStopPrice > 0
}

// ObservePrice records a new price tick and updates watermarks.
// It reports whether the high or low watermark moved.
func (p *Position) ObservePrice(price float64, at time.Time) bool {
	p.CurrentPrice = price
	p.LastCheckTime = at
	p.History.Append(PricePoint{Time: at, Price: price})

	moved := false
	if price > p.HighPrice {
		p.HighPrice = price
		moved = true
	}
	if p.LowPrice <= 0 || price < p.LowPrice {
		p.LowPrice = price
		moved = true
	}
	p.PercentChange = ROI(p.BuyPrice, price)
	return moved
}

// AddSold increases SoldPercent by pct, clamped to [current, 100].
func (p *Position) AddSold(pct float64) {
	if pct <= 0 {
		return
	}
	p.SoldPercent += pct
	if p.SoldPercent > 100 {
		p.SoldPercent = 100
	}
}

// ROI returns the percent change from entry to price.
func ROI(entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (price - entry) / entry * 100
}
