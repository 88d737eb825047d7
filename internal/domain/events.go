package domain

import "time"

// EventType names a lifecycle event emitted to persistence sinks.
type EventType string

const (
	EventBuyRecorded      EventType = "buy_recorded"
	EventSellRecorded     EventType = "sell_recorded"
	EventWatermarkUpdated EventType = "watermark_updated"
	EventSellFailed       EventType = "sell_failed"
)

// LifecycleEvent is plain data describing something that happened to a position.
type LifecycleEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	PositionID string    `json:"position_id"`
	TokenID    string    `json:"token_id"`
	Time       time.Time `json:"time"`
	Trade      *Trade    `json:"trade,omitempty"`
	HighPrice  float64   `json:"high_price,omitempty"`
	LowPrice   float64   `json:"low_price,omitempty"`
	MaxROI     float64   `json:"max_roi,omitempty"`
	Message    string    `json:"message,omitempty"`
}
