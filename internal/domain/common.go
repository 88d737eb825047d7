package domain

// OrderSide represents the direction of a swap relative to the base asset.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// PositionStatus represents the lifecycle state of a tracked position.
type PositionStatus string

const (
	StatusOpen    PositionStatus = "open"
	StatusSelling PositionStatus = "selling"
	StatusClosed  PositionStatus = "closed"
)

// ExitStrategy selects how the main profit exit is handled.
type ExitStrategy string

const (
	ExitFullTakeProfit ExitStrategy = "FULL_TP"
	ExitTrailingStop   ExitStrategy = "TRAILING_STOP"
)

// ExitReason indicates why (part of) a position was sold.
type ExitReason string

const (
	ExitReasonMultiTakeProfit ExitReason = "MULTI_TP"
	ExitReasonVolumeSpike     ExitReason = "VOLUME_SPIKE"
	ExitReasonVolumeDryUp     ExitReason = "VOLUME_DRYUP"
	ExitReasonStopLoss        ExitReason = "STOP_LOSS"
	ExitReasonTrailingStop    ExitReason = "TRAILING_STOP"
	ExitReasonTakeProfit      ExitReason = "TAKE_PROFIT"
	ExitReasonMaxHold         ExitReason = "MAX_HOLD"
	ExitReasonManual          ExitReason = "MANUAL"
)
