package domain

// VolumeWindows holds summed activity over the monitored windows.
type VolumeWindows struct {
	Vol1m   float64
	Vol5m   float64
	Vol30m  float64
	Samples int
}

// VolumeSignal is the anomaly verdict for a token. The zero value means no signal.
type VolumeSignal struct {
	Spike   bool
	DryUp   bool
	Ratio   float64 // 1m volume over the 5m per-minute average
	Windows VolumeWindows
}

// ExitDecision is the outcome of one exit evaluation.
// The trailing fields carry the trailing stop state to persist, whether or not
// a sell is signalled.
type ExitDecision struct {
	ShouldSell  bool
	Reason      ExitReason
	SellPercent float64 // Percent of the original position to sell
	Message     string

	TrailingStopPrice float64
	TrailingStopROI   float64
}
