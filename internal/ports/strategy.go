package ports

import (
	"time"

	"sniperBot/internal/domain"
)

// ExitEvaluator decides whether a position should be (partially) sold.
// Implementations must be pure: the same inputs yield the same decision.
type ExitEvaluator interface {
	Evaluate(pos domain.Position, vol domain.VolumeSignal, now time.Time) domain.ExitDecision
}
