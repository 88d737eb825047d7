package swap

import (
	"errors"

	"sniperBot/internal/ports"
)

// ErrorClass groups execution failures by how the pipeline reacts to them.
type ErrorClass int

const (
	// Transient failures are retried after the normal backoff.
	Transient ErrorClass = iota
	// FatalToAttempt failures end the execution without retry.
	FatalToAttempt
	// Ambiguous failures may have landed; retried with escalated slippage.
	Ambiguous
	// Policy failures retry with a reduced amount instead of more slippage.
	Policy
)

func (c ErrorClass) String() string {
	switch c {
	case FatalToAttempt:
		return "fatal"
	case Ambiguous:
		return "ambiguous"
	case Policy:
		return "policy"
	default:
		return "transient"
	}
}

// Classify maps an execution error to its class.
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, ports.ErrImpactTooHigh):
		return FatalToAttempt
	case errors.Is(err, ports.ErrTransactionFailed):
		// Landed and reverted, so nothing was filled.
		return Transient
	case errors.Is(err, ports.ErrConfirmationTimeout):
		return Ambiguous
	case errors.Is(err, ports.ErrOutputTooSmall):
		return Policy
	default:
		return Transient
	}
}
