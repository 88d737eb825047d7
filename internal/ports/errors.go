package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Provider Errors
	ErrConnectionFailed  = errors.New("failed to connect to provider")
	ErrRateLimited       = errors.New("provider rate limit exceeded")
	ErrProviderRejected  = errors.New("provider rejected the request")
	ErrInsufficientFunds = errors.New("insufficient funds for operation")

	// Swap Execution Errors
	ErrQuoteUnavailable    = errors.New("quote unavailable")
	ErrImpactTooHigh       = errors.New("price impact above abort threshold")
	ErrOutputTooSmall      = errors.New("quoted output below minimum viable amount")
	ErrBuildOrSignFailed   = errors.New("failed to build or sign transaction")
	ErrSubmissionFailed    = errors.New("transaction submission failed on all channels")
	ErrConfirmationTimeout = errors.New("transaction not confirmed in time")
	ErrTransactionFailed   = errors.New("transaction failed on chain")
	ErrExecutionFailed     = errors.New("swap execution failed")

	// Position Errors
	ErrPositionExists   = errors.New("position already open for token")
	ErrPositionNotFound = errors.New("position not found")
	ErrSellInProgress   = errors.New("sell already in progress for position")
	ErrSellFailed       = errors.New("sell failed after all escalation steps")
	ErrRiskLimit        = errors.New("risk limit reached")
	ErrTokenUnsafe      = errors.New("token failed safety checks")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
)
