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
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// External Service Errors
	ErrServiceUnavailable   = errors.New("external service is unavailable")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrQuoteFailed          = errors.New("failed to obtain swap quote")
	ErrNoRoute              = errors.New("no swap route for pair")
	ErrSwapFailed           = errors.New("failed to submit swap transaction")
	ErrConfirmFailed        = errors.New("swap transaction was not confirmed")
	ErrBalanceUnavailable   = errors.New("wallet balance unavailable")

	// Feed Errors
	ErrFeedExhausted = errors.New("launch feed reconnect attempts exhausted")

	// Ledger Errors
	ErrNoOpenPosition = errors.New("no open position for asset")
	ErrInvalidState   = errors.New("trade is not in the expected state")
	ErrDBConnection   = errors.New("database connection error")
	ErrUpdateFailed   = errors.New("database update failed")
)
