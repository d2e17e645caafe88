package tierbill

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound       = errors.New("tierbill: not found")
	ErrInvalidInput   = errors.New("tierbill: invalid input")
	ErrUnauthorized   = errors.New("tierbill: unauthorized")
	ErrInvalidAccount = errors.New("tierbill: invalid account")

	// Lifecycle errors
	ErrNotInitialized     = errors.New("tierbill: ledger not initialized")
	ErrAlreadyInitialized = errors.New("tierbill: ledger already initialized")
	ErrInvalidAdmin       = errors.New("tierbill: invalid admin account")
	ErrPaused             = errors.New("tierbill: ledger is paused")

	// Tier errors
	ErrUnknownTier       = errors.New("tierbill: unknown tier")
	ErrEnterpriseTier    = errors.New("tierbill: enterprise tier requires custom terms")
	ErrTierNotConfigured = errors.New("tierbill: tier not configured")

	// Subscription errors
	ErrNoSubscription       = errors.New("tierbill: no subscription")
	ErrNoActiveSubscription = errors.New("tierbill: no active subscription")
	ErrTermsNotSet          = errors.New("tierbill: enterprise terms not set")

	// Payment errors
	ErrPaymentMismatch     = errors.New("tierbill: payment does not match price")
	ErrInvalidAmount       = errors.New("tierbill: invalid amount")
	ErrInsufficientCredits = errors.New("tierbill: insufficient credits")
	ErrInsufficientBalance = errors.New("tierbill: insufficient held balance")
	ErrTransferFailed      = errors.New("tierbill: value transfer failed")
	ErrReentrantCall       = errors.New("tierbill: reentrant call")

	// Snapshot errors
	ErrSnapshotVersion = errors.New("tierbill: unsupported snapshot version")

	// Store errors
	ErrStoreNotReady     = errors.New("tierbill: store not ready")
	ErrStoreClosed       = errors.New("tierbill: store is closed")
	ErrMigrationFailed   = errors.New("tierbill: migration failed")
	ErrTransactionFailed = errors.New("tierbill: transaction failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tierbill: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNoSubscription) ||
		errors.Is(err, ErrTermsNotSet) ||
		errors.Is(err, ErrTierNotConfigured)
}

// IsAuthorization returns true if the error is an authorization failure.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidAdmin)
}

// IsPayment returns true if the error is related to value transfer or pricing.
func IsPayment(err error) bool {
	return errors.Is(err, ErrPaymentMismatch) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrReentrantCall)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrReentrantCall)
}
