package audit

// Action constants for audit events.
const (
	// Subscription actions
	ActionSubscriptionCreated  = "subscription.created"
	ActionSubscriptionRenewed  = "subscription.renewed"
	ActionSubscriptionCanceled = "subscription.canceled"

	// Credit actions
	ActionCreditsConsumed = "credits.consumed"
	ActionCreditsGranted  = "credits.granted"

	// Payment actions
	ActionPaymentRecorded = "payment.recorded"
	ActionFundsWithdrawn  = "funds.withdrawn"

	// Administration actions
	ActionTierUpdated = "tier.updated"
	ActionPauseFlip   = "pause.changed"
	ActionRoleGranted = "role.granted"
	ActionRoleRevoked = "role.revoked"
)

// Resource constants for audit events.
const (
	ResourceSubscription = "subscription"
	ResourceCredits      = "credits"
	ResourcePayment      = "payment"
	ResourceTier         = "tier"
	ResourceControl      = "control"
	ResourceRole         = "role"
)

// Category constants for audit events.
const (
	CategorySubscription = "subscription"
	CategoryUsage        = "usage"
	CategoryPayment      = "payment"
	CategoryAdmin        = "admin"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
