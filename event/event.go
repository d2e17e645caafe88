// Package event defines the immutable journal records emitted for every
// ledger state transition. Each record carries enough fields for an
// off-chain observer to reconstruct the transition without re-querying.
package event

import (
	"time"

	"github.com/xraph/tierbill/id"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// Kind identifies the state transition a record describes.
type Kind string

const (
	KindInitialized          Kind = "initialized"
	KindSubscriptionCreated  Kind = "subscription_created"
	KindSubscriptionRenewed  Kind = "subscription_renewed"
	KindSubscriptionCanceled Kind = "subscription_canceled"
	KindCreditsConsumed      Kind = "credits_consumed"
	KindCreditsGranted       Kind = "credits_granted"
	KindPaymentRecorded      Kind = "payment_recorded"
	KindTierPriceUpdated     Kind = "tier_price_updated"
	KindTierCreditsUpdated   Kind = "tier_credits_updated"
	KindPaused               Kind = "paused"
	KindUnpaused             Kind = "unpaused"
	KindWithdrawal           Kind = "withdrawal"
	KindRoleGranted          Kind = "role_granted"
	KindRoleRevoked          Kind = "role_revoked"
)

// Record is one immutable journal entry. Fields that do not apply to a
// given kind are left at their zero value.
type Record struct {
	ID         id.EventID  `json:"id"`
	Kind       Kind        `json:"kind"`
	Account    string      `json:"account,omitempty"`
	Tier       tier.Tier   `json:"tier,omitempty"`
	Amount     types.Money `json:"amount,omitempty"`
	Credits    int64       `json:"credits,omitempty"`
	Balance    int64       `json:"balance"`
	PeriodEnd  time.Time   `json:"period_end,omitempty"`
	Active     bool        `json:"active"`
	Reason     string      `json:"reason,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// ListOpts filters journal listings.
type ListOpts struct {
	Account string
	Kind    Kind
	Limit   int
	Offset  int
}
