package subscription

import (
	"time"

	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// Subscription is the single per-account subscription record. Creating a
// new one always fully replaces the prior one; cancellation clears Active
// but never deletes the record, so history stays queryable.
type Subscription struct {
	types.Entity
	Account          string     `json:"account"`
	Tier             tier.Tier  `json:"tier"`
	Start            time.Time  `json:"start"`
	End              time.Time  `json:"end"`
	CreditsRemaining int64      `json:"credits_remaining"`
	Active           bool       `json:"active"`
	CanceledAt       *time.Time `json:"canceled_at,omitempty"`
}

// Live reports whether the subscription is usable at the given instant:
// the stored Active flag is set and the hard expiry has not passed.
// Expiry is a derived read-time predicate, never a stored state.
func (s *Subscription) Live(now time.Time) bool {
	return s.Active && !now.After(s.End)
}

// Expired reports whether the hard expiry has passed, irrespective of the
// Active flag. An expired-but-not-cancelled subscription can still renew.
func (s *Subscription) Expired(now time.Time) bool {
	return now.After(s.End)
}

// ListOpts filters subscription listings.
type ListOpts struct {
	Tier       tier.Tier
	ActiveOnly bool
	Limit      int
	Offset     int
}
