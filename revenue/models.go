// Package revenue defines the aggregate revenue counters.
package revenue

import "github.com/xraph/tierbill/types"

// Totals holds the ledger-wide revenue counters. Collected and
// Subscriptions are historical and strictly monotonic; Withdrawn tracks
// custody moved out by administrator withdrawals and never rewrites the
// historical counters.
type Totals struct {
	Collected     types.Money `json:"collected"`
	Withdrawn     types.Money `json:"withdrawn"`
	Subscriptions int64       `json:"subscriptions"`
}

// Held returns the funds currently in custody: everything collected minus
// everything withdrawn.
func (t Totals) Held() types.Money {
	if t.Collected.Currency == "" {
		return t.Withdrawn.Negate()
	}
	if t.Withdrawn.Currency == "" {
		return t.Collected
	}
	return t.Collected.Subtract(t.Withdrawn)
}
