// Package credit defines the read-side allowance check for usage credits.
package credit

// Result is the outcome of an allowance check: whether the account may
// report usage right now, and how many credits remain. Pure read — no
// side effects.
type Result struct {
	Allowed   bool   `json:"allowed"`
	Account   string `json:"account"`
	Requested int64  `json:"requested"`
	Remaining int64  `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}
