// Package tier defines the closed set of subscription tiers and their
// price/credit configuration.
package tier

import (
	"fmt"

	"github.com/xraph/tierbill/types"
)

// Tier is one of a small fixed set of subscription plans.
type Tier string

const (
	Starter    Tier = "starter"
	Pro        Tier = "pro"
	Teams      Tier = "teams"
	Enterprise Tier = "enterprise"
)

// All lists every tier in ascending order.
var All = []Tier{Starter, Pro, Teams, Enterprise}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case Starter, Pro, Teams, Enterprise:
		return true
	}
	return false
}

// Priced reports whether t resolves through the shared tier schedule.
// Enterprise resolves through per-account custom terms instead.
func (t Tier) Priced() bool {
	return t.Valid() && t != Enterprise
}

// Parse converts a string into a Tier.
func Parse(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("tier: unknown tier %q", s)
	}
	return t, nil
}

// Config holds the price and monthly credit allotment for a tier.
// Mutated only by an administrator; a mutation applies to future
// subscribe/renew calls and never retroactively.
type Config struct {
	Price   types.Money `json:"price"`
	Credits int64       `json:"credits"`
}

// EnterpriseTerms is the per-account price/credit override used in place
// of the shared schedule for Enterprise-tier accounts. Set once at
// enterprise subscription creation.
type EnterpriseTerms struct {
	types.Entity
	Account string      `json:"account"`
	Price   types.Money `json:"price"`
	Credits int64       `json:"credits"`
}

// DefaultSchedule returns the initial tier schedule in the given currency.
// Enterprise is deliberately absent: it has no shared configuration.
func DefaultSchedule(currency string) map[Tier]Config {
	return map[Tier]Config{
		Starter: {Price: types.Money{Amount: 1500, Currency: currency}, Credits: 100},
		Pro:     {Price: types.Money{Amount: 3900, Currency: currency}, Credits: 500},
		Teams:   {Price: types.Money{Amount: 9900, Currency: currency}, Credits: 2000},
	}
}
