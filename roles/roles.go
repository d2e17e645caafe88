// Package roles defines the capability tags used to gate ledger mutations.
//
// Administrator and Platform are externally managed; Subscriber is granted
// automatically on the first successful subscribe and revoked on cancel.
package roles

import "sort"

// Role is a capability tag attached to an account.
type Role string

const (
	Administrator Role = "administrator"
	Platform      Role = "platform"
	Subscriber    Role = "subscriber"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case Administrator, Platform, Subscriber:
		return true
	}
	return false
}

// Set is the set of roles held by a single account.
type Set map[Role]struct{}

// NewSet builds a Set from the given roles.
func NewSet(rs ...Role) Set {
	s := make(Set, len(rs))
	for _, r := range rs {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether the set contains r.
func (s Set) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// HasAny reports whether the set contains at least one of the given roles.
func (s Set) HasAny(rs ...Role) bool {
	for _, r := range rs {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Add inserts r into the set.
func (s Set) Add(r Role) { s[r] = struct{}{} }

// Remove deletes r from the set.
func (s Set) Remove(r Role) { delete(s, r) }

// List returns the roles in deterministic order.
func (s Set) List() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
