// Package memory provides an in-process Store backed by maps. It is the
// default for tests, demos, and embedded single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/tierbill"
	"github.com/xraph/tierbill/event"
	"github.com/xraph/tierbill/revenue"
	"github.com/xraph/tierbill/roles"
	"github.com/xraph/tierbill/store"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

type Store struct {
	mu sync.RWMutex

	control store.Control

	// Tier schedule
	configs map[tier.Tier]tier.Config

	// Subscription storage, keyed by account
	subscriptions map[string]*subscription.Subscription

	// Enterprise terms, keyed by account
	terms map[string]*tier.EnterpriseTerms

	// Credit balances
	balances map[string]int64

	// Role assignments
	roleSets map[string]roles.Set

	// Revenue counters
	revenue revenue.Totals
	spent   map[string]types.Money

	// Event journal
	events []*event.Record

	closed bool
}

func New() *Store {
	return &Store{
		configs:       make(map[tier.Tier]tier.Config),
		subscriptions: make(map[string]*subscription.Subscription),
		terms:         make(map[string]*tier.EnterpriseTerms),
		balances:      make(map[string]int64),
		roleSets:      make(map[string]roles.Set),
		spent:         make(map[string]types.Money),
		events:        make([]*event.Record, 0),
	}
}

var _ store.Store = (*Store)(nil)

// Control state

func (s *Store) GetControl(_ context.Context) (*store.Control, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.control
	return &c, nil
}

func (s *Store) PutControl(_ context.Context, c *store.Control) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.control = *c
	return nil
}

// Tier schedule

func (s *Store) PutTierConfig(_ context.Context, t tier.Tier, cfg tier.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[t] = cfg
	return nil
}

func (s *Store) GetTierConfig(_ context.Context, t tier.Tier) (tier.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[t]
	if !ok {
		return tier.Config{}, tierbill.ErrTierNotConfigured
	}
	return cfg, nil
}

func (s *Store) DeleteTierConfig(_ context.Context, t tier.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.configs, t)
	return nil
}

func (s *Store) ListTierConfigs(_ context.Context) (map[tier.Tier]tier.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[tier.Tier]tier.Config, len(s.configs))
	for t, cfg := range s.configs {
		out[t] = cfg
	}
	return out, nil
}

// Subscriptions

func (s *Store) PutSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sub
	s.subscriptions[sub.Account] = &cp
	return nil
}

func (s *Store) GetSubscription(_ context.Context, account string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[account]
	if !ok {
		return nil, tierbill.ErrNoSubscription
	}
	cp := *sub
	return &cp, nil
}

func (s *Store) DeleteSubscription(_ context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subscriptions, account)
	return nil
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if opts.Tier != "" && sub.Tier != opts.Tier {
			continue
		}
		if opts.ActiveOnly && !sub.Active {
			continue
		}
		cp := *sub
		result = append(result, &cp)
	}

	// Deterministic order for pagination
	sort.Slice(result, func(i, j int) bool {
		return result[i].Account < result[j].Account
	})

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Enterprise terms

func (s *Store) PutEnterpriseTerms(_ context.Context, terms *tier.EnterpriseTerms) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *terms
	s.terms[terms.Account] = &cp
	return nil
}

func (s *Store) GetEnterpriseTerms(_ context.Context, account string) (*tier.EnterpriseTerms, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms, ok := s.terms[account]
	if !ok {
		return nil, tierbill.ErrTermsNotSet
	}
	cp := *terms
	return &cp, nil
}

func (s *Store) DeleteEnterpriseTerms(_ context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.terms, account)
	return nil
}

// Credit balances

func (s *Store) SetCreditBalance(_ context.Context, account string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[account] = balance
	return nil
}

func (s *Store) GetCreditBalance(_ context.Context, account string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[account], nil
}

// Roles

func (s *Store) GrantRole(_ context.Context, account string, role roles.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.roleSets[account]
	if !ok {
		set = roles.NewSet()
		s.roleSets[account] = set
	}
	set.Add(role)
	return nil
}

func (s *Store) RevokeRole(_ context.Context, account string, role roles.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.roleSets[account]; ok {
		set.Remove(role)
	}
	return nil
}

func (s *Store) HasRole(_ context.Context, account string, role roles.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.roleSets[account]
	if !ok {
		return false, nil
	}
	return set.Has(role), nil
}

func (s *Store) ListRoles(_ context.Context, account string) (roles.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := roles.NewSet()
	if set, ok := s.roleSets[account]; ok {
		for _, r := range set.List() {
			out.Add(r)
		}
	}
	return out, nil
}

// Revenue counters

func (s *Store) RecordPayment(_ context.Context, account string, amount types.Money, newSubscription bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revenue.Collected.IsZero() {
		s.revenue.Collected = types.Zero(amount.Currency)
	}
	s.revenue.Collected = s.revenue.Collected.Add(amount)
	if newSubscription {
		s.revenue.Subscriptions++
	}

	prev, ok := s.spent[account]
	if !ok {
		prev = types.Zero(amount.Currency)
	}
	s.spent[account] = prev.Add(amount)
	return nil
}

func (s *Store) RecordWithdrawal(_ context.Context, amount types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revenue.Withdrawn.IsZero() {
		s.revenue.Withdrawn = types.Zero(amount.Currency)
	}
	s.revenue.Withdrawn = s.revenue.Withdrawn.Add(amount)
	return nil
}

func (s *Store) GetRevenue(_ context.Context) (*revenue.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.revenue
	return &t, nil
}

func (s *Store) GetLifetimeSpent(_ context.Context, account string) (types.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.spent[account], nil
}

// Event journal

func (s *Store) AppendEvent(_ context.Context, rec *event.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.events = append(s.events, &cp)
	return nil
}

func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Record, 0)
	for _, rec := range s.events {
		if opts.Account != "" && rec.Account != opts.Account {
			continue
		}
		if opts.Kind != "" && rec.Kind != opts.Kind {
			continue
		}
		cp := *rec
		result = append(result, &cp)
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Snapshot

func (s *Store) Export(_ context.Context) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &store.Snapshot{
		Version:       store.SnapshotVersion,
		Control:       s.control,
		TierConfigs:   make(map[tier.Tier]tier.Config, len(s.configs)),
		Subscriptions: make([]*subscription.Subscription, 0, len(s.subscriptions)),
		Terms:         make([]*tier.EnterpriseTerms, 0, len(s.terms)),
		Balances:      make(map[string]int64, len(s.balances)),
		Roles:         make(map[string][]roles.Role, len(s.roleSets)),
		Revenue:       s.revenue,
		Spent:         make(map[string]types.Money, len(s.spent)),
		Events:        make([]*event.Record, 0, len(s.events)),
	}

	for t, cfg := range s.configs {
		snap.TierConfigs[t] = cfg
	}
	for _, sub := range s.subscriptions {
		cp := *sub
		snap.Subscriptions = append(snap.Subscriptions, &cp)
	}
	sort.Slice(snap.Subscriptions, func(i, j int) bool {
		return snap.Subscriptions[i].Account < snap.Subscriptions[j].Account
	})
	for _, terms := range s.terms {
		cp := *terms
		snap.Terms = append(snap.Terms, &cp)
	}
	for account, balance := range s.balances {
		snap.Balances[account] = balance
	}
	for account, set := range s.roleSets {
		snap.Roles[account] = set.List()
	}
	for account, amount := range s.spent {
		snap.Spent[account] = amount
	}
	for _, rec := range s.events {
		cp := *rec
		snap.Events = append(snap.Events, &cp)
	}

	return snap, nil
}

func (s *Store) Import(_ context.Context, snap *store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.control = snap.Control
	s.configs = make(map[tier.Tier]tier.Config, len(snap.TierConfigs))
	for t, cfg := range snap.TierConfigs {
		s.configs[t] = cfg
	}
	s.subscriptions = make(map[string]*subscription.Subscription, len(snap.Subscriptions))
	for _, sub := range snap.Subscriptions {
		cp := *sub
		s.subscriptions[sub.Account] = &cp
	}
	s.terms = make(map[string]*tier.EnterpriseTerms, len(snap.Terms))
	for _, terms := range snap.Terms {
		cp := *terms
		s.terms[terms.Account] = &cp
	}
	s.balances = make(map[string]int64, len(snap.Balances))
	for account, balance := range snap.Balances {
		s.balances[account] = balance
	}
	s.roleSets = make(map[string]roles.Set, len(snap.Roles))
	for account, list := range snap.Roles {
		set := roles.NewSet()
		for _, r := range list {
			set.Add(r)
		}
		s.roleSets[account] = set
	}
	s.revenue = snap.Revenue
	s.spent = make(map[string]types.Money, len(snap.Spent))
	for account, amount := range snap.Spent {
		s.spent[account] = amount
	}
	s.events = make([]*event.Record, 0, len(snap.Events))
	for _, rec := range snap.Events {
		cp := *rec
		s.events = append(s.events, &cp)
	}

	return nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return tierbill.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
