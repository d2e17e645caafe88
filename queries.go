package tierbill

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/tierbill/credit"
	"github.com/xraph/tierbill/event"
	"github.com/xraph/tierbill/revenue"
	"github.com/xraph/tierbill/roles"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// Read-only surface. Queries go straight to the store without taking the
// engine lock and are never blocked by the reentrancy guard.

// GetSubscription returns the account's subscription record, active or not.
func (l *Ledger) GetSubscription(ctx context.Context, account string) (*subscription.Subscription, error) {
	return l.store.GetSubscription(ctx, account)
}

// ListSubscriptions returns subscription records matching the filter.
func (l *Ledger) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return l.store.ListSubscriptions(ctx, opts)
}

// IsSubscriptionActive reports whether the account's subscription is both
// uncancelled and unexpired at the current time.
func (l *Ledger) IsSubscriptionActive(ctx context.Context, account string) (bool, error) {
	sub, err := l.store.GetSubscription(ctx, account)
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			return false, nil
		}
		return false, err
	}
	return sub.Live(l.clock()), nil
}

// GetSubscriptionExpiry returns the end of the account's paid period.
func (l *Ledger) GetSubscriptionExpiry(ctx context.Context, account string) (time.Time, error) {
	sub, err := l.store.GetSubscription(ctx, account)
	if err != nil {
		return time.Time{}, err
	}
	return sub.End, nil
}

// GetCreditBalance returns the account's spendable credit balance.
// Accounts with no subscription history report zero.
func (l *Ledger) GetCreditBalance(ctx context.Context, account string) (int64, error) {
	return l.store.GetCreditBalance(ctx, account)
}

// Allowance answers whether the account could consume amount credits
// right now, without consuming anything. The result carries the reason
// when the answer is no.
func (l *Ledger) Allowance(ctx context.Context, account string, amount int64) (*credit.Result, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	res := &credit.Result{Account: account, Requested: amount}

	ctl, err := l.store.GetControl(ctx)
	if err != nil {
		return nil, err
	}
	if !ctl.Initialized {
		res.Reason = "not initialized"
		return res, nil
	}
	if ctl.Paused {
		res.Reason = "paused"
		return res, nil
	}

	sub, err := l.store.GetSubscription(ctx, account)
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			res.Reason = "no subscription"
			return res, nil
		}
		return nil, err
	}

	res.Remaining = sub.CreditsRemaining
	if sub.CreditsRemaining < amount {
		res.Reason = "insufficient credits"
		return res, nil
	}

	res.Allowed = true
	return res, nil
}

// GetTierPrice returns the current price of a priced tier.
func (l *Ledger) GetTierPrice(ctx context.Context, t tier.Tier) (types.Money, error) {
	cfg, err := l.tierConfig(ctx, t)
	if err != nil {
		return types.Money{}, err
	}
	return cfg.Price, nil
}

// GetTierCredits returns the current credit allotment of a priced tier.
func (l *Ledger) GetTierCredits(ctx context.Context, t tier.Tier) (int64, error) {
	cfg, err := l.tierConfig(ctx, t)
	if err != nil {
		return 0, err
	}
	return cfg.Credits, nil
}

func (l *Ledger) tierConfig(ctx context.Context, t tier.Tier) (tier.Config, error) {
	if !t.Valid() {
		return tier.Config{}, ErrUnknownTier
	}
	if !t.Priced() {
		return tier.Config{}, ErrEnterpriseTier
	}
	return l.store.GetTierConfig(ctx, t)
}

// GetEnterpriseTerms returns the custom terms recorded for an account.
func (l *Ledger) GetEnterpriseTerms(ctx context.Context, account string) (*tier.EnterpriseTerms, error) {
	return l.store.GetEnterpriseTerms(ctx, account)
}

// Revenue returns the lifetime revenue totals.
func (l *Ledger) Revenue(ctx context.Context) (*revenue.Totals, error) {
	return l.store.GetRevenue(ctx)
}

// HeldFunds returns collected revenue not yet withdrawn.
func (l *Ledger) HeldFunds(ctx context.Context) (types.Money, error) {
	totals, err := l.store.GetRevenue(ctx)
	if err != nil {
		return types.Money{}, err
	}
	return totals.Held(), nil
}

// LifetimeSpent returns everything the account has ever paid in.
func (l *Ledger) LifetimeSpent(ctx context.Context, account string) (types.Money, error) {
	return l.store.GetLifetimeSpent(ctx, account)
}

// IsPaused reports the pause flag.
func (l *Ledger) IsPaused(ctx context.Context) (bool, error) {
	ctl, err := l.store.GetControl(ctx)
	if err != nil {
		return false, err
	}
	return ctl.Paused, nil
}

// IsInitialized reports whether Initialize has run.
func (l *Ledger) IsInitialized(ctx context.Context) (bool, error) {
	ctl, err := l.store.GetControl(ctx)
	if err != nil {
		return false, err
	}
	return ctl.Initialized, nil
}

// Admin returns the administrator account recorded at initialization.
func (l *Ledger) Admin(ctx context.Context) (string, error) {
	ctl, err := l.store.GetControl(ctx)
	if err != nil {
		return "", err
	}
	return ctl.Admin, nil
}

// HasRole reports whether the account holds the role.
func (l *Ledger) HasRole(ctx context.Context, account string, role roles.Role) (bool, error) {
	return l.store.HasRole(ctx, account, role)
}

// Roles returns every role the account holds, sorted.
func (l *Ledger) Roles(ctx context.Context, account string) ([]roles.Role, error) {
	set, err := l.store.ListRoles(ctx, account)
	if err != nil {
		return nil, err
	}
	return set.List(), nil
}

// Events returns journal records matching the filter, oldest first.
func (l *Ledger) Events(ctx context.Context, opts event.ListOpts) ([]*event.Record, error) {
	return l.store.ListEvents(ctx, opts)
}
