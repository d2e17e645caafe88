package tierbill

import (
	"context"

	"github.com/xraph/tierbill/event"
	"github.com/xraph/tierbill/id"
	"github.com/xraph/tierbill/roles"
	"github.com/xraph/tierbill/store"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// FundsSink receives withdrawn funds. Implementations move value out of
// the ledger: a payout API call, a bank transfer, a downstream account.
// Transfer runs outside the ledger lock; a sink that calls back into a
// mutating ledger operation gets ErrReentrantCall.
type FundsSink interface {
	Transfer(ctx context.Context, to string, amount types.Money) error
}

// FundsSinkFunc adapts a function to the FundsSink interface.
type FundsSinkFunc func(ctx context.Context, to string, amount types.Money) error

func (f FundsSinkFunc) Transfer(ctx context.Context, to string, amount types.Money) error {
	return f(ctx, to, amount)
}

// UpdateTierPrice changes the price of a priced tier. Administrator-gated.
// The change applies to future subscribes and renewals only; live
// subscriptions keep their paid-for period and credits untouched.
func (l *Ledger) UpdateTierPrice(ctx context.Context, t tier.Tier, price types.Money) error {
	if l.transferring.Load() {
		return ErrReentrantCall
	}

	l.mu.Lock()
	cfg, err := l.updateTierLocked(ctx, t, func(cfg *tier.Config) error {
		if !price.IsPositive() || price.Currency != l.currency {
			return ErrInvalidAmount
		}
		cfg.Price = price
		return nil
	})
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.journalTierUpdate(ctx, event.KindTierPriceUpdated, t, cfg)
	l.plugins.EmitTierUpdated(ctx, t, *cfg)
	l.logger.Info("tier price updated", "tier", t, "price", price)
	return nil
}

// UpdateTierCredits changes the credit allotment of a priced tier.
// Administrator-gated. Applies to future subscribes and renewals only.
func (l *Ledger) UpdateTierCredits(ctx context.Context, t tier.Tier, credits int64) error {
	if l.transferring.Load() {
		return ErrReentrantCall
	}

	l.mu.Lock()
	cfg, err := l.updateTierLocked(ctx, t, func(cfg *tier.Config) error {
		if credits <= 0 {
			return ErrInvalidAmount
		}
		cfg.Credits = credits
		return nil
	})
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.journalTierUpdate(ctx, event.KindTierCreditsUpdated, t, cfg)
	l.plugins.EmitTierUpdated(ctx, t, *cfg)
	l.logger.Info("tier credits updated", "tier", t, "credits", credits)
	return nil
}

func (l *Ledger) updateTierLocked(ctx context.Context, t tier.Tier, apply func(*tier.Config) error) (*tier.Config, error) {
	if _, err := l.requireInitialized(ctx); err != nil {
		return nil, err
	}
	if err := l.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if !t.Priced() {
		return nil, ErrEnterpriseTier
	}

	cfg, err := l.store.GetTierConfig(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := apply(&cfg); err != nil {
		return nil, err
	}
	if err := l.store.PutTierConfig(ctx, t, cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Ledger) journalTierUpdate(ctx context.Context, kind event.Kind, t tier.Tier, cfg *tier.Config) {
	l.journal(ctx, &event.Record{
		Kind:    kind,
		Tier:    t,
		Amount:  cfg.Price,
		Credits: cfg.Credits,
	})
}

// ──────────────────────────────────────────────────
// Pause
// ──────────────────────────────────────────────────

// Pause halts subscribes, renewals, and usage reporting. Cancellation,
// role changes, and all queries keep working. Idempotent.
func (l *Ledger) Pause(ctx context.Context) error {
	return l.setPaused(ctx, true)
}

// Unpause resumes normal operation. Idempotent.
func (l *Ledger) Unpause(ctx context.Context) error {
	return l.setPaused(ctx, false)
}

func (l *Ledger) setPaused(ctx context.Context, paused bool) error {
	if l.transferring.Load() {
		return ErrReentrantCall
	}

	l.mu.Lock()
	changed, err := l.setPausedLocked(ctx, paused)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	l.plugins.EmitPauseChanged(ctx, paused)
	l.logger.Info("pause state changed", "paused", paused)
	return nil
}

func (l *Ledger) setPausedLocked(ctx context.Context, paused bool) (bool, error) {
	ctl, err := l.requireInitialized(ctx)
	if err != nil {
		return false, err
	}
	if err := l.requireAdmin(ctx); err != nil {
		return false, err
	}
	if ctl.Paused == paused {
		return false, nil
	}

	ctl.Paused = paused
	if err := l.store.PutControl(ctx, ctl); err != nil {
		return false, err
	}

	kind := event.KindPaused
	if !paused {
		kind = event.KindUnpaused
	}
	l.journal(ctx, &event.Record{Kind: kind, Account: ActorFrom(ctx)})
	return true, nil
}

// ──────────────────────────────────────────────────
// Withdrawal
// ──────────────────────────────────────────────────

// Withdraw moves held funds out of the ledger through the sink.
// Administrator-gated. The withdrawal is booked before the transfer runs,
// so a sink that re-enters the ledger sees the reduced balance and every
// mutating entry point answers ErrReentrantCall until the transfer
// returns. A failed transfer is compensated: the booking is reversed and
// the call fails with ErrTransferFailed.
func (l *Ledger) Withdraw(ctx context.Context, to string, amount types.Money, sink FundsSink) error {
	if !l.transferring.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	defer l.transferring.Store(false)

	l.mu.Lock()
	err := l.withdrawLocked(ctx, to, amount, sink)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	// Transfer outside the lock. Mutations are still fenced off by the
	// transferring flag.
	if err := sink.Transfer(ctx, to, amount); err != nil {
		l.mu.Lock()
		if rerr := l.store.RecordWithdrawal(ctx, amount.Negate()); rerr != nil {
			l.logger.Error("failed to reverse withdrawal booking",
				"amount", amount, "error", rerr)
		}
		l.mu.Unlock()
		return errf(ErrTransferFailed, "transfer to %s: %v", to, err)
	}

	l.journal(ctx, &event.Record{
		Kind:    event.KindWithdrawal,
		Account: to,
		Amount:  amount,
	})

	l.plugins.EmitWithdrawal(ctx, to, amount)
	l.logger.Info("funds withdrawn", "to", to, "amount", amount)
	return nil
}

func (l *Ledger) withdrawLocked(ctx context.Context, to string, amount types.Money, sink FundsSink) error {
	if _, err := l.requireInitialized(ctx); err != nil {
		return err
	}
	if err := l.requireAdmin(ctx); err != nil {
		return err
	}
	if to == "" {
		return ErrInvalidAccount
	}
	if sink == nil {
		return ErrInvalidInput
	}
	if !amount.IsPositive() || amount.Currency != l.currency {
		return ErrInvalidAmount
	}

	totals, err := l.store.GetRevenue(ctx)
	if err != nil {
		return err
	}
	if totals.Held().Amount < amount.Amount {
		return ErrInsufficientBalance
	}

	return l.store.RecordWithdrawal(ctx, amount)
}

// ──────────────────────────────────────────────────
// Roles
// ──────────────────────────────────────────────────

// GrantRole assigns a role to an account. Administrator-gated. Idempotent.
func (l *Ledger) GrantRole(ctx context.Context, account string, role roles.Role) error {
	if l.transferring.Load() {
		return ErrReentrantCall
	}

	l.mu.Lock()
	err := l.roleChangeLocked(ctx, account, role, event.KindRoleGranted, l.store.GrantRole)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.plugins.EmitRoleGranted(ctx, account, role)
	return nil
}

// RevokeRole removes a role from an account. Administrator-gated.
// Idempotent. Revoking Subscriber does not cancel the subscription.
func (l *Ledger) RevokeRole(ctx context.Context, account string, role roles.Role) error {
	if l.transferring.Load() {
		return ErrReentrantCall
	}

	l.mu.Lock()
	err := l.roleChangeLocked(ctx, account, role, event.KindRoleRevoked, l.store.RevokeRole)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.plugins.EmitRoleRevoked(ctx, account, role)
	return nil
}

func (l *Ledger) roleChangeLocked(ctx context.Context, account string, role roles.Role, kind event.Kind, apply func(context.Context, string, roles.Role) error) error {
	if _, err := l.requireInitialized(ctx); err != nil {
		return err
	}
	if err := l.requireAdmin(ctx); err != nil {
		return err
	}
	if account == "" {
		return ErrInvalidAccount
	}
	if !role.Valid() {
		return ErrInvalidInput
	}

	if err := apply(ctx, account, role); err != nil {
		return err
	}

	l.journal(ctx, &event.Record{
		Kind:    kind,
		Account: account,
		Reason:  string(role),
	})
	return nil
}

// ──────────────────────────────────────────────────
// Snapshot
// ──────────────────────────────────────────────────

// ExportSnapshot captures the full durable state in a versioned form
// suitable for migrating to a replacement deployment. Administrator-gated.
func (l *Ledger) ExportSnapshot(ctx context.Context) (*store.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.requireInitialized(ctx); err != nil {
		return nil, err
	}
	if err := l.requireAdmin(ctx); err != nil {
		return nil, err
	}

	snap, err := l.store.Export(ctx)
	if err != nil {
		return nil, err
	}
	snap.ID = id.NewSnapshotID()

	return snap, nil
}

// RestoreSnapshot loads a snapshot into an uninitialized ledger. The
// snapshot's control record carries over, so the restored ledger is
// initialized with the original administrator. Restoring onto an
// initialized ledger fails rather than silently merging.
func (l *Ledger) RestoreSnapshot(ctx context.Context, snap *store.Snapshot) error {
	if l.transferring.Load() {
		return ErrReentrantCall
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if snap == nil {
		return ErrInvalidInput
	}
	if snap.Version != store.SnapshotVersion {
		return errf(ErrSnapshotVersion, "got version %d, want %d", snap.Version, store.SnapshotVersion)
	}

	ctl, err := l.store.GetControl(ctx)
	if err != nil {
		return err
	}
	if ctl.Initialized {
		return ErrAlreadyInitialized
	}

	if err := l.store.Import(ctx, snap); err != nil {
		return err
	}

	l.logger.Info("snapshot restored",
		"subscriptions", len(snap.Subscriptions),
		"events", len(snap.Events),
	)
	return nil
}
