package tierbill_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/tierbill"
	"github.com/xraph/tierbill/event"
	"github.com/xraph/tierbill/id"
	"github.com/xraph/tierbill/roles"
	"github.com/xraph/tierbill/store"
	"github.com/xraph/tierbill/store/memory"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

const adminAccount = "acct_admin"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// newTestLedger returns a started, initialized ledger on a memory store,
// an admin-scoped context, and a movable clock.
func newTestLedger(t *testing.T, opts ...tierbill.Option) (*tierbill.Ledger, context.Context, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]tierbill.Option{tierbill.WithClock(clock.Now)}, opts...)

	l := tierbill.New(memory.New(), opts...)
	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Stop() })

	if err := l.Initialize(ctx, adminAccount); err != nil {
		t.Fatal(err)
	}
	return l, tierbill.WithActor(ctx, adminAccount), clock
}

// requireMirror asserts that the credit balance and the subscription's
// remaining credits agree.
func requireMirror(t *testing.T, l *tierbill.Ledger, ctx context.Context, account string) {
	t.Helper()

	sub, err := l.GetSubscription(ctx, account)
	if err != nil {
		t.Fatal(err)
	}
	balance, err := l.GetCreditBalance(ctx, account)
	if err != nil {
		t.Fatal(err)
	}
	if balance != sub.CreditsRemaining {
		t.Fatalf("balance %d diverged from subscription credits %d", balance, sub.CreditsRemaining)
	}
}

func TestInitialize(t *testing.T) {
	l := tierbill.New(memory.New())
	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	// Operations are rejected before initialization.
	_, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500))
	if !errors.Is(err, tierbill.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	if err := l.Initialize(ctx, ""); !errors.Is(err, tierbill.ErrInvalidAdmin) {
		t.Errorf("expected ErrInvalidAdmin, got %v", err)
	}
	if err := l.Initialize(ctx, adminAccount); err != nil {
		t.Fatal(err)
	}

	// One-shot gate.
	if err := l.Initialize(ctx, "acct_other"); !errors.Is(err, tierbill.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}

	admin, err := l.Admin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if admin != adminAccount {
		t.Errorf("expected admin %q, got %q", adminAccount, admin)
	}
	ok, err := l.HasRole(ctx, adminAccount, roles.Administrator)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("admin should hold the administrator role")
	}

	// Default schedule is seeded.
	price, err := l.GetTierPrice(ctx, tier.Starter)
	if err != nil {
		t.Fatal(err)
	}
	if !price.Equal(tierbill.USD(1500)) {
		t.Errorf("unexpected starter price %s", price)
	}
}

func TestStarterLifecycle(t *testing.T) {
	l, ctx, clock := newTestLedger(t)

	sub, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500))
	if err != nil {
		t.Fatal(err)
	}
	if sub.CreditsRemaining != 100 {
		t.Errorf("expected 100 credits, got %d", sub.CreditsRemaining)
	}
	wantEnd := clock.Now().Add(tierbill.DefaultPeriod)
	if !sub.End.Equal(wantEnd) {
		t.Errorf("expected end %v, got %v", wantEnd, sub.End)
	}
	requireMirror(t, l, ctx, "acct_1")

	remaining, err := l.Consume(ctx, "acct_1", 30, "api usage")
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 70 {
		t.Errorf("expected 70 remaining, got %d", remaining)
	}
	requireMirror(t, l, ctx, "acct_1")

	balance, err := l.AddBonus(ctx, "acct_1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 120 {
		t.Errorf("expected 120 after bonus, got %d", balance)
	}
	requireMirror(t, l, ctx, "acct_1")

	// Renewal resets credits to the allotment and extends from the
	// previous end, not from now.
	clock.Advance(10 * 24 * time.Hour)
	renewed, err := l.Renew(ctx, "acct_1", tierbill.USD(1500))
	if err != nil {
		t.Fatal(err)
	}
	if renewed.CreditsRemaining != 100 {
		t.Errorf("renewal should reset credits to 100, got %d", renewed.CreditsRemaining)
	}
	if !renewed.End.Equal(wantEnd.Add(tierbill.DefaultPeriod)) {
		t.Errorf("renewal should extend from previous end, got %v", renewed.End)
	}
	requireMirror(t, l, ctx, "acct_1")

	spent, err := l.LifetimeSpent(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if spent.Amount != 3000 {
		t.Errorf("expected 3000 lifetime spend, got %d", spent.Amount)
	}
}

func TestSubscribePaymentMustMatchExactly(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	for _, amount := range []int64{0, 1499, 1501, 3900} {
		_, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(amount))
		if !errors.Is(err, tierbill.ErrPaymentMismatch) {
			t.Errorf("paying %d: expected ErrPaymentMismatch, got %v", amount, err)
		}
	}

	// A failed payment leaves no trace.
	if _, err := l.GetSubscription(ctx, "acct_1"); !errors.Is(err, tierbill.ErrNoSubscription) {
		t.Errorf("expected no subscription after failed payments, got %v", err)
	}
	totals, err := l.Revenue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !totals.Collected.IsZero() {
		t.Errorf("failed payments must not book revenue, got %s", totals.Collected)
	}
}

func TestSubscribeRejectsEnterpriseAndUnknownTiers(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	_, err := l.Subscribe(ctx, "acct_1", tier.Enterprise, tierbill.USD(1))
	if !errors.Is(err, tierbill.ErrEnterpriseTier) {
		t.Errorf("expected ErrEnterpriseTier, got %v", err)
	}
	_, err = l.Subscribe(ctx, "acct_1", tier.Tier("platinum"), tierbill.USD(1))
	if !errors.Is(err, tierbill.ErrUnknownTier) {
		t.Errorf("expected ErrUnknownTier, got %v", err)
	}
}

func TestResubscribeReplacesEntirely(t *testing.T) {
	l, ctx, clock := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Consume(ctx, "acct_1", 40, ""); err != nil {
		t.Fatal(err)
	}

	clock.Advance(5 * 24 * time.Hour)
	sub, err := l.Subscribe(ctx, "acct_1", tier.Pro, tierbill.USD(3900))
	if err != nil {
		t.Fatal(err)
	}

	// No merging: old credits and old period are gone.
	if sub.CreditsRemaining != 500 {
		t.Errorf("expected pro allotment 500, got %d", sub.CreditsRemaining)
	}
	if !sub.End.Equal(clock.Now().Add(tierbill.DefaultPeriod)) {
		t.Errorf("new subscription period should start fresh, got end %v", sub.End)
	}
	requireMirror(t, l, ctx, "acct_1")
}

func TestConsume(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500)); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Consume(ctx, "acct_1", 0, ""); !errors.Is(err, tierbill.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := l.Consume(ctx, "acct_1", -5, ""); !errors.Is(err, tierbill.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative, got %v", err)
	}

	// Over-consumption fails with no partial deduction.
	if _, err := l.Consume(ctx, "acct_1", 101, ""); !errors.Is(err, tierbill.ErrInsufficientCredits) {
		t.Errorf("expected ErrInsufficientCredits, got %v", err)
	}
	balance, err := l.GetCreditBalance(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 100 {
		t.Errorf("failed consume must not deduct, got %d", balance)
	}

	// Draining to exactly zero is allowed.
	remaining, err := l.Consume(ctx, "acct_1", 100, "drain")
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Errorf("expected zero remaining, got %d", remaining)
	}
	if _, err := l.Consume(ctx, "acct_1", 1, ""); !errors.Is(err, tierbill.ErrInsufficientCredits) {
		t.Errorf("expected ErrInsufficientCredits at zero, got %v", err)
	}
}

func TestCancelKeepsCredits(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Pro, tierbill.USD(3900)); err != nil {
		t.Fatal(err)
	}

	if err := l.Cancel(ctx, "acct_1"); err != nil {
		t.Fatal(err)
	}

	sub, err := l.GetSubscription(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if sub.Active {
		t.Error("canceled subscription should be inactive")
	}
	if sub.CanceledAt == nil {
		t.Error("canceled subscription should record cancellation time")
	}
	if sub.CreditsRemaining != 500 {
		t.Errorf("cancellation must preserve credits, got %d", sub.CreditsRemaining)
	}

	active, err := l.IsSubscriptionActive(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Error("canceled subscription should not report active")
	}

	// Subscriber role is revoked, so second cancel is unauthorized.
	if err := l.Cancel(ctx, "acct_1"); !errors.Is(err, tierbill.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized on second cancel, got %v", err)
	}

	// Renewal needs an active subscription.
	if _, err := l.Renew(ctx, "acct_1", tierbill.USD(3900)); !errors.Is(err, tierbill.ErrNoActiveSubscription) {
		t.Errorf("expected ErrNoActiveSubscription, got %v", err)
	}
}

func TestPlatformActorConsumesForCanceledAccount(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Pro, tierbill.USD(3900)); err != nil {
		t.Fatal(err)
	}
	if err := l.GrantRole(ctx, "acct_platform", roles.Platform); err != nil {
		t.Fatal(err)
	}
	if err := l.Cancel(ctx, "acct_1"); err != nil {
		t.Fatal(err)
	}

	// The account itself lost the subscriber role.
	plain := context.Background()
	if _, err := l.Consume(plain, "acct_1", 10, ""); !errors.Is(err, tierbill.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	// A platform actor can still spend the surviving credits.
	platformCtx := tierbill.WithActor(plain, "acct_platform")
	remaining, err := l.Consume(platformCtx, "acct_1", 10, "late usage")
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 490 {
		t.Errorf("expected 490 remaining, got %d", remaining)
	}
}

func TestExpiredSubscriptionStillRenews(t *testing.T) {
	l, ctx, clock := newTestLedger(t)

	sub, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500))
	if err != nil {
		t.Fatal(err)
	}
	firstEnd := sub.End

	// Well past expiry and not canceled.
	clock.Advance(45 * 24 * time.Hour)

	active, err := l.IsSubscriptionActive(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Error("expired subscription should not report active")
	}

	renewed, err := l.Renew(ctx, "acct_1", tierbill.USD(1500))
	if err != nil {
		t.Fatal(err)
	}
	// Late renewal still extends from the stored end.
	if !renewed.End.Equal(firstEnd.Add(tierbill.DefaultPeriod)) {
		t.Errorf("late renewal should extend stored end %v, got %v", firstEnd, renewed.End)
	}
}

func TestTierUpdatesApplyForwardOnly(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	sub, err := l.Subscribe(ctx, "acct_1", tier.Pro, tierbill.USD(3900))
	if err != nil {
		t.Fatal(err)
	}

	if err := l.UpdateTierPrice(ctx, tier.Pro, tierbill.USD(4900)); err != nil {
		t.Fatal(err)
	}
	if err := l.UpdateTierCredits(ctx, tier.Pro, 750); err != nil {
		t.Fatal(err)
	}

	// The live subscription is untouched.
	current, err := l.GetSubscription(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if current.CreditsRemaining != 500 || !current.End.Equal(sub.End) {
		t.Errorf("tier update must not touch live subscriptions: %+v", current)
	}

	// Renewal at the old price now fails.
	if _, err := l.Renew(ctx, "acct_1", tierbill.USD(3900)); !errors.Is(err, tierbill.ErrPaymentMismatch) {
		t.Errorf("expected ErrPaymentMismatch at stale price, got %v", err)
	}
	renewed, err := l.Renew(ctx, "acct_1", tierbill.USD(4900))
	if err != nil {
		t.Fatal(err)
	}
	if renewed.CreditsRemaining != 750 {
		t.Errorf("renewal should use updated allotment, got %d", renewed.CreditsRemaining)
	}

	// Enterprise has no shared schedule to update.
	if err := l.UpdateTierPrice(ctx, tier.Enterprise, tierbill.USD(1)); !errors.Is(err, tierbill.ErrEnterpriseTier) {
		t.Errorf("expected ErrEnterpriseTier, got %v", err)
	}
}

func TestEnterpriseLifecycle(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	// Admin gate.
	plain := context.Background()
	_, err := l.SubscribeEnterprise(plain, "acct_big", tierbill.USD(50000), 10000, tierbill.USD(50000))
	if !errors.Is(err, tierbill.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized without admin actor, got %v", err)
	}

	// Payment must match the custom terms.
	_, err = l.SubscribeEnterprise(ctx, "acct_big", tierbill.USD(50000), 10000, tierbill.USD(49999))
	if !errors.Is(err, tierbill.ErrPaymentMismatch) {
		t.Errorf("expected ErrPaymentMismatch, got %v", err)
	}

	sub, err := l.SubscribeEnterprise(ctx, "acct_big", tierbill.USD(50000), 10000, tierbill.USD(50000))
	if err != nil {
		t.Fatal(err)
	}
	if sub.Tier != tier.Enterprise || sub.CreditsRemaining != 10000 {
		t.Errorf("unexpected enterprise subscription: %+v", sub)
	}
	requireMirror(t, l, ctx, "acct_big")

	terms, err := l.GetEnterpriseTerms(ctx, "acct_big")
	if err != nil {
		t.Fatal(err)
	}
	if !terms.Price.Equal(tierbill.USD(50000)) || terms.Credits != 10000 {
		t.Errorf("unexpected recorded terms: %+v", terms)
	}

	// Renewal charges the recorded terms, not a shared schedule.
	renewed, err := l.Renew(ctx, "acct_big", tierbill.USD(50000))
	if err != nil {
		t.Fatal(err)
	}
	if renewed.CreditsRemaining != 10000 {
		t.Errorf("enterprise renewal should reset to custom allotment, got %d", renewed.CreditsRemaining)
	}
}

func TestAdminGates(t *testing.T) {
	l, _, _ := newTestLedger(t)

	intruder := tierbill.WithActor(context.Background(), "acct_mallory")

	if err := l.UpdateTierPrice(intruder, tier.Pro, tierbill.USD(1)); !errors.Is(err, tierbill.ErrUnauthorized) {
		t.Errorf("UpdateTierPrice: expected ErrUnauthorized, got %v", err)
	}
	if err := l.UpdateTierCredits(intruder, tier.Pro, 1); !errors.Is(err, tierbill.ErrUnauthorized) {
		t.Errorf("UpdateTierCredits: expected ErrUnauthorized, got %v", err)
	}
	if _, err := l.AddBonus(intruder, "acct_1", 10); !errors.Is(err, tierbill.ErrUnauthorized) {
		t.Errorf("AddBonus: expected ErrUnauthorized, got %v", err)
	}
	if err := l.Pause(intruder); !errors.Is(err, tierbill.ErrUnauthorized) {
		t.Errorf("Pause: expected ErrUnauthorized, got %v", err)
	}
	if err := l.GrantRole(intruder, "acct_1", roles.Platform); !errors.Is(err, tierbill.ErrUnauthorized) {
		t.Errorf("GrantRole: expected ErrUnauthorized, got %v", err)
	}
	sink := tierbill.FundsSinkFunc(func(context.Context, string, types.Money) error { return nil })
	if err := l.Withdraw(intruder, "acct_payout", tierbill.USD(1), sink); !errors.Is(err, tierbill.ErrUnauthorized) {
		t.Errorf("Withdraw: expected ErrUnauthorized, got %v", err)
	}
	if _, err := l.ExportSnapshot(intruder); !errors.Is(err, tierbill.ErrUnauthorized) {
		t.Errorf("ExportSnapshot: expected ErrUnauthorized, got %v", err)
	}
}

func TestPause(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500)); err != nil {
		t.Fatal(err)
	}

	if err := l.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := l.Pause(ctx); err != nil {
		t.Fatal(err)
	}

	paused, err := l.IsPaused(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !paused {
		t.Fatal("ledger should report paused")
	}

	if _, err := l.Subscribe(ctx, "acct_2", tier.Starter, tierbill.USD(1500)); !errors.Is(err, tierbill.ErrPaused) {
		t.Errorf("Subscribe while paused: expected ErrPaused, got %v", err)
	}
	if _, err := l.Renew(ctx, "acct_1", tierbill.USD(1500)); !errors.Is(err, tierbill.ErrPaused) {
		t.Errorf("Renew while paused: expected ErrPaused, got %v", err)
	}
	if _, err := l.Consume(ctx, "acct_1", 1, ""); !errors.Is(err, tierbill.ErrPaused) {
		t.Errorf("Consume while paused: expected ErrPaused, got %v", err)
	}

	// Cancellation and queries keep working.
	if err := l.Cancel(ctx, "acct_1"); err != nil {
		t.Errorf("Cancel while paused should work, got %v", err)
	}
	if _, err := l.GetCreditBalance(ctx, "acct_1"); err != nil {
		t.Errorf("queries while paused should work, got %v", err)
	}

	if err := l.Unpause(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Subscribe(ctx, "acct_2", tier.Starter, tierbill.USD(1500)); err != nil {
		t.Errorf("Subscribe after unpause should work, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Pro, tierbill.USD(3900)); err != nil {
		t.Fatal(err)
	}

	var transferred types.Money
	sink := tierbill.FundsSinkFunc(func(_ context.Context, to string, amount types.Money) error {
		transferred = amount
		return nil
	})

	// Cannot overdraw held funds.
	err := l.Withdraw(ctx, "acct_payout", tierbill.USD(4000), sink)
	if !errors.Is(err, tierbill.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := l.Withdraw(ctx, "acct_payout", tierbill.USD(2000), sink); err != nil {
		t.Fatal(err)
	}
	if !transferred.Equal(tierbill.USD(2000)) {
		t.Errorf("sink should receive 2000, got %s", transferred)
	}

	held, err := l.HeldFunds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if held.Amount != 1900 {
		t.Errorf("expected 1900 held after withdrawal, got %d", held.Amount)
	}

	// Collected total is unaffected by withdrawals.
	totals, err := l.Revenue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if totals.Collected.Amount != 3900 {
		t.Errorf("collected total should stay 3900, got %d", totals.Collected.Amount)
	}
}

func TestWithdrawTransferFailureCompensates(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Pro, tierbill.USD(3900)); err != nil {
		t.Fatal(err)
	}

	sink := tierbill.FundsSinkFunc(func(context.Context, string, types.Money) error {
		return errors.New("wire rejected")
	})
	err := l.Withdraw(ctx, "acct_payout", tierbill.USD(2000), sink)
	if !errors.Is(err, tierbill.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	held, err := l.HeldFunds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if held.Amount != 3900 {
		t.Errorf("failed transfer must restore held funds, got %d", held.Amount)
	}
}

func TestWithdrawBlocksReentrancy(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Pro, tierbill.USD(3900)); err != nil {
		t.Fatal(err)
	}

	var reentrant []error
	sink := tierbill.FundsSinkFunc(func(ctx context.Context, to string, amount types.Money) error {
		// A malicious sink calling back into the payable surface.
		_, err := l.Subscribe(ctx, "acct_evil", tier.Starter, tierbill.USD(1500))
		reentrant = append(reentrant, err)
		innerSink := tierbill.FundsSinkFunc(func(context.Context, string, types.Money) error { return nil })
		reentrant = append(reentrant, l.Withdraw(ctx, to, amount, innerSink))
		_, err = l.Consume(ctx, "acct_1", 1, "")
		reentrant = append(reentrant, err)
		return nil
	})

	if err := l.Withdraw(ctx, "acct_payout", tierbill.USD(1000), sink); err != nil {
		t.Fatal(err)
	}

	for i, err := range reentrant {
		if !errors.Is(err, tierbill.ErrReentrantCall) {
			t.Errorf("reentrant call %d: expected ErrReentrantCall, got %v", i, err)
		}
	}

	// The outer withdrawal completed exactly once.
	held, err := l.HeldFunds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if held.Amount != 2900 {
		t.Errorf("expected 2900 held, got %d", held.Amount)
	}

	// The guard clears after the transfer returns.
	if _, err := l.Subscribe(ctx, "acct_2", tier.Starter, tierbill.USD(1500)); err != nil {
		t.Errorf("post-withdrawal subscribe should work, got %v", err)
	}
}

func TestAllowance(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	res, err := l.Allowance(ctx, "acct_1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.Reason != "no subscription" {
		t.Errorf("unexpected result for unknown account: %+v", res)
	}

	if _, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500)); err != nil {
		t.Fatal(err)
	}

	res, err = l.Allowance(ctx, "acct_1", 100)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed || res.Remaining != 100 {
		t.Errorf("expected allowance for exact balance: %+v", res)
	}

	res, err = l.Allowance(ctx, "acct_1", 101)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.Reason != "insufficient credits" {
		t.Errorf("unexpected over-balance result: %+v", res)
	}

	// Allowance is a pure query.
	balance, err := l.GetCreditBalance(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 100 {
		t.Errorf("allowance must not consume, got %d", balance)
	}
}

func TestEventJournal(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Consume(ctx, "acct_1", 30, "render"); err != nil {
		t.Fatal(err)
	}

	events, err := l.Events(ctx, event.ListOpts{Account: "acct_1", Kind: event.KindCreditsConsumed})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 consumption event, got %d", len(events))
	}
	rec := events[0]
	if rec.Credits != 30 || rec.Balance != 70 || rec.Reason != "render" {
		t.Errorf("unexpected journal record: %+v", rec)
	}
	if rec.ID.IsNil() {
		t.Error("journal record should carry an id")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	l, ctx, clock := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Pro, tierbill.USD(3900)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Consume(ctx, "acct_1", 25, ""); err != nil {
		t.Fatal(err)
	}

	snap, err := l.ExportSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.ID.IsNil() || snap.ID.Prefix() != id.PrefixSnapshot {
		t.Errorf("snapshot should carry a snap-prefixed ID, got %q", snap.ID)
	}

	// Restore into a fresh deployment.
	replacement := tierbill.New(memory.New(), tierbill.WithClock(clock.Now))
	plain := context.Background()
	if err := replacement.Start(plain); err != nil {
		t.Fatal(err)
	}
	defer replacement.Stop()

	if err := replacement.RestoreSnapshot(plain, snap); err != nil {
		t.Fatal(err)
	}

	// Restoring again hits the initialization gate carried in the snapshot.
	if err := replacement.RestoreSnapshot(plain, snap); !errors.Is(err, tierbill.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}

	balance, err := replacement.GetCreditBalance(plain, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 475 {
		t.Errorf("expected 475 after restore, got %d", balance)
	}

	// The restored ledger keeps operating with the original admin.
	restoredCtx := tierbill.WithActor(plain, adminAccount)
	if _, err := replacement.AddBonus(restoredCtx, "acct_1", 25); err != nil {
		t.Fatal(err)
	}

	// Version gate.
	bad := *snap
	bad.Version = 99
	fresh := tierbill.New(memory.New())
	if err := fresh.Start(plain); err != nil {
		t.Fatal(err)
	}
	defer fresh.Stop()
	if err := fresh.RestoreSnapshot(plain, &bad); !errors.Is(err, tierbill.ErrSnapshotVersion) {
		t.Errorf("expected ErrSnapshotVersion, got %v", err)
	}
}

func TestListSubscriptions(t *testing.T) {
	l, ctx, _ := newTestLedger(t)

	if _, err := l.Subscribe(ctx, "acct_a", tier.Starter, tierbill.USD(1500)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Subscribe(ctx, "acct_b", tier.Pro, tierbill.USD(3900)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Subscribe(ctx, "acct_c", tier.Pro, tierbill.USD(3900)); err != nil {
		t.Fatal(err)
	}
	if err := l.Cancel(ctx, "acct_c"); err != nil {
		t.Fatal(err)
	}

	active, err := l.ListSubscriptions(ctx, subscription.ListOpts{Tier: tier.Pro, ActiveOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Account != "acct_b" {
		t.Errorf("unexpected active pro subscriptions: %+v", active)
	}
}

// flakyStore wraps a working store and fails selected writes on demand.
// It exercises the unwind path that keeps a failed operation from
// leaving partial state behind.
type flakyStore struct {
	store.Store

	failSetBalance    error
	failRecordPayment error
}

func (s *flakyStore) SetCreditBalance(ctx context.Context, account string, balance int64) error {
	if s.failSetBalance != nil {
		return s.failSetBalance
	}
	return s.Store.SetCreditBalance(ctx, account, balance)
}

func (s *flakyStore) RecordPayment(ctx context.Context, account string, amount types.Money, newSubscription bool) error {
	if s.failRecordPayment != nil {
		return s.failRecordPayment
	}
	return s.Store.RecordPayment(ctx, account, amount, newSubscription)
}

// newFlakyLedger is newTestLedger with write-failure injection.
func newFlakyLedger(t *testing.T) (*tierbill.Ledger, *flakyStore, context.Context) {
	t.Helper()

	fs := &flakyStore{Store: memory.New()}
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := tierbill.New(fs, tierbill.WithClock(clock.Now))
	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Stop() })

	if err := l.Initialize(ctx, adminAccount); err != nil {
		t.Fatal(err)
	}
	return l, fs, tierbill.WithActor(ctx, adminAccount)
}

func TestConsumeWriteFailureLeavesStateIntact(t *testing.T) {
	l, fs, ctx := newFlakyLedger(t)

	if _, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500)); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("backend unavailable")
	fs.failSetBalance = boom
	if _, err := l.Consume(ctx, "acct_1", 30, "api"); !errors.Is(err, boom) {
		t.Fatalf("expected injected write error, got %v", err)
	}
	fs.failSetBalance = nil

	// The failed deduction must not survive on either side of the mirror.
	sub, err := l.GetSubscription(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if sub.CreditsRemaining != 100 {
		t.Errorf("credits after failed consume: got %d, want 100", sub.CreditsRemaining)
	}
	balance, err := l.GetCreditBalance(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 100 {
		t.Errorf("balance after failed consume: got %d, want 100", balance)
	}
	requireMirror(t, l, ctx, "acct_1")
}

func TestSubscribeWriteFailureLeavesNoTrace(t *testing.T) {
	l, fs, ctx := newFlakyLedger(t)

	boom := errors.New("backend unavailable")
	fs.failRecordPayment = boom
	if _, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500)); !errors.Is(err, boom) {
		t.Fatalf("expected injected write error, got %v", err)
	}
	fs.failRecordPayment = nil

	// No record, no balance, no role, no revenue.
	if _, err := l.GetSubscription(ctx, "acct_1"); !errors.Is(err, tierbill.ErrNoSubscription) {
		t.Errorf("expected ErrNoSubscription after failed subscribe, got %v", err)
	}
	balance, err := l.GetCreditBalance(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 0 {
		t.Errorf("balance after failed subscribe: got %d, want 0", balance)
	}
	ok, err := l.HasRole(ctx, "acct_1", roles.Subscriber)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("failed subscribe must not leave the subscriber role behind")
	}
	totals, err := l.Revenue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !totals.Collected.IsZero() || totals.Subscriptions != 0 {
		t.Errorf("failed subscribe must not book revenue, got %+v", totals)
	}

	// The slate is clean, so the retry installs normally.
	if _, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500)); err != nil {
		t.Fatal(err)
	}
	requireMirror(t, l, ctx, "acct_1")
}

func TestRenewWriteFailureLeavesStateIntact(t *testing.T) {
	l, fs, ctx := newFlakyLedger(t)

	sub, err := l.Subscribe(ctx, "acct_1", tier.Starter, tierbill.USD(1500))
	if err != nil {
		t.Fatal(err)
	}
	end := sub.End
	if _, err := l.Consume(ctx, "acct_1", 40, ""); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("backend unavailable")
	fs.failRecordPayment = boom
	if _, err := l.Renew(ctx, "acct_1", tierbill.USD(1500)); !errors.Is(err, boom) {
		t.Fatalf("expected injected write error, got %v", err)
	}
	fs.failRecordPayment = nil

	// Neither the extension nor the credit reset sticks.
	after, err := l.GetSubscription(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if !after.End.Equal(end) {
		t.Errorf("period end after failed renew: got %v, want %v", after.End, end)
	}
	if after.CreditsRemaining != 60 {
		t.Errorf("credits after failed renew: got %d, want 60", after.CreditsRemaining)
	}
	balance, err := l.GetCreditBalance(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 60 {
		t.Errorf("balance after failed renew: got %d, want 60", balance)
	}
	requireMirror(t, l, ctx, "acct_1")
}

func TestSubscribeEnterpriseWriteFailureLeavesNoTerms(t *testing.T) {
	l, fs, ctx := newFlakyLedger(t)

	boom := errors.New("backend unavailable")
	fs.failSetBalance = boom
	price := tierbill.USD(50000)
	if _, err := l.SubscribeEnterprise(ctx, "acct_big", price, 10000, price); !errors.Is(err, boom) {
		t.Fatalf("expected injected write error, got %v", err)
	}
	fs.failSetBalance = nil

	// The terms written before the failing step are rolled back too.
	if _, err := l.GetEnterpriseTerms(ctx, "acct_big"); !errors.Is(err, tierbill.ErrTermsNotSet) {
		t.Errorf("expected ErrTermsNotSet after failed enterprise subscribe, got %v", err)
	}
	if _, err := l.GetSubscription(ctx, "acct_big"); !errors.Is(err, tierbill.ErrNoSubscription) {
		t.Errorf("expected ErrNoSubscription after failed enterprise subscribe, got %v", err)
	}
}
