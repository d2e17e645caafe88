package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/tierbill"
	"github.com/xraph/tierbill/event"
	"github.com/xraph/tierbill/roles"
	"github.com/xraph/tierbill/store"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

func TestControlRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	ctl, err := s.GetControl(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ctl.Initialized {
		t.Error("fresh store should not be initialized")
	}

	ctl.Initialized = true
	ctl.Admin = "acct_admin"
	if err := s.PutControl(ctx, ctl); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetControl(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Initialized || got.Admin != "acct_admin" {
		t.Errorf("unexpected control: %+v", got)
	}
}

func TestTierConfigs(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetTierConfig(ctx, tier.Pro); !errors.Is(err, tierbill.ErrTierNotConfigured) {
		t.Errorf("expected ErrTierNotConfigured, got %v", err)
	}

	cfg := tier.Config{Price: types.USD(3900), Credits: 500}
	if err := s.PutTierConfig(ctx, tier.Pro, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetTierConfig(ctx, tier.Pro)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Price.Equal(cfg.Price) || got.Credits != cfg.Credits {
		t.Errorf("unexpected config: %+v", got)
	}

	all, err := s.ListTierConfigs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 config, got %d", len(all))
	}
}

func TestSubscriptionUpsertAndCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetSubscription(ctx, "acct_1"); !errors.Is(err, tierbill.ErrNoSubscription) {
		t.Errorf("expected ErrNoSubscription, got %v", err)
	}

	now := time.Now().UTC()
	sub := &subscription.Subscription{
		Entity:           types.NewEntity(),
		Account:          "acct_1",
		Tier:             tier.Starter,
		Start:            now,
		End:              now.Add(30 * 24 * time.Hour),
		CreditsRemaining: 100,
		Active:           true,
	}
	if err := s.PutSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSubscription(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the returned record must not leak into the store.
	got.CreditsRemaining = 0
	again, err := s.GetSubscription(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if again.CreditsRemaining != 100 {
		t.Errorf("store record aliased: got %d credits", again.CreditsRemaining)
	}

	// Upsert replaces
	sub.Tier = tier.Pro
	sub.CreditsRemaining = 500
	if err := s.PutSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetSubscription(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != tier.Pro || got.CreditsRemaining != 500 {
		t.Errorf("upsert did not replace: %+v", got)
	}
}

func TestListSubscriptionsFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, tc := range []struct {
		account string
		tr      tier.Tier
		active  bool
	}{
		{"acct_a", tier.Starter, true},
		{"acct_b", tier.Pro, true},
		{"acct_c", tier.Pro, false},
	} {
		sub := &subscription.Subscription{
			Entity:  types.NewEntity(),
			Account: tc.account,
			Tier:    tc.tr,
			Start:   now,
			End:     now.Add(time.Hour),
			Active:  tc.active,
		}
		if err := s.PutSubscription(ctx, sub); err != nil {
			t.Fatal(err)
		}
	}

	pro, err := s.ListSubscriptions(ctx, subscription.ListOpts{Tier: tier.Pro})
	if err != nil {
		t.Fatal(err)
	}
	if len(pro) != 2 {
		t.Errorf("expected 2 pro subscriptions, got %d", len(pro))
	}

	active, err := s.ListSubscriptions(ctx, subscription.ListOpts{Tier: tier.Pro, ActiveOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Account != "acct_b" {
		t.Errorf("unexpected active pro list: %+v", active)
	}

	paged, err := s.ListSubscriptions(ctx, subscription.ListOpts{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(paged) != 1 || paged[0].Account != "acct_c" {
		t.Errorf("unexpected page: %+v", paged)
	}
}

func TestCreditBalances(t *testing.T) {
	s := New()
	ctx := context.Background()

	balance, err := s.GetCreditBalance(ctx, "acct_unknown")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 0 {
		t.Errorf("unknown account should read zero, got %d", balance)
	}

	if err := s.SetCreditBalance(ctx, "acct_1", 70); err != nil {
		t.Fatal(err)
	}
	balance, err = s.GetCreditBalance(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 70 {
		t.Errorf("expected 70, got %d", balance)
	}
}

func TestRoles(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Idempotent grant
	if err := s.GrantRole(ctx, "acct_1", roles.Subscriber); err != nil {
		t.Fatal(err)
	}
	if err := s.GrantRole(ctx, "acct_1", roles.Subscriber); err != nil {
		t.Fatal(err)
	}
	if err := s.GrantRole(ctx, "acct_1", roles.Platform); err != nil {
		t.Fatal(err)
	}

	ok, err := s.HasRole(ctx, "acct_1", roles.Subscriber)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected subscriber role")
	}

	set, err := s.ListRoles(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(set.List()) != 2 {
		t.Errorf("expected 2 roles, got %v", set.List())
	}

	// Idempotent revoke, including on unknown accounts
	if err := s.RevokeRole(ctx, "acct_1", roles.Platform); err != nil {
		t.Fatal(err)
	}
	if err := s.RevokeRole(ctx, "acct_unknown", roles.Platform); err != nil {
		t.Fatal(err)
	}

	ok, err = s.HasRole(ctx, "acct_1", roles.Platform)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("platform role should be revoked")
	}
}

func TestRevenueCounters(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.RecordPayment(ctx, "acct_1", types.USD(1500), true); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordPayment(ctx, "acct_1", types.USD(1500), false); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordPayment(ctx, "acct_2", types.USD(3900), true); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordWithdrawal(ctx, types.USD(2000)); err != nil {
		t.Fatal(err)
	}

	totals, err := s.GetRevenue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if totals.Collected.Amount != 6900 {
		t.Errorf("expected 6900 collected, got %d", totals.Collected.Amount)
	}
	if totals.Subscriptions != 2 {
		t.Errorf("expected 2 subscriptions counted, got %d", totals.Subscriptions)
	}
	if totals.Held().Amount != 4900 {
		t.Errorf("expected 4900 held, got %d", totals.Held().Amount)
	}

	spent, err := s.GetLifetimeSpent(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if spent.Amount != 3000 {
		t.Errorf("expected 3000 lifetime spend, got %d", spent.Amount)
	}
}

func TestEventJournal(t *testing.T) {
	s := New()
	ctx := context.Background()

	kinds := []event.Kind{
		event.KindSubscriptionCreated,
		event.KindCreditsConsumed,
		event.KindCreditsConsumed,
	}
	for _, k := range kinds {
		rec := &event.Record{Kind: k, Account: "acct_1", OccurredAt: time.Now().UTC()}
		if err := s.AppendEvent(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListEvents(ctx, event.ListOpts{Account: "acct_1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 events, got %d", len(all))
	}

	consumed, err := s.ListEvents(ctx, event.ListOpts{Kind: event.KindCreditsConsumed})
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 2 {
		t.Errorf("expected 2 consumption events, got %d", len(consumed))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := src.PutControl(ctx, &store.Control{Initialized: true, Admin: "acct_admin"}); err != nil {
		t.Fatal(err)
	}
	if err := src.PutTierConfig(ctx, tier.Starter, tier.Config{Price: types.USD(1500), Credits: 100}); err != nil {
		t.Fatal(err)
	}
	if err := src.PutSubscription(ctx, &subscription.Subscription{
		Entity:           types.NewEntity(),
		Account:          "acct_1",
		Tier:             tier.Starter,
		Start:            now,
		End:              now.Add(time.Hour),
		CreditsRemaining: 70,
		Active:           true,
	}); err != nil {
		t.Fatal(err)
	}
	if err := src.SetCreditBalance(ctx, "acct_1", 70); err != nil {
		t.Fatal(err)
	}
	if err := src.GrantRole(ctx, "acct_1", roles.Subscriber); err != nil {
		t.Fatal(err)
	}
	if err := src.RecordPayment(ctx, "acct_1", types.USD(1500), true); err != nil {
		t.Fatal(err)
	}
	if err := src.AppendEvent(ctx, &event.Record{Kind: event.KindSubscriptionCreated, Account: "acct_1", OccurredAt: now}); err != nil {
		t.Fatal(err)
	}

	snap, err := src.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version != store.SnapshotVersion {
		t.Errorf("unexpected snapshot version %d", snap.Version)
	}

	dst := New()
	if err := dst.Import(ctx, snap); err != nil {
		t.Fatal(err)
	}

	sub, err := dst.GetSubscription(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if sub.CreditsRemaining != 70 {
		t.Errorf("expected 70 credits after import, got %d", sub.CreditsRemaining)
	}
	balance, err := dst.GetCreditBalance(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 70 {
		t.Errorf("expected 70 balance after import, got %d", balance)
	}
	ok, err := dst.HasRole(ctx, "acct_1", roles.Subscriber)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("subscriber role lost on import")
	}
	totals, err := dst.GetRevenue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if totals.Collected.Amount != 1500 {
		t.Errorf("revenue lost on import: %d", totals.Collected.Amount)
	}
	events, err := dst.ListEvents(ctx, event.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("events lost on import: %d", len(events))
	}
}

func TestDeleteRestoresAbsence(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.PutTierConfig(ctx, tier.Pro, tier.Config{Price: types.USD(3900), Credits: 500}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTierConfig(ctx, tier.Pro); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTierConfig(ctx, tier.Pro); !errors.Is(err, tierbill.ErrTierNotConfigured) {
		t.Errorf("expected ErrTierNotConfigured after delete, got %v", err)
	}

	sub := &subscription.Subscription{Entity: types.NewEntity(), Account: "acct_1", Tier: tier.Pro, Active: true}
	if err := s.PutSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSubscription(ctx, "acct_1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSubscription(ctx, "acct_1"); !errors.Is(err, tierbill.ErrNoSubscription) {
		t.Errorf("expected ErrNoSubscription after delete, got %v", err)
	}

	terms := &tier.EnterpriseTerms{Entity: types.NewEntity(), Account: "acct_1", Price: types.USD(50000), Credits: 10000}
	if err := s.PutEnterpriseTerms(ctx, terms); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEnterpriseTerms(ctx, "acct_1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetEnterpriseTerms(ctx, "acct_1"); !errors.Is(err, tierbill.ErrTermsNotSet) {
		t.Errorf("expected ErrTermsNotSet after delete, got %v", err)
	}

	// Deleting an absent record is a no-op.
	if err := s.DeleteSubscription(ctx, "acct_missing"); err != nil {
		t.Fatal(err)
	}
}

func TestClose(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx); !errors.Is(err, tierbill.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
