// Package observability provides a metrics extension for tierbill that
// records lifecycle event counts and monetary flow via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/tierbill/plugin"
	"github.com/xraph/tierbill/roles"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionRenewed  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCanceled = (*MetricsExtension)(nil)
	_ plugin.OnCreditsConsumed      = (*MetricsExtension)(nil)
	_ plugin.OnCreditsGranted       = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded      = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawal           = (*MetricsExtension)(nil)
	_ plugin.OnTierUpdated          = (*MetricsExtension)(nil)
	_ plugin.OnPauseChanged         = (*MetricsExtension)(nil)
	_ plugin.OnRoleGranted          = (*MetricsExtension)(nil)
	_ plugin.OnRoleRevoked          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a tierbill plugin to automatically track billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Subscription metrics
	SubscriptionCreated  Counter
	SubscriptionRenewed  Counter
	SubscriptionCanceled Counter

	// Credit metrics
	CreditsConsumed  Counter
	CreditsGranted   Counter
	ConsumptionSize  Histogram
	RemainingCredits Histogram

	// Payment metrics
	PaymentsRecorded Counter
	PaymentAmount    Histogram
	Withdrawals      Counter
	WithdrawalAmount Histogram

	// Administration metrics
	TierUpdates  Counter
	PauseFlips   Counter
	RolesGranted Counter
	RolesRevoked Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Subscription metrics
		SubscriptionCreated:  factory.Counter("tierbill.subscription.created"),
		SubscriptionRenewed:  factory.Counter("tierbill.subscription.renewed"),
		SubscriptionCanceled: factory.Counter("tierbill.subscription.canceled"),

		// Credit metrics
		CreditsConsumed:  factory.Counter("tierbill.credits.consumed"),
		CreditsGranted:   factory.Counter("tierbill.credits.granted"),
		ConsumptionSize:  factory.Histogram("tierbill.credits.consumption_size"),
		RemainingCredits: factory.Histogram("tierbill.credits.remaining"),

		// Payment metrics
		PaymentsRecorded: factory.Counter("tierbill.payment.recorded"),
		PaymentAmount:    factory.Histogram("tierbill.payment.amount_cents"),
		Withdrawals:      factory.Counter("tierbill.withdrawal.count"),
		WithdrawalAmount: factory.Histogram("tierbill.withdrawal.amount_cents"),

		// Administration metrics
		TierUpdates:  factory.Counter("tierbill.tier.updates"),
		PauseFlips:   factory.Counter("tierbill.pause.flips"),
		RolesGranted: factory.Counter("tierbill.role.granted"),
		RolesRevoked: factory.Counter("tierbill.role.revoked"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, _ *subscription.Subscription, paid types.Money) error {
	m.SubscriptionCreated.Inc()
	m.PaymentAmount.Observe(float64(paid.Amount))
	return nil
}

// OnSubscriptionRenewed implements plugin.OnSubscriptionRenewed.
func (m *MetricsExtension) OnSubscriptionRenewed(_ context.Context, _ *subscription.Subscription, paid types.Money) error {
	m.SubscriptionRenewed.Inc()
	m.PaymentAmount.Observe(float64(paid.Amount))
	return nil
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (m *MetricsExtension) OnSubscriptionCanceled(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCanceled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsConsumed implements plugin.OnCreditsConsumed.
func (m *MetricsExtension) OnCreditsConsumed(_ context.Context, _ string, amount, remaining int64, _ string) error {
	m.CreditsConsumed.Inc()
	m.ConsumptionSize.Observe(float64(amount))
	m.RemainingCredits.Observe(float64(remaining))
	return nil
}

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (m *MetricsExtension) OnCreditsGranted(_ context.Context, _ string, _, balance int64) error {
	m.CreditsGranted.Inc()
	m.RemainingCredits.Observe(float64(balance))
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, _ string, _ types.Money) error {
	m.PaymentsRecorded.Inc()
	return nil
}

// OnWithdrawal implements plugin.OnWithdrawal.
func (m *MetricsExtension) OnWithdrawal(_ context.Context, _ string, amount types.Money) error {
	m.Withdrawals.Inc()
	m.WithdrawalAmount.Observe(float64(amount.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Administration hooks
// ──────────────────────────────────────────────────

// OnTierUpdated implements plugin.OnTierUpdated.
func (m *MetricsExtension) OnTierUpdated(_ context.Context, _ tier.Tier, _ tier.Config) error {
	m.TierUpdates.Inc()
	return nil
}

// OnPauseChanged implements plugin.OnPauseChanged.
func (m *MetricsExtension) OnPauseChanged(_ context.Context, _ bool) error {
	m.PauseFlips.Inc()
	return nil
}

// OnRoleGranted implements plugin.OnRoleGranted.
func (m *MetricsExtension) OnRoleGranted(_ context.Context, _ string, _ roles.Role) error {
	m.RolesGranted.Inc()
	return nil
}

// OnRoleRevoked implements plugin.OnRoleRevoked.
func (m *MetricsExtension) OnRoleRevoked(_ context.Context, _ string, _ roles.Role) error {
	m.RolesRevoked.Inc()
	return nil
}
