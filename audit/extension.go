// Package audit bridges tierbill lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tierbill/plugin"
	"github.com/xraph/tierbill/roles"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated  = (*Extension)(nil)
	_ plugin.OnSubscriptionRenewed  = (*Extension)(nil)
	_ plugin.OnSubscriptionCanceled = (*Extension)(nil)
	_ plugin.OnCreditsConsumed      = (*Extension)(nil)
	_ plugin.OnCreditsGranted       = (*Extension)(nil)
	_ plugin.OnPaymentRecorded      = (*Extension)(nil)
	_ plugin.OnWithdrawal           = (*Extension)(nil)
	_ plugin.OnTierUpdated          = (*Extension)(nil)
	_ plugin.OnPauseChanged         = (*Extension)(nil)
	_ plugin.OnRoleGranted          = (*Extension)(nil)
	_ plugin.OnRoleRevoked          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges tierbill lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit" }

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription, paid types.Money) error {
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.Account, CategorySubscription, nil,
		"tier", string(sub.Tier),
		"paid", paid.String(),
		"credits", sub.CreditsRemaining,
		"period_end", sub.End,
	)
}

// OnSubscriptionRenewed implements plugin.OnSubscriptionRenewed.
func (e *Extension) OnSubscriptionRenewed(ctx context.Context, sub *subscription.Subscription, paid types.Money) error {
	return e.record(ctx, ActionSubscriptionRenewed, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.Account, CategorySubscription, nil,
		"tier", string(sub.Tier),
		"paid", paid.String(),
		"period_end", sub.End,
	)
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (e *Extension) OnSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCanceled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.Account, CategorySubscription, nil,
		"tier", string(sub.Tier),
		"credits_remaining", sub.CreditsRemaining,
	)
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsConsumed implements plugin.OnCreditsConsumed.
func (e *Extension) OnCreditsConsumed(ctx context.Context, account string, amount, remaining int64, reason string) error {
	return e.record(ctx, ActionCreditsConsumed, SeverityInfo, OutcomeSuccess,
		ResourceCredits, account, CategoryUsage, nil,
		"amount", amount,
		"remaining", remaining,
		"usage_reason", reason,
	)
}

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (e *Extension) OnCreditsGranted(ctx context.Context, account string, amount, balance int64) error {
	return e.record(ctx, ActionCreditsGranted, SeverityInfo, OutcomeSuccess,
		ResourceCredits, account, CategoryUsage, nil,
		"amount", amount,
		"balance", balance,
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, account string, amount types.Money) error {
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, account, CategoryPayment, nil,
		"amount", amount.String(),
	)
}

// OnWithdrawal implements plugin.OnWithdrawal. Withdrawals move money out
// of the system, so they audit at warning severity.
func (e *Extension) OnWithdrawal(ctx context.Context, to string, amount types.Money) error {
	return e.record(ctx, ActionFundsWithdrawn, SeverityWarning, OutcomeSuccess,
		ResourcePayment, to, CategoryPayment, nil,
		"amount", amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Administration hooks
// ──────────────────────────────────────────────────

// OnTierUpdated implements plugin.OnTierUpdated.
func (e *Extension) OnTierUpdated(ctx context.Context, t tier.Tier, cfg tier.Config) error {
	return e.record(ctx, ActionTierUpdated, SeverityInfo, OutcomeSuccess,
		ResourceTier, string(t), CategoryAdmin, nil,
		"price", cfg.Price.String(),
		"credits", cfg.Credits,
	)
}

// OnPauseChanged implements plugin.OnPauseChanged.
func (e *Extension) OnPauseChanged(ctx context.Context, paused bool) error {
	severity := SeverityWarning
	if !paused {
		severity = SeverityInfo
	}
	return e.record(ctx, ActionPauseFlip, severity, OutcomeSuccess,
		ResourceControl, "", CategoryAdmin, nil,
		"paused", paused,
	)
}

// OnRoleGranted implements plugin.OnRoleGranted.
func (e *Extension) OnRoleGranted(ctx context.Context, account string, role roles.Role) error {
	return e.record(ctx, ActionRoleGranted, SeverityInfo, OutcomeSuccess,
		ResourceRole, account, CategoryAdmin, nil,
		"role", string(role),
	)
}

// OnRoleRevoked implements plugin.OnRoleRevoked.
func (e *Extension) OnRoleRevoked(ctx context.Context, account string, role roles.Role) error {
	return e.record(ctx, ActionRoleRevoked, SeverityInfo, OutcomeSuccess,
		ResourceRole, account, CategoryAdmin, nil,
		"role", string(role),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
