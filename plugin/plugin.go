// Package plugin provides an extensible hook system for tierbill.
// Plugins observe ledger state transitions without being able to veto them:
// a transition is durable before its hooks fire.
package plugin

import (
	"context"

	"github.com/xraph/tierbill/roles"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, ledger any) error
}

// OnShutdown is called when the ledger is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated is called after a subscribe installs a fresh record.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription, paid types.Money) error
}

// OnSubscriptionRenewed is called after a renewal extends a record.
type OnSubscriptionRenewed interface {
	Plugin
	OnSubscriptionRenewed(ctx context.Context, sub *subscription.Subscription, paid types.Money) error
}

// OnSubscriptionCanceled is called after a soft-cancel clears the active flag.
type OnSubscriptionCanceled interface {
	Plugin
	OnSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsConsumed is called after a usage report decrements a balance.
type OnCreditsConsumed interface {
	Plugin
	OnCreditsConsumed(ctx context.Context, account string, amount, remaining int64, reason string) error
}

// OnCreditsGranted is called after an administrator bonus grant.
type OnCreditsGranted interface {
	Plugin
	OnCreditsGranted(ctx context.Context, account string, amount, balance int64) error
}

// ──────────────────────────────────────────────────
// Payment and revenue hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called after an incoming payment is booked.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, account string, amount types.Money) error
}

// OnWithdrawal is called after an administrator withdrawal completes.
type OnWithdrawal interface {
	Plugin
	OnWithdrawal(ctx context.Context, to string, amount types.Money) error
}

// ──────────────────────────────────────────────────
// Administration hooks
// ──────────────────────────────────────────────────

// OnTierUpdated is called after a tier price or credit allotment changes.
type OnTierUpdated interface {
	Plugin
	OnTierUpdated(ctx context.Context, t tier.Tier, cfg tier.Config) error
}

// OnPauseChanged is called after the global pause switch flips.
type OnPauseChanged interface {
	Plugin
	OnPauseChanged(ctx context.Context, paused bool) error
}

// OnRoleGranted is called after a role is granted to an account.
type OnRoleGranted interface {
	Plugin
	OnRoleGranted(ctx context.Context, account string, role roles.Role) error
}

// OnRoleRevoked is called after a role is revoked from an account.
type OnRoleRevoked interface {
	Plugin
	OnRoleRevoked(ctx context.Context, account string, role roles.Role) error
}
