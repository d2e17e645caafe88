package store

import (
	"context"

	"github.com/xraph/tierbill/event"
	"github.com/xraph/tierbill/id"
	"github.com/xraph/tierbill/revenue"
	"github.com/xraph/tierbill/roles"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// Control is the ledger-wide durable switchboard: the one-time
// initialization record and the global pause flag.
type Control struct {
	Initialized bool   `json:"initialized"`
	Admin       string `json:"admin"`
	Paused      bool   `json:"paused"`
}

// SnapshotVersion is the current snapshot layout version. Snapshot fields
// are append-only across versions: new fields are added at the end, never
// reordered or removed, so older snapshots always restore cleanly.
const SnapshotVersion = 1

// Snapshot is a full versioned export of the durable record set, used as
// the state-migration path across upgrades.
type Snapshot struct {
	Version       int                          `json:"version"`
	Control       Control                      `json:"control"`
	TierConfigs   map[tier.Tier]tier.Config    `json:"tier_configs"`
	Subscriptions []*subscription.Subscription `json:"subscriptions"`
	Terms         []*tier.EnterpriseTerms      `json:"terms"`
	Balances      map[string]int64             `json:"balances"`
	Roles         map[string][]roles.Role      `json:"roles"`
	Revenue       revenue.Totals               `json:"revenue"`
	Spent         map[string]types.Money       `json:"spent"`
	Events        []*event.Record              `json:"events"`

	// ID identifies one export for audit trails. Appended in layout
	// version 1; absent in snapshots taken before it existed.
	ID id.SnapshotID `json:"id,omitempty"`
}

// Store is the unified storage interface for all tierbill entities.
// Instead of embedding sub-interfaces, all methods are declared explicitly
// to avoid naming conflicts.
//
// Every record is independently addressable by account identifier, so
// operations on different accounts never contend on shared rows beyond the
// aggregate revenue counters.
type Store interface {
	// Control state
	GetControl(ctx context.Context) (*Control, error)
	PutControl(ctx context.Context, c *Control) error

	// Tier schedule
	PutTierConfig(ctx context.Context, t tier.Tier, cfg tier.Config) error
	GetTierConfig(ctx context.Context, t tier.Tier) (tier.Config, error)
	ListTierConfigs(ctx context.Context) (map[tier.Tier]tier.Config, error)
	DeleteTierConfig(ctx context.Context, t tier.Tier) error

	// Subscriptions (upsert by account). Business operations never delete
	// a record: cancellation is a state transition. DeleteSubscription
	// exists only so the engine can unwind a partially applied install
	// when a later write in the same operation fails.
	PutSubscription(ctx context.Context, sub *subscription.Subscription) error
	GetSubscription(ctx context.Context, account string) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error)
	DeleteSubscription(ctx context.Context, account string) error

	// Enterprise terms
	PutEnterpriseTerms(ctx context.Context, terms *tier.EnterpriseTerms) error
	GetEnterpriseTerms(ctx context.Context, account string) (*tier.EnterpriseTerms, error)
	DeleteEnterpriseTerms(ctx context.Context, account string) error

	// Credit balances (absent account reads as zero)
	SetCreditBalance(ctx context.Context, account string, balance int64) error
	GetCreditBalance(ctx context.Context, account string) (int64, error)

	// Roles
	GrantRole(ctx context.Context, account string, role roles.Role) error
	RevokeRole(ctx context.Context, account string, role roles.Role) error
	HasRole(ctx context.Context, account string, role roles.Role) (bool, error)
	ListRoles(ctx context.Context, account string) (roles.Set, error)

	// Revenue counters
	RecordPayment(ctx context.Context, account string, amount types.Money, newSubscription bool) error
	RecordWithdrawal(ctx context.Context, amount types.Money) error
	GetRevenue(ctx context.Context) (*revenue.Totals, error)
	GetLifetimeSpent(ctx context.Context, account string) (types.Money, error)

	// Event journal (append-only)
	AppendEvent(ctx context.Context, rec *event.Record) error
	ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Record, error)

	// Snapshot (upgrade/migration path)
	Export(ctx context.Context) (*Snapshot, error)
	Import(ctx context.Context, snap *Snapshot) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
