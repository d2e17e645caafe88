package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the tierbill store (SQLite).
var Migrations = migrate.NewGroup("tierbill")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tierbill_control",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tierbill_control (
    id          INTEGER PRIMARY KEY,
    initialized INTEGER NOT NULL DEFAULT 0,
    admin       TEXT NOT NULL DEFAULT '',
    paused      INTEGER NOT NULL DEFAULT 0
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tierbill_control`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tierbill_tiers",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tierbill_tiers (
    tier           TEXT PRIMARY KEY,
    price_cents    INTEGER NOT NULL DEFAULT 0,
    price_currency TEXT NOT NULL DEFAULT '',
    credits        INTEGER NOT NULL DEFAULT 0,
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tierbill_tiers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tierbill_subscriptions",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tierbill_subscriptions (
    account           TEXT PRIMARY KEY,
    tier              TEXT NOT NULL DEFAULT '',
    start_at          TEXT NOT NULL DEFAULT (datetime('now')),
    end_at            TEXT NOT NULL DEFAULT (datetime('now')),
    credits_remaining INTEGER NOT NULL DEFAULT 0,
    active            INTEGER NOT NULL DEFAULT 0,
    canceled_at       TEXT,
    created_at        TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tierbill_subs_tier ON tierbill_subscriptions (tier, active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tierbill_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tierbill_terms",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tierbill_terms (
    account        TEXT PRIMARY KEY,
    price_cents    INTEGER NOT NULL DEFAULT 0,
    price_currency TEXT NOT NULL DEFAULT '',
    credits        INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tierbill_terms`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tierbill_balances",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tierbill_balances (
    account    TEXT PRIMARY KEY,
    balance    INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tierbill_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tierbill_roles",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tierbill_roles (
    id      TEXT PRIMARY KEY,
    account TEXT NOT NULL DEFAULT '',
    role    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tierbill_roles_account ON tierbill_roles (account);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tierbill_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tierbill_revenue",
			Version: "20240101000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tierbill_revenue (
    id                 INTEGER PRIMARY KEY,
    collected_cents    INTEGER NOT NULL DEFAULT 0,
    collected_currency TEXT NOT NULL DEFAULT '',
    withdrawn_cents    INTEGER NOT NULL DEFAULT 0,
    withdrawn_currency TEXT NOT NULL DEFAULT '',
    subscriptions      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tierbill_spend (
    account      TEXT PRIMARY KEY,
    amount_cents INTEGER NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT '',
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tierbill_revenue; DROP TABLE IF EXISTS tierbill_spend`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tierbill_events",
			Version: "20240101000008",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tierbill_events (
    id              TEXT PRIMARY KEY,
    kind            TEXT NOT NULL DEFAULT '',
    account         TEXT NOT NULL DEFAULT '',
    tier            TEXT NOT NULL DEFAULT '',
    amount_cents    INTEGER NOT NULL DEFAULT 0,
    amount_currency TEXT NOT NULL DEFAULT '',
    credits         INTEGER NOT NULL DEFAULT 0,
    balance         INTEGER NOT NULL DEFAULT 0,
    period_end      TEXT,
    active          INTEGER NOT NULL DEFAULT 0,
    reason          TEXT NOT NULL DEFAULT '',
    occurred_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tierbill_events_account ON tierbill_events (account, occurred_at);
CREATE INDEX IF NOT EXISTS idx_tierbill_events_kind ON tierbill_events (kind, occurred_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tierbill_events`)
				return err
			},
		},
	)
}
