package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tierbill/event"
	"github.com/xraph/tierbill/id"
	"github.com/xraph/tierbill/revenue"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// Single-row table identifiers.
const (
	controlRowID = 1
	revenueRowID = 1
)

// ==================== Control model ====================

type controlModel struct {
	grove.BaseModel `grove:"table:tierbill_control"`

	ID          int64  `grove:"id,pk"`
	Initialized bool   `grove:"initialized"`
	Admin       string `grove:"admin"`
	Paused      bool   `grove:"paused"`
}

// ==================== Tier model ====================

type tierModel struct {
	grove.BaseModel `grove:"table:tierbill_tiers"`

	Tier          string    `grove:"tier,pk"`
	PriceCents    int64     `grove:"price_cents"`
	PriceCurrency string    `grove:"price_currency"`
	Credits       int64     `grove:"credits"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toTierModel(t tier.Tier, cfg tier.Config) *tierModel {
	return &tierModel{
		Tier:          string(t),
		PriceCents:    cfg.Price.Amount,
		PriceCurrency: cfg.Price.Currency,
		Credits:       cfg.Credits,
		UpdatedAt:     now(),
	}
}

func fromTierModel(m *tierModel) tier.Config {
	return tier.Config{
		Price:   types.Money{Amount: m.PriceCents, Currency: m.PriceCurrency},
		Credits: m.Credits,
	}
}

// ==================== Subscription model ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:tierbill_subscriptions"`

	Account          string     `grove:"account,pk"`
	Tier             string     `grove:"tier"`
	StartAt          time.Time  `grove:"start_at"`
	EndAt            time.Time  `grove:"end_at"`
	CreditsRemaining int64      `grove:"credits_remaining"`
	Active           bool       `grove:"active"`
	CanceledAt       *time.Time `grove:"canceled_at"`
	CreatedAt        time.Time  `grove:"created_at"`
	UpdatedAt        time.Time  `grove:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		Account:          sub.Account,
		Tier:             string(sub.Tier),
		StartAt:          sub.Start,
		EndAt:            sub.End,
		CreditsRemaining: sub.CreditsRemaining,
		Active:           sub.Active,
		CanceledAt:       sub.CanceledAt,
		CreatedAt:        sub.CreatedAt,
		UpdatedAt:        sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) *subscription.Subscription {
	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Account:          m.Account,
		Tier:             tier.Tier(m.Tier),
		Start:            m.StartAt,
		End:              m.EndAt,
		CreditsRemaining: m.CreditsRemaining,
		Active:           m.Active,
		CanceledAt:       m.CanceledAt,
	}
}

// ==================== Enterprise terms model ====================

type termsModel struct {
	grove.BaseModel `grove:"table:tierbill_terms"`

	Account       string    `grove:"account,pk"`
	PriceCents    int64     `grove:"price_cents"`
	PriceCurrency string    `grove:"price_currency"`
	Credits       int64     `grove:"credits"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toTermsModel(t *tier.EnterpriseTerms) *termsModel {
	return &termsModel{
		Account:       t.Account,
		PriceCents:    t.Price.Amount,
		PriceCurrency: t.Price.Currency,
		Credits:       t.Credits,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func fromTermsModel(m *termsModel) *tier.EnterpriseTerms {
	return &tier.EnterpriseTerms{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Account: m.Account,
		Price:   types.Money{Amount: m.PriceCents, Currency: m.PriceCurrency},
		Credits: m.Credits,
	}
}

// ==================== Balance model ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:tierbill_balances"`

	Account   string    `grove:"account,pk"`
	Balance   int64     `grove:"balance"`
	UpdatedAt time.Time `grove:"updated_at"`
}

// ==================== Role model ====================

// roleModel keys on account:role so the grant upsert stays a single
// primary-key conflict.
type roleModel struct {
	grove.BaseModel `grove:"table:tierbill_roles"`

	ID      string `grove:"id,pk"`
	Account string `grove:"account"`
	Role    string `grove:"role"`
}

func roleKey(account, role string) string {
	return account + ":" + role
}

// ==================== Revenue models ====================

type revenueModel struct {
	grove.BaseModel `grove:"table:tierbill_revenue"`

	ID                int64  `grove:"id,pk"`
	CollectedCents    int64  `grove:"collected_cents"`
	CollectedCurrency string `grove:"collected_currency"`
	WithdrawnCents    int64  `grove:"withdrawn_cents"`
	WithdrawnCurrency string `grove:"withdrawn_currency"`
	Subscriptions     int64  `grove:"subscriptions"`
}

func fromRevenueModel(m *revenueModel) *revenue.Totals {
	return &revenue.Totals{
		Collected:     types.Money{Amount: m.CollectedCents, Currency: m.CollectedCurrency},
		Withdrawn:     types.Money{Amount: m.WithdrawnCents, Currency: m.WithdrawnCurrency},
		Subscriptions: m.Subscriptions,
	}
}

type spendModel struct {
	grove.BaseModel `grove:"table:tierbill_spend"`

	Account     string    `grove:"account,pk"`
	AmountCents int64     `grove:"amount_cents"`
	Currency    string    `grove:"currency"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

// ==================== Event model ====================

type eventModel struct {
	grove.BaseModel `grove:"table:tierbill_events"`

	ID             string     `grove:"id,pk"`
	Kind           string     `grove:"kind"`
	Account        string     `grove:"account"`
	Tier           string     `grove:"tier"`
	AmountCents    int64      `grove:"amount_cents"`
	AmountCurrency string     `grove:"amount_currency"`
	Credits        int64      `grove:"credits"`
	Balance        int64      `grove:"balance"`
	PeriodEnd      *time.Time `grove:"period_end"`
	Active         bool       `grove:"active"`
	Reason         string     `grove:"reason"`
	OccurredAt     time.Time  `grove:"occurred_at"`
}

func toEventModel(rec *event.Record) *eventModel {
	m := &eventModel{
		ID:             rec.ID.String(),
		Kind:           string(rec.Kind),
		Account:        rec.Account,
		Tier:           string(rec.Tier),
		AmountCents:    rec.Amount.Amount,
		AmountCurrency: rec.Amount.Currency,
		Credits:        rec.Credits,
		Balance:        rec.Balance,
		Active:         rec.Active,
		Reason:         rec.Reason,
		OccurredAt:     rec.OccurredAt,
	}
	if !rec.PeriodEnd.IsZero() {
		t := rec.PeriodEnd
		m.PeriodEnd = &t
	}
	return m
}

func fromEventModel(m *eventModel) (*event.Record, error) {
	eventID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, err
	}

	rec := &event.Record{
		ID:         eventID,
		Kind:       event.Kind(m.Kind),
		Account:    m.Account,
		Tier:       tier.Tier(m.Tier),
		Amount:     types.Money{Amount: m.AmountCents, Currency: m.AmountCurrency},
		Credits:    m.Credits,
		Balance:    m.Balance,
		Active:     m.Active,
		Reason:     m.Reason,
		OccurredAt: m.OccurredAt,
	}
	if m.PeriodEnd != nil {
		rec.PeriodEnd = *m.PeriodEnd
	}
	return rec, nil
}
