package mongo

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

// Single-document identifiers.
const (
	controlDocID = int64(1)
	revenueDocID = int64(1)
)

// ==================== Control model ====================

type controlModel struct {
	grove.BaseModel `grove:"table:tierbill_control"`

	ID          int64  `grove:"id,pk"       bson:"_id"`
	Initialized bool   `grove:"initialized" bson:"initialized"`
	Admin       string `grove:"admin"       bson:"admin"`
	Paused      bool   `grove:"paused"      bson:"paused"`
}

// ==================== Tier model ====================

type tierModel struct {
	grove.BaseModel `grove:"table:tierbill_tiers"`

	Tier          string    `grove:"tier,pk"        bson:"_id"`
	PriceCents    int64     `grove:"price_cents"    bson:"price_cents"`
	PriceCurrency string    `grove:"price_currency" bson:"price_currency"`
	Credits       int64     `grove:"credits"        bson:"credits"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
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

	Account          string     `grove:"account,pk"        bson:"_id"`
	Tier             string     `grove:"tier"              bson:"tier"`
	StartAt          time.Time  `grove:"start_at"          bson:"start_at"`
	EndAt            time.Time  `grove:"end_at"            bson:"end_at"`
	CreditsRemaining int64      `grove:"credits_remaining" bson:"credits_remaining"`
	Active           bool       `grove:"active"            bson:"active"`
	CanceledAt       *time.Time `grove:"canceled_at"       bson:"canceled_at,omitempty"`
	CreatedAt        time.Time  `grove:"created_at"        bson:"created_at"`
	UpdatedAt        time.Time  `grove:"updated_at"        bson:"updated_at"`
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

	Account       string    `grove:"account,pk"     bson:"_id"`
	PriceCents    int64     `grove:"price_cents"    bson:"price_cents"`
	PriceCurrency string    `grove:"price_currency" bson:"price_currency"`
	Credits       int64     `grove:"credits"        bson:"credits"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
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

	Account   string    `grove:"account,pk" bson:"_id"`
	Balance   int64     `grove:"balance"    bson:"balance"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

// ==================== Role model ====================

type roleModel struct {
	grove.BaseModel `grove:"table:tierbill_roles"`

	ID      string `grove:"id,pk"   bson:"_id"`
	Account string `grove:"account" bson:"account"`
	Role    string `grove:"role"    bson:"role"`
}

func roleKey(account, role string) string {
	return account + ":" + role
}

// ==================== Revenue models ====================

type revenueModel struct {
	grove.BaseModel `grove:"table:tierbill_revenue"`

	ID                int64  `grove:"id,pk"              bson:"_id"`
	CollectedCents    int64  `grove:"collected_cents"    bson:"collected_cents"`
	CollectedCurrency string `grove:"collected_currency" bson:"collected_currency"`
	WithdrawnCents    int64  `grove:"withdrawn_cents"    bson:"withdrawn_cents"`
	WithdrawnCurrency string `grove:"withdrawn_currency" bson:"withdrawn_currency"`
	Subscriptions     int64  `grove:"subscriptions"      bson:"subscriptions"`
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

	Account     string    `grove:"account,pk"   bson:"_id"`
	AmountCents int64     `grove:"amount_cents" bson:"amount_cents"`
	Currency    string    `grove:"currency"     bson:"currency"`
	UpdatedAt   time.Time `grove:"updated_at"   bson:"updated_at"`
}

// ==================== Event model ====================

type eventModel struct {
	grove.BaseModel `grove:"table:tierbill_events"`

	ID             string     `grove:"id,pk"           bson:"_id"`
	Kind           string     `grove:"kind"            bson:"kind"`
	Account        string     `grove:"account"         bson:"account"`
	Tier           string     `grove:"tier"            bson:"tier"`
	AmountCents    int64      `grove:"amount_cents"    bson:"amount_cents"`
	AmountCurrency string     `grove:"amount_currency" bson:"amount_currency"`
	Credits        int64      `grove:"credits"         bson:"credits"`
	Balance        int64      `grove:"balance"         bson:"balance"`
	PeriodEnd      *time.Time `grove:"period_end"      bson:"period_end,omitempty"`
	Active         bool       `grove:"active"          bson:"active"`
	Reason         string     `grove:"reason"          bson:"reason"`
	OccurredAt     time.Time  `grove:"occurred_at"     bson:"occurred_at"`
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
