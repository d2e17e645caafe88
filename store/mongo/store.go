// Package mongo provides a Store backed by MongoDB via the Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/tierbill"
	"github.com/xraph/tierbill/event"
	"github.com/xraph/tierbill/revenue"
	"github.com/xraph/tierbill/roles"
	tierbillstore "github.com/xraph/tierbill/store"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// Collection name constants.
const (
	colControl       = "tierbill_control"
	colTiers         = "tierbill_tiers"
	colSubscriptions = "tierbill_subscriptions"
	colTerms         = "tierbill_terms"
	colBalances      = "tierbill_balances"
	colRoles         = "tierbill_roles"
	colRevenue       = "tierbill_revenue"
	colSpend         = "tierbill_spend"
	colEvents        = "tierbill_events"
)

// compile-time interface check
var _ tierbillstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all tierbill collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("tierbill/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Control ====================

func (s *Store) GetControl(ctx context.Context) (*tierbillstore.Control, error) {
	var m controlModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": controlDocID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return &tierbillstore.Control{}, nil
		}
		return nil, fmt.Errorf("tierbill/mongo: get control: %w", err)
	}
	return &tierbillstore.Control{
		Initialized: m.Initialized,
		Admin:       m.Admin,
		Paused:      m.Paused,
	}, nil
}

func (s *Store) PutControl(ctx context.Context, c *tierbillstore.Control) error {
	_, err := s.mdb.NewUpdate((*controlModel)(nil)).
		Filter(bson.M{"_id": controlDocID}).
		SetUpdate(bson.M{"$set": bson.M{
			"initialized": c.Initialized,
			"admin":       c.Admin,
			"paused":      c.Paused,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: put control: %w", err)
	}
	return nil
}

// ==================== Tier schedule ====================

func (s *Store) PutTierConfig(ctx context.Context, t tier.Tier, cfg tier.Config) error {
	_, err := s.mdb.NewUpdate((*tierModel)(nil)).
		Filter(bson.M{"_id": string(t)}).
		SetUpdate(bson.M{"$set": bson.M{
			"price_cents":    cfg.Price.Amount,
			"price_currency": cfg.Price.Currency,
			"credits":        cfg.Credits,
			"updated_at":     now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: put tier config: %w", err)
	}
	return nil
}

func (s *Store) GetTierConfig(ctx context.Context, t tier.Tier) (tier.Config, error) {
	var m tierModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": string(t)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return tier.Config{}, tierbill.ErrTierNotConfigured
		}
		return tier.Config{}, fmt.Errorf("tierbill/mongo: get tier config: %w", err)
	}
	return fromTierModel(&m), nil
}

func (s *Store) ListTierConfigs(ctx context.Context) (map[tier.Tier]tier.Config, error) {
	var models []tierModel
	if err := s.mdb.NewFind(&models).Filter(bson.M{}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("tierbill/mongo: list tier configs: %w", err)
	}

	result := make(map[tier.Tier]tier.Config, len(models))
	for i := range models {
		result[tier.Tier(models[i].Tier)] = fromTierModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteTierConfig(ctx context.Context, t tier.Tier) error {
	_, err := s.mdb.NewDelete((*tierModel)(nil)).
		Filter(bson.M{"_id": string(t)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: delete tier config: %w", err)
	}
	return nil
}

// ==================== Subscriptions ====================

func (s *Store) PutSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()

	update := bson.M{
		"tier":              m.Tier,
		"start_at":          m.StartAt,
		"end_at":            m.EndAt,
		"credits_remaining": m.CreditsRemaining,
		"active":            m.Active,
		"created_at":        m.CreatedAt,
		"updated_at":        m.UpdatedAt,
	}
	if m.CanceledAt != nil {
		update["canceled_at"] = m.CanceledAt
	}

	ops := bson.M{"$set": update}
	if m.CanceledAt == nil {
		ops["$unset"] = bson.M{"canceled_at": ""}
	}

	_, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": m.Account}).
		SetUpdate(ops).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: put subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, account string) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tierbill.ErrNoSubscription
		}
		return nil, fmt.Errorf("tierbill/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m), nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	filter := bson.M{}
	if opts.Tier != "" {
		filter["tier"] = string(opts.Tier)
	}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	var models []subscriptionModel
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tierbill/mongo: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		result[i] = fromSubscriptionModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteSubscription(ctx context.Context, account string) error {
	_, err := s.mdb.NewDelete((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": account}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: delete subscription: %w", err)
	}
	return nil
}

// ==================== Enterprise terms ====================

func (s *Store) PutEnterpriseTerms(ctx context.Context, terms *tier.EnterpriseTerms) error {
	_, err := s.mdb.NewUpdate((*termsModel)(nil)).
		Filter(bson.M{"_id": terms.Account}).
		SetUpdate(bson.M{"$set": bson.M{
			"price_cents":    terms.Price.Amount,
			"price_currency": terms.Price.Currency,
			"credits":        terms.Credits,
			"created_at":     terms.CreatedAt,
			"updated_at":     now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: put enterprise terms: %w", err)
	}
	return nil
}

func (s *Store) GetEnterpriseTerms(ctx context.Context, account string) (*tier.EnterpriseTerms, error) {
	var m termsModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tierbill.ErrTermsNotSet
		}
		return nil, fmt.Errorf("tierbill/mongo: get enterprise terms: %w", err)
	}
	return fromTermsModel(&m), nil
}

func (s *Store) DeleteEnterpriseTerms(ctx context.Context, account string) error {
	_, err := s.mdb.NewDelete((*termsModel)(nil)).
		Filter(bson.M{"_id": account}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: delete enterprise terms: %w", err)
	}
	return nil
}

// ==================== Credit balances ====================

func (s *Store) SetCreditBalance(ctx context.Context, account string, balance int64) error {
	_, err := s.mdb.NewUpdate((*balanceModel)(nil)).
		Filter(bson.M{"_id": account}).
		SetUpdate(bson.M{"$set": bson.M{
			"balance":    balance,
			"updated_at": now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: set credit balance: %w", err)
	}
	return nil
}

func (s *Store) GetCreditBalance(ctx context.Context, account string) (int64, error) {
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("tierbill/mongo: get credit balance: %w", err)
	}
	return m.Balance, nil
}

// ==================== Roles ====================

func (s *Store) GrantRole(ctx context.Context, account string, role roles.Role) error {
	_, err := s.mdb.NewUpdate((*roleModel)(nil)).
		Filter(bson.M{"_id": roleKey(account, string(role))}).
		SetUpdate(bson.M{"$set": bson.M{
			"account": account,
			"role":    string(role),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: grant role: %w", err)
	}
	return nil
}

func (s *Store) RevokeRole(ctx context.Context, account string, role roles.Role) error {
	_, err := s.mdb.NewDelete((*roleModel)(nil)).
		Filter(bson.M{"_id": roleKey(account, string(role))}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: revoke role: %w", err)
	}
	return nil
}

func (s *Store) HasRole(ctx context.Context, account string, role roles.Role) (bool, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": roleKey(account, string(role))}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return false, nil
		}
		return false, fmt.Errorf("tierbill/mongo: has role: %w", err)
	}
	return true, nil
}

func (s *Store) ListRoles(ctx context.Context, account string) (roles.Set, error) {
	var models []roleModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"account": account}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tierbill/mongo: list roles: %w", err)
	}

	set := roles.NewSet()
	for i := range models {
		set.Add(roles.Role(models[i].Role))
	}
	return set, nil
}

// ==================== Revenue counters ====================

func (s *Store) RecordPayment(ctx context.Context, account string, amount types.Money, newSubscription bool) error {
	var subInc int64
	if newSubscription {
		subInc = 1
	}

	_, err := s.mdb.NewUpdate((*revenueModel)(nil)).
		Filter(bson.M{"_id": revenueDocID}).
		SetUpdate(bson.M{
			"$inc": bson.M{
				"collected_cents": amount.Amount,
				"subscriptions":   subInc,
			},
			"$set": bson.M{"collected_currency": amount.Currency},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: record payment: %w", err)
	}

	_, err = s.mdb.NewUpdate((*spendModel)(nil)).
		Filter(bson.M{"_id": account}).
		SetUpdate(bson.M{
			"$inc": bson.M{"amount_cents": amount.Amount},
			"$set": bson.M{
				"currency":   amount.Currency,
				"updated_at": now(),
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: record spend: %w", err)
	}
	return nil
}

func (s *Store) RecordWithdrawal(ctx context.Context, amount types.Money) error {
	_, err := s.mdb.NewUpdate((*revenueModel)(nil)).
		Filter(bson.M{"_id": revenueDocID}).
		SetUpdate(bson.M{
			"$inc": bson.M{"withdrawn_cents": amount.Amount},
			"$set": bson.M{"withdrawn_currency": amount.Currency},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: record withdrawal: %w", err)
	}
	return nil
}

func (s *Store) GetRevenue(ctx context.Context) (*revenue.Totals, error) {
	var m revenueModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": revenueDocID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return &revenue.Totals{}, nil
		}
		return nil, fmt.Errorf("tierbill/mongo: get revenue: %w", err)
	}
	return fromRevenueModel(&m), nil
}

func (s *Store) GetLifetimeSpent(ctx context.Context, account string) (types.Money, error) {
	var m spendModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return types.Money{}, nil
		}
		return types.Money{}, fmt.Errorf("tierbill/mongo: get lifetime spent: %w", err)
	}
	return types.Money{Amount: m.AmountCents, Currency: m.Currency}, nil
}

// ==================== Event journal ====================

func (s *Store) AppendEvent(ctx context.Context, rec *event.Record) error {
	m := toEventModel(rec)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tierbill/mongo: append event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Record, error) {
	filter := bson.M{}
	if opts.Account != "" {
		filter["account"] = opts.Account
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	var models []eventModel
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tierbill/mongo: list events: %w", err)
	}

	result := make([]*event.Record, len(models))
	for i := range models {
		rec, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

// ==================== Snapshot ====================

func (s *Store) Export(ctx context.Context) (*tierbillstore.Snapshot, error) {
	ctl, err := s.GetControl(ctx)
	if err != nil {
		return nil, err
	}
	configs, err := s.ListTierConfigs(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := s.ListSubscriptions(ctx, subscription.ListOpts{})
	if err != nil {
		return nil, err
	}

	var termModels []termsModel
	if err := s.mdb.NewFind(&termModels).Filter(bson.M{}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("tierbill/mongo: export terms: %w", err)
	}
	terms := make([]*tier.EnterpriseTerms, len(termModels))
	for i := range termModels {
		terms[i] = fromTermsModel(&termModels[i])
	}

	var balanceModels []balanceModel
	if err := s.mdb.NewFind(&balanceModels).Filter(bson.M{}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("tierbill/mongo: export balances: %w", err)
	}
	balances := make(map[string]int64, len(balanceModels))
	for i := range balanceModels {
		balances[balanceModels[i].Account] = balanceModels[i].Balance
	}

	var roleModels []roleModel
	if err := s.mdb.NewFind(&roleModels).Filter(bson.M{}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("tierbill/mongo: export roles: %w", err)
	}
	roleMap := make(map[string][]roles.Role)
	for i := range roleModels {
		roleMap[roleModels[i].Account] = append(roleMap[roleModels[i].Account], roles.Role(roleModels[i].Role))
	}

	totals, err := s.GetRevenue(ctx)
	if err != nil {
		return nil, err
	}

	var spendModels []spendModel
	if err := s.mdb.NewFind(&spendModels).Filter(bson.M{}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("tierbill/mongo: export spend: %w", err)
	}
	spent := make(map[string]types.Money, len(spendModels))
	for i := range spendModels {
		spent[spendModels[i].Account] = types.Money{
			Amount:   spendModels[i].AmountCents,
			Currency: spendModels[i].Currency,
		}
	}

	events, err := s.ListEvents(ctx, event.ListOpts{})
	if err != nil {
		return nil, err
	}

	return &tierbillstore.Snapshot{
		Version:       tierbillstore.SnapshotVersion,
		Control:       *ctl,
		TierConfigs:   configs,
		Subscriptions: subs,
		Terms:         terms,
		Balances:      balances,
		Roles:         roleMap,
		Revenue:       *totals,
		Spent:         spent,
		Events:        events,
	}, nil
}

func (s *Store) Import(ctx context.Context, snap *tierbillstore.Snapshot) error {
	for _, model := range []any{
		(*controlModel)(nil),
		(*tierModel)(nil),
		(*subscriptionModel)(nil),
		(*termsModel)(nil),
		(*balanceModel)(nil),
		(*roleModel)(nil),
		(*revenueModel)(nil),
		(*spendModel)(nil),
		(*eventModel)(nil),
	} {
		if _, err := s.mdb.NewDelete(model).Filter(bson.M{}).Exec(ctx); err != nil {
			return fmt.Errorf("tierbill/mongo: import clear: %w", err)
		}
	}

	ctl := snap.Control
	if err := s.PutControl(ctx, &ctl); err != nil {
		return err
	}
	for t, cfg := range snap.TierConfigs {
		if err := s.PutTierConfig(ctx, t, cfg); err != nil {
			return err
		}
	}
	for _, sub := range snap.Subscriptions {
		if err := s.PutSubscription(ctx, sub); err != nil {
			return err
		}
	}
	for _, terms := range snap.Terms {
		if err := s.PutEnterpriseTerms(ctx, terms); err != nil {
			return err
		}
	}
	for account, balance := range snap.Balances {
		if err := s.SetCreditBalance(ctx, account, balance); err != nil {
			return err
		}
	}
	for account, list := range snap.Roles {
		for _, role := range list {
			if err := s.GrantRole(ctx, account, role); err != nil {
				return err
			}
		}
	}

	rm := &revenueModel{
		ID:                revenueDocID,
		CollectedCents:    snap.Revenue.Collected.Amount,
		CollectedCurrency: snap.Revenue.Collected.Currency,
		WithdrawnCents:    snap.Revenue.Withdrawn.Amount,
		WithdrawnCurrency: snap.Revenue.Withdrawn.Currency,
		Subscriptions:     snap.Revenue.Subscriptions,
	}
	if _, err := s.mdb.NewInsert(rm).Exec(ctx); err != nil {
		return fmt.Errorf("tierbill/mongo: import revenue: %w", err)
	}

	for account, amount := range snap.Spent {
		sm := &spendModel{
			Account:     account,
			AmountCents: amount.Amount,
			Currency:    amount.Currency,
			UpdatedAt:   now(),
		}
		if _, err := s.mdb.NewInsert(sm).Exec(ctx); err != nil {
			return fmt.Errorf("tierbill/mongo: import spend: %w", err)
		}
	}
	for _, rec := range snap.Events {
		if err := s.AppendEvent(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all tierbill collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colControl: {},
		colTiers:   {},
		colSubscriptions: {
			{Keys: bson.D{{Key: "tier", Value: 1}, {Key: "active", Value: 1}}},
		},
		colTerms:    {},
		colBalances: {},
		colRoles: {
			{Keys: bson.D{{Key: "account", Value: 1}}},
			{
				Keys:    bson.D{{Key: "account", Value: 1}, {Key: "role", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colRevenue: {},
		colSpend:   {},
		colEvents: {
			{Keys: bson.D{{Key: "account", Value: 1}, {Key: "occurred_at", Value: 1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "occurred_at", Value: 1}}},
		},
	}
}
