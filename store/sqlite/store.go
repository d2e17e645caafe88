// Package sqlite provides a Store backed by SQLite via the Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tierbill"
	"github.com/xraph/tierbill/event"
	"github.com/xraph/tierbill/revenue"
	"github.com/xraph/tierbill/roles"
	tierbillstore "github.com/xraph/tierbill/store"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// compile-time interface check
var _ tierbillstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("tierbill/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tierbill/sqlite: migration failed: %w", err)
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
	m := new(controlModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", controlRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return &tierbillstore.Control{}, nil
		}
		return nil, err
	}
	return &tierbillstore.Control{
		Initialized: m.Initialized,
		Admin:       m.Admin,
		Paused:      m.Paused,
	}, nil
}

func (s *Store) PutControl(ctx context.Context, c *tierbillstore.Control) error {
	m := &controlModel{
		ID:          controlRowID,
		Initialized: c.Initialized,
		Admin:       c.Admin,
		Paused:      c.Paused,
	}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("initialized = EXCLUDED.initialized").
		Set("admin = EXCLUDED.admin").
		Set("paused = EXCLUDED.paused").
		Exec(ctx)
	return err
}

// ==================== Tier schedule ====================

func (s *Store) PutTierConfig(ctx context.Context, t tier.Tier, cfg tier.Config) error {
	m := toTierModel(t, cfg)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(tier) DO UPDATE").
		Set("price_cents = EXCLUDED.price_cents").
		Set("price_currency = EXCLUDED.price_currency").
		Set("credits = EXCLUDED.credits").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetTierConfig(ctx context.Context, t tier.Tier) (tier.Config, error) {
	m := new(tierModel)
	err := s.sdb.NewSelect(m).
		Where("tier = ?", string(t)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return tier.Config{}, tierbill.ErrTierNotConfigured
		}
		return tier.Config{}, err
	}
	return fromTierModel(m), nil
}

func (s *Store) ListTierConfigs(ctx context.Context) (map[tier.Tier]tier.Config, error) {
	var models []tierModel
	if err := s.sdb.NewSelect(&models).Scan(ctx); err != nil {
		return nil, err
	}

	result := make(map[tier.Tier]tier.Config, len(models))
	for i := range models {
		result[tier.Tier(models[i].Tier)] = fromTierModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteTierConfig(ctx context.Context, t tier.Tier) error {
	_, err := s.sdb.NewDelete((*tierModel)(nil)).
		Where("tier = ?", string(t)).
		Exec(ctx)
	return err
}

// ==================== Subscriptions ====================

func (s *Store) PutSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()
	_, err := s.sdb.NewInsert(m).
		OnConflict("(account) DO UPDATE").
		Set("tier = EXCLUDED.tier").
		Set("start_at = EXCLUDED.start_at").
		Set("end_at = EXCLUDED.end_at").
		Set("credits_remaining = EXCLUDED.credits_remaining").
		Set("active = EXCLUDED.active").
		Set("canceled_at = EXCLUDED.canceled_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, account string) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tierbill.ErrNoSubscription
		}
		return nil, err
	}
	return fromSubscriptionModel(m), nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.sdb.NewSelect(&models)

	if opts.Tier != "" {
		q = q.Where("tier = ?", string(opts.Tier))
	}
	if opts.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("account ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		result[i] = fromSubscriptionModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteSubscription(ctx context.Context, account string) error {
	_, err := s.sdb.NewDelete((*subscriptionModel)(nil)).
		Where("account = ?", account).
		Exec(ctx)
	return err
}

// ==================== Enterprise terms ====================

func (s *Store) PutEnterpriseTerms(ctx context.Context, terms *tier.EnterpriseTerms) error {
	m := toTermsModel(terms)
	m.UpdatedAt = now()
	_, err := s.sdb.NewInsert(m).
		OnConflict("(account) DO UPDATE").
		Set("price_cents = EXCLUDED.price_cents").
		Set("price_currency = EXCLUDED.price_currency").
		Set("credits = EXCLUDED.credits").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetEnterpriseTerms(ctx context.Context, account string) (*tier.EnterpriseTerms, error) {
	m := new(termsModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tierbill.ErrTermsNotSet
		}
		return nil, err
	}
	return fromTermsModel(m), nil
}

func (s *Store) DeleteEnterpriseTerms(ctx context.Context, account string) error {
	_, err := s.sdb.NewDelete((*termsModel)(nil)).
		Where("account = ?", account).
		Exec(ctx)
	return err
}

// ==================== Credit balances ====================

func (s *Store) SetCreditBalance(ctx context.Context, account string, balance int64) error {
	m := &balanceModel{Account: account, Balance: balance, UpdatedAt: now()}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(account) DO UPDATE").
		Set("balance = EXCLUDED.balance").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetCreditBalance(ctx context.Context, account string) (int64, error) {
	m := new(balanceModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return m.Balance, nil
}

// ==================== Roles ====================

func (s *Store) GrantRole(ctx context.Context, account string, role roles.Role) error {
	m := &roleModel{
		ID:      roleKey(account, string(role)),
		Account: account,
		Role:    string(role),
	}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) RevokeRole(ctx context.Context, account string, role roles.Role) error {
	_, err := s.sdb.NewDelete((*roleModel)(nil)).
		Where("id = ?", roleKey(account, string(role))).
		Exec(ctx)
	return err
}

func (s *Store) HasRole(ctx context.Context, account string, role roles.Role) (bool, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", roleKey(account, string(role))).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListRoles(ctx context.Context, account string) (roles.Set, error) {
	var models []roleModel
	err := s.sdb.NewSelect(&models).
		Where("account = ?", account).
		Scan(ctx)
	if err != nil {
		return nil, err
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

	res, err := s.sdb.NewUpdate((*revenueModel)(nil)).
		Set("collected_cents = collected_cents + ?", amount.Amount).
		Set("collected_currency = ?", amount.Currency).
		Set("subscriptions = subscriptions + ?", subInc).
		Where("id = ?", revenueRowID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		m := &revenueModel{
			ID:                revenueRowID,
			CollectedCents:    amount.Amount,
			CollectedCurrency: amount.Currency,
			Subscriptions:     subInc,
		}
		if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
			return err
		}
	}

	res, err = s.sdb.NewUpdate((*spendModel)(nil)).
		Set("amount_cents = amount_cents + ?", amount.Amount).
		Set("updated_at = ?", now()).
		Where("account = ?", account).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		m := &spendModel{
			Account:     account,
			AmountCents: amount.Amount,
			Currency:    amount.Currency,
			UpdatedAt:   now(),
		}
		if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) RecordWithdrawal(ctx context.Context, amount types.Money) error {
	res, err := s.sdb.NewUpdate((*revenueModel)(nil)).
		Set("withdrawn_cents = withdrawn_cents + ?", amount.Amount).
		Set("withdrawn_currency = ?", amount.Currency).
		Where("id = ?", revenueRowID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		m := &revenueModel{
			ID:                revenueRowID,
			WithdrawnCents:    amount.Amount,
			WithdrawnCurrency: amount.Currency,
		}
		if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetRevenue(ctx context.Context) (*revenue.Totals, error) {
	m := new(revenueModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", revenueRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return &revenue.Totals{}, nil
		}
		return nil, err
	}
	return fromRevenueModel(m), nil
}

func (s *Store) GetLifetimeSpent(ctx context.Context, account string) (types.Money, error) {
	m := new(spendModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return types.Money{}, nil
		}
		return types.Money{}, err
	}
	return types.Money{Amount: m.AmountCents, Currency: m.Currency}, nil
}

// ==================== Event journal ====================

func (s *Store) AppendEvent(ctx context.Context, rec *event.Record) error {
	m := toEventModel(rec)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Record, error) {
	var models []eventModel
	q := s.sdb.NewSelect(&models)

	if opts.Account != "" {
		q = q.Where("account = ?", opts.Account)
	}
	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("occurred_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	if err := s.sdb.NewSelect(&termModels).Scan(ctx); err != nil {
		return nil, err
	}
	terms := make([]*tier.EnterpriseTerms, len(termModels))
	for i := range termModels {
		terms[i] = fromTermsModel(&termModels[i])
	}

	var balanceModels []balanceModel
	if err := s.sdb.NewSelect(&balanceModels).Scan(ctx); err != nil {
		return nil, err
	}
	balances := make(map[string]int64, len(balanceModels))
	for i := range balanceModels {
		balances[balanceModels[i].Account] = balanceModels[i].Balance
	}

	var roleModels []roleModel
	if err := s.sdb.NewSelect(&roleModels).Scan(ctx); err != nil {
		return nil, err
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
	if err := s.sdb.NewSelect(&spendModels).Scan(ctx); err != nil {
		return nil, err
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
		if _, err := s.sdb.NewDelete(model).Where("1 = 1").Exec(ctx); err != nil {
			return err
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
		ID:                revenueRowID,
		CollectedCents:    snap.Revenue.Collected.Amount,
		CollectedCurrency: snap.Revenue.Collected.Currency,
		WithdrawnCents:    snap.Revenue.Withdrawn.Amount,
		WithdrawnCurrency: snap.Revenue.Withdrawn.Currency,
		Subscriptions:     snap.Revenue.Subscriptions,
	}
	if _, err := s.sdb.NewInsert(rm).Exec(ctx); err != nil {
		return err
	}

	for account, amount := range snap.Spent {
		sm := &spendModel{
			Account:     account,
			AmountCents: amount.Amount,
			Currency:    amount.Currency,
			UpdatedAt:   now(),
		}
		if _, err := s.sdb.NewInsert(sm).Exec(ctx); err != nil {
			return err
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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
