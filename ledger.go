package tierbill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/tierbill/event"
	"github.com/xraph/tierbill/id"
	"github.com/xraph/tierbill/plugin"
	"github.com/xraph/tierbill/roles"
	"github.com/xraph/tierbill/store"
	"github.com/xraph/tierbill/subscription"
	"github.com/xraph/tierbill/tier"
	"github.com/xraph/tierbill/types"
)

// DefaultPeriod is the uniform subscription period added to expiry on
// every subscribe and renew. It is ledger configuration, not a tier
// property, so it is identical across tiers.
const DefaultPeriod = 30 * 24 * time.Hour

// Ledger is the tiered-subscription payment engine.
//
// Mutating operations are serialized: every call runs to completion
// before the next begins, and a failed call leaves all durable state
// exactly as it found it. Read-only queries never block on mutations.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Configuration
	period   time.Duration
	currency string
	clock    func() time.Time

	// mu serializes all mutating operations.
	mu sync.Mutex

	// transferring guards the payable surface: while an outbound value
	// transfer is in flight, every mutating entry point fails with
	// ErrReentrantCall instead of deadlocking or double-spending.
	transferring atomic.Bool
}

// New creates a new Ledger instance backed by the given store.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		period:   DefaultPeriod,
		currency: "usd",
		clock:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPeriod overrides the subscription period.
func WithPeriod(period time.Duration) Option {
	return func(l *Ledger) {
		if period > 0 {
			l.period = period
		}
	}
}

// WithCurrency sets the ledger currency (ISO 4217 lowercase).
// All payments, prices, and withdrawals must use this currency.
func WithCurrency(currency string) Option {
	return func(l *Ledger) {
		if currency != "" {
			l.currency = currency
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// Start migrates the store and announces the ledger to plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("ledger started",
		"period", l.period,
		"currency", l.currency,
	)

	return nil
}

// Stop shuts down the ledger and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Period returns the configured subscription period.
func (l *Ledger) Period() time.Duration { return l.period }

// Currency returns the configured ledger currency.
func (l *Ledger) Currency() string { return l.currency }

// ──────────────────────────────────────────────────
// Initialization
// ──────────────────────────────────────────────────

// Initialize performs the one-time bootstrap: records the administrator
// account, seeds the default tier schedule, and opens the ledger for
// mutating operations. Invoking it twice fails with ErrAlreadyInitialized.
func (l *Ledger) Initialize(ctx context.Context, admin string) error {
	if l.transferring.Load() {
		return ErrReentrantCall
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ctl, err := l.store.GetControl(ctx)
	if err != nil {
		return err
	}
	if ctl.Initialized {
		return ErrAlreadyInitialized
	}
	if admin == "" {
		return ErrInvalidAdmin
	}

	hadRole, err := l.store.HasRole(ctx, admin, roles.Administrator)
	if err != nil {
		return err
	}

	undo := &undoLog{}
	if err := l.store.PutControl(ctx, &store.Control{Initialized: true, Admin: admin}); err != nil {
		return err
	}
	undo.push(func(ctx context.Context) error {
		return l.store.PutControl(ctx, &store.Control{})
	})

	if err := l.store.GrantRole(ctx, admin, roles.Administrator); err != nil {
		undo.revert(ctx, l.logger)
		return err
	}
	if !hadRole {
		undo.push(func(ctx context.Context) error {
			return l.store.RevokeRole(ctx, admin, roles.Administrator)
		})
	}

	for t, cfg := range tier.DefaultSchedule(l.currency) {
		if _, err := l.store.GetTierConfig(ctx, t); err == nil {
			continue
		}
		if err := l.store.PutTierConfig(ctx, t, cfg); err != nil {
			undo.revert(ctx, l.logger)
			return err
		}
		undo.push(func(ctx context.Context) error {
			return l.store.DeleteTierConfig(ctx, t)
		})
	}

	l.journal(ctx, &event.Record{
		Kind:    event.KindInitialized,
		Account: admin,
	})

	l.logger.Info("ledger initialized", "admin", admin)
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle
// ──────────────────────────────────────────────────

// Subscribe installs a fresh subscription for the account on a priced
// tier. The payment must equal the tier price exactly: overpayment and
// underpayment both fail the whole call. Any prior subscription record is
// fully replaced — credits and expiry are overwritten, never merged.
func (l *Ledger) Subscribe(ctx context.Context, account string, t tier.Tier, paid types.Money) (*subscription.Subscription, error) {
	if l.transferring.Load() {
		return nil, ErrReentrantCall
	}

	l.mu.Lock()
	sub, err := l.subscribeLocked(ctx, account, t, paid)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	l.plugins.EmitSubscriptionCreated(ctx, sub, paid)
	l.plugins.EmitPaymentRecorded(ctx, account, paid)
	l.plugins.EmitRoleGranted(ctx, account, roles.Subscriber)
	return sub, nil
}

func (l *Ledger) subscribeLocked(ctx context.Context, account string, t tier.Tier, paid types.Money) (*subscription.Subscription, error) {
	if err := l.requireRunning(ctx); err != nil {
		return nil, err
	}
	if account == "" {
		return nil, ErrInvalidAccount
	}
	if !t.Valid() {
		return nil, ErrUnknownTier
	}
	if t == tier.Enterprise {
		return nil, ErrEnterpriseTier
	}

	cfg, err := l.store.GetTierConfig(ctx, t)
	if err != nil {
		return nil, err
	}
	if !paid.Equal(cfg.Price) {
		return nil, ErrPaymentMismatch
	}

	return l.installSubscription(ctx, &undoLog{}, account, t, cfg.Price, cfg.Credits)
}

// SubscribeEnterprise installs an enterprise subscription with per-account
// custom terms. Administrator-gated: the actor in ctx must hold the
// Administrator role. The terms are recorded for later renewals.
func (l *Ledger) SubscribeEnterprise(ctx context.Context, account string, customPrice types.Money, customCredits int64, paid types.Money) (*subscription.Subscription, error) {
	if l.transferring.Load() {
		return nil, ErrReentrantCall
	}

	l.mu.Lock()
	sub, err := l.subscribeEnterpriseLocked(ctx, account, customPrice, customCredits, paid)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	l.plugins.EmitSubscriptionCreated(ctx, sub, paid)
	l.plugins.EmitPaymentRecorded(ctx, account, paid)
	l.plugins.EmitRoleGranted(ctx, account, roles.Subscriber)
	return sub, nil
}

func (l *Ledger) subscribeEnterpriseLocked(ctx context.Context, account string, customPrice types.Money, customCredits int64, paid types.Money) (*subscription.Subscription, error) {
	if err := l.requireRunning(ctx); err != nil {
		return nil, err
	}
	if err := l.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if account == "" {
		return nil, ErrInvalidAccount
	}
	if !customPrice.IsPositive() || customPrice.Currency != l.currency || customCredits <= 0 {
		return nil, ErrInvalidAmount
	}
	if !paid.Equal(customPrice) {
		return nil, ErrPaymentMismatch
	}

	prevTerms, err := l.store.GetEnterpriseTerms(ctx, account)
	if err != nil && !errors.Is(err, ErrTermsNotSet) {
		return nil, err
	}

	undo := &undoLog{}
	terms := &tier.EnterpriseTerms{
		Entity:  types.NewEntity(),
		Account: account,
		Price:   customPrice,
		Credits: customCredits,
	}
	if err := l.store.PutEnterpriseTerms(ctx, terms); err != nil {
		return nil, err
	}
	if prevTerms != nil {
		undo.push(func(ctx context.Context) error {
			return l.store.PutEnterpriseTerms(ctx, prevTerms)
		})
	} else {
		undo.push(func(ctx context.Context) error {
			return l.store.DeleteEnterpriseTerms(ctx, account)
		})
	}

	return l.installSubscription(ctx, undo, account, tier.Enterprise, customPrice, customCredits)
}

// installSubscription writes the fresh record, overwrites the credit
// balance, grants the Subscriber role, and books the payment. Callers
// have already validated the payment. Preimages of every touched entity
// are captured up front; a failing write reverts the undo log (including
// steps the caller pushed) and surfaces the error with nothing applied.
func (l *Ledger) installSubscription(ctx context.Context, undo *undoLog, account string, t tier.Tier, price types.Money, credits int64) (*subscription.Subscription, error) {
	prevSub, err := l.store.GetSubscription(ctx, account)
	if err != nil && !errors.Is(err, ErrNoSubscription) {
		undo.revert(ctx, l.logger)
		return nil, err
	}
	prevBalance, err := l.store.GetCreditBalance(ctx, account)
	if err != nil {
		undo.revert(ctx, l.logger)
		return nil, err
	}
	hadRole, err := l.store.HasRole(ctx, account, roles.Subscriber)
	if err != nil {
		undo.revert(ctx, l.logger)
		return nil, err
	}

	now := l.clock()
	sub := &subscription.Subscription{
		Entity:           types.NewEntity(),
		Account:          account,
		Tier:             t,
		Start:            now,
		End:              now.Add(l.period),
		CreditsRemaining: credits,
		Active:           true,
	}

	if err := l.store.PutSubscription(ctx, sub); err != nil {
		undo.revert(ctx, l.logger)
		return nil, err
	}
	if prevSub != nil {
		undo.push(func(ctx context.Context) error {
			return l.store.PutSubscription(ctx, prevSub)
		})
	} else {
		undo.push(func(ctx context.Context) error {
			return l.store.DeleteSubscription(ctx, account)
		})
	}

	if err := l.store.SetCreditBalance(ctx, account, credits); err != nil {
		undo.revert(ctx, l.logger)
		return nil, err
	}
	undo.push(func(ctx context.Context) error {
		return l.store.SetCreditBalance(ctx, account, prevBalance)
	})

	if err := l.store.GrantRole(ctx, account, roles.Subscriber); err != nil {
		undo.revert(ctx, l.logger)
		return nil, err
	}
	if !hadRole {
		undo.push(func(ctx context.Context) error {
			return l.store.RevokeRole(ctx, account, roles.Subscriber)
		})
	}

	if err := l.store.RecordPayment(ctx, account, price, true); err != nil {
		undo.revert(ctx, l.logger)
		return nil, err
	}

	l.journal(ctx, &event.Record{
		Kind:      event.KindSubscriptionCreated,
		Account:   account,
		Tier:      t,
		Amount:    price,
		Credits:   credits,
		Balance:   credits,
		PeriodEnd: sub.End,
		Active:    true,
	})
	l.journal(ctx, &event.Record{
		Kind:    event.KindPaymentRecorded,
		Account: account,
		Amount:  price,
		Balance: credits,
	})

	l.logger.Info("subscription created",
		"account", account,
		"tier", t,
		"price", price,
		"credits", credits,
		"end", sub.End,
	)

	return sub, nil
}

// Renew extends an existing subscription by exactly one period from its
// previous end, not from now: renewing early wastes nothing, and renewing
// late does not silently reset to a fresh full period. Credits are reset
// to the tier allotment, never accumulated. The stored active flag is
// what gates renewal — an expired-but-not-cancelled subscription renews.
func (l *Ledger) Renew(ctx context.Context, account string, paid types.Money) (*subscription.Subscription, error) {
	if l.transferring.Load() {
		return nil, ErrReentrantCall
	}

	l.mu.Lock()
	sub, err := l.renewLocked(ctx, account, paid)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	l.plugins.EmitSubscriptionRenewed(ctx, sub, paid)
	l.plugins.EmitPaymentRecorded(ctx, account, paid)
	return sub, nil
}

func (l *Ledger) renewLocked(ctx context.Context, account string, paid types.Money) (*subscription.Subscription, error) {
	if err := l.requireRunning(ctx); err != nil {
		return nil, err
	}

	sub, err := l.store.GetSubscription(ctx, account)
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	if !sub.Active {
		return nil, ErrNoActiveSubscription
	}

	price, credits, err := l.resolveTerms(ctx, sub)
	if err != nil {
		return nil, err
	}
	if !paid.Equal(price) {
		return nil, ErrPaymentMismatch
	}

	prevBalance, err := l.store.GetCreditBalance(ctx, account)
	if err != nil {
		return nil, err
	}

	prev := *sub
	sub.End = sub.End.Add(l.period)
	sub.CreditsRemaining = credits
	sub.Touch()

	undo := &undoLog{}
	if err := l.store.PutSubscription(ctx, sub); err != nil {
		return nil, err
	}
	undo.push(func(ctx context.Context) error {
		return l.store.PutSubscription(ctx, &prev)
	})
	if err := l.store.SetCreditBalance(ctx, account, credits); err != nil {
		undo.revert(ctx, l.logger)
		return nil, err
	}
	undo.push(func(ctx context.Context) error {
		return l.store.SetCreditBalance(ctx, account, prevBalance)
	})
	if err := l.store.RecordPayment(ctx, account, price, false); err != nil {
		undo.revert(ctx, l.logger)
		return nil, err
	}

	l.journal(ctx, &event.Record{
		Kind:      event.KindSubscriptionRenewed,
		Account:   account,
		Tier:      sub.Tier,
		Amount:    price,
		Credits:   credits,
		Balance:   credits,
		PeriodEnd: sub.End,
		Active:    true,
	})
	l.journal(ctx, &event.Record{
		Kind:    event.KindPaymentRecorded,
		Account: account,
		Amount:  price,
		Balance: credits,
	})

	l.logger.Info("subscription renewed",
		"account", account,
		"tier", sub.Tier,
		"price", price,
		"end", sub.End,
	)

	return sub, nil
}

// resolveTerms returns the renewal price and credit allotment: the shared
// tier schedule for priced tiers, or the account's enterprise terms.
func (l *Ledger) resolveTerms(ctx context.Context, sub *subscription.Subscription) (types.Money, int64, error) {
	if sub.Tier == tier.Enterprise {
		terms, err := l.store.GetEnterpriseTerms(ctx, sub.Account)
		if err != nil {
			return types.Money{}, 0, err
		}
		return terms.Price, terms.Credits, nil
	}

	cfg, err := l.store.GetTierConfig(ctx, sub.Tier)
	if err != nil {
		return types.Money{}, 0, err
	}
	return cfg.Price, cfg.Credits, nil
}

// Cancel soft-cancels the account's subscription: the active flag is
// cleared and the Subscriber role revoked, but the record and any
// remaining credits are preserved. Cancellation is a state transition,
// not removal. Gated on the account holding the Subscriber role.
func (l *Ledger) Cancel(ctx context.Context, account string) error {
	if l.transferring.Load() {
		return ErrReentrantCall
	}

	l.mu.Lock()
	sub, err := l.cancelLocked(ctx, account)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.plugins.EmitSubscriptionCanceled(ctx, sub)
	l.plugins.EmitRoleRevoked(ctx, account, roles.Subscriber)
	return nil
}

func (l *Ledger) cancelLocked(ctx context.Context, account string) (*subscription.Subscription, error) {
	if _, err := l.requireInitialized(ctx); err != nil {
		return nil, err
	}
	if err := l.authorize(ctx, account, roles.Subscriber); err != nil {
		return nil, err
	}

	sub, err := l.store.GetSubscription(ctx, account)
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	if !sub.Active {
		return nil, ErrNoActiveSubscription
	}

	prev := *sub
	now := l.clock()
	sub.Active = false
	sub.CanceledAt = &now
	sub.Touch()

	undo := &undoLog{}
	if err := l.store.PutSubscription(ctx, sub); err != nil {
		return nil, err
	}
	undo.push(func(ctx context.Context) error {
		return l.store.PutSubscription(ctx, &prev)
	})
	if err := l.store.RevokeRole(ctx, account, roles.Subscriber); err != nil {
		undo.revert(ctx, l.logger)
		return nil, err
	}

	l.journal(ctx, &event.Record{
		Kind:      event.KindSubscriptionCanceled,
		Account:   account,
		Tier:      sub.Tier,
		Balance:   sub.CreditsRemaining,
		PeriodEnd: sub.End,
	})

	l.logger.Info("subscription canceled", "account", account, "tier", sub.Tier)
	return sub, nil
}

// ──────────────────────────────────────────────────
// Credit ledger
// ──────────────────────────────────────────────────

// Consume reports usage against the account's credit balance. The balance
// and the subscription's mirrored credits_remaining are decremented
// together; a deduction exceeding the balance fails atomically with no
// partial deduction. The caller-supplied reason tag is recorded verbatim
// for off-chain audit — any string is accepted, including empty.
//
// Authorization: the account itself (Subscriber role), or a Platform-role
// actor reporting on the account's behalf — which is also how credits
// surviving a cancellation remain spendable.
func (l *Ledger) Consume(ctx context.Context, account string, amount int64, reason string) (int64, error) {
	if l.transferring.Load() {
		return 0, ErrReentrantCall
	}

	l.mu.Lock()
	remaining, err := l.consumeLocked(ctx, account, amount, reason)
	l.mu.Unlock()
	if err != nil {
		return 0, err
	}

	l.plugins.EmitCreditsConsumed(ctx, account, amount, remaining, reason)
	return remaining, nil
}

func (l *Ledger) consumeLocked(ctx context.Context, account string, amount int64, reason string) (int64, error) {
	if err := l.requireRunning(ctx); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	if err := l.authorizeUsage(ctx, account); err != nil {
		return 0, err
	}

	sub, err := l.store.GetSubscription(ctx, account)
	if err != nil {
		return 0, err
	}
	if sub.CreditsRemaining < amount {
		return 0, ErrInsufficientCredits
	}

	prev := *sub
	remaining := sub.CreditsRemaining - amount
	sub.CreditsRemaining = remaining
	sub.Touch()

	undo := &undoLog{}
	if err := l.store.PutSubscription(ctx, sub); err != nil {
		return 0, err
	}
	undo.push(func(ctx context.Context) error {
		return l.store.PutSubscription(ctx, &prev)
	})
	if err := l.store.SetCreditBalance(ctx, account, remaining); err != nil {
		undo.revert(ctx, l.logger)
		return 0, err
	}

	l.journal(ctx, &event.Record{
		Kind:    event.KindCreditsConsumed,
		Account: account,
		Tier:    sub.Tier,
		Credits: amount,
		Balance: remaining,
		Reason:  reason,
	})

	return remaining, nil
}

// authorizeUsage permits usage reporting by the account itself
// (Subscriber role) or by a Platform-role actor on its behalf.
func (l *Ledger) authorizeUsage(ctx context.Context, account string) error {
	ok, err := l.store.HasRole(ctx, account, roles.Subscriber)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	actor := ActorFrom(ctx)
	if actor == "" {
		return ErrUnauthorized
	}
	ok, err = l.store.HasRole(ctx, actor, roles.Platform)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// AddBonus grants extra credits to an account. Administrator-gated.
// Bonus credits touch neither expiry nor the active flag, so an inactive
// account can receive them.
func (l *Ledger) AddBonus(ctx context.Context, account string, amount int64) (int64, error) {
	if l.transferring.Load() {
		return 0, ErrReentrantCall
	}

	l.mu.Lock()
	balance, err := l.addBonusLocked(ctx, account, amount)
	l.mu.Unlock()
	if err != nil {
		return 0, err
	}

	l.plugins.EmitCreditsGranted(ctx, account, amount, balance)
	return balance, nil
}

func (l *Ledger) addBonusLocked(ctx context.Context, account string, amount int64) (int64, error) {
	if _, err := l.requireInitialized(ctx); err != nil {
		return 0, err
	}
	if err := l.requireAdmin(ctx); err != nil {
		return 0, err
	}
	if account == "" {
		return 0, ErrInvalidAccount
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	sub, err := l.store.GetSubscription(ctx, account)
	if err != nil {
		return 0, err
	}

	prev := *sub
	balance := sub.CreditsRemaining + amount
	sub.CreditsRemaining = balance
	sub.Touch()

	undo := &undoLog{}
	if err := l.store.PutSubscription(ctx, sub); err != nil {
		return 0, err
	}
	undo.push(func(ctx context.Context) error {
		return l.store.PutSubscription(ctx, &prev)
	})
	if err := l.store.SetCreditBalance(ctx, account, balance); err != nil {
		undo.revert(ctx, l.logger)
		return 0, err
	}

	l.journal(ctx, &event.Record{
		Kind:    event.KindCreditsGranted,
		Account: account,
		Tier:    sub.Tier,
		Credits: amount,
		Balance: balance,
	})

	l.logger.Info("bonus credits granted", "account", account, "amount", amount, "balance", balance)
	return balance, nil
}

// ──────────────────────────────────────────────────
// Shared guards
// ──────────────────────────────────────────────────

// undoLog collects compensation writes for a multi-write operation.
// Each durable write pushes the step that restores its preimage; when a
// later write fails, revert runs the steps in reverse so the operation
// leaves no partial state behind. Mutations are serialized under l.mu,
// so a captured preimage cannot go stale while the log is live.
type undoLog struct {
	steps []func(context.Context) error
}

func (u *undoLog) push(step func(context.Context) error) {
	u.steps = append(u.steps, step)
}

func (u *undoLog) revert(ctx context.Context, logger *slog.Logger) {
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i](ctx); err != nil {
			logger.Error("compensation write failed", "error", err)
		}
	}
}

func (l *Ledger) requireInitialized(ctx context.Context) (*store.Control, error) {
	ctl, err := l.store.GetControl(ctx)
	if err != nil {
		return nil, err
	}
	if !ctl.Initialized {
		return nil, ErrNotInitialized
	}
	return ctl, nil
}

// requireRunning rejects calls while uninitialized or paused.
func (l *Ledger) requireRunning(ctx context.Context) error {
	ctl, err := l.requireInitialized(ctx)
	if err != nil {
		return err
	}
	if ctl.Paused {
		return ErrPaused
	}
	return nil
}

// authorize fails with ErrUnauthorized unless the account holds at least
// one of the required roles.
func (l *Ledger) authorize(ctx context.Context, account string, required ...roles.Role) error {
	if account == "" {
		return ErrUnauthorized
	}
	for _, r := range required {
		ok, err := l.store.HasRole(ctx, account, r)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrUnauthorized
}

// requireAdmin resolves the actor from ctx and checks the Administrator role.
func (l *Ledger) requireAdmin(ctx context.Context) error {
	return l.authorize(ctx, ActorFrom(ctx), roles.Administrator)
}

// journal appends an immutable event record. The transition it describes
// is already durable; append failures are logged, never propagated.
func (l *Ledger) journal(ctx context.Context, rec *event.Record) {
	rec.ID = id.NewEventID()
	rec.OccurredAt = l.clock()

	if err := l.store.AppendEvent(ctx, rec); err != nil {
		l.logger.Error("failed to append event",
			"kind", rec.Kind,
			"account", rec.Account,
			"error", err,
		)
	}
}

// errf wraps err with contextual detail while preserving sentinel identity.
func errf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
