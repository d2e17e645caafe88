package extension

import (
	"time"

	"github.com/xraph/grove"

	tierbill "github.com/xraph/tierbill"
	"github.com/xraph/tierbill/plugin"
	"github.com/xraph/tierbill/store"
)

// Option configures the tierbill Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB supplies a grove database for the persistent store backends.
// The store implementation is picked by the Backend config key
// ("sqlite", "postgres" or "mongo").
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithLedgerOption passes a tierbill.Option through to the underlying engine.
func WithLedgerOption(opt tierbill.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a tierbill plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, tierbill.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBackend selects the store backend for a supplied grove database.
func WithBackend(backend string) Option {
	return func(e *Extension) { e.config.Backend = backend }
}

// WithPeriod sets the subscription period length.
func WithPeriod(d time.Duration) Option {
	return func(e *Extension) { e.config.Period = d }
}

// WithCurrency sets the ledger currency.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
