// Package extension provides the Forge extension adapter for tierbill.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tierbill" or
// "tierbill" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	tierbill "github.com/xraph/tierbill"
	"github.com/xraph/tierbill/store"
	"github.com/xraph/tierbill/store/memory"
	"github.com/xraph/tierbill/store/mongo"
	"github.com/xraph/tierbill/store/postgres"
	"github.com/xraph/tierbill/store/sqlite"

	"github.com/xraph/grove"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tierbill"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Tiered subscription and credit ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts tierbill as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *tierbill.Ledger
	store      store.Store
	groveDB    *grove.DB
	ledgerOpts []tierbill.Option
}

// New creates a new tierbill Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *tierbill.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.buildStore(); err != nil {
		return err
	}

	opts := e.buildLedgerOpts()

	eng := tierbill.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*tierbill.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tierbill: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tierbill: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildStore resolves the store from programmatic options and config.
// A programmatic store wins; a grove database plus the Backend key picks
// a persistent backend; otherwise the in-memory store is used. A grove
// database with the memory backend (or no backend at all) is a
// configuration mistake and fails loudly rather than silently ignoring
// the database.
func (e *Extension) buildStore() error {
	if e.store != nil {
		return nil
	}

	if e.groveDB != nil {
		switch e.config.Backend {
		case "sqlite":
			e.store = sqlite.New(e.groveDB)
		case "postgres":
			e.store = postgres.New(e.groveDB)
		case "mongo":
			e.store = mongo.New(e.groveDB)
		case "", "memory":
			return fmt.Errorf("tierbill: a grove database was supplied but backend %q does not use it; "+
				"set backend to \"sqlite\", \"postgres\" or \"mongo\"", e.config.Backend)
		default:
			return fmt.Errorf("tierbill: unknown store backend %q", e.config.Backend)
		}
		return nil
	}

	switch e.config.Backend {
	case "", "memory":
		e.store = memory.New()
		return nil
	default:
		return fmt.Errorf("tierbill: backend %q requires a grove database; use WithGroveDB", e.config.Backend)
	}
}

// buildLedgerOpts constructs tierbill.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []tierbill.Option {
	opts := make([]tierbill.Option, 0, len(e.ledgerOpts)+2)

	if e.config.Period > 0 {
		opts = append(opts, tierbill.WithPeriod(e.config.Period))
	}
	if e.config.Currency != "" {
		opts = append(opts, tierbill.WithCurrency(e.config.Currency))
	}

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tierbill: configuration is required but not found in config files; " +
				"ensure 'extensions.tierbill' or 'tierbill' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tierbill: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("backend", e.config.Backend),
		forge.F("period", e.config.Period),
		forge.F("currency", e.config.Currency),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.tierbill" first (namespaced pattern).
	if cm.IsSet("extensions.tierbill") {
		if err := cm.Bind("extensions.tierbill", &cfg); err == nil {
			e.Logger().Debug("tierbill: loaded config from file",
				forge.F("key", "extensions.tierbill"),
			)
			return cfg, true
		}
		e.Logger().Warn("tierbill: failed to bind extensions.tierbill config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "tierbill" key.
	if cm.IsSet("tierbill") {
		if err := cm.Bind("tierbill", &cfg); err == nil {
			e.Logger().Debug("tierbill: loaded config from file",
				forge.F("key", "tierbill"),
			)
			return cfg, true
		}
		e.Logger().Warn("tierbill: failed to bind tierbill config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Backend == "" {
		cfg.Backend = defaults.Backend
	}
	if cfg.Period == 0 {
		cfg.Period = defaults.Period
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String/duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.Backend == "" && programmaticConfig.Backend != "" {
		yamlConfig.Backend = programmaticConfig.Backend
	}
	if yamlConfig.Currency == "" && programmaticConfig.Currency != "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.Period == 0 && programmaticConfig.Period != 0 {
		yamlConfig.Period = programmaticConfig.Period
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
