package extension

import "time"

// Config holds the tierbill extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tierbill" or "tierbill" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Backend selects the store backend: "memory" (the default, no
	// database), or "sqlite", "postgres" or "mongo", each of which
	// requires a grove database via WithGroveDB. Supplying a database
	// without naming a persistent backend is rejected at Register time.
	// Ignored when a store is set programmatically.
	Backend string `json:"backend" mapstructure:"backend" yaml:"backend"`

	// Period is the subscription period length (default: 720h).
	Period time.Duration `json:"period" mapstructure:"period" yaml:"period"`

	// Currency is the ISO currency code all payments must carry (default: "usd").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:  "memory",
		Period:   30 * 24 * time.Hour,
		Currency: "usd",
	}
}
