package extension

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xraph/placement"
	"github.com/xraph/placement/website"
)

// Store drivers selectable through Config.StoreDriver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the placement extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.placement" or "placement" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// StoreDriver selects the store built over the grove database passed
	// with WithGroveDB: postgres, sqlite or mongo. Without a grove database
	// the memory store is used.
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// DefaultStrategy is the derivation strategy for websites that have
	// none stored (default: min_price).
	DefaultStrategy string `json:"default_strategy" mapstructure:"default_strategy" yaml:"default_strategy"`

	// RecalculateConcurrency bounds concurrent derivations in
	// RecalculateDerivedPrices (default: 8).
	RecalculateConcurrency int `json:"recalculate_concurrency" mapstructure:"recalculate_concurrency" yaml:"recalculate_concurrency"`

	// ApprovalRedisAddr, when set, backs the manual-approval queue with
	// Redis at this address. Otherwise approvals are not queued.
	ApprovalRedisAddr string `json:"approval_redis_addr" mapstructure:"approval_redis_addr" yaml:"approval_redis_addr"`

	// ApprovalRedisKey is the Redis hash holding pending approvals
	// (default: placement:approvals).
	ApprovalRedisKey string `json:"approval_redis_key" mapstructure:"approval_redis_key" yaml:"approval_redis_key"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StoreDriver:            DriverMemory,
		DefaultStrategy:        string(website.StrategyMinPrice),
		RecalculateConcurrency: placement.DefaultRecalculateConcurrency,
	}
}

// Validate reports every configuration value the engine cannot use.
func (c Config) Validate() error {
	var errs placement.MultiError
	switch c.StoreDriver {
	case "", DriverMemory, DriverPostgres, DriverSQLite, DriverMongo:
	default:
		errs.Add(fmt.Errorf("placement: unknown store driver %q", c.StoreDriver))
	}
	if s := website.Strategy(c.DefaultStrategy); s != "" && (!s.Valid() || s == website.StrategyOverride) {
		errs.Add(fmt.Errorf("placement: unknown default strategy %q", c.DefaultStrategy))
	}
	if c.RecalculateConcurrency < 0 {
		errs.Add(errors.New("placement: recalculate_concurrency must not be negative"))
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// LoadConfigFile reads a YAML file for hosts that do not run Forge. The
// configuration may sit at the top level or under an "extensions.placement"
// or "placement" key. Missing fields take their defaults.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("placement: read config: %w", err)
	}

	var doc struct {
		Extensions struct {
			Placement *Config `yaml:"placement"`
		} `yaml:"extensions"`
		Placement *Config `yaml:"placement"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("placement: parse config %s: %w", path, err)
	}

	var cfg Config
	switch {
	case doc.Extensions.Placement != nil:
		cfg = *doc.Extensions.Placement
	case doc.Placement != nil:
		cfg = *doc.Placement
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("placement: parse config %s: %w", path, err)
		}
	}

	cfg = withDefaults(cfg)
	return cfg, cfg.Validate()
}

// withDefaults fills zero-valued fields with defaults.
func withDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = defaults.DefaultStrategy
	}
	if cfg.RecalculateConcurrency == 0 {
		cfg.RecalculateConcurrency = defaults.RecalculateConcurrency
	}
	return cfg
}
