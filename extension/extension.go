// Package extension provides the Forge extension adapter for placement.
//
// It implements the forge.Extension interface to integrate the placement
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.placement" or
// "placement" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/placement"
	"github.com/xraph/placement/approval"
	"github.com/xraph/placement/store"
	"github.com/xraph/placement/store/memory"
	"github.com/xraph/placement/store/mongo"
	"github.com/xraph/placement/store/postgres"
	"github.com/xraph/placement/store/sqlite"
	"github.com/xraph/placement/website"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "placement"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Publisher offering pricing and order line-item lifecycle engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the placement engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *placement.Engine
	store      store.Store
	groveDB    *grove.DB
	redis      *redis.Client
	ownsRedis  bool
	engineOpts []placement.Option
}

// New creates a new placement Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying placement engine.
// This is nil until Register is called.
func (e *Extension) Engine() *placement.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the placement engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}
	if err := e.build(); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*placement.Engine, error) {
		return e.engine, nil
	})
}

// build constructs the store and engine from the resolved config.
func (e *Extension) build() error {
	if err := e.config.Validate(); err != nil {
		return err
	}

	s, err := e.buildStore()
	if err != nil {
		return err
	}
	e.store = s

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}
	e.engine = placement.New(e.store, opts...)
	return nil
}

// buildStore returns the programmatic store, or one built over the grove
// database for the configured driver, or a memory store.
func (e *Extension) buildStore() (store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	if e.groveDB == nil {
		if e.config.StoreDriver != "" && e.config.StoreDriver != DriverMemory {
			return nil, fmt.Errorf("placement: store driver %q needs a grove database", e.config.StoreDriver)
		}
		return memory.New(), nil
	}

	switch e.config.StoreDriver {
	case DriverPostgres:
		return postgres.New(e.groveDB), nil
	case DriverSQLite:
		return sqlite.New(e.groveDB), nil
	case DriverMongo:
		return mongo.New(e.groveDB), nil
	default:
		return nil, fmt.Errorf("placement: grove database given without a store driver (have %q)", e.config.StoreDriver)
	}
}

// buildEngineOpts constructs placement.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]placement.Option, error) {
	opts := make([]placement.Option, 0, len(e.engineOpts)+3)

	if e.config.DefaultStrategy != "" {
		opts = append(opts, placement.WithDefaultStrategy(website.Strategy(e.config.DefaultStrategy)))
	}
	if e.config.RecalculateConcurrency > 0 {
		opts = append(opts, placement.WithRecalculateConcurrency(e.config.RecalculateConcurrency))
	}

	if e.redis == nil && e.config.ApprovalRedisAddr != "" {
		e.redis = redis.NewClient(&redis.Options{Addr: e.config.ApprovalRedisAddr})
		e.ownsRedis = true
	}
	if e.redis != nil {
		opts = append(opts, placement.WithApprovalQueue(approval.NewRedisQueue(e.redis, e.config.ApprovalRedisKey)))
	}

	// Pass-through engine options win over config-derived ones.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("placement: extension not initialized")
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
func (e *Extension) Stop(ctx context.Context) error {
	defer e.MarkStopped()

	var errs placement.MultiError
	if e.engine != nil {
		errs.Add(e.engine.Stop(ctx))
	}
	if e.ownsRedis && e.redis != nil {
		errs.Add(e.redis.Close())
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("placement: store not initialized")
	}
	if err := e.store.Ping(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		return e.redis.Ping(ctx).Err()
	}
	return nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("placement: configuration is required but not found in config files; " +
				"ensure 'extensions.placement' or 'placement' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = withDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("placement: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("store_driver", e.config.StoreDriver),
		forge.F("default_strategy", e.config.DefaultStrategy),
		forge.F("recalculate_concurrency", e.config.RecalculateConcurrency),
		forge.F("approval_redis", e.config.ApprovalRedisAddr != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.placement", "placement"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("placement: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("placement: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.StoreDriver == "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}
	if yamlConfig.DefaultStrategy == "" {
		yamlConfig.DefaultStrategy = programmaticConfig.DefaultStrategy
	}
	if yamlConfig.ApprovalRedisAddr == "" {
		yamlConfig.ApprovalRedisAddr = programmaticConfig.ApprovalRedisAddr
	}
	if yamlConfig.ApprovalRedisKey == "" {
		yamlConfig.ApprovalRedisKey = programmaticConfig.ApprovalRedisKey
	}

	if yamlConfig.RecalculateConcurrency == 0 {
		yamlConfig.RecalculateConcurrency = programmaticConfig.RecalculateConcurrency
	}

	// Fill remaining zeros with defaults.
	return withDefaults(yamlConfig)
}
