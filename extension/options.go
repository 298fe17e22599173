package extension

import (
	"github.com/redis/go-redis/v9"
	"github.com/xraph/grove"

	"github.com/xraph/placement"
	"github.com/xraph/placement/plugin"
	"github.com/xraph/placement/store"
	"github.com/xraph/placement/website"
)

// Option configures the placement Forge extension.
type Option func(*Extension)

// WithStore sets the store for the placement engine. It takes precedence
// over WithGroveDB.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB sets the grove database the store is built on. The store
// backend follows Config.StoreDriver.
func WithGroveDB(db *grove.DB, driver string) Option {
	return func(e *Extension) {
		e.groveDB = db
		e.config.StoreDriver = driver
	}
}

// WithRedisClient backs the approval queue with an existing client instead
// of dialing Config.ApprovalRedisAddr.
func WithRedisClient(client *redis.Client) Option {
	return func(e *Extension) {
		e.redis = client
	}
}

// WithEngineOption passes a placement.Option through to the underlying engine.
func WithEngineOption(opt placement.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a placement plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, placement.WithPlugin(p))
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

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithDefaultStrategy sets the derivation strategy used when a website
// stores none.
func WithDefaultStrategy(s website.Strategy) Option {
	return func(e *Extension) { e.config.DefaultStrategy = string(s) }
}

// WithRecalculateConcurrency bounds concurrent derivations.
func WithRecalculateConcurrency(n int) Option {
	return func(e *Extension) { e.config.RecalculateConcurrency = n }
}

// WithApprovalRedis backs the approval queue with Redis at addr under key.
func WithApprovalRedis(addr, key string) Option {
	return func(e *Extension) {
		e.config.ApprovalRedisAddr = addr
		e.config.ApprovalRedisKey = key
	}
}
