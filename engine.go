package placement

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/placement/approval"
	"github.com/xraph/placement/plugin"
	"github.com/xraph/placement/store"
	"github.com/xraph/placement/website"
)

// DefaultRecalculateConcurrency bounds RecalculateDerivedPrices fan-out.
const DefaultRecalculateConcurrency = 8

// Engine is the pricing and line-item lifecycle service. It holds no
// cached entity data: every operation reads through the store.
type Engine struct {
	store     store.Store
	plugins   *plugin.Registry
	logger    *slog.Logger
	approvals approval.Queue

	// Configuration
	defaultStrategy   website.Strategy
	recalcConcurrency int
	clock             func() time.Time
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:             s,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		defaultStrategy:   website.StrategyMinPrice,
		recalcConcurrency: DefaultRecalculateConcurrency,
		clock:             time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithApprovalQueue sets the queue that receives eligible rules which
// require manual approval. Without one those rules are only reported.
func WithApprovalQueue(q approval.Queue) Option {
	return func(e *Engine) {
		e.approvals = q
	}
}

// WithDefaultStrategy sets the strategy used when a caller or website does
// not name one. Invalid strategies are ignored.
func WithDefaultStrategy(s website.Strategy) Option {
	return func(e *Engine) {
		if s.Valid() && s != website.StrategyOverride {
			e.defaultStrategy = s
		}
	}
}

// WithRecalculateConcurrency bounds the number of websites recalculated in
// parallel.
func WithRecalculateConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.recalcConcurrency = n
		}
	}
}

// WithClock replaces the time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("placement engine started",
		"default_strategy", e.defaultStrategy,
		"recalculate_concurrency", e.recalcConcurrency,
		"approval_queue", e.approvals != nil,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop(ctx context.Context) error {
	e.plugins.EmitShutdown(ctx)
	e.logger.Info("placement engine stopped")
	return e.store.Close()
}

func (e *Engine) now() time.Time { return e.clock().UTC() }

// latest returns the later of now and floor, so audit timestamps never go
// backwards for one subject even if the clock does.
func latest(now, floor time.Time) time.Time {
	if floor.After(now) {
		return floor.UTC()
	}
	return now
}
