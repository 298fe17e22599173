package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// DefaultTimeout bounds each hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onConflictDetected     []OnConflictDetected
	onOwnershipResolved    []OnOwnershipResolved
	onRulesApplied         []OnRulesApplied
	onPriceDerived         []OnPriceDerived
	onPricePromoted        []OnPricePromoted
	onLineItemCreated      []OnLineItemCreated
	onLineItemTransitioned []OnLineItemTransitioned
	onTransitionRejected   []OnTransitionRejected
	onBatchCompleted       []OnBatchCompleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnConflictDetected); ok {
		r.onConflictDetected = append(r.onConflictDetected, v)
	}
	if v, ok := p.(OnOwnershipResolved); ok {
		r.onOwnershipResolved = append(r.onOwnershipResolved, v)
	}
	if v, ok := p.(OnRulesApplied); ok {
		r.onRulesApplied = append(r.onRulesApplied, v)
	}
	if v, ok := p.(OnPriceDerived); ok {
		r.onPriceDerived = append(r.onPriceDerived, v)
	}
	if v, ok := p.(OnPricePromoted); ok {
		r.onPricePromoted = append(r.onPricePromoted, v)
	}
	if v, ok := p.(OnLineItemCreated); ok {
		r.onLineItemCreated = append(r.onLineItemCreated, v)
	}
	if v, ok := p.(OnLineItemTransitioned); ok {
		r.onLineItemTransitioned = append(r.onLineItemTransitioned, v)
	}
	if v, ok := p.(OnTransitionRejected); ok {
		r.onTransitionRejected = append(r.onTransitionRejected, v)
	}
	if v, ok := p.(OnBatchCompleted); ok {
		r.onBatchCompleted = append(r.onBatchCompleted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnConflictDetected", reflect.TypeOf((*OnConflictDetected)(nil)).Elem()},
	{"OnOwnershipResolved", reflect.TypeOf((*OnOwnershipResolved)(nil)).Elem()},
	{"OnRulesApplied", reflect.TypeOf((*OnRulesApplied)(nil)).Elem()},
	{"OnPriceDerived", reflect.TypeOf((*OnPriceDerived)(nil)).Elem()},
	{"OnPricePromoted", reflect.TypeOf((*OnPricePromoted)(nil)).Elem()},
	{"OnLineItemCreated", reflect.TypeOf((*OnLineItemCreated)(nil)).Elem()},
	{"OnLineItemTransitioned", reflect.TypeOf((*OnLineItemTransitioned)(nil)).Elem()},
	{"OnTransitionRejected", reflect.TypeOf((*OnTransitionRejected)(nil)).Elem()},
	{"OnBatchCompleted", reflect.TypeOf((*OnBatchCompleted)(nil)).Elem()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch calls fn for every cached plugin of one hook, logging failures.
// Hook errors never reach the caller.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, cached func() []T, fn func(T) error) {
	r.mu.RLock()
	plugins := cached()
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	dispatch(ctx, r, "OnInit", func() []OnInit { return r.onInit },
		func(p OnInit) error { return p.OnInit(ctx, engine) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", func() []OnShutdown { return r.onShutdown },
		func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitConflictDetected emits an ownership conflict.
func (r *Registry) EmitConflictDetected(ctx context.Context, report *offering.ConflictReport) {
	dispatch(ctx, r, "OnConflictDetected", func() []OnConflictDetected { return r.onConflictDetected },
		func(p OnConflictDetected) error { return p.OnConflictDetected(ctx, report) })
}

// EmitOwnershipResolved emits a resolved ownership conflict.
func (r *Registry) EmitOwnershipResolved(ctx context.Context, report *offering.ConflictReport, winner id.PublisherID, actor string) {
	dispatch(ctx, r, "OnOwnershipResolved", func() []OnOwnershipResolved { return r.onOwnershipResolved },
		func(p OnOwnershipResolved) error { return p.OnOwnershipResolved(ctx, report, winner, actor) })
}

// EmitRulesApplied emits a rule evaluation.
func (r *Registry) EmitRulesApplied(ctx context.Context, offeringID id.OfferingID, result *pricingrule.Result) {
	dispatch(ctx, r, "OnRulesApplied", func() []OnRulesApplied { return r.onRulesApplied },
		func(p OnRulesApplied) error { return p.OnRulesApplied(ctx, offeringID, result) })
}

// EmitPriceDerived emits a derivation outcome.
func (r *Registry) EmitPriceDerived(ctx context.Context, d *website.Derivation, elapsed time.Duration, derr error) {
	dispatch(ctx, r, "OnPriceDerived", func() []OnPriceDerived { return r.onPriceDerived },
		func(p OnPriceDerived) error { return p.OnPriceDerived(ctx, d, elapsed, derr) })
}

// EmitPricePromoted emits a price promotion.
func (r *Registry) EmitPricePromoted(ctx context.Context, w *website.Website, previous *types.Money) {
	dispatch(ctx, r, "OnPricePromoted", func() []OnPricePromoted { return r.onPricePromoted },
		func(p OnPricePromoted) error { return p.OnPricePromoted(ctx, w, previous) })
}

// EmitLineItemCreated emits a line-item creation.
func (r *Registry) EmitLineItemCreated(ctx context.Context, li *lineitem.LineItem) {
	dispatch(ctx, r, "OnLineItemCreated", func() []OnLineItemCreated { return r.onLineItemCreated },
		func(p OnLineItemCreated) error { return p.OnLineItemCreated(ctx, li) })
}

// EmitLineItemTransitioned emits a committed transition.
func (r *Registry) EmitLineItemTransitioned(ctx context.Context, li *lineitem.LineItem, action lineitem.Action, from lineitem.Status) {
	dispatch(ctx, r, "OnLineItemTransitioned", func() []OnLineItemTransitioned { return r.onLineItemTransitioned },
		func(p OnLineItemTransitioned) error { return p.OnLineItemTransitioned(ctx, li, action, from) })
}

// EmitTransitionRejected emits a rejected transition.
func (r *Registry) EmitTransitionRejected(ctx context.Context, lineItemID id.LineItemID, action lineitem.Action, terr error) {
	dispatch(ctx, r, "OnTransitionRejected", func() []OnTransitionRejected { return r.onTransitionRejected },
		func(p OnTransitionRejected) error { return p.OnTransitionRejected(ctx, lineItemID, action, terr) })
}

// EmitBatchCompleted emits the outcome of a bulk operation.
func (r *Registry) EmitBatchCompleted(ctx context.Context, batchID id.BatchID, operation string, items int, berr error) {
	dispatch(ctx, r, "OnBatchCompleted", func() []OnBatchCompleted { return r.onBatchCompleted },
		func(p OnBatchCompleted) error { return p.OnBatchCompleted(ctx, batchID, operation, items, berr) })
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the placement pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
