// Package plugin provides an extensible plugin system for the placement
// engine. Plugins hook into pricing, ownership and line-item events.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. e is the *placement.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, e any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Ownership hooks
// ──────────────────────────────────────────────────

// OnConflictDetected is called when a website has more than one live
// ownership claim.
type OnConflictDetected interface {
	Plugin
	OnConflictDetected(ctx context.Context, report *offering.ConflictReport) error
}

// OnOwnershipResolved is called after a human resolved an ownership conflict.
type OnOwnershipResolved interface {
	Plugin
	OnOwnershipResolved(ctx context.Context, report *offering.ConflictReport, winner id.PublisherID, actor string) error
}

// ──────────────────────────────────────────────────
// Pricing hooks
// ──────────────────────────────────────────────────

// OnRulesApplied is called after an offering's rules were evaluated.
type OnRulesApplied interface {
	Plugin
	OnRulesApplied(ctx context.Context, offeringID id.OfferingID, result *pricingrule.Result) error
}

// OnPriceDerived is called after every derivation, including failed ones.
// err is the ComputationError when the derivation could not pick a price.
type OnPriceDerived interface {
	Plugin
	OnPriceDerived(ctx context.Context, d *website.Derivation, elapsed time.Duration, err error) error
}

// OnPricePromoted is called when a derived price became the current price.
type OnPricePromoted interface {
	Plugin
	OnPricePromoted(ctx context.Context, w *website.Website, previous *types.Money) error
}

// ──────────────────────────────────────────────────
// Line-item hooks
// ──────────────────────────────────────────────────

// OnLineItemCreated is called when a line item is created.
type OnLineItemCreated interface {
	Plugin
	OnLineItemCreated(ctx context.Context, li *lineitem.LineItem) error
}

// OnLineItemTransitioned is called after a committed transition.
type OnLineItemTransitioned interface {
	Plugin
	OnLineItemTransitioned(ctx context.Context, li *lineitem.LineItem, action lineitem.Action, from lineitem.Status) error
}

// OnTransitionRejected is called when a transition failed its version,
// legality or payload checks.
type OnTransitionRejected interface {
	Plugin
	OnTransitionRejected(ctx context.Context, lineItemID id.LineItemID, action lineitem.Action, err error) error
}

// ──────────────────────────────────────────────────
// Bulk hooks
// ──────────────────────────────────────────────────

// OnBatchCompleted is called once per bulk operation. err is nil when the
// batch committed.
type OnBatchCompleted interface {
	Plugin
	OnBatchCompleted(ctx context.Context, batchID id.BatchID, operation string, items int, err error) error
}
