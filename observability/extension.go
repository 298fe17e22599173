// Package observability provides a metrics extension for placement that
// records event counts via a MetricFactory.
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/placement"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/plugin"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnConflictDetected     = (*MetricsExtension)(nil)
	_ plugin.OnOwnershipResolved    = (*MetricsExtension)(nil)
	_ plugin.OnRulesApplied         = (*MetricsExtension)(nil)
	_ plugin.OnPriceDerived         = (*MetricsExtension)(nil)
	_ plugin.OnPricePromoted        = (*MetricsExtension)(nil)
	_ plugin.OnLineItemCreated      = (*MetricsExtension)(nil)
	_ plugin.OnLineItemTransitioned = (*MetricsExtension)(nil)
	_ plugin.OnTransitionRejected   = (*MetricsExtension)(nil)
	_ plugin.OnBatchCompleted       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records engine-wide metrics.
// Register it as a placement plugin to track pricing and order flow.
type MetricsExtension struct {
	factory MetricFactory

	// Ownership metrics
	ConflictsDetected Counter
	OwnershipResolved Counter

	// Pricing metrics
	RulesEvaluated    Counter
	RulesApplied      Counter
	ApprovalsRequired Counter
	PricesDerived     Counter
	PricesUnderivable Counter
	DerivationLatency Histogram
	PricesPromoted    Counter

	// Line item metrics
	LineItemsCreated    Counter
	LineItemTransitions Counter
	LineItemsApproved   Counter
	LineItemsCompleted  Counter
	LineItemsCancelled  Counter
	LineItemExceptions  Counter
	TransitionsRejected Counter
	VersionConflicts    Counter

	// Bulk metrics
	BatchesCommitted  Counter
	BatchesRolledBack Counter
	BatchSize         Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use NewPrometheusFactory or app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		ConflictsDetected: factory.Counter("placement.ownership.conflicts"),
		OwnershipResolved: factory.Counter("placement.ownership.resolved"),

		RulesEvaluated:    factory.Counter("placement.rules.evaluated"),
		RulesApplied:      factory.Counter("placement.rules.applied"),
		ApprovalsRequired: factory.Counter("placement.rules.approvals_required"),
		PricesDerived:     factory.Counter("placement.price.derived"),
		PricesUnderivable: factory.Counter("placement.price.underivable"),
		DerivationLatency: factory.Histogram("placement.price.derivation.latency_ms"),
		PricesPromoted:    factory.Counter("placement.price.promoted"),

		LineItemsCreated:    factory.Counter("placement.line_item.created"),
		LineItemTransitions: factory.Counter("placement.line_item.transitions"),
		LineItemsApproved:   factory.Counter("placement.line_item.approved"),
		LineItemsCompleted:  factory.Counter("placement.line_item.completed"),
		LineItemsCancelled:  factory.Counter("placement.line_item.cancelled"),
		LineItemExceptions:  factory.Counter("placement.line_item.exceptions"),
		TransitionsRejected: factory.Counter("placement.line_item.rejected"),
		VersionConflicts:    factory.Counter("placement.line_item.version_conflicts"),

		BatchesCommitted:  factory.Counter("placement.batch.committed"),
		BatchesRolledBack: factory.Counter("placement.batch.rolled_back"),
		BatchSize:         factory.Histogram("placement.batch.size"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Ownership hooks
// ──────────────────────────────────────────────────

// OnConflictDetected implements plugin.OnConflictDetected.
func (m *MetricsExtension) OnConflictDetected(_ context.Context, _ *offering.ConflictReport) error {
	m.ConflictsDetected.Inc()
	return nil
}

// OnOwnershipResolved implements plugin.OnOwnershipResolved.
func (m *MetricsExtension) OnOwnershipResolved(_ context.Context, _ *offering.ConflictReport, _ id.PublisherID, _ string) error {
	m.OwnershipResolved.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Pricing hooks
// ──────────────────────────────────────────────────

// OnRulesApplied implements plugin.OnRulesApplied.
func (m *MetricsExtension) OnRulesApplied(_ context.Context, _ id.OfferingID, result *pricingrule.Result) error {
	m.RulesEvaluated.Inc()
	m.RulesApplied.Add(float64(len(result.AppliedRules)))
	m.ApprovalsRequired.Add(float64(len(result.PendingApproval)))
	return nil
}

// OnPriceDerived implements plugin.OnPriceDerived.
func (m *MetricsExtension) OnPriceDerived(_ context.Context, d *website.Derivation, elapsed time.Duration, err error) error {
	m.DerivationLatency.Observe(float64(elapsed.Milliseconds()))
	if err != nil || d == nil || d.Price == nil {
		m.PricesUnderivable.Inc()
		return nil
	}
	m.PricesDerived.Inc()
	return nil
}

// OnPricePromoted implements plugin.OnPricePromoted.
func (m *MetricsExtension) OnPricePromoted(_ context.Context, _ *website.Website, _ *types.Money) error {
	m.PricesPromoted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Line item hooks
// ──────────────────────────────────────────────────

// OnLineItemCreated implements plugin.OnLineItemCreated.
func (m *MetricsExtension) OnLineItemCreated(_ context.Context, _ *lineitem.LineItem) error {
	m.LineItemsCreated.Inc()
	return nil
}

// OnLineItemTransitioned implements plugin.OnLineItemTransitioned.
func (m *MetricsExtension) OnLineItemTransitioned(_ context.Context, _ *lineitem.LineItem, action lineitem.Action, _ lineitem.Status) error {
	m.LineItemTransitions.Inc()
	switch action {
	case lineitem.ActionApprove:
		m.LineItemsApproved.Inc()
	case lineitem.ActionComplete:
		m.LineItemsCompleted.Inc()
	case lineitem.ActionCancel:
		m.LineItemsCancelled.Inc()
	case lineitem.ActionRefund, lineitem.ActionDispute:
		m.LineItemExceptions.Inc()
	}
	return nil
}

// OnTransitionRejected implements plugin.OnTransitionRejected.
func (m *MetricsExtension) OnTransitionRejected(_ context.Context, _ id.LineItemID, _ lineitem.Action, err error) error {
	m.TransitionsRejected.Inc()
	if errors.Is(err, placement.ErrVersionConflict) {
		m.VersionConflicts.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Bulk hooks
// ──────────────────────────────────────────────────

// OnBatchCompleted implements plugin.OnBatchCompleted.
func (m *MetricsExtension) OnBatchCompleted(_ context.Context, _ id.BatchID, _ string, items int, err error) error {
	m.BatchSize.Observe(float64(items))
	if err != nil {
		m.BatchesRolledBack.Inc()
		return nil
	}
	m.BatchesCommitted.Inc()
	return nil
}
