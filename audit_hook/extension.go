// Package audithook bridges placement events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnConflictDetected     = (*Extension)(nil)
	_ plugin.OnOwnershipResolved    = (*Extension)(nil)
	_ plugin.OnRulesApplied         = (*Extension)(nil)
	_ plugin.OnPriceDerived         = (*Extension)(nil)
	_ plugin.OnPricePromoted        = (*Extension)(nil)
	_ plugin.OnLineItemCreated      = (*Extension)(nil)
	_ plugin.OnLineItemTransitioned = (*Extension)(nil)
	_ plugin.OnTransitionRejected   = (*Extension)(nil)
	_ plugin.OnBatchCompleted       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly. Callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges placement events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Ownership hooks
// ──────────────────────────────────────────────────

// OnConflictDetected implements plugin.OnConflictDetected.
func (e *Extension) OnConflictDetected(ctx context.Context, report *offering.ConflictReport) error {
	claimants := make([]string, 0, len(report.Claimants))
	for _, c := range report.Claimants {
		claimants = append(claimants, c.PublisherID.String())
	}
	return e.record(ctx, ActionConflictDetected, SeverityWarning, OutcomeFailure,
		ResourceWebsite, report.WebsiteID.String(), CategoryOwnership, nil,
		"claimants", claimants,
	)
}

// OnOwnershipResolved implements plugin.OnOwnershipResolved.
func (e *Extension) OnOwnershipResolved(ctx context.Context, report *offering.ConflictReport, winner id.PublisherID, actor string) error {
	return e.record(ctx, ActionOwnershipResolved, SeverityInfo, OutcomeSuccess,
		ResourceWebsite, report.WebsiteID.String(), CategoryOwnership, nil,
		"winner", winner.String(),
		"actor", actor,
		"claimants", len(report.Claimants),
	)
}

// ──────────────────────────────────────────────────
// Pricing hooks
// ──────────────────────────────────────────────────

// OnRulesApplied implements plugin.OnRulesApplied.
func (e *Extension) OnRulesApplied(ctx context.Context, offeringID id.OfferingID, result *pricingrule.Result) error {
	// Only rules waiting on a human are worth an audit entry
	if len(result.PendingApproval) == 0 {
		return nil
	}
	names := make([]string, 0, len(result.PendingApproval))
	for _, r := range result.PendingApproval {
		names = append(names, r.Name)
	}
	return e.record(ctx, ActionApprovalRequired, SeverityInfo, OutcomePartial,
		ResourceOffering, offeringID.String(), CategoryPricing, nil,
		"rules", names,
		"final_price", result.FinalPrice.String(),
	)
}

// OnPriceDerived implements plugin.OnPriceDerived.
func (e *Extension) OnPriceDerived(ctx context.Context, d *website.Derivation, elapsed time.Duration, err error) error {
	if d == nil {
		return nil
	}
	if err != nil || d.Price == nil {
		return e.record(ctx, ActionPriceUnderivable, SeverityWarning, OutcomeFailure,
			ResourceWebsite, d.WebsiteID.String(), CategoryPricing, err,
			"strategy", string(d.Strategy),
			"candidates", len(d.Candidates),
		)
	}
	return e.record(ctx, ActionPriceDerived, SeverityInfo, OutcomeSuccess,
		ResourceWebsite, d.WebsiteID.String(), CategoryPricing, nil,
		"strategy", string(d.Strategy),
		"price", d.Price.String(),
		"offering_id", d.OfferingID.String(),
		"duration_ms", elapsed.Milliseconds(),
	)
}

// OnPricePromoted implements plugin.OnPricePromoted.
func (e *Extension) OnPricePromoted(ctx context.Context, w *website.Website, previous *types.Money) error {
	return e.record(ctx, ActionPricePromoted, SeverityInfo, OutcomeSuccess,
		ResourceWebsite, w.ID.String(), CategoryPricing, nil,
		"domain", w.Domain,
		"previous", moneyString(previous),
		"current", moneyString(w.CurrentPrice),
	)
}

// ──────────────────────────────────────────────────
// Line item hooks
// ──────────────────────────────────────────────────

// OnLineItemCreated implements plugin.OnLineItemCreated.
func (e *Extension) OnLineItemCreated(ctx context.Context, li *lineitem.LineItem) error {
	return e.record(ctx, ActionLineItemCreated, SeverityInfo, OutcomeSuccess,
		ResourceLineItem, li.ID.String(), CategoryOrder, nil,
		"order_id", li.OrderID.String(),
		"client_id", li.ClientID,
	)
}

// OnLineItemTransitioned implements plugin.OnLineItemTransitioned.
func (e *Extension) OnLineItemTransitioned(ctx context.Context, li *lineitem.LineItem, action lineitem.Action, from lineitem.Status) error {
	severity := SeverityInfo
	if action == lineitem.ActionRefund || action == lineitem.ActionDispute {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionLineItemTransitioned, severity, OutcomeSuccess,
		ResourceLineItem, li.ID.String(), CategoryOrder, nil,
		"action", string(action),
		"from", string(from),
		"to", string(li.Status),
		"version", li.Version,
	)
}

// OnTransitionRejected implements plugin.OnTransitionRejected.
func (e *Extension) OnTransitionRejected(ctx context.Context, lineItemID id.LineItemID, action lineitem.Action, err error) error {
	// Stale versions are routine under concurrency
	severity := SeverityWarning
	if placement.IsConflict(err) {
		severity = SeverityInfo
	}
	return e.record(ctx, ActionTransitionRejected, severity, OutcomeFailure,
		ResourceLineItem, lineItemID.String(), CategoryOrder, err,
		"action", string(action),
	)
}

// ──────────────────────────────────────────────────
// Bulk hooks
// ──────────────────────────────────────────────────

// OnBatchCompleted implements plugin.OnBatchCompleted.
func (e *Extension) OnBatchCompleted(ctx context.Context, batchID id.BatchID, operation string, items int, err error) error {
	if err == nil {
		return e.record(ctx, ActionBatchCommitted, SeverityInfo, OutcomeSuccess,
			ResourceBatch, batchID.String(), CategoryOrder, nil,
			"operation", operation,
			"items", items,
		)
	}

	failed := items
	var berr *placement.BatchError
	if errors.As(err, &berr) {
		failed = len(berr.Failures)
	}
	return e.record(ctx, ActionBatchRolledBack, SeverityError, OutcomeFailure,
		ResourceBatch, batchID.String(), CategoryOrder, err,
		"operation", operation,
		"items", items,
		"failed", failed,
	)
}

func moneyString(m *types.Money) string {
	if m == nil {
		return ""
	}
	return m.String()
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
