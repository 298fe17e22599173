package audithook

// Action constants for audit events.
const (
	// Ownership actions
	ActionConflictDetected  = "ownership.conflict_detected"
	ActionOwnershipResolved  = "ownership.resolved"

	// Pricing actions
	ActionApprovalRequired = "pricing.approval_required"
	ActionPriceDerived     = "pricing.derived"
	ActionPriceUnderivable = "pricing.underivable"
	ActionPricePromoted    = "pricing.promoted"

	// Line item actions
	ActionLineItemCreated      = "line_item.created"
	ActionLineItemTransitioned = "line_item.transitioned"
	ActionTransitionRejected   = "line_item.transition_rejected"

	// Bulk actions
	ActionBatchCommitted  = "batch.committed"
	ActionBatchRolledBack = "batch.rolled_back"
)

// Resource constants for audit events.
const (
	ResourceWebsite  = "website"
	ResourceOffering = "offering"
	ResourceLineItem = "line_item"
	ResourceBatch    = "batch"
)

// Category constants for audit events.
const (
	CategoryOwnership = "ownership"
	CategoryPricing   = "pricing"
	CategoryOrder     = "order"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
