package pricingrule

import (
	"slices"
	"time"

	"github.com/xraph/placement/id"
	"github.com/xraph/placement/types"
)

type Type string

const (
	TypeDiscount  Type = "discount"
	TypeSurcharge Type = "surcharge"
)

// Rule is a conditional price adjustment attached to one offering.
// Lower Priority values apply first.
type Rule struct {
	types.Entity
	ID               id.PricingRuleID `json:"id"`
	OfferingID       id.OfferingID    `json:"offering_id"`
	Name             string           `json:"name"`
	Type             Type             `json:"type"`
	Conditions       Conditions       `json:"conditions"`
	Actions          Actions          `json:"actions"`
	Priority         int              `json:"priority"`
	IsCumulative     bool             `json:"is_cumulative"`
	AutoApply        bool             `json:"auto_apply"`
	RequiresApproval bool             `json:"requires_approval"`
	IsActive         bool             `json:"is_active"`
}

// Conditions must all hold for a rule to be eligible. Zero values are
// unconstrained.
type Conditions struct {
	MinQuantity   int        `json:"min_quantity,omitempty"`
	MaxQuantity   int        `json:"max_quantity,omitempty"`
	MinOrderValue int64      `json:"min_order_value,omitempty"`
	ClientIDs     []string   `json:"client_ids,omitempty"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
}

// Actions describe the adjustment. Percent is applied before Amount and both
// are magnitudes: the rule type decides the sign.
type Actions struct {
	Percent types.BasisPoints `json:"percent,omitempty"`
	Amount  int64             `json:"amount,omitempty"`
}

// Context is the calculation context rules are evaluated against.
type Context struct {
	Quantity   int       `json:"quantity"`
	ClientID   string    `json:"client_id,omitempty"`
	OrderValue int64     `json:"order_value,omitempty"`
	At         time.Time `json:"at"`
}

// Match reports whether every condition holds for c. Validity windows are
// only satisfied when c.At is set.
func (cd Conditions) Match(c Context) bool {
	if cd.MinQuantity > 0 && c.Quantity < cd.MinQuantity {
		return false
	}
	if cd.MaxQuantity > 0 && c.Quantity > cd.MaxQuantity {
		return false
	}
	if cd.MinOrderValue > 0 && c.OrderValue < cd.MinOrderValue {
		return false
	}
	if len(cd.ClientIDs) > 0 && !slices.Contains(cd.ClientIDs, c.ClientID) {
		return false
	}
	if cd.ValidFrom != nil && (c.At.IsZero() || c.At.Before(*cd.ValidFrom)) {
		return false
	}
	if cd.ValidUntil != nil && (c.At.IsZero() || !c.At.Before(*cd.ValidUntil)) {
		return false
	}
	return true
}

// Signed returns the percentage and fixed deltas with the rule's sign applied.
func (r *Rule) Signed() (types.BasisPoints, int64) {
	if r.Type == TypeDiscount {
		return -r.Actions.Percent, -r.Actions.Amount
	}
	return r.Actions.Percent, r.Actions.Amount
}

// Applied records one rule application in order.
type Applied struct {
	RuleID      id.PricingRuleID `json:"rule_id"`
	Name        string           `json:"name"`
	Type        Type             `json:"type"`
	PriceBefore types.Money      `json:"price_before"`
	PriceAfter  types.Money      `json:"price_after"`
}

// Result is the outcome of evaluating a rule set against a base price.
// PendingApproval holds rules that matched but need a human decision; they
// did not affect FinalPrice.
type Result struct {
	BasePrice       types.Money `json:"base_price"`
	FinalPrice      types.Money `json:"final_price"`
	AppliedRules    []Applied   `json:"applied_rules"`
	PendingApproval []*Rule     `json:"pending_approval,omitempty"`
}

// RuleNames returns the names of the applied rules in application order.
func (r *Result) RuleNames() []string {
	names := make([]string, 0, len(r.AppliedRules))
	for _, a := range r.AppliedRules {
		names = append(names, a.Name)
	}
	return names
}

// RuleIDs returns the ids of the applied rules in application order.
func (r *Result) RuleIDs() []id.PricingRuleID {
	ids := make([]id.PricingRuleID, 0, len(r.AppliedRules))
	for _, a := range r.AppliedRules {
		ids = append(ids, a.RuleID)
	}
	return ids
}
