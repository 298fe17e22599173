package placement

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/xraph/placement/approval"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/store"
	"github.com/xraph/placement/types"
)

// ApplyRules turns a base price into a final price.
//
// Active auto-apply rules whose conditions match pctx are applied in
// ascending priority, then creation order, then ID. Within one rule type
// only the first non-cumulative rule applies; cumulative rules always
// stack. Every application works on the running price and rounds half up,
// so application order is observable. Matching rules that require approval
// are never applied and are returned in Result.PendingApproval instead.
func ApplyRules(base types.Money, rules []*pricingrule.Rule, pctx pricingrule.Context) (*pricingrule.Result, error) {
	if base.Amount < 0 {
		return nil, ValidationError{Field: "base_price", Message: "must not be negative"}
	}

	eligible := make([]*pricingrule.Rule, 0, len(rules))
	result := &pricingrule.Result{
		BasePrice:    base,
		FinalPrice:   base,
		AppliedRules: []pricingrule.Applied{},
	}
	for _, r := range rules {
		if !r.IsActive || !r.Conditions.Match(pctx) {
			continue
		}
		switch {
		case r.RequiresApproval:
			result.PendingApproval = append(result.PendingApproval, r)
		case r.AutoApply:
			eligible = append(eligible, r)
		}
	}

	slices.SortStableFunc(eligible, compareRules)
	slices.SortStableFunc(result.PendingApproval, compareRules)

	applied := make(map[pricingrule.Type]bool)
	running := base
	for _, r := range eligible {
		if !r.IsCumulative {
			if applied[r.Type] {
				continue
			}
			applied[r.Type] = true
		}

		next, err := applyRule(running, r)
		if err != nil {
			return nil, &ComputationError{
				Reason: fmt.Sprintf("rule %q on %s", r.Name, running),
				Err:    ErrArithmetic,
			}
		}
		result.AppliedRules = append(result.AppliedRules, pricingrule.Applied{
			RuleID:      r.ID,
			Name:        r.Name,
			Type:        r.Type,
			PriceBefore: running,
			PriceAfter:  next,
		})
		running = next
	}

	result.FinalPrice = running
	return result, nil
}

func compareRules(a, b *pricingrule.Rule) int {
	if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return a.ID.Compare(b.ID)
}

// applyRule applies the percentage first, then the fixed delta.
func applyRule(price types.Money, r *pricingrule.Rule) (types.Money, error) {
	pct, amount := r.Signed()
	var err error
	if pct != 0 {
		if price, err = price.ApplyRate(pct); err != nil {
			return types.Money{}, err
		}
	}
	if amount != 0 {
		if price, err = price.AddDelta(amount); err != nil {
			return types.Money{}, err
		}
	}
	return price, nil
}

// evaluateOffering prices one offering against its stored rules.
func evaluateOffering(ctx context.Context, s store.Store, o *offering.Offering, pctx pricingrule.Context) (*pricingrule.Result, error) {
	if o.BasePrice == nil {
		return nil, ValidationError{Field: "base_price", Message: fmt.Sprintf("offering %s has no base price", o.ID)}
	}
	rules, err := s.ListPricingRules(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return ApplyRules(*o.BasePrice, rules, pctx)
}

// ApplyPricingRules prices an offering for a calculation context. A zero
// context time means now and a zero quantity means one. Matching rules
// that require approval are pushed to the approval queue when one is
// configured.
func (e *Engine) ApplyPricingRules(ctx context.Context, offeringID id.OfferingID, pctx pricingrule.Context) (*pricingrule.Result, error) {
	o, err := e.store.GetOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}

	if pctx.At.IsZero() {
		pctx.At = e.now()
	}
	if pctx.Quantity == 0 {
		pctx.Quantity = 1
	}
	if pctx.Quantity < 0 {
		return nil, ValidationError{Field: "quantity", Message: "must be positive"}
	}

	result, err := evaluateOffering(ctx, e.store, o, pctx)
	if err != nil {
		return nil, err
	}

	e.enqueueApprovals(ctx, o, pctx, result)

	e.logger.Debug("pricing rules applied",
		"offering_id", offeringID,
		"base_price", result.BasePrice,
		"final_price", result.FinalPrice,
		"applied", result.RuleNames(),
		"pending_approval", len(result.PendingApproval),
	)
	e.plugins.EmitRulesApplied(ctx, offeringID, result)

	return result, nil
}

// enqueueApprovals never fails pricing: the queue is advisory.
func (e *Engine) enqueueApprovals(ctx context.Context, o *offering.Offering, pctx pricingrule.Context, result *pricingrule.Result) {
	if e.approvals == nil {
		return
	}
	for _, r := range result.PendingApproval {
		req := &approval.Request{
			ID:          id.NewApprovalID(),
			RuleID:      r.ID,
			RuleName:    r.Name,
			OfferingID:  o.ID,
			Quantity:    pctx.Quantity,
			ClientID:    pctx.ClientID,
			BasePrice:   result.BasePrice,
			RequestedAt: pctx.At,
		}
		added, err := e.approvals.Enqueue(ctx, req)
		if err != nil {
			e.logger.Warn("approval enqueue failed",
				"rule_id", r.ID,
				"offering_id", o.ID,
				"error", err,
			)
			continue
		}
		if added {
			e.logger.Info("pricing rule awaiting approval",
				"rule", r.Name,
				"offering_id", o.ID,
				"approval_id", req.ID,
			)
		}
	}
}

// PendingApprovals lists queued approval requests.
func (e *Engine) PendingApprovals(ctx context.Context) ([]*approval.Request, error) {
	if e.approvals == nil {
		return []*approval.Request{}, nil
	}
	return e.approvals.Pending(ctx)
}

// ResolveApproval removes a request from the approval queue once a human
// acted on it.
func (e *Engine) ResolveApproval(ctx context.Context, approvalID id.ApprovalID) error {
	if e.approvals == nil {
		return fmt.Errorf("approval %s: %w", approvalID, ErrNotFound)
	}
	err := e.approvals.Resolve(ctx, approvalID)
	if errors.Is(err, approval.ErrNotFound) {
		return fmt.Errorf("approval %s: %w", approvalID, ErrNotFound)
	}
	return err
}
