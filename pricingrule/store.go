package pricingrule

import (
	"context"

	"github.com/xraph/placement/id"
)

type Store interface {
	Create(ctx context.Context, r *Rule) error
	Get(ctx context.Context, ruleID id.PricingRuleID) (*Rule, error)
	// ListForOffering returns every rule of an offering, active or not.
	ListForOffering(ctx context.Context, offeringID id.OfferingID) ([]*Rule, error)
	Update(ctx context.Context, r *Rule) error
}
