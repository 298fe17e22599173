package memory

import (
	"maps"
	"slices"
	"time"

	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/publisher"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// Values are copied on the way in and out so callers never share state
// with the store.

func cloneMoney(m *types.Money) *types.Money {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneAny(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneAnyMap(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneAny(x[i])
		}
		return out
	default:
		return v
	}
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneAny(v)
	}
	return out
}

func clonePublisher(p *publisher.Publisher) *publisher.Publisher {
	cp := *p
	cp.Metadata = maps.Clone(p.Metadata)
	return &cp
}

func cloneWebsite(w *website.Website) *website.Website {
	cp := *w
	cp.CurrentPrice = cloneMoney(w.CurrentPrice)
	cp.DerivedPrice = cloneMoney(w.DerivedPrice)
	cp.PriceCalculatedAt = cloneTime(w.PriceCalculatedAt)
	cp.Metadata = maps.Clone(w.Metadata)
	return &cp
}

func cloneOffering(o *offering.Offering) *offering.Offering {
	cp := *o
	cp.BasePrice = cloneMoney(o.BasePrice)
	cp.Metadata = maps.Clone(o.Metadata)
	return &cp
}

func cloneRelationship(r *offering.Relationship) *offering.Relationship {
	cp := *r
	cp.CustomPrice = cloneMoney(r.CustomPrice)
	return &cp
}

func cloneRule(r *pricingrule.Rule) *pricingrule.Rule {
	cp := *r
	cp.Conditions.ClientIDs = slices.Clone(r.Conditions.ClientIDs)
	cp.Conditions.ValidFrom = cloneTime(r.Conditions.ValidFrom)
	cp.Conditions.ValidUntil = cloneTime(r.Conditions.ValidUntil)
	return &cp
}

func cloneLineItem(li *lineitem.LineItem) *lineitem.LineItem {
	cp := *li
	cp.EstimatedPrice = cloneMoney(li.EstimatedPrice)
	cp.ApprovedPrice = cloneMoney(li.ApprovedPrice)
	cp.WholesalePrice = cloneMoney(li.WholesalePrice)
	cp.FinalPrice = cloneMoney(li.FinalPrice)
	cp.ApprovedAt = cloneTime(li.ApprovedAt)
	cp.PublisherAcceptedAt = cloneTime(li.PublisherAcceptedAt)
	cp.DeliveredAt = cloneTime(li.DeliveredAt)
	cp.CompletedAt = cloneTime(li.CompletedAt)
	cp.CancelledAt = cloneTime(li.CancelledAt)
	cp.Metadata = cloneAnyMap(li.Metadata)
	return &cp
}

func cloneChange(c *changelog.Change) *changelog.Change {
	cp := *c
	cp.PreviousValue = cloneAnyMap(c.PreviousValue)
	cp.NewValue = cloneAnyMap(c.NewValue)
	return &cp
}
