package changelog

import (
	"context"

	"github.com/xraph/placement/id"
)

// Store is append-only: there is no update or delete. Every list is
// ordered as Sort orders it.
type Store interface {
	Append(ctx context.Context, c *Change) error
	ListForLineItem(ctx context.Context, lineItemID id.LineItemID) ([]*Change, error)
	ListForWebsite(ctx context.Context, websiteID id.WebsiteID) ([]*Change, error)
	ListByBatch(ctx context.Context, batchID id.BatchID) ([]*Change, error)
}
