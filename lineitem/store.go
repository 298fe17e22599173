package lineitem

import (
	"context"

	"github.com/xraph/placement/id"
)

type Store interface {
	Create(ctx context.Context, li *LineItem) error
	Get(ctx context.Context, lineItemID id.LineItemID) (*LineItem, error)
	List(ctx context.Context, opts ListOpts) ([]*LineItem, error)
	// Update writes li only if the stored version still equals
	// expectedVersion. li.Version carries the new version.
	Update(ctx context.Context, li *LineItem, expectedVersion int64) error
}

type ListOpts struct {
	OrderID     id.OrderID
	WebsiteID   id.WebsiteID
	PublisherID id.PublisherID
	Status      Status
	Limit       int
	Offset      int
}
