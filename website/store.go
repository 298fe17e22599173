package website

import (
	"context"
	"time"

	"github.com/xraph/placement/id"
	"github.com/xraph/placement/types"
)

type Store interface {
	Create(ctx context.Context, w *Website) error
	Get(ctx context.Context, websiteID id.WebsiteID) (*Website, error)
	GetByDomain(ctx context.Context, domain string) (*Website, error)
	List(ctx context.Context, opts ListOpts) ([]*Website, error)
	Update(ctx context.Context, w *Website) error
	// StampDerivation records a derivation outcome without touching the
	// authoritative current price.
	StampDerivation(ctx context.Context, websiteID id.WebsiteID, derived *types.Money, method Strategy, at time.Time) error
	SetCurrentPrice(ctx context.Context, websiteID id.WebsiteID, price *types.Money, at time.Time) error
}

type ListOpts struct {
	Limit  int
	Offset int
}
