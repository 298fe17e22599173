package publisher

import (
	"context"

	"github.com/xraph/placement/id"
)

type Store interface {
	Create(ctx context.Context, p *Publisher) error
	Get(ctx context.Context, publisherID id.PublisherID) (*Publisher, error)
	GetByEmail(ctx context.Context, email string) (*Publisher, error)
	List(ctx context.Context, opts ListOpts) ([]*Publisher, error)
	Update(ctx context.Context, p *Publisher) error
}

type ListOpts struct {
	AccountStatus AccountStatus
	ShadowOnly    bool
	Limit         int
	Offset        int
}
