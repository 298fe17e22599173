package offering

import (
	"context"

	"github.com/xraph/placement/id"
)

// Store persists offerings. Offerings are soft-deactivated, never deleted.
type Store interface {
	Create(ctx context.Context, o *Offering) error
	Get(ctx context.Context, offeringID id.OfferingID) (*Offering, error)
	List(ctx context.Context, opts ListOpts) ([]*Offering, error)
	Update(ctx context.Context, o *Offering) error
}

type ListOpts struct {
	PublisherID id.PublisherID
	Type        Type
	ActiveOnly  bool
	Limit       int
	Offset      int
}

// RelationshipStore persists offering relationships.
type RelationshipStore interface {
	Create(ctx context.Context, r *Relationship) error
	Get(ctx context.Context, relID id.RelationshipID) (*Relationship, error)
	List(ctx context.Context, opts RelationshipListOpts) ([]*Relationship, error)
	Update(ctx context.Context, r *Relationship) error
}

// RelationshipListOpts filters relationships. Zero-valued fields match all.
type RelationshipListOpts struct {
	WebsiteID   id.WebsiteID
	PublisherID id.PublisherID
	OfferingID  id.OfferingID
	Type        RelationshipType
	ActiveOnly  bool
	Limit       int
	Offset      int
}
