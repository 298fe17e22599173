package offering

import (
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/types"
)

type Type string

const (
	TypeGuestPost     Type = "guest_post"
	TypeLinkInsertion Type = "link_insertion"
	TypeHomepageLink  Type = "homepage_link"
	TypeSponsoredPost Type = "sponsored_post"
)

type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityLimited     Availability = "limited"
	AvailabilityUnavailable Availability = "unavailable"
)

// Offering is a publisher's sellable service definition. BasePrice is nil
// for offerings that are quoted on request.
type Offering struct {
	types.Entity
	ID             id.OfferingID     `json:"id"`
	PublisherID    id.PublisherID    `json:"publisher_id"`
	Type           Type              `json:"type"`
	BasePrice      *types.Money      `json:"base_price,omitempty"`
	TurnaroundDays int               `json:"turnaround_days"`
	MinWords       int               `json:"min_words"`
	MaxWords       int               `json:"max_words"`
	Availability   Availability      `json:"availability"`
	IsActive       bool              `json:"is_active"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Priced reports whether the offering is active and carries a base price.
func (o *Offering) Priced() bool {
	return o.IsActive && o.BasePrice != nil
}

type RelationshipType string

const (
	RelationshipOwner    RelationshipType = "owner"
	RelationshipContact  RelationshipType = "contact"
	RelationshipReseller RelationshipType = "reseller"
)

type VerificationStatus string

const (
	VerificationClaimed  VerificationStatus = "claimed"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Relationship links a publisher, optionally one of its offerings, and a
// website. Owner relationships are ownership claims.
type Relationship struct {
	types.Entity
	ID                 id.RelationshipID  `json:"id"`
	PublisherID        id.PublisherID     `json:"publisher_id"`
	OfferingID         id.OfferingID      `json:"offering_id"`
	WebsiteID          id.WebsiteID       `json:"website_id"`
	IsPrimary          bool               `json:"is_primary"`
	IsActive           bool               `json:"is_active"`
	Type               RelationshipType   `json:"type"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	PriorityRank       int                `json:"priority_rank"`
	IsPreferred        bool               `json:"is_preferred"`
	CustomPrice        *types.Money       `json:"custom_price,omitempty"`
	CustomTerms        string             `json:"custom_terms,omitempty"`
	Notes              string             `json:"notes,omitempty"`
}

// IsClaim reports whether r is a live ownership claim, i.e. an active owner
// relationship that is claimed or verified.
func (r *Relationship) IsClaim() bool {
	if !r.IsActive || r.Type != RelationshipOwner {
		return false
	}
	return r.VerificationStatus == VerificationClaimed || r.VerificationStatus == VerificationVerified
}

// Pairing is an active offering together with the active relationship that
// attaches it to a website.
type Pairing struct {
	Offering     *Offering     `json:"offering"`
	Relationship *Relationship `json:"relationship"`
}

// ConflictReport lists every live ownership claim on a website. Conflicted
// is true when claims come from more than one publisher. One publisher may
// hold several claims on its own site, one per offering, without
// conflicting with itself. No winner is ever chosen here.
type ConflictReport struct {
	WebsiteID  id.WebsiteID    `json:"website_id"`
	Conflicted bool            `json:"conflicted"`
	Claimants  []*Relationship `json:"claimants"`
}

// Publishers returns the distinct claiming publishers in claim order.
func (c *ConflictReport) Publishers() []id.PublisherID {
	seen := make(map[id.PublisherID]struct{}, len(c.Claimants))
	out := make([]id.PublisherID, 0, len(c.Claimants))
	for _, r := range c.Claimants {
		if _, ok := seen[r.PublisherID]; ok {
			continue
		}
		seen[r.PublisherID] = struct{}{}
		out = append(out, r.PublisherID)
	}
	return out
}

// Claimant returns the first claim held by publisherID, or nil.
func (c *ConflictReport) Claimant(publisherID id.PublisherID) *Relationship {
	for _, r := range c.Claimants {
		if r.PublisherID == publisherID {
			return r
		}
	}
	return nil
}
