package store

import (
	"context"
	"time"

	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/publisher"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// Store is the unified storage interface for all placement entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Publisher methods
	CreatePublisher(ctx context.Context, p *publisher.Publisher) error
	GetPublisher(ctx context.Context, publisherID id.PublisherID) (*publisher.Publisher, error)
	GetPublisherByEmail(ctx context.Context, email string) (*publisher.Publisher, error)
	ListPublishers(ctx context.Context, opts publisher.ListOpts) ([]*publisher.Publisher, error)
	UpdatePublisher(ctx context.Context, p *publisher.Publisher) error

	// Website methods
	CreateWebsite(ctx context.Context, w *website.Website) error
	GetWebsite(ctx context.Context, websiteID id.WebsiteID) (*website.Website, error)
	GetWebsiteByDomain(ctx context.Context, domain string) (*website.Website, error)
	ListWebsites(ctx context.Context, opts website.ListOpts) ([]*website.Website, error)
	UpdateWebsite(ctx context.Context, w *website.Website) error
	StampDerivation(ctx context.Context, websiteID id.WebsiteID, derived *types.Money, method website.Strategy, at time.Time) error
	SetCurrentPrice(ctx context.Context, websiteID id.WebsiteID, price *types.Money, at time.Time) error

	// Offering methods
	CreateOffering(ctx context.Context, o *offering.Offering) error
	GetOffering(ctx context.Context, offeringID id.OfferingID) (*offering.Offering, error)
	ListOfferings(ctx context.Context, opts offering.ListOpts) ([]*offering.Offering, error)
	UpdateOffering(ctx context.Context, o *offering.Offering) error

	// Relationship methods
	CreateRelationship(ctx context.Context, r *offering.Relationship) error
	GetRelationship(ctx context.Context, relID id.RelationshipID) (*offering.Relationship, error)
	ListRelationships(ctx context.Context, opts offering.RelationshipListOpts) ([]*offering.Relationship, error)
	UpdateRelationship(ctx context.Context, r *offering.Relationship) error

	// Pricing rule methods
	CreatePricingRule(ctx context.Context, r *pricingrule.Rule) error
	GetPricingRule(ctx context.Context, ruleID id.PricingRuleID) (*pricingrule.Rule, error)
	ListPricingRules(ctx context.Context, offeringID id.OfferingID) ([]*pricingrule.Rule, error)
	UpdatePricingRule(ctx context.Context, r *pricingrule.Rule) error

	// Line item methods
	CreateLineItem(ctx context.Context, li *lineitem.LineItem) error
	GetLineItem(ctx context.Context, lineItemID id.LineItemID) (*lineitem.LineItem, error)
	ListLineItems(ctx context.Context, opts lineitem.ListOpts) ([]*lineitem.LineItem, error)
	UpdateLineItem(ctx context.Context, li *lineitem.LineItem, expectedVersion int64) error

	// Change log methods
	AppendChange(ctx context.Context, c *changelog.Change) error
	ListChangesForLineItem(ctx context.Context, lineItemID id.LineItemID) ([]*changelog.Change, error)
	ListChangesForWebsite(ctx context.Context, websiteID id.WebsiteID) ([]*changelog.Change, error)
	ListChangesByBatch(ctx context.Context, batchID id.BatchID) ([]*changelog.Change, error)

	// RunInTx runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling RunInTx on a transactional Store joins the outer transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Savepointer is implemented by stores that can undo part of a transaction.
// Savepoint runs fn and, when fn fails, discards only fn's writes; the
// enclosing transaction stays usable. Outside a transaction it just runs fn.
type Savepointer interface {
	Savepoint(ctx context.Context, fn func(ctx context.Context) error) error
}
