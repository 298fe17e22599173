package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/placement"
	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/publisher"
	placementstore "github.com/xraph/placement/store"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// Collection name constants.
const (
	colPublishers    = "placement_publishers"
	colWebsites      = "placement_websites"
	colOfferings     = "placement_offerings"
	colRelationships = "placement_offering_relationships"
	colPricingRules  = "placement_pricing_rules"
	colLineItems     = "placement_line_items"
	colChanges       = "placement_line_item_changes"
)

// compile-time interface check
var _ placementstore.Store = (*Store)(nil)

// querier is satisfied by both *mongodriver.MongoDB and *mongodriver.MongoTx.
type querier interface {
	NewFind(model ...any) *mongodriver.FindQuery
	NewInsert(model any) *mongodriver.InsertQuery
	NewUpdate(model any) *mongodriver.UpdateQuery
	NewDelete(model any) *mongodriver.DeleteQuery
}

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db   *grove.DB
	mdb  *mongodriver.MongoDB
	q    querier
	inTx bool
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	mdb := mongodriver.Unwrap(db)
	return &Store{
		db:  db,
		mdb: mdb,
		q:   mdb,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all placement collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: placement/mongo: migrate %s indexes: %v", placement.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunInTx runs fn inside a session transaction. Transactions require a
// replica set or sharded cluster.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx placementstore.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	raw, err := s.mdb.GroveTx(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", placement.ErrTransactionFailed, err)
	}
	tx, ok := raw.(*mongodriver.MongoTx)
	if !ok {
		return fmt.Errorf("%w: unexpected transaction type %T", placement.ErrTransactionFailed, raw)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &Store{db: s.db, mdb: s.mdb, q: tx, inTx: true}); err != nil {
		return err
	}
	committed = true
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", placement.ErrTransactionFailed, err)
	}
	return nil
}

// ==================== Publisher Store ====================

func (s *Store) CreatePublisher(ctx context.Context, p *publisher.Publisher) error {
	_, err := s.q.NewInsert(toPublisherModel(p)).Exec(ctx)
	if err != nil {
		return mapWriteErr(err, "create publisher")
	}
	return nil
}

func (s *Store) GetPublisher(ctx context.Context, publisherID id.PublisherID) (*publisher.Publisher, error) {
	var m publisherModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"_id": publisherID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, placement.ErrPublisherNotFound
		}
		return nil, fmt.Errorf("placement/mongo: get publisher: %w", err)
	}
	return fromPublisherModel(&m)
}

func (s *Store) GetPublisherByEmail(ctx context.Context, email string) (*publisher.Publisher, error) {
	var m publisherModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"email": email}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, placement.ErrPublisherNotFound
		}
		return nil, fmt.Errorf("placement/mongo: get publisher by email: %w", err)
	}
	return fromPublisherModel(&m)
}

func (s *Store) ListPublishers(ctx context.Context, opts publisher.ListOpts) ([]*publisher.Publisher, error) {
	var models []publisherModel

	filter := bson.M{}
	if opts.AccountStatus != "" {
		filter["account_status"] = string(opts.AccountStatus)
	}
	if opts.ShadowOnly {
		filter["is_shadow"] = true
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(createdOrder)
	q = paginate(q, opts.Limit, opts.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("placement/mongo: list publishers: %w", err)
	}

	result := make([]*publisher.Publisher, len(models))
	for i := range models {
		p, err := fromPublisherModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePublisher(ctx context.Context, p *publisher.Publisher) error {
	m := toPublisherModel(p)
	res, err := s.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return mapWriteErr(err, "update publisher")
	}
	if res.MatchedCount() == 0 {
		return placement.ErrPublisherNotFound
	}
	return nil
}

// ==================== Website Store ====================

func (s *Store) CreateWebsite(ctx context.Context, w *website.Website) error {
	_, err := s.q.NewInsert(toWebsiteModel(w)).Exec(ctx)
	if err != nil {
		return mapWriteErr(err, "create website")
	}
	return nil
}

func (s *Store) GetWebsite(ctx context.Context, websiteID id.WebsiteID) (*website.Website, error) {
	var m websiteModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"_id": websiteID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, placement.ErrWebsiteNotFound
		}
		return nil, fmt.Errorf("placement/mongo: get website: %w", err)
	}
	return fromWebsiteModel(&m)
}

func (s *Store) GetWebsiteByDomain(ctx context.Context, domain string) (*website.Website, error) {
	var m websiteModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"domain": domain}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, placement.ErrWebsiteNotFound
		}
		return nil, fmt.Errorf("placement/mongo: get website by domain: %w", err)
	}
	return fromWebsiteModel(&m)
}

func (s *Store) ListWebsites(ctx context.Context, opts website.ListOpts) ([]*website.Website, error) {
	var models []websiteModel
	q := s.q.NewFind(&models).
		Filter(bson.M{}).
		Sort(createdOrder)
	q = paginate(q, opts.Limit, opts.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("placement/mongo: list websites: %w", err)
	}

	result := make([]*website.Website, len(models))
	for i := range models {
		w, err := fromWebsiteModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = w
	}
	return result, nil
}

func (s *Store) UpdateWebsite(ctx context.Context, w *website.Website) error {
	m := toWebsiteModel(w)
	res, err := s.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return mapWriteErr(err, "update website")
	}
	if res.MatchedCount() == 0 {
		return placement.ErrWebsiteNotFound
	}
	return nil
}

func (s *Store) StampDerivation(ctx context.Context, websiteID id.WebsiteID, derived *types.Money, method website.Strategy, at time.Time) error {
	res, err := s.q.NewUpdate((*websiteModel)(nil)).
		Filter(bson.M{"_id": websiteID.String()}).
		Set("derived_price", toMoneyModel(derived)).
		Set("price_calculation_method", string(method)).
		Set("price_calculated_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("placement/mongo: stamp derivation: %w", err)
	}
	if res.MatchedCount() == 0 {
		return placement.ErrWebsiteNotFound
	}
	return nil
}

func (s *Store) SetCurrentPrice(ctx context.Context, websiteID id.WebsiteID, price *types.Money, at time.Time) error {
	res, err := s.q.NewUpdate((*websiteModel)(nil)).
		Filter(bson.M{"_id": websiteID.String()}).
		Set("current_price", toMoneyModel(price)).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("placement/mongo: set current price: %w", err)
	}
	if res.MatchedCount() == 0 {
		return placement.ErrWebsiteNotFound
	}
	return nil
}

// ==================== Offering Store ====================

func (s *Store) CreateOffering(ctx context.Context, o *offering.Offering) error {
	_, err := s.q.NewInsert(toOfferingModel(o)).Exec(ctx)
	if err != nil {
		return mapWriteErr(err, "create offering")
	}
	return nil
}

func (s *Store) GetOffering(ctx context.Context, offeringID id.OfferingID) (*offering.Offering, error) {
	var m offeringModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"_id": offeringID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, placement.ErrOfferingNotFound
		}
		return nil, fmt.Errorf("placement/mongo: get offering: %w", err)
	}
	return fromOfferingModel(&m)
}

func (s *Store) ListOfferings(ctx context.Context, opts offering.ListOpts) ([]*offering.Offering, error) {
	var models []offeringModel

	filter := bson.M{}
	if !opts.PublisherID.IsNil() {
		filter["publisher_id"] = opts.PublisherID.String()
	}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.ActiveOnly {
		filter["is_active"] = true
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(createdOrder)
	q = paginate(q, opts.Limit, opts.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("placement/mongo: list offerings: %w", err)
	}

	result := make([]*offering.Offering, len(models))
	for i := range models {
		o, err := fromOfferingModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

func (s *Store) UpdateOffering(ctx context.Context, o *offering.Offering) error {
	m := toOfferingModel(o)
	res, err := s.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("placement/mongo: update offering: %w", err)
	}
	if res.MatchedCount() == 0 {
		return placement.ErrOfferingNotFound
	}
	return nil
}

// ==================== Relationship Store ====================

func (s *Store) CreateRelationship(ctx context.Context, r *offering.Relationship) error {
	_, err := s.q.NewInsert(toRelationshipModel(r)).Exec(ctx)
	if err != nil {
		return mapWriteErr(err, "create relationship")
	}
	return nil
}

func (s *Store) GetRelationship(ctx context.Context, relID id.RelationshipID) (*offering.Relationship, error) {
	var m relationshipModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"_id": relID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, placement.ErrRelationshipNotFound
		}
		return nil, fmt.Errorf("placement/mongo: get relationship: %w", err)
	}
	return fromRelationshipModel(&m)
}

func (s *Store) ListRelationships(ctx context.Context, opts offering.RelationshipListOpts) ([]*offering.Relationship, error) {
	var models []relationshipModel

	filter := bson.M{}
	if !opts.WebsiteID.IsNil() {
		filter["website_id"] = opts.WebsiteID.String()
	}
	if !opts.PublisherID.IsNil() {
		filter["publisher_id"] = opts.PublisherID.String()
	}
	if !opts.OfferingID.IsNil() {
		filter["offering_id"] = opts.OfferingID.String()
	}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.ActiveOnly {
		filter["is_active"] = true
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(createdOrder)
	q = paginate(q, opts.Limit, opts.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("placement/mongo: list relationships: %w", err)
	}

	result := make([]*offering.Relationship, len(models))
	for i := range models {
		r, err := fromRelationshipModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) UpdateRelationship(ctx context.Context, r *offering.Relationship) error {
	m := toRelationshipModel(r)
	res, err := s.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return mapWriteErr(err, "update relationship")
	}
	if res.MatchedCount() == 0 {
		return placement.ErrRelationshipNotFound
	}
	return nil
}

// ==================== Pricing Rule Store ====================

func (s *Store) CreatePricingRule(ctx context.Context, r *pricingrule.Rule) error {
	_, err := s.q.NewInsert(toPricingRuleModel(r)).Exec(ctx)
	if err != nil {
		return mapWriteErr(err, "create pricing rule")
	}
	return nil
}

func (s *Store) GetPricingRule(ctx context.Context, ruleID id.PricingRuleID) (*pricingrule.Rule, error) {
	var m pricingRuleModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"_id": ruleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, placement.ErrPricingRuleNotFound
		}
		return nil, fmt.Errorf("placement/mongo: get pricing rule: %w", err)
	}
	return fromPricingRuleModel(&m)
}

func (s *Store) ListPricingRules(ctx context.Context, offeringID id.OfferingID) ([]*pricingrule.Rule, error) {
	var models []pricingRuleModel
	err := s.q.NewFind(&models).
		Filter(bson.M{"offering_id": offeringID.String()}).
		Sort(bson.D{{Key: "priority", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("placement/mongo: list pricing rules: %w", err)
	}

	result := make([]*pricingrule.Rule, len(models))
	for i := range models {
		r, err := fromPricingRuleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) UpdatePricingRule(ctx context.Context, r *pricingrule.Rule) error {
	m := toPricingRuleModel(r)
	res, err := s.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("placement/mongo: update pricing rule: %w", err)
	}
	if res.MatchedCount() == 0 {
		return placement.ErrPricingRuleNotFound
	}
	return nil
}

// ==================== Line Item Store ====================

func (s *Store) CreateLineItem(ctx context.Context, li *lineitem.LineItem) error {
	_, err := s.q.NewInsert(toLineItemModel(li)).Exec(ctx)
	if err != nil {
		return mapWriteErr(err, "create line item")
	}
	return nil
}

func (s *Store) GetLineItem(ctx context.Context, lineItemID id.LineItemID) (*lineitem.LineItem, error) {
	var m lineItemModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"_id": lineItemID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, placement.ErrLineItemNotFound
		}
		return nil, fmt.Errorf("placement/mongo: get line item: %w", err)
	}
	return fromLineItemModel(&m)
}

func (s *Store) ListLineItems(ctx context.Context, opts lineitem.ListOpts) ([]*lineitem.LineItem, error) {
	var models []lineItemModel

	filter := bson.M{}
	if !opts.OrderID.IsNil() {
		filter["order_id"] = opts.OrderID.String()
	}
	if !opts.WebsiteID.IsNil() {
		filter["website_id"] = opts.WebsiteID.String()
	}
	if !opts.PublisherID.IsNil() {
		filter["publisher_id"] = opts.PublisherID.String()
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(createdOrder)
	q = paginate(q, opts.Limit, opts.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("placement/mongo: list line items: %w", err)
	}

	result := make([]*lineitem.LineItem, len(models))
	for i := range models {
		li, err := fromLineItemModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = li
	}
	return result, nil
}

// UpdateLineItem replaces the document only while its version still equals
// expectedVersion.
func (s *Store) UpdateLineItem(ctx context.Context, li *lineitem.LineItem, expectedVersion int64) error {
	m := toLineItemModel(li)
	res, err := s.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID, "version": expectedVersion}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("placement/mongo: update line item: %w", err)
	}
	if res.MatchedCount() > 0 {
		return nil
	}
	if _, err := s.GetLineItem(ctx, li.ID); err != nil {
		return err
	}
	return placement.ErrVersionConflict
}

// ==================== Change Log Store ====================

func (s *Store) AppendChange(ctx context.Context, c *changelog.Change) error {
	_, err := s.q.NewInsert(toChangeModel(c)).Exec(ctx)
	if err != nil {
		return mapWriteErr(err, "append change")
	}
	return nil
}

func (s *Store) listChanges(ctx context.Context, field, value string) ([]*changelog.Change, error) {
	var models []changeModel
	err := s.q.NewFind(&models).
		Filter(bson.M{field: value}).
		Sort(bson.D{{Key: "timestamp", Value: 1}, {Key: "sequence", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("placement/mongo: list changes: %w", err)
	}

	result := make([]*changelog.Change, len(models))
	for i := range models {
		c, err := fromChangeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) ListChangesForLineItem(ctx context.Context, lineItemID id.LineItemID) ([]*changelog.Change, error) {
	return s.listChanges(ctx, "line_item_id", lineItemID.String())
}

func (s *Store) ListChangesForWebsite(ctx context.Context, websiteID id.WebsiteID) ([]*changelog.Change, error) {
	return s.listChanges(ctx, "website_id", websiteID.String())
}

func (s *Store) ListChangesByBatch(ctx context.Context, batchID id.BatchID) ([]*changelog.Change, error) {
	return s.listChanges(ctx, "batch_id", batchID.String())
}

// ==================== Helpers ====================

var createdOrder = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

func paginate(q *mongodriver.FindQuery, limit, offset int) *mongodriver.FindQuery {
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if offset > 0 {
		q = q.Skip(int64(offset))
	}
	return q
}

// mapWriteErr translates duplicate-key errors by the index that fired.
func mapWriteErr(err error, op string) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("placement/mongo: %s: %w", op, err)
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			switch {
			case strings.Contains(e.Message, idxWebsiteDomain):
				return placement.ErrDomainTaken
			case strings.Contains(e.Message, idxVerifiedOwner):
				return fmt.Errorf("%w: %s", placement.ErrOwnershipConflict, e.Message)
			}
		}
	}
	return placement.ErrAlreadyExists
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

const (
	idxWebsiteDomain = "placement_websites_domain"
	idxVerifiedOwner = "placement_rel_verified_owner"
)

// migrationIndexes returns the index definitions for all placement collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPublishers: {
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}}),
			},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colWebsites: {
			{
				Keys:    bson.D{{Key: "domain", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxWebsiteDomain),
			},
		},
		colOfferings: {
			{Keys: bson.D{{Key: "publisher_id", Value: 1}, {Key: "type", Value: 1}}},
		},
		colRelationships: {
			{Keys: bson.D{{Key: "website_id", Value: 1}, {Key: "is_active", Value: 1}}},
			{Keys: bson.D{{Key: "publisher_id", Value: 1}}},
			{Keys: bson.D{{Key: "offering_id", Value: 1}}},
			{
				Keys: bson.D{{Key: "publisher_id", Value: 1}, {Key: "website_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxVerifiedOwner).
					SetPartialFilterExpression(bson.M{
						"type":                string(offering.RelationshipOwner),
						"verification_status": string(offering.VerificationVerified),
						"is_active":           true,
					}),
			},
		},
		colPricingRules: {
			{Keys: bson.D{{Key: "offering_id", Value: 1}, {Key: "priority", Value: 1}}},
		},
		colLineItems: {
			{Keys: bson.D{{Key: "order_id", Value: 1}}},
			{Keys: bson.D{{Key: "website_id", Value: 1}}},
			{Keys: bson.D{{Key: "publisher_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colChanges: {
			{Keys: bson.D{{Key: "line_item_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "sequence", Value: 1}}},
			{Keys: bson.D{{Key: "website_id", Value: 1}, {Key: "timestamp", Value: 1}}},
			{Keys: bson.D{{Key: "batch_id", Value: 1}}},
		},
	}
}
