package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

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

// compile-time interface check
var (
	_ placementstore.Store       = (*Store)(nil)
	_ placementstore.Savepointer = (*Store)(nil)
)

// querier is satisfied by both *sqlitedriver.SqliteDB and *sqlitedriver.SqliteTx.
type querier interface {
	NewSelect(model ...any) *sqlitedriver.SelectQuery
	NewInsert(model any) *sqlitedriver.InsertQuery
	NewUpdate(model any) *sqlitedriver.UpdateQuery
	NewDelete(model any) *sqlitedriver.DeleteQuery
	NewRaw(query string, args ...any) *sqlitedriver.RawQuery
}

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db   *grove.DB
	sdb  *sqlitedriver.SqliteDB
	q    querier
	inTx bool
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	sdb := sqlitedriver.Unwrap(db)
	return &Store{
		db:  db,
		sdb: sdb,
		q:   sdb,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("placement/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: placement/sqlite: %v", placement.ErrMigrationFailed, err)
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

// RunInTx runs fn inside a transaction. SQLite serializes writers, so the
// version predicate on line items is the only concurrency guard needed.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx placementstore.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.sdb.BeginTxQuery(ctx, &driver.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", placement.ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &Store{db: s.db, sdb: s.sdb, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", placement.ErrTransactionFailed, err)
	}
	return nil
}

// Savepoint runs fn behind a SAVEPOINT so a failed statement inside fn
// leaves the enclosing transaction usable.
func (s *Store) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.inTx {
		return fn(ctx)
	}
	if _, err := s.q.NewRaw("SAVEPOINT placement_item").Exec(ctx); err != nil {
		return fmt.Errorf("%w: savepoint: %v", placement.ErrTransactionFailed, err)
	}
	if err := fn(ctx); err != nil {
		if _, rerr := s.q.NewRaw("ROLLBACK TO SAVEPOINT placement_item").Exec(ctx); rerr != nil {
			return errors.Join(err, fmt.Errorf("%w: rollback to savepoint: %v", placement.ErrTransactionFailed, rerr))
		}
		return err
	}
	if _, err := s.q.NewRaw("RELEASE SAVEPOINT placement_item").Exec(ctx); err != nil {
		return fmt.Errorf("%w: release savepoint: %v", placement.ErrTransactionFailed, err)
	}
	return nil
}

// ==================== Publisher Store ====================

func (s *Store) CreatePublisher(ctx context.Context, p *publisher.Publisher) error {
	_, err := s.q.NewInsert(toPublisherModel(p)).Exec(ctx)
	return mapInsertErr(err)
}

func (s *Store) GetPublisher(ctx context.Context, publisherID id.PublisherID) (*publisher.Publisher, error) {
	m := new(publisherModel)
	err := s.q.NewSelect(m).
		Where("id = ?", publisherID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, placement.ErrPublisherNotFound
		}
		return nil, err
	}
	return fromPublisherModel(m)
}

func (s *Store) GetPublisherByEmail(ctx context.Context, email string) (*publisher.Publisher, error) {
	m := new(publisherModel)
	err := s.q.NewSelect(m).
		Where("LOWER(email) = LOWER(?)", email).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, placement.ErrPublisherNotFound
		}
		return nil, err
	}
	return fromPublisherModel(m)
}

func (s *Store) ListPublishers(ctx context.Context, opts publisher.ListOpts) ([]*publisher.Publisher, error) {
	var models []publisherModel
	q := s.q.NewSelect(&models)

	if opts.AccountStatus != "" {
		q = q.Where("account_status = ?", string(opts.AccountStatus))
	}
	if opts.ShadowOnly {
		q = q.Where("is_shadow = 1")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.q.NewUpdate(toPublisherModel(p)).WherePK().Exec(ctx)
	if err != nil {
		return mapInsertErr(err)
	}
	return expectRow(res, placement.ErrPublisherNotFound)
}

// ==================== Website Store ====================

func (s *Store) CreateWebsite(ctx context.Context, w *website.Website) error {
	_, err := s.q.NewInsert(toWebsiteModel(w)).Exec(ctx)
	return mapInsertErr(err)
}

func (s *Store) GetWebsite(ctx context.Context, websiteID id.WebsiteID) (*website.Website, error) {
	m := new(websiteModel)
	err := s.q.NewSelect(m).
		Where("id = ?", websiteID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, placement.ErrWebsiteNotFound
		}
		return nil, err
	}
	return fromWebsiteModel(m)
}

func (s *Store) GetWebsiteByDomain(ctx context.Context, domain string) (*website.Website, error) {
	m := new(websiteModel)
	err := s.q.NewSelect(m).
		Where("domain = ?", domain).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, placement.ErrWebsiteNotFound
		}
		return nil, err
	}
	return fromWebsiteModel(m)
}

func (s *Store) ListWebsites(ctx context.Context, opts website.ListOpts) ([]*website.Website, error) {
	var models []websiteModel
	q := s.q.NewSelect(&models)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.q.NewUpdate(toWebsiteModel(w)).WherePK().Exec(ctx)
	if err != nil {
		return mapInsertErr(err)
	}
	return expectRow(res, placement.ErrWebsiteNotFound)
}

func (s *Store) StampDerivation(ctx context.Context, websiteID id.WebsiteID, derived *types.Money, method website.Strategy, at time.Time) error {
	amt, cur := moneyCols(derived)
	res, err := s.q.NewUpdate((*websiteModel)(nil)).
		Set("derived_price_amount = ?", amt).
		Set("derived_price_currency = ?", cur).
		Set("price_calculation_method = ?", string(method)).
		Set("price_calculated_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", websiteID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, placement.ErrWebsiteNotFound)
}

func (s *Store) SetCurrentPrice(ctx context.Context, websiteID id.WebsiteID, price *types.Money, at time.Time) error {
	amt, cur := moneyCols(price)
	res, err := s.q.NewUpdate((*websiteModel)(nil)).
		Set("current_price_amount = ?", amt).
		Set("current_price_currency = ?", cur).
		Set("updated_at = ?", at).
		Where("id = ?", websiteID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, placement.ErrWebsiteNotFound)
}

// ==================== Offering Store ====================

func (s *Store) CreateOffering(ctx context.Context, o *offering.Offering) error {
	_, err := s.q.NewInsert(toOfferingModel(o)).Exec(ctx)
	return mapInsertErr(err)
}

func (s *Store) GetOffering(ctx context.Context, offeringID id.OfferingID) (*offering.Offering, error) {
	m := new(offeringModel)
	err := s.q.NewSelect(m).
		Where("id = ?", offeringID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, placement.ErrOfferingNotFound
		}
		return nil, err
	}
	return fromOfferingModel(m)
}

func (s *Store) ListOfferings(ctx context.Context, opts offering.ListOpts) ([]*offering.Offering, error) {
	var models []offeringModel
	q := s.q.NewSelect(&models)

	if !opts.PublisherID.IsNil() {
		q = q.Where("publisher_id = ?", opts.PublisherID.String())
	}
	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}
	if opts.ActiveOnly {
		q = q.Where("is_active = 1")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.q.NewUpdate(toOfferingModel(o)).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, placement.ErrOfferingNotFound)
}

// ==================== Relationship Store ====================

func (s *Store) CreateRelationship(ctx context.Context, r *offering.Relationship) error {
	_, err := s.q.NewInsert(toRelationshipModel(r)).Exec(ctx)
	return mapInsertErr(err)
}

func (s *Store) GetRelationship(ctx context.Context, relID id.RelationshipID) (*offering.Relationship, error) {
	m := new(relationshipModel)
	err := s.q.NewSelect(m).
		Where("id = ?", relID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, placement.ErrRelationshipNotFound
		}
		return nil, err
	}
	return fromRelationshipModel(m)
}

func (s *Store) ListRelationships(ctx context.Context, opts offering.RelationshipListOpts) ([]*offering.Relationship, error) {
	var models []relationshipModel
	q := s.q.NewSelect(&models)

	if !opts.WebsiteID.IsNil() {
		q = q.Where("website_id = ?", opts.WebsiteID.String())
	}
	if !opts.PublisherID.IsNil() {
		q = q.Where("publisher_id = ?", opts.PublisherID.String())
	}
	if !opts.OfferingID.IsNil() {
		q = q.Where("offering_id = ?", opts.OfferingID.String())
	}
	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}
	if opts.ActiveOnly {
		q = q.Where("is_active = 1")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.q.NewUpdate(toRelationshipModel(r)).WherePK().Exec(ctx)
	if err != nil {
		return mapInsertErr(err)
	}
	return expectRow(res, placement.ErrRelationshipNotFound)
}

// ==================== Pricing Rule Store ====================

func (s *Store) CreatePricingRule(ctx context.Context, r *pricingrule.Rule) error {
	_, err := s.q.NewInsert(toPricingRuleModel(r)).Exec(ctx)
	return mapInsertErr(err)
}

func (s *Store) GetPricingRule(ctx context.Context, ruleID id.PricingRuleID) (*pricingrule.Rule, error) {
	m := new(pricingRuleModel)
	err := s.q.NewSelect(m).
		Where("id = ?", ruleID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, placement.ErrPricingRuleNotFound
		}
		return nil, err
	}
	return fromPricingRuleModel(m)
}

func (s *Store) ListPricingRules(ctx context.Context, offeringID id.OfferingID) ([]*pricingrule.Rule, error) {
	var models []pricingRuleModel
	err := s.q.NewSelect(&models).
		Where("offering_id = ?", offeringID.String()).
		OrderExpr("priority ASC, created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	res, err := s.q.NewUpdate(toPricingRuleModel(r)).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, placement.ErrPricingRuleNotFound)
}

// ==================== Line Item Store ====================

func (s *Store) CreateLineItem(ctx context.Context, li *lineitem.LineItem) error {
	_, err := s.q.NewInsert(toLineItemModel(li)).Exec(ctx)
	return mapInsertErr(err)
}

func (s *Store) GetLineItem(ctx context.Context, lineItemID id.LineItemID) (*lineitem.LineItem, error) {
	m := new(lineItemModel)
	err := s.q.NewSelect(m).
		Where("id = ?", lineItemID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, placement.ErrLineItemNotFound
		}
		return nil, err
	}
	return fromLineItemModel(m)
}

func (s *Store) ListLineItems(ctx context.Context, opts lineitem.ListOpts) ([]*lineitem.LineItem, error) {
	var models []lineItemModel
	q := s.q.NewSelect(&models)

	if !opts.OrderID.IsNil() {
		q = q.Where("order_id = ?", opts.OrderID.String())
	}
	if !opts.WebsiteID.IsNil() {
		q = q.Where("website_id = ?", opts.WebsiteID.String())
	}
	if !opts.PublisherID.IsNil() {
		q = q.Where("publisher_id = ?", opts.PublisherID.String())
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

// UpdateLineItem is a compare-and-swap on the version column.
func (s *Store) UpdateLineItem(ctx context.Context, li *lineitem.LineItem, expectedVersion int64) error {
	res, err := s.q.NewUpdate(toLineItemModel(li)).
		WherePK().
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
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
	return mapInsertErr(err)
}

func (s *Store) listChanges(ctx context.Context, column, value string) ([]*changelog.Change, error) {
	var models []changeModel
	err := s.q.NewSelect(&models).
		Where(column+" = ?", value).
		OrderExpr("timestamp ASC, sequence ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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

type rowsResult interface {
	RowsAffected() (int64, error)
}

func expectRow(res rowsResult, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// mapInsertErr translates unique violations into placement errors. SQLite
// does not report constraint names, so the message identifies the index.
func mapInsertErr(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}
	msg := se.Error()
	switch {
	case strings.Contains(msg, "placement_websites.domain"):
		return placement.ErrDomainTaken
	case strings.Contains(msg, "placement_offering_relationships.publisher_id"):
		return fmt.Errorf("%w: %s", placement.ErrOwnershipConflict, msg)
	default:
		return placement.ErrAlreadyExists
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
