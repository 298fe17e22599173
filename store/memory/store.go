// Package memory is an in-process store.Store. Transactions run on a
// private copy of the data set that replaces the shared one on commit.
// Writers are serialized; readers only wait for the swap itself.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xraph/placement"
	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/publisher"
	"github.com/xraph/placement/store"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

var (
	_ store.Store       = (*Store)(nil)
	_ store.Savepointer = (*Store)(nil)
)

// dataset values are never mutated in place, so copying the maps is enough
// to isolate a transaction.
type dataset struct {
	publishers    map[string]*publisher.Publisher
	websites      map[string]*website.Website
	offerings     map[string]*offering.Offering
	relationships map[string]*offering.Relationship
	rules         map[string]*pricingrule.Rule
	lineItems     map[string]*lineitem.LineItem
	changes       []*changelog.Change
}

func (d *dataset) clone() *dataset {
	return &dataset{
		publishers:    maps.Clone(d.publishers),
		websites:      maps.Clone(d.websites),
		offerings:     maps.Clone(d.offerings),
		relationships: maps.Clone(d.relationships),
		rules:         maps.Clone(d.rules),
		lineItems:     maps.Clone(d.lineItems),
		changes:       slices.Clone(d.changes),
	}
}

type Store struct {
	mu     *sync.RWMutex // guards data
	writer *sync.Mutex   // serializes transactions and direct writes
	data   *dataset
	tx     bool
}

func New() *Store {
	return &Store{
		mu:     &sync.RWMutex{},
		writer: &sync.Mutex{},
		data: &dataset{
			publishers:    make(map[string]*publisher.Publisher),
			websites:      make(map[string]*website.Website),
			offerings:     make(map[string]*offering.Offering),
			relationships: make(map[string]*offering.Relationship),
			rules:         make(map[string]*pricingrule.Rule),
			lineItems:     make(map[string]*lineitem.LineItem),
		},
	}
}

// A transactional Store owns its data set and the writer lock.
func (s *Store) rlock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock() func() {
	if s.tx {
		return func() {}
	}
	s.writer.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.writer.Unlock()
	}
}

func paginate[T any](items []T, limit, offset int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func byCreated[T any](items []T, created func(T) time.Time, key func(T) id.ID) {
	slices.SortFunc(items, func(a, b T) int {
		if c := created(a).Compare(created(b)); c != 0 {
			return c
		}
		return key(a).Compare(key(b))
	})
}

// ──────────────────────────────────────────────────
// Publisher Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreatePublisher(_ context.Context, p *publisher.Publisher) error {
	defer s.lock()()

	if _, exists := s.data.publishers[p.ID.String()]; exists {
		return placement.ErrAlreadyExists
	}
	for _, existing := range s.data.publishers {
		if p.Email != "" && strings.EqualFold(existing.Email, p.Email) {
			return placement.ErrAlreadyExists
		}
	}
	s.data.publishers[p.ID.String()] = clonePublisher(p)
	return nil
}

func (s *Store) GetPublisher(_ context.Context, publisherID id.PublisherID) (*publisher.Publisher, error) {
	defer s.rlock()()

	if p, ok := s.data.publishers[publisherID.String()]; ok {
		return clonePublisher(p), nil
	}
	return nil, placement.ErrPublisherNotFound
}

func (s *Store) GetPublisherByEmail(_ context.Context, email string) (*publisher.Publisher, error) {
	defer s.rlock()()

	for _, p := range s.data.publishers {
		if strings.EqualFold(p.Email, email) {
			return clonePublisher(p), nil
		}
	}
	return nil, placement.ErrPublisherNotFound
}

func (s *Store) ListPublishers(_ context.Context, opts publisher.ListOpts) ([]*publisher.Publisher, error) {
	defer s.rlock()()

	result := make([]*publisher.Publisher, 0)
	for _, p := range s.data.publishers {
		if opts.AccountStatus != "" && p.AccountStatus != opts.AccountStatus {
			continue
		}
		if opts.ShadowOnly && !p.IsShadow {
			continue
		}
		result = append(result, clonePublisher(p))
	}
	byCreated(result, func(p *publisher.Publisher) time.Time { return p.CreatedAt },
		func(p *publisher.Publisher) id.ID { return p.ID })

	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdatePublisher(_ context.Context, p *publisher.Publisher) error {
	defer s.lock()()

	if _, exists := s.data.publishers[p.ID.String()]; !exists {
		return placement.ErrPublisherNotFound
	}
	s.data.publishers[p.ID.String()] = clonePublisher(p)
	return nil
}

// ──────────────────────────────────────────────────
// Website Store implementation
// ──────────────────────────────────────────────────

func (s *Store) domainTaken(domain string, except id.WebsiteID) bool {
	for _, w := range s.data.websites {
		if w.Domain == domain && w.ID != except {
			return true
		}
	}
	return false
}

func (s *Store) CreateWebsite(_ context.Context, w *website.Website) error {
	defer s.lock()()

	if _, exists := s.data.websites[w.ID.String()]; exists {
		return placement.ErrAlreadyExists
	}
	if s.domainTaken(w.Domain, w.ID) {
		return placement.ErrDomainTaken
	}
	s.data.websites[w.ID.String()] = cloneWebsite(w)
	return nil
}

func (s *Store) GetWebsite(_ context.Context, websiteID id.WebsiteID) (*website.Website, error) {
	defer s.rlock()()

	if w, ok := s.data.websites[websiteID.String()]; ok {
		return cloneWebsite(w), nil
	}
	return nil, placement.ErrWebsiteNotFound
}

func (s *Store) GetWebsiteByDomain(_ context.Context, domain string) (*website.Website, error) {
	defer s.rlock()()

	for _, w := range s.data.websites {
		if w.Domain == domain {
			return cloneWebsite(w), nil
		}
	}
	return nil, placement.ErrWebsiteNotFound
}

func (s *Store) ListWebsites(_ context.Context, opts website.ListOpts) ([]*website.Website, error) {
	defer s.rlock()()

	result := make([]*website.Website, 0, len(s.data.websites))
	for _, w := range s.data.websites {
		result = append(result, cloneWebsite(w))
	}
	byCreated(result, func(w *website.Website) time.Time { return w.CreatedAt },
		func(w *website.Website) id.ID { return w.ID })

	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateWebsite(_ context.Context, w *website.Website) error {
	defer s.lock()()

	if _, exists := s.data.websites[w.ID.String()]; !exists {
		return placement.ErrWebsiteNotFound
	}
	if s.domainTaken(w.Domain, w.ID) {
		return placement.ErrDomainTaken
	}
	s.data.websites[w.ID.String()] = cloneWebsite(w)
	return nil
}

func (s *Store) StampDerivation(_ context.Context, websiteID id.WebsiteID, derived *types.Money, method website.Strategy, at time.Time) error {
	defer s.lock()()

	w, ok := s.data.websites[websiteID.String()]
	if !ok {
		return placement.ErrWebsiteNotFound
	}
	cp := cloneWebsite(w)
	cp.DerivedPrice = cloneMoney(derived)
	cp.PriceCalculationMethod = method
	cp.PriceCalculatedAt = &at
	cp.TouchAt(at)
	s.data.websites[websiteID.String()] = cp
	return nil
}

func (s *Store) SetCurrentPrice(_ context.Context, websiteID id.WebsiteID, price *types.Money, at time.Time) error {
	defer s.lock()()

	w, ok := s.data.websites[websiteID.String()]
	if !ok {
		return placement.ErrWebsiteNotFound
	}
	cp := cloneWebsite(w)
	cp.CurrentPrice = cloneMoney(price)
	cp.TouchAt(at)
	s.data.websites[websiteID.String()] = cp
	return nil
}

// ──────────────────────────────────────────────────
// Offering Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateOffering(_ context.Context, o *offering.Offering) error {
	defer s.lock()()

	if _, exists := s.data.offerings[o.ID.String()]; exists {
		return placement.ErrAlreadyExists
	}
	s.data.offerings[o.ID.String()] = cloneOffering(o)
	return nil
}

func (s *Store) GetOffering(_ context.Context, offeringID id.OfferingID) (*offering.Offering, error) {
	defer s.rlock()()

	if o, ok := s.data.offerings[offeringID.String()]; ok {
		return cloneOffering(o), nil
	}
	return nil, placement.ErrOfferingNotFound
}

func (s *Store) ListOfferings(_ context.Context, opts offering.ListOpts) ([]*offering.Offering, error) {
	defer s.rlock()()

	result := make([]*offering.Offering, 0)
	for _, o := range s.data.offerings {
		if !opts.PublisherID.IsNil() && o.PublisherID != opts.PublisherID {
			continue
		}
		if opts.Type != "" && o.Type != opts.Type {
			continue
		}
		if opts.ActiveOnly && !o.IsActive {
			continue
		}
		result = append(result, cloneOffering(o))
	}
	byCreated(result, func(o *offering.Offering) time.Time { return o.CreatedAt },
		func(o *offering.Offering) id.ID { return o.ID })

	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateOffering(_ context.Context, o *offering.Offering) error {
	defer s.lock()()

	if _, exists := s.data.offerings[o.ID.String()]; !exists {
		return placement.ErrOfferingNotFound
	}
	s.data.offerings[o.ID.String()] = cloneOffering(o)
	return nil
}

// ──────────────────────────────────────────────────
// Relationship Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateRelationship(_ context.Context, r *offering.Relationship) error {
	defer s.lock()()

	if _, exists := s.data.relationships[r.ID.String()]; exists {
		return placement.ErrAlreadyExists
	}
	s.data.relationships[r.ID.String()] = cloneRelationship(r)
	return nil
}

func (s *Store) GetRelationship(_ context.Context, relID id.RelationshipID) (*offering.Relationship, error) {
	defer s.rlock()()

	if r, ok := s.data.relationships[relID.String()]; ok {
		return cloneRelationship(r), nil
	}
	return nil, placement.ErrRelationshipNotFound
}

func (s *Store) ListRelationships(_ context.Context, opts offering.RelationshipListOpts) ([]*offering.Relationship, error) {
	defer s.rlock()()

	result := make([]*offering.Relationship, 0)
	for _, r := range s.data.relationships {
		if !opts.WebsiteID.IsNil() && r.WebsiteID != opts.WebsiteID {
			continue
		}
		if !opts.PublisherID.IsNil() && r.PublisherID != opts.PublisherID {
			continue
		}
		if !opts.OfferingID.IsNil() && r.OfferingID != opts.OfferingID {
			continue
		}
		if opts.Type != "" && r.Type != opts.Type {
			continue
		}
		if opts.ActiveOnly && !r.IsActive {
			continue
		}
		result = append(result, cloneRelationship(r))
	}
	byCreated(result, func(r *offering.Relationship) time.Time { return r.CreatedAt },
		func(r *offering.Relationship) id.ID { return r.ID })

	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateRelationship(_ context.Context, r *offering.Relationship) error {
	defer s.lock()()

	if _, exists := s.data.relationships[r.ID.String()]; !exists {
		return placement.ErrRelationshipNotFound
	}
	s.data.relationships[r.ID.String()] = cloneRelationship(r)
	return nil
}

// ──────────────────────────────────────────────────
// Pricing rule Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreatePricingRule(_ context.Context, r *pricingrule.Rule) error {
	defer s.lock()()

	if _, exists := s.data.rules[r.ID.String()]; exists {
		return placement.ErrAlreadyExists
	}
	s.data.rules[r.ID.String()] = cloneRule(r)
	return nil
}

func (s *Store) GetPricingRule(_ context.Context, ruleID id.PricingRuleID) (*pricingrule.Rule, error) {
	defer s.rlock()()

	if r, ok := s.data.rules[ruleID.String()]; ok {
		return cloneRule(r), nil
	}
	return nil, placement.ErrPricingRuleNotFound
}

func (s *Store) ListPricingRules(_ context.Context, offeringID id.OfferingID) ([]*pricingrule.Rule, error) {
	defer s.rlock()()

	result := make([]*pricingrule.Rule, 0)
	for _, r := range s.data.rules {
		if r.OfferingID == offeringID {
			result = append(result, cloneRule(r))
		}
	}
	slices.SortFunc(result, func(a, b *pricingrule.Rule) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return result, nil
}

func (s *Store) UpdatePricingRule(_ context.Context, r *pricingrule.Rule) error {
	defer s.lock()()

	if _, exists := s.data.rules[r.ID.String()]; !exists {
		return placement.ErrPricingRuleNotFound
	}
	s.data.rules[r.ID.String()] = cloneRule(r)
	return nil
}

// ──────────────────────────────────────────────────
// Line item Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateLineItem(_ context.Context, li *lineitem.LineItem) error {
	defer s.lock()()

	if _, exists := s.data.lineItems[li.ID.String()]; exists {
		return placement.ErrAlreadyExists
	}
	s.data.lineItems[li.ID.String()] = cloneLineItem(li)
	return nil
}

func (s *Store) GetLineItem(_ context.Context, lineItemID id.LineItemID) (*lineitem.LineItem, error) {
	defer s.rlock()()

	if li, ok := s.data.lineItems[lineItemID.String()]; ok {
		return cloneLineItem(li), nil
	}
	return nil, placement.ErrLineItemNotFound
}

func (s *Store) ListLineItems(_ context.Context, opts lineitem.ListOpts) ([]*lineitem.LineItem, error) {
	defer s.rlock()()

	result := make([]*lineitem.LineItem, 0)
	for _, li := range s.data.lineItems {
		if !opts.OrderID.IsNil() && li.OrderID != opts.OrderID {
			continue
		}
		if !opts.WebsiteID.IsNil() && li.WebsiteID != opts.WebsiteID {
			continue
		}
		if !opts.PublisherID.IsNil() && li.PublisherID != opts.PublisherID {
			continue
		}
		if opts.Status != "" && li.Status != opts.Status {
			continue
		}
		result = append(result, cloneLineItem(li))
	}
	byCreated(result, func(li *lineitem.LineItem) time.Time { return li.CreatedAt },
		func(li *lineitem.LineItem) id.ID { return li.ID })

	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateLineItem(_ context.Context, li *lineitem.LineItem, expectedVersion int64) error {
	defer s.lock()()

	cur, exists := s.data.lineItems[li.ID.String()]
	if !exists {
		return placement.ErrLineItemNotFound
	}
	if cur.Version != expectedVersion {
		return placement.ErrVersionConflict
	}
	s.data.lineItems[li.ID.String()] = cloneLineItem(li)
	return nil
}

// ──────────────────────────────────────────────────
// Change log Store implementation
// ──────────────────────────────────────────────────

func (s *Store) AppendChange(_ context.Context, c *changelog.Change) error {
	defer s.lock()()

	for _, existing := range s.data.changes {
		if existing.ID == c.ID {
			return placement.ErrAlreadyExists
		}
	}
	s.data.changes = append(s.data.changes, cloneChange(c))
	return nil
}

func (s *Store) listChanges(match func(*changelog.Change) bool) []*changelog.Change {
	result := make([]*changelog.Change, 0)
	for _, c := range s.data.changes {
		if match(c) {
			result = append(result, cloneChange(c))
		}
	}
	changelog.Sort(result)
	return result
}

func (s *Store) ListChangesForLineItem(_ context.Context, lineItemID id.LineItemID) ([]*changelog.Change, error) {
	defer s.rlock()()
	return s.listChanges(func(c *changelog.Change) bool { return c.LineItemID == lineItemID }), nil
}

func (s *Store) ListChangesForWebsite(_ context.Context, websiteID id.WebsiteID) ([]*changelog.Change, error) {
	defer s.rlock()()
	return s.listChanges(func(c *changelog.Change) bool { return c.WebsiteID == websiteID }), nil
}

func (s *Store) ListChangesByBatch(_ context.Context, batchID id.BatchID) ([]*changelog.Change, error) {
	defer s.rlock()()
	return s.listChanges(func(c *changelog.Change) bool { return c.BatchID == batchID }), nil
}

// ──────────────────────────────────────────────────
// Transactions and core methods
// ──────────────────────────────────────────────────

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.tx {
		return fn(ctx, s)
	}

	s.writer.Lock()
	defer s.writer.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &Store{mu: s.mu, writer: s.writer, data: work, tx: true}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// Savepoint runs fn and restores the transaction's data set if fn fails.
func (s *Store) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.tx {
		return fn(ctx)
	}
	snapshot := s.data.clone()
	if err := fn(ctx); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
