package placement

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

func checkMoney(field string, m *types.Money) error {
	if m == nil {
		return nil
	}
	if m.Amount < 0 {
		return ValidationError{Field: field, Message: "must not be negative"}
	}
	if m.Currency == "" {
		return ValidationError{Field: field, Message: "currency is required"}
	}
	return nil
}

func normalizeMoney(m *types.Money) *types.Money {
	if m == nil {
		return nil
	}
	return types.New(m.Amount, m.Currency).Ptr()
}

// ──────────────────────────────────────────────────
// Publishers
// ──────────────────────────────────────────────────

// CreatePublisher registers a publisher. Emails are stored lower-cased and
// must be unique; shadow publishers may have none.
func (e *Engine) CreatePublisher(ctx context.Context, p *publisher.Publisher) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Email == "" && !p.IsShadow {
		return ValidationError{Field: "email", Message: "is required"}
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return ValidationError{Field: "email", Message: "is not an email address"}
	}
	if p.AccountStatus == "" {
		p.AccountStatus = publisher.AccountActive
	}
	if p.VerificationStatus == "" {
		p.VerificationStatus = publisher.VerificationUnverified
	}
	if p.ID.IsNil() {
		p.ID = id.NewPublisherID()
	}
	p.Entity = types.NewEntityAt(e.now())

	if p.Email != "" {
		if _, err := e.store.GetPublisherByEmail(ctx, p.Email); err == nil {
			return fmt.Errorf("publisher %s: %w", p.Email, ErrAlreadyExists)
		} else if !IsNotFound(err) {
			return err
		}
	}

	return e.store.CreatePublisher(ctx, p)
}

// GetPublisher retrieves a publisher by ID.
func (e *Engine) GetPublisher(ctx context.Context, publisherID id.PublisherID) (*publisher.Publisher, error) {
	return e.store.GetPublisher(ctx, publisherID)
}

// GetPublisherByEmail retrieves a publisher by email, ignoring case.
func (e *Engine) GetPublisherByEmail(ctx context.Context, email string) (*publisher.Publisher, error) {
	return e.store.GetPublisherByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// ListPublishers lists publishers.
func (e *Engine) ListPublishers(ctx context.Context, opts publisher.ListOpts) ([]*publisher.Publisher, error) {
	return e.store.ListPublishers(ctx, opts)
}

// UpdatePublisher saves changes to a publisher.
func (e *Engine) UpdatePublisher(ctx context.Context, p *publisher.Publisher) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.TouchAt(e.now())
	return e.store.UpdatePublisher(ctx, p)
}

// ──────────────────────────────────────────────────
// Websites
// ──────────────────────────────────────────────────

// CreateWebsite registers a website under its normalized domain.
func (e *Engine) CreateWebsite(ctx context.Context, w *website.Website) error {
	domain := website.NormalizeDomain(w.Domain)
	if domain == "" {
		return ValidationError{Field: "domain", Message: fmt.Sprintf("%q is not a valid domain", w.Domain)}
	}
	w.Domain = domain
	w.CurrentPrice = normalizeMoney(w.CurrentPrice)
	if err := checkMoney("current_price", w.CurrentPrice); err != nil {
		return err
	}
	if w.ID.IsNil() {
		w.ID = id.NewWebsiteID()
	}
	w.Entity = types.NewEntityAt(e.now())

	return e.store.CreateWebsite(ctx, w)
}

// GetWebsite retrieves a website by ID.
func (e *Engine) GetWebsite(ctx context.Context, websiteID id.WebsiteID) (*website.Website, error) {
	return e.store.GetWebsite(ctx, websiteID)
}

// GetWebsiteByDomain accepts any spelling of a domain that normalizes to a
// registered one, e.g. "https://www.Example.com/page".
func (e *Engine) GetWebsiteByDomain(ctx context.Context, domain string) (*website.Website, error) {
	norm := website.NormalizeDomain(domain)
	if norm == "" {
		return nil, ValidationError{Field: "domain", Message: fmt.Sprintf("%q is not a valid domain", domain)}
	}
	return e.store.GetWebsiteByDomain(ctx, norm)
}

// ListWebsites lists websites.
func (e *Engine) ListWebsites(ctx context.Context, opts website.ListOpts) ([]*website.Website, error) {
	return e.store.ListWebsites(ctx, opts)
}

// UpdateWebsite saves descriptive changes to a website. The current price
// is changed only through PromoteDerivedPrice and derivation fields only by
// derivation, so both are carried over from the stored row.
func (e *Engine) UpdateWebsite(ctx context.Context, w *website.Website) error {
	domain := website.NormalizeDomain(w.Domain)
	if domain == "" {
		return ValidationError{Field: "domain", Message: fmt.Sprintf("%q is not a valid domain", w.Domain)}
	}

	cur, err := e.store.GetWebsite(ctx, w.ID)
	if err != nil {
		return err
	}
	if !w.OverrideOfferingID.IsNil() {
		if _, err := e.store.GetOffering(ctx, w.OverrideOfferingID); err != nil {
			return err
		}
	}

	w.Domain = domain
	w.CurrentPrice = cur.CurrentPrice
	w.DerivedPrice = cur.DerivedPrice
	w.PriceCalculationMethod = cur.PriceCalculationMethod
	w.PriceCalculatedAt = cur.PriceCalculatedAt
	w.CreatedAt = cur.CreatedAt
	w.TouchAt(e.now())

	return e.store.UpdateWebsite(ctx, w)
}

// ──────────────────────────────────────────────────
// Offerings
// ──────────────────────────────────────────────────

func checkOffering(o *offering.Offering) error {
	switch o.Type {
	case offering.TypeGuestPost, offering.TypeLinkInsertion, offering.TypeHomepageLink, offering.TypeSponsoredPost:
	default:
		return ValidationError{Field: "type", Message: fmt.Sprintf("unknown offering type %q", o.Type)}
	}
	switch o.Availability {
	case offering.AvailabilityAvailable, offering.AvailabilityLimited, offering.AvailabilityUnavailable:
	default:
		return ValidationError{Field: "availability", Message: fmt.Sprintf("unknown availability %q", o.Availability)}
	}
	if o.TurnaroundDays < 0 {
		return ValidationError{Field: "turnaround_days", Message: "must not be negative"}
	}
	if o.MinWords < 0 || (o.MaxWords > 0 && o.MaxWords < o.MinWords) {
		return ValidationError{Field: "max_words", Message: "word bounds are inconsistent"}
	}
	return checkMoney("base_price", o.BasePrice)
}

// CreateOffering registers an active offering for an existing publisher.
func (e *Engine) CreateOffering(ctx context.Context, o *offering.Offering) error {
	if o.Availability == "" {
		o.Availability = offering.AvailabilityAvailable
	}
	o.BasePrice = normalizeMoney(o.BasePrice)
	if err := checkOffering(o); err != nil {
		return err
	}
	if _, err := e.store.GetPublisher(ctx, o.PublisherID); err != nil {
		return err
	}
	if o.ID.IsNil() {
		o.ID = id.NewOfferingID()
	}
	o.IsActive = true
	o.Entity = types.NewEntityAt(e.now())

	return e.store.CreateOffering(ctx, o)
}

// GetOffering retrieves an offering by ID.
func (e *Engine) GetOffering(ctx context.Context, offeringID id.OfferingID) (*offering.Offering, error) {
	return e.store.GetOffering(ctx, offeringID)
}

// ListOfferings lists offerings.
func (e *Engine) ListOfferings(ctx context.Context, opts offering.ListOpts) ([]*offering.Offering, error) {
	return e.store.ListOfferings(ctx, opts)
}

// UpdateOffering saves changes to an offering. Offerings cannot be
// reactivated through an update once deactivated.
func (e *Engine) UpdateOffering(ctx context.Context, o *offering.Offering) error {
	o.BasePrice = normalizeMoney(o.BasePrice)
	if err := checkOffering(o); err != nil {
		return err
	}
	cur, err := e.store.GetOffering(ctx, o.ID)
	if err != nil {
		return err
	}
	if !cur.IsActive && o.IsActive {
		return &PolicyViolationError{Operation: "update offering", Reason: "offering is deactivated", Err: ErrImmutableField}
	}
	o.PublisherID = cur.PublisherID
	o.CreatedAt = cur.CreatedAt
	o.TouchAt(e.now())
	return e.store.UpdateOffering(ctx, o)
}

// DeactivateOffering soft-deletes an offering. Its rules and relationships
// are kept for pricing history.
func (e *Engine) DeactivateOffering(ctx context.Context, offeringID id.OfferingID) error {
	o, err := e.store.GetOffering(ctx, offeringID)
	if err != nil {
		return err
	}
	if !o.IsActive {
		return nil
	}
	o.IsActive = false
	o.TouchAt(e.now())
	return e.store.UpdateOffering(ctx, o)
}

// ──────────────────────────────────────────────────
// Relationships
// ──────────────────────────────────────────────────

func checkRelationship(r *offering.Relationship) error {
	switch r.Type {
	case offering.RelationshipOwner, offering.RelationshipContact, offering.RelationshipReseller:
	default:
		return ValidationError{Field: "type", Message: fmt.Sprintf("unknown relationship type %q", r.Type)}
	}
	switch r.VerificationStatus {
	case offering.VerificationClaimed, offering.VerificationVerified, offering.VerificationRejected:
	default:
		return ValidationError{Field: "verification_status", Message: fmt.Sprintf("unknown verification status %q", r.VerificationStatus)}
	}
	return checkMoney("custom_price", r.CustomPrice)
}

func ownershipConflict(r *offering.Relationship, detail string) *ConflictError {
	return &ConflictError{
		Resource: "website",
		ID:       r.WebsiteID.String(),
		Detail:   detail,
		Err:      ErrOwnershipConflict,
	}
}

// checkVerifiedOwner enforces one verified owner relationship per
// (publisher, website).
func checkVerifiedOwner(ctx context.Context, s store.Store, r *offering.Relationship) error {
	if !r.IsActive || r.Type != offering.RelationshipOwner || r.VerificationStatus != offering.VerificationVerified {
		return nil
	}
	existing, err := s.ListRelationships(ctx, offering.RelationshipListOpts{
		WebsiteID:   r.WebsiteID,
		PublisherID: r.PublisherID,
		Type:        offering.RelationshipOwner,
		ActiveOnly:  true,
	})
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID != r.ID && other.VerificationStatus == offering.VerificationVerified {
			return ownershipConflict(r, fmt.Sprintf("publisher %s already has verified ownership via %s", r.PublisherID, other.ID))
		}
	}
	return nil
}

func wrapOwnershipErr(r *offering.Relationship, err error) error {
	if errors.Is(err, ErrOwnershipConflict) && !IsConflict(err) {
		return ownershipConflict(r, err.Error())
	}
	return err
}

// CreateRelationship records a publisher's claim on a website. A second
// verified owner relationship for the same publisher and website is a
// ConflictError.
func (e *Engine) CreateRelationship(ctx context.Context, r *offering.Relationship) error {
	if r.Type == "" {
		r.Type = offering.RelationshipOwner
	}
	if r.VerificationStatus == "" {
		r.VerificationStatus = offering.VerificationClaimed
	}
	r.CustomPrice = normalizeMoney(r.CustomPrice)
	if err := checkRelationship(r); err != nil {
		return err
	}
	if r.ID.IsNil() {
		r.ID = id.NewRelationshipID()
	}
	r.IsActive = true
	r.Entity = types.NewEntityAt(e.now())

	return e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetWebsite(ctx, r.WebsiteID); err != nil {
			return err
		}
		if _, err := tx.GetPublisher(ctx, r.PublisherID); err != nil {
			return err
		}
		if !r.OfferingID.IsNil() {
			if _, err := tx.GetOffering(ctx, r.OfferingID); err != nil {
				return err
			}
		}
		if err := checkVerifiedOwner(ctx, tx, r); err != nil {
			return err
		}
		return wrapOwnershipErr(r, tx.CreateRelationship(ctx, r))
	})
}

// GetRelationship retrieves a relationship by ID.
func (e *Engine) GetRelationship(ctx context.Context, relID id.RelationshipID) (*offering.Relationship, error) {
	return e.store.GetRelationship(ctx, relID)
}

// ListRelationships lists relationships.
func (e *Engine) ListRelationships(ctx context.Context, opts offering.RelationshipListOpts) ([]*offering.Relationship, error) {
	return e.store.ListRelationships(ctx, opts)
}

// UpdateRelationship saves descriptive changes to a relationship. The
// subjects of a relationship never change. Verification status and
// relationship type are ownership state: they change only through
// VerifyRelationships and ResolveConflict, which record the change.
func (e *Engine) UpdateRelationship(ctx context.Context, r *offering.Relationship) error {
	r.CustomPrice = normalizeMoney(r.CustomPrice)
	if err := checkRelationship(r); err != nil {
		return err
	}

	return e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		cur, err := tx.GetRelationship(ctx, r.ID)
		if err != nil {
			return err
		}
		if !cur.IsActive && r.IsActive {
			return &PolicyViolationError{Operation: "update relationship", Reason: "relationship is deactivated", Err: ErrImmutableField}
		}
		if r.VerificationStatus != cur.VerificationStatus {
			return &PolicyViolationError{
				Operation: "update relationship",
				Reason:    fmt.Sprintf("verification status is %s; use VerifyRelationships or ResolveConflict", cur.VerificationStatus),
				Err:       ErrImmutableField,
			}
		}
		if r.Type != cur.Type {
			return &PolicyViolationError{
				Operation: "update relationship",
				Reason:    fmt.Sprintf("relationship type is %s", cur.Type),
				Err:       ErrImmutableField,
			}
		}
		r.PublisherID = cur.PublisherID
		r.WebsiteID = cur.WebsiteID
		r.OfferingID = cur.OfferingID
		r.CreatedAt = cur.CreatedAt
		r.TouchAt(e.now())

		if err := checkVerifiedOwner(ctx, tx, r); err != nil {
			return err
		}
		return wrapOwnershipErr(r, tx.UpdateRelationship(ctx, r))
	})
}

// DeactivateRelationship soft-deletes a relationship.
func (e *Engine) DeactivateRelationship(ctx context.Context, relID id.RelationshipID) error {
	r, err := e.store.GetRelationship(ctx, relID)
	if err != nil {
		return err
	}
	if !r.IsActive {
		return nil
	}
	r.IsActive = false
	r.TouchAt(e.now())
	return e.store.UpdateRelationship(ctx, r)
}

// ──────────────────────────────────────────────────
// Pricing rules
// ──────────────────────────────────────────────────

func checkRule(r *pricingrule.Rule) error {
	if strings.TrimSpace(r.Name) == "" {
		return ValidationError{Field: "name", Message: "is required"}
	}
	if r.Type != pricingrule.TypeDiscount && r.Type != pricingrule.TypeSurcharge {
		return ValidationError{Field: "type", Message: fmt.Sprintf("unknown rule type %q", r.Type)}
	}
	if r.Actions.Percent < 0 || r.Actions.Amount < 0 {
		return ValidationError{Field: "actions", Message: "magnitudes must not be negative; the rule type sets the sign"}
	}
	if r.Actions.Percent == 0 && r.Actions.Amount == 0 {
		return ValidationError{Field: "actions", Message: "a percent or amount is required"}
	}
	c := r.Conditions
	if c.MinQuantity < 0 || c.MaxQuantity < 0 || c.MinOrderValue < 0 {
		return ValidationError{Field: "conditions", Message: "bounds must not be negative"}
	}
	if c.MaxQuantity > 0 && c.MaxQuantity < c.MinQuantity {
		return ValidationError{Field: "conditions", Message: "max_quantity is below min_quantity"}
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && !c.ValidFrom.Before(*c.ValidUntil) {
		return ValidationError{Field: "conditions", Message: "valid_from must be before valid_until"}
	}
	return nil
}

// CreatePricingRule attaches a rule to an existing offering.
func (e *Engine) CreatePricingRule(ctx context.Context, r *pricingrule.Rule) error {
	if err := checkRule(r); err != nil {
		return err
	}
	if _, err := e.store.GetOffering(ctx, r.OfferingID); err != nil {
		return err
	}
	if r.ID.IsNil() {
		r.ID = id.NewPricingRuleID()
	}
	r.Entity = types.NewEntityAt(e.now())

	return e.store.CreatePricingRule(ctx, r)
}

// GetPricingRule retrieves a pricing rule by ID.
func (e *Engine) GetPricingRule(ctx context.Context, ruleID id.PricingRuleID) (*pricingrule.Rule, error) {
	return e.store.GetPricingRule(ctx, ruleID)
}

// ListPricingRules lists every rule of an offering in evaluation order.
func (e *Engine) ListPricingRules(ctx context.Context, offeringID id.OfferingID) ([]*pricingrule.Rule, error) {
	return e.store.ListPricingRules(ctx, offeringID)
}

// UpdatePricingRule saves changes to a rule.
func (e *Engine) UpdatePricingRule(ctx context.Context, r *pricingrule.Rule) error {
	if err := checkRule(r); err != nil {
		return err
	}
	cur, err := e.store.GetPricingRule(ctx, r.ID)
	if err != nil {
		return err
	}
	r.OfferingID = cur.OfferingID
	r.CreatedAt = cur.CreatedAt
	r.TouchAt(e.now())
	return e.store.UpdatePricingRule(ctx, r)
}

// ──────────────────────────────────────────────────
// Line items
// ──────────────────────────────────────────────────

// CreateLineItem creates a draft line item at version 1 and records its
// creation in the change log.
func (e *Engine) CreateLineItem(ctx context.Context, li *lineitem.LineItem, actor string) error {
	if err := e.prepareLineItem(li, actor); err != nil {
		return err
	}

	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		return e.insertLineItem(ctx, tx, li, actor, id.Nil)
	})
	if err != nil {
		return err
	}

	e.plugins.EmitLineItemCreated(ctx, li)
	return nil
}

func (e *Engine) prepareLineItem(li *lineitem.LineItem, actor string) error {
	if li.OrderID.IsNil() {
		return ValidationError{Field: "order_id", Message: "is required"}
	}
	if strings.TrimSpace(li.ClientID) == "" {
		return ValidationError{Field: "client_id", Message: "is required"}
	}
	if strings.TrimSpace(actor) == "" {
		return ValidationError{Field: "actor", Message: "is required"}
	}
	if li.ID.IsNil() {
		li.ID = id.NewLineItemID()
	}
	li.Status = lineitem.StatusDraft
	li.PublisherStatus = lineitem.PublisherPending
	li.ClientReviewStatus = lineitem.ReviewPending
	li.AssignedDomain = ""
	li.WebsiteID, li.OfferingID, li.PublisherID = id.Nil, id.Nil, id.Nil
	li.EstimatedPrice, li.ApprovedPrice, li.WholesalePrice, li.FinalPrice = nil, nil, nil, nil
	li.Version = 1
	li.Entity = types.NewEntityAt(e.now())
	return nil
}

func (e *Engine) insertLineItem(ctx context.Context, tx store.Store, li *lineitem.LineItem, actor string, batchID id.BatchID) error {
	if err := tx.CreateLineItem(ctx, li); err != nil {
		return err
	}
	return appendChange(ctx, tx, &changelog.Change{
		LineItemID: li.ID,
		OrderID:    li.OrderID,
		Type:       changelog.TypeCreated,
		NewValue:   li.Snapshot(),
		Actor:      actor,
		BatchID:    batchID,
		Timestamp:  li.UpdatedAt,
		Sequence:   li.Version,
	})
}

// GetLineItem retrieves a line item by ID.
func (e *Engine) GetLineItem(ctx context.Context, lineItemID id.LineItemID) (*lineitem.LineItem, error) {
	return e.store.GetLineItem(ctx, lineItemID)
}

// ListLineItems lists line items.
func (e *Engine) ListLineItems(ctx context.Context, opts lineitem.ListOpts) ([]*lineitem.LineItem, error) {
	return e.store.ListLineItems(ctx, opts)
}
