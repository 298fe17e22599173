package placement

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/store"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// Payload carries the inputs an action needs. Fields an action does not
// use are ignored.
type Payload struct {
	Actor  string
	Reason string

	// submit
	TargetPageURL string
	AnchorText    string

	// assign: the website is named by ID or by any spelling of its domain.
	// PublisherID picks among several relationships offering the same
	// offering on the website.
	Domain      string
	WebsiteID   id.WebsiteID
	OfferingID  id.OfferingID
	PublisherID id.PublisherID
	Quantity    int

	// accept, deliver, complete
	PublisherAcceptedAt *time.Time
	DeliveryURL         string
	DeliveredAt         *time.Time
	FinalPrice          *types.Money

	// Metadata is merged into the line item's non-authoritative annotations.
	Metadata map[string]any
}

// TransitionRequest is one line-item transition.
type TransitionRequest struct {
	LineItemID      id.LineItemID
	ExpectedVersion int64
	Action          lineitem.Action
	Payload         Payload
}

// Metadata keys written by re-pricing.
const (
	MetaPricingStrategy = "pricing_strategy"
	MetaDerivedPrice    = "derived_price"
	MetaDerivationError = "derivation_error"
	MetaAppliedRules    = "applied_rules"
)

// TransitionLineItem applies action to a line item. The checks run in a
// fixed order: a stale expectedVersion is a ConflictError, an action the
// current status does not allow is a PolicyViolationError and missing
// payload is a ValidationError. On success the version grows by one and
// exactly one change is recorded in the same transaction.
func (e *Engine) TransitionLineItem(ctx context.Context, lineItemID id.LineItemID, expectedVersion int64, action lineitem.Action, p Payload) (*lineitem.LineItem, error) {
	req := TransitionRequest{LineItemID: lineItemID, ExpectedVersion: expectedVersion, Action: action, Payload: p}

	var (
		li   *lineitem.LineItem
		from lineitem.Status
	)
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		li, from, err = e.transition(ctx, tx, req, id.Nil)
		return err
	})
	if err != nil {
		e.logger.Debug("line item transition rejected",
			"line_item_id", lineItemID,
			"action", action,
			"error", err,
		)
		if !IsNotFound(err) {
			e.plugins.EmitTransitionRejected(ctx, lineItemID, action, err)
		}
		return nil, err
	}

	e.logger.Debug("line item transitioned",
		"line_item_id", li.ID,
		"action", action,
		"from", from,
		"to", li.Status,
		"version", li.Version,
	)
	e.plugins.EmitLineItemTransitioned(ctx, li, action, from)
	return li, nil
}

// AllowedActions lists the actions a line item's current status accepts.
func (e *Engine) AllowedActions(ctx context.Context, lineItemID id.LineItemID) ([]lineitem.Action, error) {
	li, err := e.store.GetLineItem(ctx, lineItemID)
	if err != nil {
		return nil, err
	}
	return lineitem.Allowed(li.Status), nil
}

func (e *Engine) transition(ctx context.Context, tx store.Store, req TransitionRequest, batchID id.BatchID) (*lineitem.LineItem, lineitem.Status, error) {
	cur, err := tx.GetLineItem(ctx, req.LineItemID)
	if err != nil {
		return nil, "", err
	}
	if cur.Version != req.ExpectedVersion {
		return nil, cur.Status, versionConflict("line_item", cur.ID, req.ExpectedVersion, cur.Version)
	}
	if !req.Action.Valid() {
		return nil, cur.Status, ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", req.Action)}
	}
	to, ok := lineitem.Next(cur.Status, req.Action)
	if !ok {
		return nil, cur.Status, &PolicyViolationError{
			Operation: string(req.Action),
			Reason:    fmt.Sprintf("line item %s is %s; allowed actions: %v", cur.ID, cur.Status, lineitem.Allowed(cur.Status)),
			Err:       ErrIllegalTransition,
		}
	}

	p := req.Payload
	if strings.TrimSpace(p.Actor) == "" {
		return nil, cur.Status, ValidationError{Field: "actor", Message: "is required"}
	}

	now := latest(e.now(), cur.UpdatedAt)
	next := *cur
	next.Metadata = maps.Clone(cur.Metadata)

	if err := e.applyAction(ctx, tx, cur, &next, req.Action, p, now); err != nil {
		return nil, cur.Status, err
	}
	if len(p.Metadata) > 0 {
		if next.Metadata == nil {
			next.Metadata = make(map[string]any, len(p.Metadata))
		}
		maps.Copy(next.Metadata, p.Metadata)
	}
	next.Status = to

	if err := e.write(ctx, tx, cur, &next, changelog.Type(req.Action), p.Actor, p.Reason, batchID, now); err != nil {
		return nil, cur.Status, err
	}
	return &next, cur.Status, nil
}

// write persists next over cur with a version check and records one change.
func (e *Engine) write(ctx context.Context, tx store.Store, cur, next *lineitem.LineItem, ct changelog.Type, actor, reason string, batchID id.BatchID, now time.Time) error {
	if cur.ApprovedPrice != nil && !types.EqualPtr(cur.ApprovedPrice, next.ApprovedPrice) {
		return &PolicyViolationError{Operation: string(ct), Reason: "approved price is fixed once approved", Err: ErrImmutableField}
	}

	next.Version = cur.Version + 1
	next.UpdatedAt = now

	if err := tx.UpdateLineItem(ctx, next, cur.Version); err != nil {
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		actual := cur.Version
		if stored, gerr := tx.GetLineItem(ctx, cur.ID); gerr == nil {
			actual = stored.Version
		}
		return versionConflict("line_item", cur.ID, cur.Version, actual)
	}

	return appendChange(ctx, tx, &changelog.Change{
		LineItemID:    next.ID,
		OrderID:       next.OrderID,
		WebsiteID:     next.WebsiteID,
		Type:          ct,
		PreviousValue: cur.Snapshot(),
		NewValue:      next.Snapshot(),
		Actor:         actor,
		Reason:        reason,
		BatchID:       batchID,
		Timestamp:     now,
		Sequence:      next.Version,
	})
}

func (e *Engine) applyAction(ctx context.Context, tx store.Store, cur, next *lineitem.LineItem, action lineitem.Action, p Payload, now time.Time) error {
	switch action {
	case lineitem.ActionSubmit:
		if p.TargetPageURL != "" {
			next.TargetPageURL = p.TargetPageURL
		}
		if p.AnchorText != "" {
			next.AnchorText = p.AnchorText
		}
		if next.TargetPageURL == "" {
			return ValidationError{Field: "target_page_url", Message: "is required to submit"}
		}
		if err := checkURL("target_page_url", next.TargetPageURL); err != nil {
			return err
		}
		if strings.TrimSpace(next.AnchorText) == "" {
			return ValidationError{Field: "anchor_text", Message: "is required to submit"}
		}

	case lineitem.ActionAssign:
		return e.assign(ctx, tx, next, p, now)

	case lineitem.ActionApprove:
		if cur.ApprovedPrice != nil {
			return &PolicyViolationError{Operation: string(action), Reason: "line item already carries an approved price", Err: ErrImmutableField}
		}
		if next.EstimatedPrice == nil {
			return ValidationError{Field: "estimated_price", Message: "no estimated price to approve"}
		}
		approved := *next.EstimatedPrice
		next.ApprovedPrice = &approved
		next.ApprovedBy = p.Actor
		next.ApprovedAt = &now
		next.ClientReviewStatus = lineitem.ReviewApproved
		next.PublisherStatus = lineitem.PublisherNotified

	case lineitem.ActionAccept:
		at := p.PublisherAcceptedAt
		if at == nil {
			at = cur.PublisherAcceptedAt
		}
		if at == nil {
			return ValidationError{Field: "publisher_accepted_at", Message: "is required to accept"}
		}
		t := at.UTC()
		next.PublisherAcceptedAt = &t
		next.PublisherStatus = lineitem.PublisherAccepted

	case lineitem.ActionDeliver:
		if p.DeliveryURL != "" {
			next.DeliveryURL = p.DeliveryURL
		}
		if next.DeliveryURL == "" {
			return ValidationError{Field: "delivery_url", Message: "is required to deliver"}
		}
		if err := checkURL("delivery_url", next.DeliveryURL); err != nil {
			return err
		}
		at := p.DeliveredAt
		if at == nil {
			at = cur.DeliveredAt
		}
		if at == nil {
			return ValidationError{Field: "delivered_at", Message: "is required to deliver"}
		}
		t := at.UTC()
		next.DeliveredAt = &t

	case lineitem.ActionComplete:
		final := normalizeMoney(p.FinalPrice)
		if final == nil && next.ApprovedPrice != nil {
			c := *next.ApprovedPrice
			final = &c
		}
		if final == nil {
			return ValidationError{Field: "final_price", Message: "is required to complete"}
		}
		if err := checkMoney("final_price", final); err != nil {
			return err
		}
		if next.ApprovedPrice != nil && !final.SameCurrency(*next.ApprovedPrice) {
			return ValidationError{Field: "final_price", Message: fmt.Sprintf("currency %s differs from approved %s", final.Currency, next.ApprovedPrice.Currency)}
		}
		next.FinalPrice = final
		next.CompletedAt = &now

	case lineitem.ActionCancel:
		if strings.TrimSpace(p.Reason) == "" {
			return ValidationError{Field: "reason", Message: "a cancellation reason is required"}
		}
		next.CancellationReason = p.Reason
		next.CancelledAt = &now

	case lineitem.ActionRefund, lineitem.ActionDispute:
		if strings.TrimSpace(p.Reason) == "" {
			return ValidationError{Field: "reason", Message: fmt.Sprintf("a reason is required to %s", action)}
		}
		next.ExceptionReason = p.Reason
	}
	return nil
}

func checkURL(field, raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError{Field: field, Message: fmt.Sprintf("%q is not an http(s) URL", raw)}
	}
	return nil
}

// assign binds a website, offering and publisher to the line item and
// re-prices it when the website or offering changed.
func (e *Engine) assign(ctx context.Context, tx store.Store, next *lineitem.LineItem, p Payload, now time.Time) error {
	w, err := assignedWebsite(ctx, tx, next, p)
	if err != nil {
		return err
	}

	offeringID := p.OfferingID
	if offeringID.IsNil() {
		offeringID = next.OfferingID
	}
	if offeringID.IsNil() {
		return ValidationError{Field: "offering_id", Message: "is required to assign"}
	}
	o, err := tx.GetOffering(ctx, offeringID)
	if err != nil {
		return err
	}
	if !o.IsActive {
		return ValidationError{Field: "offering_id", Message: fmt.Sprintf("offering %s is not active", o.ID)}
	}

	rel, err := assignedRelationship(ctx, tx, w, o, p.PublisherID)
	if err != nil {
		return err
	}
	pub, err := tx.GetPublisher(ctx, rel.PublisherID)
	if err != nil {
		return err
	}
	if !pub.IsActive() {
		return &PolicyViolationError{Operation: "assign", Reason: fmt.Sprintf("publisher %s is %s", pub.ID, pub.AccountStatus), Err: ErrIllegalTransition}
	}

	changed := next.WebsiteID != w.ID || next.OfferingID != o.ID
	if next.PublisherID != pub.ID {
		next.PublisherStatus = lineitem.PublisherPending
	}
	next.AssignedDomain = w.Domain
	next.WebsiteID = w.ID
	next.OfferingID = o.ID
	next.PublisherID = pub.ID

	if !changed && next.EstimatedPrice != nil && p.Quantity == 0 {
		return nil
	}
	return e.reprice(ctx, tx, next, w, o, rel, p.Quantity, now)
}

func assignedWebsite(ctx context.Context, tx store.Store, next *lineitem.LineItem, p Payload) (*website.Website, error) {
	switch {
	case !p.WebsiteID.IsNil():
		return tx.GetWebsite(ctx, p.WebsiteID)
	case p.Domain != "":
		domain := website.NormalizeDomain(p.Domain)
		if domain == "" {
			return nil, ValidationError{Field: "domain", Message: fmt.Sprintf("%q is not a valid domain", p.Domain)}
		}
		return tx.GetWebsiteByDomain(ctx, domain)
	case !next.WebsiteID.IsNil():
		return tx.GetWebsite(ctx, next.WebsiteID)
	default:
		return nil, ValidationError{Field: "domain", Message: "is required to assign"}
	}
}

// assignedRelationship finds the live relationship offering o on w.
func assignedRelationship(ctx context.Context, tx store.Store, w *website.Website, o *offering.Offering, publisherID id.PublisherID) (*offering.Relationship, error) {
	rels, err := tx.ListRelationships(ctx, offering.RelationshipListOpts{
		WebsiteID:  w.ID,
		OfferingID: o.ID,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	for _, r := range rels {
		if r.VerificationStatus == offering.VerificationRejected {
			continue
		}
		if publisherID.IsNil() || r.PublisherID == publisherID {
			return r, nil
		}
	}
	if !publisherID.IsNil() {
		return nil, ValidationError{Field: "publisher_id", Message: fmt.Sprintf("publisher %s does not offer %s on %s", publisherID, o.ID, w.Domain)}
	}
	return nil, ValidationError{Field: "offering_id", Message: fmt.Sprintf("offering %s is not offered on %s", o.ID, w.Domain)}
}

// reprice sets the estimated and wholesale prices from the rule engine and
// annotates the website's derived price. A failed derivation is recorded
// in metadata and never fails the transition.
func (e *Engine) reprice(ctx context.Context, tx store.Store, next *lineitem.LineItem, w *website.Website, o *offering.Offering, rel *offering.Relationship, quantity int, now time.Time) error {
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return ValidationError{Field: "quantity", Message: "must be positive"}
	}

	res, err := evaluateOffering(ctx, tx, o, pricingrule.Context{Quantity: quantity, ClientID: next.ClientID, At: now})
	if err != nil {
		return err
	}
	next.EstimatedPrice = res.FinalPrice.Ptr()
	if rel.CustomPrice != nil {
		next.WholesalePrice = normalizeMoney(rel.CustomPrice)
	} else {
		next.WholesalePrice = normalizeMoney(o.BasePrice)
	}

	if next.Metadata == nil {
		next.Metadata = make(map[string]any)
	}
	next.Metadata[MetaAppliedRules] = res.RuleNames()

	strategy := e.storedStrategy(w)
	next.Metadata[MetaPricingStrategy] = string(strategy)
	delete(next.Metadata, MetaDerivationError)

	d, derr := derive(ctx, tx, w, strategy, id.Nil, now)
	switch {
	case derr == nil:
		next.Metadata[MetaDerivedPrice] = moneyValue(d.Price)
	case IsComputation(derr) || IsValidation(derr):
		e.logger.Warn("derived price unavailable for line item",
			"line_item_id", next.ID,
			"website_id", w.ID,
			"error", derr,
		)
		next.Metadata[MetaDerivedPrice] = nil
		next.Metadata[MetaDerivationError] = derr.Error()
	default:
		return derr
	}
	return nil
}

// ──────────────────────────────────────────────────
// Orthogonal statuses
// ──────────────────────────────────────────────────

// SetClientReviewStatus records the client's review outcome without
// changing the fulfillment status. It is a versioned write like any
// transition.
func (e *Engine) SetClientReviewStatus(ctx context.Context, lineItemID id.LineItemID, expectedVersion int64, status lineitem.ClientReviewStatus, actor, reason string) (*lineitem.LineItem, error) {
	switch status {
	case lineitem.ReviewPending, lineitem.ReviewApproved, lineitem.ReviewRejected, lineitem.ReviewChangesRequested:
	default:
		return nil, ValidationError{Field: "client_review_status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	return e.setStatus(ctx, lineItemID, expectedVersion, changelog.TypeClientReview, actor, reason, func(li *lineitem.LineItem) {
		li.ClientReviewStatus = status
	})
}

// SetPublisherStatus records the publisher's response without changing the
// fulfillment status.
func (e *Engine) SetPublisherStatus(ctx context.Context, lineItemID id.LineItemID, expectedVersion int64, status lineitem.PublisherStatus, actor, reason string) (*lineitem.LineItem, error) {
	switch status {
	case lineitem.PublisherPending, lineitem.PublisherNotified, lineitem.PublisherAccepted, lineitem.PublisherRejected:
	default:
		return nil, ValidationError{Field: "publisher_status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	return e.setStatus(ctx, lineItemID, expectedVersion, changelog.TypePublisherResponse, actor, reason, func(li *lineitem.LineItem) {
		li.PublisherStatus = status
		if status == lineitem.PublisherAccepted && li.PublisherAcceptedAt == nil {
			t := li.UpdatedAt
			li.PublisherAcceptedAt = &t
		}
	})
}

func (e *Engine) setStatus(ctx context.Context, lineItemID id.LineItemID, expectedVersion int64, ct changelog.Type, actor, reason string, apply func(*lineitem.LineItem)) (*lineitem.LineItem, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, ValidationError{Field: "actor", Message: "is required"}
	}

	var next lineitem.LineItem
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		cur, err := tx.GetLineItem(ctx, lineItemID)
		if err != nil {
			return err
		}
		if cur.Version != expectedVersion {
			return versionConflict("line_item", cur.ID, expectedVersion, cur.Version)
		}
		if cur.Status.IsTerminal() {
			return &PolicyViolationError{Operation: string(ct), Reason: fmt.Sprintf("line item %s is %s", cur.ID, cur.Status), Err: ErrIllegalTransition}
		}

		now := latest(e.now(), cur.UpdatedAt)
		next = *cur
		next.Metadata = maps.Clone(cur.Metadata)
		next.UpdatedAt = now
		apply(&next)
		return e.write(ctx, tx, cur, &next, ct, actor, reason, id.Nil, now)
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}
