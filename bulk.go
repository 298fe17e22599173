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
	"github.com/xraph/placement/store"
	"github.com/xraph/placement/website"
)

// Bulk operation names reported to OnBatchCompleted.
const (
	OpBulkTransition      = "bulk_transition"
	OpAddDomainsToOrder   = "add_domains_to_order"
	OpVerifyRelationships = "verify_relationships"
)

// BulkOpts applies to every item of a bulk operation. Actor is used for
// items whose payload names none.
type BulkOpts struct {
	Actor  string
	Reason string
}

// BatchResult is the committed outcome of a line-item bulk operation.
type BatchResult struct {
	BatchID   id.BatchID           `json:"batch_id"`
	LineItems []*lineitem.LineItem `json:"line_items"`
}

// VerificationResult is the committed outcome of VerifyRelationships.
type VerificationResult struct {
	BatchID       id.BatchID               `json:"batch_id"`
	Relationships []*offering.Relationship `json:"relationships"`
}

// DomainSelection is one domain added to an order. An empty OfferingID
// takes the offering the website's derivation strategy selects.
type DomainSelection struct {
	Domain        string
	OfferingID    id.OfferingID
	PublisherID   id.PublisherID
	TargetPageURL string
	AnchorText    string
	Quantity      int
}

// runBatch runs fn for every item inside one transaction and rolls the
// whole batch back if any item fails. Each item runs behind a savepoint
// when the store has them, so every item is attempted and the BatchError
// names all failures. Without savepoints a store error may have aborted
// the transaction, so the batch stops at the first failure that is not a
// rejection decided before any write.
func (e *Engine) runBatch(ctx context.Context, op string, n int, fn func(ctx context.Context, tx store.Store, batchID id.BatchID, i int) (string, error)) (id.BatchID, error) {
	batchID := id.NewBatchID()
	if n == 0 {
		return batchID, ValidationError{Field: "items", Message: "a batch needs at least one item"}
	}

	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		sp, isolated := tx.(store.Savepointer)
		berr := &BatchError{BatchID: batchID}
		for i := 0; i < n; i++ {
			var itemID string
			run := func(ctx context.Context) error {
				var err error
				itemID, err = fn(ctx, tx, batchID, i)
				return err
			}

			var err error
			if isolated {
				err = sp.Savepoint(ctx, run)
			} else {
				err = run(ctx)
			}
			if err == nil {
				continue
			}
			berr.Failures = append(berr.Failures, BatchFailure{Index: i, ItemID: itemID, Err: err})
			if !isolated && !isRejection(err) {
				break
			}
		}
		if len(berr.Failures) > 0 {
			return berr
		}
		return nil
	})

	var berr *BatchError
	switch {
	case err == nil:
		e.logger.Info("batch committed", "batch_id", batchID, "operation", op, "items", n)
	case errors.As(err, &berr):
		e.logger.Warn("batch rolled back",
			"batch_id", batchID,
			"operation", op,
			"items", n,
			"failed", len(berr.Failures),
		)
	default:
		e.logger.Warn("batch failed", "batch_id", batchID, "operation", op, "error", err)
	}
	e.plugins.EmitBatchCompleted(ctx, batchID, op, n, err)
	return batchID, err
}

// isRejection reports whether err was decided by the engine from state it
// read, rather than returned by a failed write.
func isRejection(err error) bool {
	switch {
	case IsValidation(err), IsPolicyViolation(err), IsNotFound(err):
		return true
	case IsConflict(err):
		return errors.Is(err, ErrVersionConflict)
	default:
		return false
	}
}

// BulkTransition applies every request under one batch ID, all or nothing.
func (e *Engine) BulkTransition(ctx context.Context, reqs []TransitionRequest, opts BulkOpts) (*BatchResult, error) {
	items := make([]*lineitem.LineItem, len(reqs))
	froms := make([]lineitem.Status, len(reqs))

	batchID, err := e.runBatch(ctx, OpBulkTransition, len(reqs), func(ctx context.Context, tx store.Store, batchID id.BatchID, i int) (string, error) {
		req := reqs[i]
		if req.Payload.Actor == "" {
			req.Payload.Actor = opts.Actor
		}
		if req.Payload.Reason == "" {
			req.Payload.Reason = opts.Reason
		}
		li, from, err := e.transition(ctx, tx, req, batchID)
		if err != nil {
			return req.LineItemID.String(), err
		}
		items[i], froms[i] = li, from
		return li.ID.String(), nil
	})
	if err != nil {
		return nil, err
	}

	for i, li := range items {
		e.plugins.EmitLineItemTransitioned(ctx, li, reqs[i].Action, froms[i])
	}
	return &BatchResult{BatchID: batchID, LineItems: items}, nil
}

// AddDomainsToOrder creates one assigned line item per selection: each is
// created, submitted and assigned under one batch ID, all or nothing. A
// domain already live on the order fails its item.
func (e *Engine) AddDomainsToOrder(ctx context.Context, orderID id.OrderID, clientID string, sels []DomainSelection, opts BulkOpts) (*BatchResult, error) {
	if orderID.IsNil() {
		return nil, ValidationError{Field: "order_id", Message: "is required"}
	}
	if strings.TrimSpace(opts.Actor) == "" {
		return nil, ValidationError{Field: "actor", Message: "is required"}
	}

	items := make([]*lineitem.LineItem, len(sels))
	batchID, err := e.runBatch(ctx, OpAddDomainsToOrder, len(sels), func(ctx context.Context, tx store.Store, batchID id.BatchID, i int) (string, error) {
		sel := sels[i]
		li, err := e.addDomain(ctx, tx, orderID, clientID, sel, opts, batchID)
		if err != nil {
			return sel.Domain, err
		}
		items[i] = li
		return li.ID.String(), nil
	})
	if err != nil {
		return nil, err
	}

	for _, li := range items {
		e.plugins.EmitLineItemCreated(ctx, li)
	}
	return &BatchResult{BatchID: batchID, LineItems: items}, nil
}

func (e *Engine) addDomain(ctx context.Context, tx store.Store, orderID id.OrderID, clientID string, sel DomainSelection, opts BulkOpts, batchID id.BatchID) (*lineitem.LineItem, error) {
	domain := website.NormalizeDomain(sel.Domain)
	if domain == "" {
		return nil, ValidationError{Field: "domain", Message: fmt.Sprintf("%q is not a valid domain", sel.Domain)}
	}
	w, err := tx.GetWebsiteByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}

	existing, err := tx.ListLineItems(ctx, lineitem.ListOpts{OrderID: orderID, WebsiteID: w.ID})
	if err != nil {
		return nil, err
	}
	for _, li := range existing {
		if !li.Status.IsTerminal() {
			return nil, &PolicyViolationError{
				Operation: OpAddDomainsToOrder,
				Reason:    fmt.Sprintf("%s is already on order %s as %s", domain, orderID, li.ID),
				Err:       ErrAlreadyExists,
			}
		}
	}

	offeringID := sel.OfferingID
	if offeringID.IsNil() {
		d, err := derive(ctx, tx, w, e.storedStrategy(w), id.Nil, e.now())
		if err != nil {
			return nil, err
		}
		if d.Price == nil {
			return nil, &ComputationError{WebsiteID: w.ID.String(), Reason: "no eligible offering for " + domain, Err: ErrNoEligibleOffering}
		}
		offeringID = d.OfferingID
	}

	li := &lineitem.LineItem{OrderID: orderID, ClientID: clientID}
	if err := e.prepareLineItem(li, opts.Actor); err != nil {
		return nil, err
	}
	if err := e.insertLineItem(ctx, tx, li, opts.Actor, batchID); err != nil {
		return nil, err
	}

	steps := []TransitionRequest{
		{Action: lineitem.ActionSubmit, Payload: Payload{TargetPageURL: sel.TargetPageURL, AnchorText: sel.AnchorText}},
		{Action: lineitem.ActionAssign, Payload: Payload{WebsiteID: w.ID, OfferingID: offeringID, PublisherID: sel.PublisherID, Quantity: sel.Quantity}},
	}
	for _, step := range steps {
		step.LineItemID = li.ID
		step.ExpectedVersion = li.Version
		step.Payload.Actor = opts.Actor
		step.Payload.Reason = opts.Reason
		if li, _, err = e.transition(ctx, tx, step, batchID); err != nil {
			return nil, err
		}
	}
	return li, nil
}

// VerifyRelationships marks relationships verified under one batch ID, all
// or nothing. Verifying an owner claim while another publisher holds a
// live claim on the same website fails that item with a ConflictError;
// such conflicts go through ResolveConflict instead.
func (e *Engine) VerifyRelationships(ctx context.Context, relIDs []id.RelationshipID, opts BulkOpts) (*VerificationResult, error) {
	if strings.TrimSpace(opts.Actor) == "" {
		return nil, ValidationError{Field: "actor", Message: "is required"}
	}

	rels := make([]*offering.Relationship, len(relIDs))
	batchID, err := e.runBatch(ctx, OpVerifyRelationships, len(relIDs), func(ctx context.Context, tx store.Store, batchID id.BatchID, i int) (string, error) {
		r, err := e.verify(ctx, tx, relIDs[i], opts, batchID)
		if err != nil {
			return relIDs[i].String(), err
		}
		rels[i] = r
		return r.ID.String(), nil
	})
	if err != nil {
		return nil, err
	}
	return &VerificationResult{BatchID: batchID, Relationships: rels}, nil
}

func (e *Engine) verify(ctx context.Context, tx store.Store, relID id.RelationshipID, opts BulkOpts, batchID id.BatchID) (*offering.Relationship, error) {
	r, err := tx.GetRelationship(ctx, relID)
	if err != nil {
		return nil, err
	}
	if !r.IsActive {
		return nil, &PolicyViolationError{Operation: "verify", Reason: fmt.Sprintf("relationship %s is deactivated", r.ID), Err: ErrIllegalTransition}
	}
	switch r.VerificationStatus {
	case offering.VerificationVerified:
		return r, nil
	case offering.VerificationRejected:
		return nil, &PolicyViolationError{Operation: "verify", Reason: fmt.Sprintf("relationship %s was rejected", r.ID), Err: ErrIllegalTransition}
	}

	if r.Type == offering.RelationshipOwner {
		report, err := detectConflicts(ctx, tx, r.WebsiteID)
		if err != nil {
			return nil, err
		}
		for _, c := range report.Claimants {
			if c.ID != r.ID && c.PublisherID != r.PublisherID {
				return nil, ownershipConflict(r, fmt.Sprintf("publisher %s also claims ownership via %s", c.PublisherID, c.ID))
			}
		}
	}

	next := *r
	next.VerificationStatus = offering.VerificationVerified
	now := e.now()
	next.TouchAt(now)
	if err := checkVerifiedOwner(ctx, tx, &next); err != nil {
		return nil, err
	}
	if err := tx.UpdateRelationship(ctx, &next); err != nil {
		return nil, wrapOwnershipErr(&next, err)
	}

	err = appendChange(ctx, tx, &changelog.Change{
		WebsiteID:     r.WebsiteID,
		Type:          changelog.TypeRelationshipVerified,
		PreviousValue: claimSummary(r),
		NewValue:      claimSummary(&next),
		Actor:         opts.Actor,
		Reason:        opts.Reason,
		BatchID:       batchID,
		Timestamp:     now,
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}
