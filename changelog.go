package placement

import (
	"context"
	"strings"

	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/store"
)

// appendChange is the only writer of the change log. Callers pass the
// transactional store so the entry commits with the state it describes.
func appendChange(ctx context.Context, tx store.Store, c *changelog.Change) error {
	if c.Type == "" {
		return ValidationError{Field: "change_type", Message: "is required"}
	}
	if strings.TrimSpace(c.Actor) == "" {
		return ValidationError{Field: "actor", Message: "is required"}
	}
	if c.LineItemID.IsNil() && c.WebsiteID.IsNil() {
		return ValidationError{Field: "subject", Message: "a line item or website is required"}
	}
	if c.ID.IsNil() {
		c.ID = id.NewChangeID()
	}
	c.Timestamp = c.Timestamp.UTC()
	return tx.AppendChange(ctx, c)
}

// History returns every change of a line item ordered by timestamp, then
// by the version each change produced.
func (e *Engine) History(ctx context.Context, lineItemID id.LineItemID) ([]*changelog.Change, error) {
	if _, err := e.store.GetLineItem(ctx, lineItemID); err != nil {
		return nil, err
	}
	return e.store.ListChangesForLineItem(ctx, lineItemID)
}

// ByBatch returns every change written by one bulk operation.
func (e *Engine) ByBatch(ctx context.Context, batchID id.BatchID) ([]*changelog.Change, error) {
	if batchID.IsNil() {
		return nil, ValidationError{Field: "batch_id", Message: "is required"}
	}
	return e.store.ListChangesByBatch(ctx, batchID)
}

// WebsiteHistory returns ownership, promotion and verification changes of a
// website together with transitions of line items placed on it.
func (e *Engine) WebsiteHistory(ctx context.Context, websiteID id.WebsiteID) ([]*changelog.Change, error) {
	if _, err := e.store.GetWebsite(ctx, websiteID); err != nil {
		return nil, err
	}
	return e.store.ListChangesForWebsite(ctx, websiteID)
}
