// Package changelog defines the append-only audit record of line-item and
// ownership changes.
package changelog

import (
	"cmp"
	"slices"
	"time"

	"github.com/xraph/placement/id"
)

// Type classifies a change. Line-item transitions use the action name.
type Type string

const (
	TypeCreated              Type = "created"
	TypeOwnershipResolved    Type = "ownership_resolved"
	TypePricePromoted        Type = "price_promoted"
	TypeRelationshipVerified Type = "relationship_verified"
	TypeClientReview         Type = "client_review"
	TypePublisherResponse    Type = "publisher_response"
)

// Change is one immutable audit row. Subjects that do not apply are Nil.
// Sequence orders entries that share a timestamp; for line-item changes it
// is the version the change produced.
type Change struct {
	ID            id.ChangeID    `json:"id"`
	LineItemID    id.LineItemID  `json:"line_item_id"`
	OrderID       id.OrderID     `json:"order_id"`
	WebsiteID     id.WebsiteID   `json:"website_id"`
	Type          Type           `json:"change_type"`
	PreviousValue map[string]any `json:"previous_value,omitempty"`
	NewValue      map[string]any `json:"new_value,omitempty"`
	Actor         string         `json:"actor"`
	Reason        string         `json:"reason,omitempty"`
	BatchID       id.BatchID     `json:"batch_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Sequence      int64          `json:"sequence"`
}

// Sort orders changes by timestamp, then sequence, then id.
func Sort(changes []*Change) {
	slices.SortStableFunc(changes, func(a, b *Change) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Sequence, b.Sequence); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
}
