package lineitem

import (
	"time"

	"github.com/xraph/placement/id"
	"github.com/xraph/placement/types"
)

// Status is the fulfillment status of a line item.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingSelection Status = "pending_selection"
	StatusSelected         Status = "selected"
	StatusApproved         Status = "approved"
	StatusInProgress       Status = "in_progress"
	StatusDelivered        Status = "delivered"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
	StatusRefunded         Status = "refunded"
	StatusDisputed         Status = "disputed"
)

// IsTerminal reports whether no further forward progress is possible.
// Completed items may still be refunded or disputed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded, StatusDisputed:
		return true
	default:
		return false
	}
}

// PublisherStatus tracks the assigned publisher's acceptance of the work.
type PublisherStatus string

const (
	PublisherPending  PublisherStatus = "pending"
	PublisherNotified PublisherStatus = "notified"
	PublisherAccepted PublisherStatus = "accepted"
	PublisherRejected PublisherStatus = "rejected"
)

// ClientReviewStatus tracks the client's review of the selected placement.
type ClientReviewStatus string

const (
	ReviewPending          ClientReviewStatus = "pending"
	ReviewApproved         ClientReviewStatus = "approved"
	ReviewRejected         ClientReviewStatus = "rejected"
	ReviewChangesRequested ClientReviewStatus = "changes_requested"
)

// LineItem is one link placement within an order. Version is incremented
// by exactly one on every successful write.
type LineItem struct {
	types.Entity
	ID                 id.LineItemID      `json:"id"`
	OrderID            id.OrderID         `json:"order_id"`
	ClientID           string             `json:"client_id"`
	TargetPageURL      string             `json:"target_page_url,omitempty"`
	AnchorText         string             `json:"anchor_text,omitempty"`
	Status             Status             `json:"status"`
	PublisherStatus    PublisherStatus    `json:"publisher_status"`
	ClientReviewStatus ClientReviewStatus `json:"client_review_status"`

	AssignedDomain string         `json:"assigned_domain,omitempty"`
	WebsiteID      id.WebsiteID   `json:"website_id"`
	OfferingID     id.OfferingID  `json:"offering_id"`
	PublisherID    id.PublisherID `json:"publisher_id"`

	EstimatedPrice *types.Money `json:"estimated_price,omitempty"`
	ApprovedPrice  *types.Money `json:"approved_price,omitempty"`
	WholesalePrice *types.Money `json:"wholesale_price,omitempty"`
	FinalPrice     *types.Money `json:"final_price,omitempty"`

	ApprovedBy          string     `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`
	PublisherAcceptedAt *time.Time `json:"publisher_accepted_at,omitempty"`
	DeliveryURL         string     `json:"delivery_url,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason  string     `json:"cancellation_reason,omitempty"`
	ExceptionReason     string     `json:"exception_reason,omitempty"`

	Version  int64          `json:"version"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Assigned reports whether a website, offering and publisher are all set.
func (li *LineItem) Assigned() bool {
	return !li.WebsiteID.IsNil() && !li.OfferingID.IsNil() && !li.PublisherID.IsNil()
}

// Snapshot returns the audited view of li: the fields a change entry
// records as previous and new value.
func (li *LineItem) Snapshot() map[string]any {
	s := map[string]any{
		"status":               string(li.Status),
		"publisher_status":     string(li.PublisherStatus),
		"client_review_status": string(li.ClientReviewStatus),
		"version":              li.Version,
	}
	if li.AssignedDomain != "" {
		s["assigned_domain"] = li.AssignedDomain
	}
	if !li.WebsiteID.IsNil() {
		s["website_id"] = li.WebsiteID.String()
	}
	if !li.OfferingID.IsNil() {
		s["offering_id"] = li.OfferingID.String()
	}
	if !li.PublisherID.IsNil() {
		s["publisher_id"] = li.PublisherID.String()
	}
	putMoney(s, "estimated_price", li.EstimatedPrice)
	putMoney(s, "approved_price", li.ApprovedPrice)
	putMoney(s, "wholesale_price", li.WholesalePrice)
	putMoney(s, "final_price", li.FinalPrice)
	if li.DeliveryURL != "" {
		s["delivery_url"] = li.DeliveryURL
	}
	if li.CancellationReason != "" {
		s["cancellation_reason"] = li.CancellationReason
	}
	if li.ExceptionReason != "" {
		s["exception_reason"] = li.ExceptionReason
	}
	return s
}

func putMoney(s map[string]any, key string, m *types.Money) {
	if m == nil {
		return
	}
	s[key] = map[string]any{"amount": m.Amount, "currency": m.Currency}
}
