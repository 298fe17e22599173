package mongo

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/publisher"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// ==================== Shared sub-documents ====================

type moneyModel struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func toMoneyModel(m *types.Money) *moneyModel {
	if m == nil {
		return nil
	}
	return &moneyModel{Amount: m.Amount, Currency: m.Currency}
}

func fromMoneyModel(m *moneyModel) *types.Money {
	if m == nil {
		return nil
	}
	return &types.Money{Amount: m.Amount, Currency: m.Currency}
}

func nullID(i id.ID) *string {
	if i.IsNil() {
		return nil
	}
	s := i.String()
	return &s
}

func parseNullID(s *string, prefix id.Prefix) (id.ID, error) {
	if s == nil {
		return id.Nil, nil
	}
	return id.ParseOptional(*s, prefix)
}

// Free-form maps are kept as JSON text; BSON would decode nested
// documents as ordered slices and lose the snapshot shape.
func toJSON(v map[string]any) string {
	if v == nil {
		return ""
	}
	data, _ := json.Marshal(v) //nolint:errcheck // best-effort
	return string(data)
}

func fromJSON(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal([]byte(s), &m) //nolint:errcheck // best-effort
	return m
}

// ==================== Publisher models ====================

type publisherModel struct {
	grove.BaseModel `grove:"table:placement_publishers"`

	ID                 string            `grove:"id,pk"               bson:"_id"`
	Email              string            `grove:"email"               bson:"email"`
	Name               string            `grove:"name"                bson:"name"`
	AccountStatus      string            `grove:"account_status"      bson:"account_status"`
	VerificationStatus string            `grove:"verification_status" bson:"verification_status"`
	IsShadow           bool              `grove:"is_shadow"           bson:"is_shadow"`
	Metadata           map[string]string `grove:"metadata"            bson:"metadata,omitempty"`
	CreatedAt          time.Time         `grove:"created_at"          bson:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"          bson:"updated_at"`
}

func toPublisherModel(p *publisher.Publisher) *publisherModel {
	return &publisherModel{
		ID:                 p.ID.String(),
		Email:              p.Email,
		Name:               p.Name,
		AccountStatus:      string(p.AccountStatus),
		VerificationStatus: string(p.VerificationStatus),
		IsShadow:           p.IsShadow,
		Metadata:           p.Metadata,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func fromPublisherModel(m *publisherModel) (*publisher.Publisher, error) {
	pubID, err := id.ParsePublisherID(m.ID)
	if err != nil {
		return nil, err
	}
	return &publisher.Publisher{
		Entity:             types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                 pubID,
		Email:              m.Email,
		Name:               m.Name,
		AccountStatus:      publisher.AccountStatus(m.AccountStatus),
		VerificationStatus: publisher.VerificationStatus(m.VerificationStatus),
		IsShadow:           m.IsShadow,
		Metadata:           m.Metadata,
	}, nil
}

// ==================== Website models ====================

type websiteModel struct {
	grove.BaseModel `grove:"table:placement_websites"`

	ID                     string            `grove:"id,pk"                    bson:"_id"`
	Domain                 string            `grove:"domain"                   bson:"domain"`
	CurrentPrice           *moneyModel       `grove:"current_price"            bson:"current_price"`
	DerivedPrice           *moneyModel       `grove:"derived_price"            bson:"derived_price"`
	PriceCalculationMethod string            `grove:"price_calculation_method" bson:"price_calculation_method"`
	PriceCalculatedAt      *time.Time        `grove:"price_calculated_at"      bson:"price_calculated_at"`
	OverrideOfferingID     *string           `grove:"override_offering_id"     bson:"override_offering_id"`
	OverrideReason         string            `grove:"override_reason"          bson:"override_reason"`
	Metadata               map[string]string `grove:"metadata"                 bson:"metadata,omitempty"`
	CreatedAt              time.Time         `grove:"created_at"               bson:"created_at"`
	UpdatedAt              time.Time         `grove:"updated_at"               bson:"updated_at"`
}

func toWebsiteModel(w *website.Website) *websiteModel {
	return &websiteModel{
		ID:                     w.ID.String(),
		Domain:                 w.Domain,
		CurrentPrice:           toMoneyModel(w.CurrentPrice),
		DerivedPrice:           toMoneyModel(w.DerivedPrice),
		PriceCalculationMethod: string(w.PriceCalculationMethod),
		PriceCalculatedAt:      w.PriceCalculatedAt,
		OverrideOfferingID:     nullID(w.OverrideOfferingID),
		OverrideReason:         w.OverrideReason,
		Metadata:               w.Metadata,
		CreatedAt:              w.CreatedAt,
		UpdatedAt:              w.UpdatedAt,
	}
}

func fromWebsiteModel(m *websiteModel) (*website.Website, error) {
	webID, err := id.ParseWebsiteID(m.ID)
	if err != nil {
		return nil, err
	}
	overrideID, err := parseNullID(m.OverrideOfferingID, id.PrefixOffering)
	if err != nil {
		return nil, err
	}
	return &website.Website{
		Entity:                 types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                     webID,
		Domain:                 m.Domain,
		CurrentPrice:           fromMoneyModel(m.CurrentPrice),
		DerivedPrice:           fromMoneyModel(m.DerivedPrice),
		PriceCalculationMethod: website.Strategy(m.PriceCalculationMethod),
		PriceCalculatedAt:      m.PriceCalculatedAt,
		OverrideOfferingID:     overrideID,
		OverrideReason:         m.OverrideReason,
		Metadata:               m.Metadata,
	}, nil
}

// ==================== Offering models ====================

type offeringModel struct {
	grove.BaseModel `grove:"table:placement_offerings"`

	ID             string            `grove:"id,pk"           bson:"_id"`
	PublisherID    string            `grove:"publisher_id"    bson:"publisher_id"`
	Type           string            `grove:"type"            bson:"type"`
	BasePrice      *moneyModel       `grove:"base_price"      bson:"base_price"`
	TurnaroundDays int               `grove:"turnaround_days" bson:"turnaround_days"`
	MinWords       int               `grove:"min_words"       bson:"min_words"`
	MaxWords       int               `grove:"max_words"       bson:"max_words"`
	Availability   string            `grove:"availability"    bson:"availability"`
	IsActive       bool              `grove:"is_active"       bson:"is_active"`
	Metadata       map[string]string `grove:"metadata"        bson:"metadata,omitempty"`
	CreatedAt      time.Time         `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"      bson:"updated_at"`
}

func toOfferingModel(o *offering.Offering) *offeringModel {
	return &offeringModel{
		ID:             o.ID.String(),
		PublisherID:    o.PublisherID.String(),
		Type:           string(o.Type),
		BasePrice:      toMoneyModel(o.BasePrice),
		TurnaroundDays: o.TurnaroundDays,
		MinWords:       o.MinWords,
		MaxWords:       o.MaxWords,
		Availability:   string(o.Availability),
		IsActive:       o.IsActive,
		Metadata:       o.Metadata,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func fromOfferingModel(m *offeringModel) (*offering.Offering, error) {
	offID, err := id.ParseOfferingID(m.ID)
	if err != nil {
		return nil, err
	}
	pubID, err := id.ParsePublisherID(m.PublisherID)
	if err != nil {
		return nil, err
	}
	return &offering.Offering{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             offID,
		PublisherID:    pubID,
		Type:           offering.Type(m.Type),
		BasePrice:      fromMoneyModel(m.BasePrice),
		TurnaroundDays: m.TurnaroundDays,
		MinWords:       m.MinWords,
		MaxWords:       m.MaxWords,
		Availability:   offering.Availability(m.Availability),
		IsActive:       m.IsActive,
		Metadata:       m.Metadata,
	}, nil
}

// ==================== Relationship models ====================

type relationshipModel struct {
	grove.BaseModel `grove:"table:placement_offering_relationships"`

	ID                 string      `grove:"id,pk"               bson:"_id"`
	PublisherID        string      `grove:"publisher_id"        bson:"publisher_id"`
	OfferingID         *string     `grove:"offering_id"         bson:"offering_id"`
	WebsiteID          string      `grove:"website_id"          bson:"website_id"`
	IsPrimary          bool        `grove:"is_primary"          bson:"is_primary"`
	IsActive           bool        `grove:"is_active"           bson:"is_active"`
	Type               string      `grove:"type"                bson:"type"`
	VerificationStatus string      `grove:"verification_status" bson:"verification_status"`
	PriorityRank       int         `grove:"priority_rank"       bson:"priority_rank"`
	IsPreferred        bool        `grove:"is_preferred"        bson:"is_preferred"`
	CustomPrice        *moneyModel `grove:"custom_price"        bson:"custom_price"`
	CustomTerms        string      `grove:"custom_terms"        bson:"custom_terms"`
	Notes              string      `grove:"notes"               bson:"notes"`
	CreatedAt          time.Time   `grove:"created_at"          bson:"created_at"`
	UpdatedAt          time.Time   `grove:"updated_at"          bson:"updated_at"`
}

func toRelationshipModel(r *offering.Relationship) *relationshipModel {
	return &relationshipModel{
		ID:                 r.ID.String(),
		PublisherID:        r.PublisherID.String(),
		OfferingID:         nullID(r.OfferingID),
		WebsiteID:          r.WebsiteID.String(),
		IsPrimary:          r.IsPrimary,
		IsActive:           r.IsActive,
		Type:               string(r.Type),
		VerificationStatus: string(r.VerificationStatus),
		PriorityRank:       r.PriorityRank,
		IsPreferred:        r.IsPreferred,
		CustomPrice:        toMoneyModel(r.CustomPrice),
		CustomTerms:        r.CustomTerms,
		Notes:              r.Notes,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func fromRelationshipModel(m *relationshipModel) (*offering.Relationship, error) {
	relID, err := id.ParseRelationshipID(m.ID)
	if err != nil {
		return nil, err
	}
	pubID, err := id.ParsePublisherID(m.PublisherID)
	if err != nil {
		return nil, err
	}
	offID, err := parseNullID(m.OfferingID, id.PrefixOffering)
	if err != nil {
		return nil, err
	}
	webID, err := id.ParseWebsiteID(m.WebsiteID)
	if err != nil {
		return nil, err
	}
	return &offering.Relationship{
		Entity:             types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                 relID,
		PublisherID:        pubID,
		OfferingID:         offID,
		WebsiteID:          webID,
		IsPrimary:          m.IsPrimary,
		IsActive:           m.IsActive,
		Type:               offering.RelationshipType(m.Type),
		VerificationStatus: offering.VerificationStatus(m.VerificationStatus),
		PriorityRank:       m.PriorityRank,
		IsPreferred:        m.IsPreferred,
		CustomPrice:        fromMoneyModel(m.CustomPrice),
		CustomTerms:        m.CustomTerms,
		Notes:              m.Notes,
	}, nil
}

// ==================== Pricing rule models ====================

type conditionsModel struct {
	MinQuantity   int        `bson:"min_quantity"`
	MaxQuantity   int        `bson:"max_quantity"`
	MinOrderValue int64      `bson:"min_order_value"`
	ClientIDs     []string   `bson:"client_ids,omitempty"`
	ValidFrom     *time.Time `bson:"valid_from,omitempty"`
	ValidUntil    *time.Time `bson:"valid_until,omitempty"`
}

type actionsModel struct {
	Percent int64 `bson:"percent"`
	Amount  int64 `bson:"amount"`
}

type pricingRuleModel struct {
	grove.BaseModel `grove:"table:placement_pricing_rules"`

	ID               string          `grove:"id,pk"             bson:"_id"`
	OfferingID       string          `grove:"offering_id"       bson:"offering_id"`
	Name             string          `grove:"name"              bson:"name"`
	Type             string          `grove:"type"              bson:"type"`
	Conditions       conditionsModel `grove:"conditions"        bson:"conditions"`
	Actions          actionsModel    `grove:"actions"           bson:"actions"`
	Priority         int             `grove:"priority"          bson:"priority"`
	IsCumulative     bool            `grove:"is_cumulative"     bson:"is_cumulative"`
	AutoApply        bool            `grove:"auto_apply"        bson:"auto_apply"`
	RequiresApproval bool            `grove:"requires_approval" bson:"requires_approval"`
	IsActive         bool            `grove:"is_active"         bson:"is_active"`
	CreatedAt        time.Time       `grove:"created_at"        bson:"created_at"`
	UpdatedAt        time.Time       `grove:"updated_at"        bson:"updated_at"`
}

func toPricingRuleModel(r *pricingrule.Rule) *pricingRuleModel {
	return &pricingRuleModel{
		ID:         r.ID.String(),
		OfferingID: r.OfferingID.String(),
		Name:       r.Name,
		Type:       string(r.Type),
		Conditions: conditionsModel{
			MinQuantity:   r.Conditions.MinQuantity,
			MaxQuantity:   r.Conditions.MaxQuantity,
			MinOrderValue: r.Conditions.MinOrderValue,
			ClientIDs:     r.Conditions.ClientIDs,
			ValidFrom:     r.Conditions.ValidFrom,
			ValidUntil:    r.Conditions.ValidUntil,
		},
		Actions: actionsModel{
			Percent: int64(r.Actions.Percent),
			Amount:  r.Actions.Amount,
		},
		Priority:         r.Priority,
		IsCumulative:     r.IsCumulative,
		AutoApply:        r.AutoApply,
		RequiresApproval: r.RequiresApproval,
		IsActive:         r.IsActive,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func fromPricingRuleModel(m *pricingRuleModel) (*pricingrule.Rule, error) {
	ruleID, err := id.ParsePricingRuleID(m.ID)
	if err != nil {
		return nil, err
	}
	offID, err := id.ParseOfferingID(m.OfferingID)
	if err != nil {
		return nil, err
	}
	return &pricingrule.Rule{
		Entity:     types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         ruleID,
		OfferingID: offID,
		Name:       m.Name,
		Type:       pricingrule.Type(m.Type),
		Conditions: pricingrule.Conditions{
			MinQuantity:   m.Conditions.MinQuantity,
			MaxQuantity:   m.Conditions.MaxQuantity,
			MinOrderValue: m.Conditions.MinOrderValue,
			ClientIDs:     m.Conditions.ClientIDs,
			ValidFrom:     m.Conditions.ValidFrom,
			ValidUntil:    m.Conditions.ValidUntil,
		},
		Actions: pricingrule.Actions{
			Percent: types.BasisPoints(m.Actions.Percent),
			Amount:  m.Actions.Amount,
		},
		Priority:         m.Priority,
		IsCumulative:     m.IsCumulative,
		AutoApply:        m.AutoApply,
		RequiresApproval: m.RequiresApproval,
		IsActive:         m.IsActive,
	}, nil
}

// ==================== Line item models ====================

type lineItemModel struct {
	grove.BaseModel `grove:"table:placement_line_items"`

	ID                  string      `grove:"id,pk"                 bson:"_id"`
	OrderID             string      `grove:"order_id"              bson:"order_id"`
	ClientID            string      `grove:"client_id"             bson:"client_id"`
	TargetPageURL       string      `grove:"target_page_url"       bson:"target_page_url"`
	AnchorText          string      `grove:"anchor_text"           bson:"anchor_text"`
	Status              string      `grove:"status"                bson:"status"`
	PublisherStatus     string      `grove:"publisher_status"      bson:"publisher_status"`
	ClientReviewStatus  string      `grove:"client_review_status"  bson:"client_review_status"`
	AssignedDomain      string      `grove:"assigned_domain"       bson:"assigned_domain"`
	WebsiteID           *string     `grove:"website_id"            bson:"website_id"`
	OfferingID          *string     `grove:"offering_id"           bson:"offering_id"`
	PublisherID         *string     `grove:"publisher_id"          bson:"publisher_id"`
	EstimatedPrice      *moneyModel `grove:"estimated_price"       bson:"estimated_price"`
	ApprovedPrice       *moneyModel `grove:"approved_price"        bson:"approved_price"`
	WholesalePrice      *moneyModel `grove:"wholesale_price"       bson:"wholesale_price"`
	FinalPrice          *moneyModel `grove:"final_price"           bson:"final_price"`
	ApprovedBy          string      `grove:"approved_by"           bson:"approved_by"`
	ApprovedAt          *time.Time  `grove:"approved_at"           bson:"approved_at"`
	PublisherAcceptedAt *time.Time  `grove:"publisher_accepted_at" bson:"publisher_accepted_at"`
	DeliveryURL         string      `grove:"delivery_url"          bson:"delivery_url"`
	DeliveredAt         *time.Time  `grove:"delivered_at"          bson:"delivered_at"`
	CompletedAt         *time.Time  `grove:"completed_at"          bson:"completed_at"`
	CancelledAt         *time.Time  `grove:"cancelled_at"          bson:"cancelled_at"`
	CancellationReason  string      `grove:"cancellation_reason"   bson:"cancellation_reason"`
	ExceptionReason     string      `grove:"exception_reason"      bson:"exception_reason"`
	Version             int64       `grove:"version"               bson:"version"`
	Metadata            string      `grove:"metadata"              bson:"metadata"`
	CreatedAt           time.Time   `grove:"created_at"            bson:"created_at"`
	UpdatedAt           time.Time   `grove:"updated_at"            bson:"updated_at"`
}

func toLineItemModel(li *lineitem.LineItem) *lineItemModel {
	return &lineItemModel{
		ID:                  li.ID.String(),
		OrderID:             li.OrderID.String(),
		ClientID:            li.ClientID,
		TargetPageURL:       li.TargetPageURL,
		AnchorText:          li.AnchorText,
		Status:              string(li.Status),
		PublisherStatus:     string(li.PublisherStatus),
		ClientReviewStatus:  string(li.ClientReviewStatus),
		AssignedDomain:      li.AssignedDomain,
		WebsiteID:           nullID(li.WebsiteID),
		OfferingID:          nullID(li.OfferingID),
		PublisherID:         nullID(li.PublisherID),
		EstimatedPrice:      toMoneyModel(li.EstimatedPrice),
		ApprovedPrice:       toMoneyModel(li.ApprovedPrice),
		WholesalePrice:      toMoneyModel(li.WholesalePrice),
		FinalPrice:          toMoneyModel(li.FinalPrice),
		ApprovedBy:          li.ApprovedBy,
		ApprovedAt:          li.ApprovedAt,
		PublisherAcceptedAt: li.PublisherAcceptedAt,
		DeliveryURL:         li.DeliveryURL,
		DeliveredAt:         li.DeliveredAt,
		CompletedAt:         li.CompletedAt,
		CancelledAt:         li.CancelledAt,
		CancellationReason:  li.CancellationReason,
		ExceptionReason:     li.ExceptionReason,
		Version:             li.Version,
		Metadata:            toJSON(li.Metadata),
		CreatedAt:           li.CreatedAt,
		UpdatedAt:           li.UpdatedAt,
	}
}

func fromLineItemModel(m *lineItemModel) (*lineitem.LineItem, error) {
	liID, err := id.ParseLineItemID(m.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := id.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, err
	}
	webID, err := parseNullID(m.WebsiteID, id.PrefixWebsite)
	if err != nil {
		return nil, err
	}
	offID, err := parseNullID(m.OfferingID, id.PrefixOffering)
	if err != nil {
		return nil, err
	}
	pubID, err := parseNullID(m.PublisherID, id.PrefixPublisher)
	if err != nil {
		return nil, err
	}

	return &lineitem.LineItem{
		Entity:              types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                  liID,
		OrderID:             orderID,
		ClientID:            m.ClientID,
		TargetPageURL:       m.TargetPageURL,
		AnchorText:          m.AnchorText,
		Status:              lineitem.Status(m.Status),
		PublisherStatus:     lineitem.PublisherStatus(m.PublisherStatus),
		ClientReviewStatus:  lineitem.ClientReviewStatus(m.ClientReviewStatus),
		AssignedDomain:      m.AssignedDomain,
		WebsiteID:           webID,
		OfferingID:          offID,
		PublisherID:         pubID,
		EstimatedPrice:      fromMoneyModel(m.EstimatedPrice),
		ApprovedPrice:       fromMoneyModel(m.ApprovedPrice),
		WholesalePrice:      fromMoneyModel(m.WholesalePrice),
		FinalPrice:          fromMoneyModel(m.FinalPrice),
		ApprovedBy:          m.ApprovedBy,
		ApprovedAt:          m.ApprovedAt,
		PublisherAcceptedAt: m.PublisherAcceptedAt,
		DeliveryURL:         m.DeliveryURL,
		DeliveredAt:         m.DeliveredAt,
		CompletedAt:         m.CompletedAt,
		CancelledAt:         m.CancelledAt,
		CancellationReason:  m.CancellationReason,
		ExceptionReason:     m.ExceptionReason,
		Version:             m.Version,
		Metadata:            fromJSON(m.Metadata),
	}, nil
}

// ==================== Change models ====================

type changeModel struct {
	grove.BaseModel `grove:"table:placement_line_item_changes"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	LineItemID    *string   `grove:"line_item_id"   bson:"line_item_id"`
	OrderID       *string   `grove:"order_id"       bson:"order_id"`
	WebsiteID     *string   `grove:"website_id"     bson:"website_id"`
	ChangeType    string    `grove:"change_type"    bson:"change_type"`
	PreviousValue string    `grove:"previous_value" bson:"previous_value"`
	NewValue      string    `grove:"new_value"      bson:"new_value"`
	Actor         string    `grove:"actor"          bson:"actor"`
	Reason        string    `grove:"reason"         bson:"reason"`
	BatchID       *string   `grove:"batch_id"       bson:"batch_id"`
	Timestamp     time.Time `grove:"timestamp"      bson:"timestamp"`
	Sequence      int64     `grove:"sequence"       bson:"sequence"`
}

func toChangeModel(c *changelog.Change) *changeModel {
	return &changeModel{
		ID:            c.ID.String(),
		LineItemID:    nullID(c.LineItemID),
		OrderID:       nullID(c.OrderID),
		WebsiteID:     nullID(c.WebsiteID),
		ChangeType:    string(c.Type),
		PreviousValue: toJSON(c.PreviousValue),
		NewValue:      toJSON(c.NewValue),
		Actor:         c.Actor,
		Reason:        c.Reason,
		BatchID:       nullID(c.BatchID),
		Timestamp:     c.Timestamp,
		Sequence:      c.Sequence,
	}
}

func fromChangeModel(m *changeModel) (*changelog.Change, error) {
	chgID, err := id.ParseChangeID(m.ID)
	if err != nil {
		return nil, err
	}
	liID, err := parseNullID(m.LineItemID, id.PrefixLineItem)
	if err != nil {
		return nil, err
	}
	orderID, err := parseNullID(m.OrderID, id.PrefixOrder)
	if err != nil {
		return nil, err
	}
	webID, err := parseNullID(m.WebsiteID, id.PrefixWebsite)
	if err != nil {
		return nil, err
	}
	batchID, err := parseNullID(m.BatchID, id.PrefixBatch)
	if err != nil {
		return nil, err
	}
	return &changelog.Change{
		ID:            chgID,
		LineItemID:    liID,
		OrderID:       orderID,
		WebsiteID:     webID,
		Type:          changelog.Type(m.ChangeType),
		PreviousValue: fromJSON(m.PreviousValue),
		NewValue:      fromJSON(m.NewValue),
		Actor:         m.Actor,
		Reason:        m.Reason,
		BatchID:       batchID,
		Timestamp:     m.Timestamp,
		Sequence:      m.Sequence,
	}, nil
}
