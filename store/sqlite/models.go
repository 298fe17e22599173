package sqlite

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

// JSON columns are TEXT in SQLite.

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

func moneyCols(m *types.Money) (*int64, string) {
	if m == nil {
		return nil, ""
	}
	amount := m.Amount
	return &amount, m.Currency
}

func moneyFrom(amount *int64, currency string) *types.Money {
	if amount == nil {
		return nil
	}
	return &types.Money{Amount: *amount, Currency: currency}
}

func toJSON(v any) string {
	data, _ := json.Marshal(v) //nolint:errcheck // best-effort
	return string(data)
}

func fromJSONMap(s string) map[string]any {
	if s == "" || s == "null" {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal([]byte(s), &m) //nolint:errcheck // best-effort
	return m
}

func fromJSONLabels(s string) map[string]string {
	if s == "" || s == "null" {
		return nil
	}
	var m map[string]string
	_ = json.Unmarshal([]byte(s), &m) //nolint:errcheck // best-effort
	return m
}

// ==================== Publisher models ====================

type publisherModel struct {
	grove.BaseModel `grove:"table:placement_publishers"`

	ID                 string    `grove:"id,pk"`
	Email              string    `grove:"email"`
	Name               string    `grove:"name"`
	AccountStatus      string    `grove:"account_status"`
	VerificationStatus string    `grove:"verification_status"`
	IsShadow           bool      `grove:"is_shadow"`
	Metadata           string    `grove:"metadata"`
	CreatedAt          time.Time `grove:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"`
}

func toPublisherModel(p *publisher.Publisher) *publisherModel {
	return &publisherModel{
		ID:                 p.ID.String(),
		Email:              p.Email,
		Name:               p.Name,
		AccountStatus:      string(p.AccountStatus),
		VerificationStatus: string(p.VerificationStatus),
		IsShadow:           p.IsShadow,
		Metadata:           toJSON(p.Metadata),
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
		Metadata:           fromJSONLabels(m.Metadata),
	}, nil
}

// ==================== Website models ====================

type websiteModel struct {
	grove.BaseModel `grove:"table:placement_websites"`

	ID                     string     `grove:"id,pk"`
	Domain                 string     `grove:"domain"`
	CurrentPriceAmount     *int64     `grove:"current_price_amount"`
	CurrentPriceCurrency   string     `grove:"current_price_currency"`
	DerivedPriceAmount     *int64     `grove:"derived_price_amount"`
	DerivedPriceCurrency   string     `grove:"derived_price_currency"`
	PriceCalculationMethod string     `grove:"price_calculation_method"`
	PriceCalculatedAt      *time.Time `grove:"price_calculated_at"`
	OverrideOfferingID     *string    `grove:"override_offering_id"`
	OverrideReason         string     `grove:"override_reason"`
	Metadata               string     `grove:"metadata"`
	CreatedAt              time.Time  `grove:"created_at"`
	UpdatedAt              time.Time  `grove:"updated_at"`
}

func toWebsiteModel(w *website.Website) *websiteModel {
	m := &websiteModel{
		ID:                     w.ID.String(),
		Domain:                 w.Domain,
		PriceCalculationMethod: string(w.PriceCalculationMethod),
		PriceCalculatedAt:      w.PriceCalculatedAt,
		OverrideOfferingID:     nullID(w.OverrideOfferingID),
		OverrideReason:         w.OverrideReason,
		Metadata:               toJSON(w.Metadata),
		CreatedAt:              w.CreatedAt,
		UpdatedAt:              w.UpdatedAt,
	}
	m.CurrentPriceAmount, m.CurrentPriceCurrency = moneyCols(w.CurrentPrice)
	m.DerivedPriceAmount, m.DerivedPriceCurrency = moneyCols(w.DerivedPrice)
	return m
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
		CurrentPrice:           moneyFrom(m.CurrentPriceAmount, m.CurrentPriceCurrency),
		DerivedPrice:           moneyFrom(m.DerivedPriceAmount, m.DerivedPriceCurrency),
		PriceCalculationMethod: website.Strategy(m.PriceCalculationMethod),
		PriceCalculatedAt:      m.PriceCalculatedAt,
		OverrideOfferingID:     overrideID,
		OverrideReason:         m.OverrideReason,
		Metadata:               fromJSONLabels(m.Metadata),
	}, nil
}

// ==================== Offering models ====================

type offeringModel struct {
	grove.BaseModel `grove:"table:placement_offerings"`

	ID                string    `grove:"id,pk"`
	PublisherID       string    `grove:"publisher_id"`
	Type              string    `grove:"type"`
	BasePriceAmount   *int64    `grove:"base_price_amount"`
	BasePriceCurrency string    `grove:"base_price_currency"`
	TurnaroundDays    int       `grove:"turnaround_days"`
	MinWords          int       `grove:"min_words"`
	MaxWords          int       `grove:"max_words"`
	Availability      string    `grove:"availability"`
	IsActive          bool      `grove:"is_active"`
	Metadata          string    `grove:"metadata"`
	CreatedAt         time.Time `grove:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"`
}

func toOfferingModel(o *offering.Offering) *offeringModel {
	amt, cur := moneyCols(o.BasePrice)
	return &offeringModel{
		ID:                o.ID.String(),
		PublisherID:       o.PublisherID.String(),
		Type:              string(o.Type),
		BasePriceAmount:   amt,
		BasePriceCurrency: cur,
		TurnaroundDays:    o.TurnaroundDays,
		MinWords:          o.MinWords,
		MaxWords:          o.MaxWords,
		Availability:      string(o.Availability),
		IsActive:          o.IsActive,
		Metadata:          toJSON(o.Metadata),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
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
		BasePrice:      moneyFrom(m.BasePriceAmount, m.BasePriceCurrency),
		TurnaroundDays: m.TurnaroundDays,
		MinWords:       m.MinWords,
		MaxWords:       m.MaxWords,
		Availability:   offering.Availability(m.Availability),
		IsActive:       m.IsActive,
		Metadata:       fromJSONLabels(m.Metadata),
	}, nil
}

// ==================== Relationship models ====================

type relationshipModel struct {
	grove.BaseModel `grove:"table:placement_offering_relationships"`

	ID                  string    `grove:"id,pk"`
	PublisherID         string    `grove:"publisher_id"`
	OfferingID          *string   `grove:"offering_id"`
	WebsiteID           string    `grove:"website_id"`
	IsPrimary           bool      `grove:"is_primary"`
	IsActive            bool      `grove:"is_active"`
	Type                string    `grove:"type"`
	VerificationStatus  string    `grove:"verification_status"`
	PriorityRank        int       `grove:"priority_rank"`
	IsPreferred         bool      `grove:"is_preferred"`
	CustomPriceAmount   *int64    `grove:"custom_price_amount"`
	CustomPriceCurrency string    `grove:"custom_price_currency"`
	CustomTerms         string    `grove:"custom_terms"`
	Notes               string    `grove:"notes"`
	CreatedAt           time.Time `grove:"created_at"`
	UpdatedAt           time.Time `grove:"updated_at"`
}

func toRelationshipModel(r *offering.Relationship) *relationshipModel {
	amt, cur := moneyCols(r.CustomPrice)
	return &relationshipModel{
		ID:                  r.ID.String(),
		PublisherID:         r.PublisherID.String(),
		OfferingID:          nullID(r.OfferingID),
		WebsiteID:           r.WebsiteID.String(),
		IsPrimary:           r.IsPrimary,
		IsActive:            r.IsActive,
		Type:                string(r.Type),
		VerificationStatus:  string(r.VerificationStatus),
		PriorityRank:        r.PriorityRank,
		IsPreferred:         r.IsPreferred,
		CustomPriceAmount:   amt,
		CustomPriceCurrency: cur,
		CustomTerms:         r.CustomTerms,
		Notes:               r.Notes,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
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
		CustomPrice:        moneyFrom(m.CustomPriceAmount, m.CustomPriceCurrency),
		CustomTerms:        m.CustomTerms,
		Notes:              m.Notes,
	}, nil
}

// ==================== Pricing rule models ====================

type pricingRuleModel struct {
	grove.BaseModel `grove:"table:placement_pricing_rules"`

	ID               string    `grove:"id,pk"`
	OfferingID       string    `grove:"offering_id"`
	Name             string    `grove:"name"`
	Type             string    `grove:"type"`
	Conditions       string    `grove:"conditions"`
	Actions          string    `grove:"actions"`
	Priority         int       `grove:"priority"`
	IsCumulative     bool      `grove:"is_cumulative"`
	AutoApply        bool      `grove:"auto_apply"`
	RequiresApproval bool      `grove:"requires_approval"`
	IsActive         bool      `grove:"is_active"`
	CreatedAt        time.Time `grove:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"`
}

func toPricingRuleModel(r *pricingrule.Rule) *pricingRuleModel {
	return &pricingRuleModel{
		ID:               r.ID.String(),
		OfferingID:       r.OfferingID.String(),
		Name:             r.Name,
		Type:             string(r.Type),
		Conditions:       toJSON(r.Conditions),
		Actions:          toJSON(r.Actions),
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

	var cond pricingrule.Conditions
	if m.Conditions != "" {
		if err := json.Unmarshal([]byte(m.Conditions), &cond); err != nil {
			return nil, err
		}
	}
	var act pricingrule.Actions
	if m.Actions != "" {
		if err := json.Unmarshal([]byte(m.Actions), &act); err != nil {
			return nil, err
		}
	}

	return &pricingrule.Rule{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               ruleID,
		OfferingID:       offID,
		Name:             m.Name,
		Type:             pricingrule.Type(m.Type),
		Conditions:       cond,
		Actions:          act,
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

	ID                     string     `grove:"id,pk"`
	OrderID                string     `grove:"order_id"`
	ClientID               string     `grove:"client_id"`
	TargetPageURL          string     `grove:"target_page_url"`
	AnchorText             string     `grove:"anchor_text"`
	Status                 string     `grove:"status"`
	PublisherStatus        string     `grove:"publisher_status"`
	ClientReviewStatus     string     `grove:"client_review_status"`
	AssignedDomain         string     `grove:"assigned_domain"`
	WebsiteID              *string    `grove:"website_id"`
	OfferingID             *string    `grove:"offering_id"`
	PublisherID            *string    `grove:"publisher_id"`
	EstimatedPriceAmount   *int64     `grove:"estimated_price_amount"`
	EstimatedPriceCurrency string     `grove:"estimated_price_currency"`
	ApprovedPriceAmount    *int64     `grove:"approved_price_amount"`
	ApprovedPriceCurrency  string     `grove:"approved_price_currency"`
	WholesalePriceAmount   *int64     `grove:"wholesale_price_amount"`
	WholesalePriceCurrency string     `grove:"wholesale_price_currency"`
	FinalPriceAmount       *int64     `grove:"final_price_amount"`
	FinalPriceCurrency     string     `grove:"final_price_currency"`
	ApprovedBy             string     `grove:"approved_by"`
	ApprovedAt             *time.Time `grove:"approved_at"`
	PublisherAcceptedAt    *time.Time `grove:"publisher_accepted_at"`
	DeliveryURL            string     `grove:"delivery_url"`
	DeliveredAt            *time.Time `grove:"delivered_at"`
	CompletedAt            *time.Time `grove:"completed_at"`
	CancelledAt            *time.Time `grove:"cancelled_at"`
	CancellationReason     string     `grove:"cancellation_reason"`
	ExceptionReason        string     `grove:"exception_reason"`
	Version                int64      `grove:"version"`
	Metadata               string     `grove:"metadata"`
	CreatedAt              time.Time  `grove:"created_at"`
	UpdatedAt              time.Time  `grove:"updated_at"`
}

func toLineItemModel(li *lineitem.LineItem) *lineItemModel {
	m := &lineItemModel{
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
	m.EstimatedPriceAmount, m.EstimatedPriceCurrency = moneyCols(li.EstimatedPrice)
	m.ApprovedPriceAmount, m.ApprovedPriceCurrency = moneyCols(li.ApprovedPrice)
	m.WholesalePriceAmount, m.WholesalePriceCurrency = moneyCols(li.WholesalePrice)
	m.FinalPriceAmount, m.FinalPriceCurrency = moneyCols(li.FinalPrice)
	return m
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
		EstimatedPrice:      moneyFrom(m.EstimatedPriceAmount, m.EstimatedPriceCurrency),
		ApprovedPrice:       moneyFrom(m.ApprovedPriceAmount, m.ApprovedPriceCurrency),
		WholesalePrice:      moneyFrom(m.WholesalePriceAmount, m.WholesalePriceCurrency),
		FinalPrice:          moneyFrom(m.FinalPriceAmount, m.FinalPriceCurrency),
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
		Metadata:            fromJSONMap(m.Metadata),
	}, nil
}

// ==================== Change models ====================

type changeModel struct {
	grove.BaseModel `grove:"table:placement_line_item_changes"`

	ID            string    `grove:"id,pk"`
	LineItemID    *string   `grove:"line_item_id"`
	OrderID       *string   `grove:"order_id"`
	WebsiteID     *string   `grove:"website_id"`
	ChangeType    string    `grove:"change_type"`
	PreviousValue string    `grove:"previous_value"`
	NewValue      string    `grove:"new_value"`
	Actor         string    `grove:"actor"`
	Reason        string    `grove:"reason"`
	BatchID       *string   `grove:"batch_id"`
	Timestamp     time.Time `grove:"timestamp"`
	Sequence      int64     `grove:"sequence"`
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
		PreviousValue: fromJSONMap(m.PreviousValue),
		NewValue:      fromJSONMap(m.NewValue),
		Actor:         m.Actor,
		Reason:        m.Reason,
		BatchID:       batchID,
		Timestamp:     m.Timestamp,
		Sequence:      m.Sequence,
	}, nil
}
