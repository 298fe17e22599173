package website

import (
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/xraph/placement/id"
	"github.com/xraph/placement/types"
)

// Website is a publisher-hosted site identified by its normalized domain.
// CurrentPrice is maintained by hand and is authoritative; DerivedPrice is
// computed from offerings and only ever shadows it.
type Website struct {
	types.Entity
	ID                     id.WebsiteID      `json:"id"`
	Domain                 string            `json:"domain"`
	CurrentPrice           *types.Money      `json:"current_price,omitempty"`
	DerivedPrice           *types.Money      `json:"derived_price,omitempty"`
	PriceCalculationMethod Strategy          `json:"price_calculation_method,omitempty"`
	PriceCalculatedAt      *time.Time        `json:"price_calculated_at,omitempty"`
	OverrideOfferingID     id.OfferingID     `json:"override_offering_id"`
	OverrideReason         string            `json:"override_reason,omitempty"`
	Metadata               map[string]string `json:"metadata,omitempty"`
}

// NormalizeDomain reduces a URL or host to its canonical domain: lower case,
// no scheme, credentials, path, port, trailing dot or leading "www.".
// Internationalized names are converted to their ASCII form. It returns ""
// when the input does not contain a valid domain name.
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "//")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimPrefix(s, "www.")

	ascii, err := idna.Lookup.ToASCII(s)
	if err != nil || ascii == "" || !strings.Contains(ascii, ".") {
		return ""
	}
	for _, label := range strings.Split(ascii, ".") {
		if label == "" {
			return ""
		}
	}
	return ascii
}

// ──────────────────────────────────────────────────
// Price derivation
// ──────────────────────────────────────────────────

// Strategy selects one price among a website's qualifying offerings.
type Strategy string

const (
	StrategyMinPrice Strategy = "min_price"
	StrategyMaxPrice Strategy = "max_price"
	StrategyOverride Strategy = "override"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyMinPrice, StrategyMaxPrice, StrategyOverride:
		return true
	default:
		return false
	}
}

// Candidate is one offering that took part in a derivation.
type Candidate struct {
	OfferingID     id.OfferingID     `json:"offering_id"`
	PublisherID    id.PublisherID    `json:"publisher_id"`
	RelationshipID id.RelationshipID `json:"relationship_id"`
	BasePrice      types.Money       `json:"base_price"`
	EffectivePrice types.Money       `json:"effective_price"`
	AppliedRules   []string          `json:"applied_rules,omitempty"`
}

// Derivation is the outcome of a price derivation. A nil Price means no
// offering qualified, which is distinct from a derived price of zero.
type Derivation struct {
	WebsiteID    id.WebsiteID  `json:"website_id"`
	Strategy     Strategy      `json:"strategy"`
	Price        *types.Money  `json:"price,omitempty"`
	OfferingID   id.OfferingID `json:"offering_id"`
	Candidates   []Candidate   `json:"candidates,omitempty"`
	CalculatedAt time.Time     `json:"calculated_at"`
}

// ComparisonStatus classifies a (derived, current) price pair.
type ComparisonStatus string

const (
	ComparisonMatch       ComparisonStatus = "match"
	ComparisonMismatch    ComparisonStatus = "mismatch"
	ComparisonDerivedNull ComparisonStatus = "derived_null"
	ComparisonCurrentNull ComparisonStatus = "current_null"
	ComparisonBothNull    ComparisonStatus = "both_null"
)

// Comparison reports a derived price against the authoritative current
// price. Difference is derived minus current and is set only when both are
// present in the same currency.
type Comparison struct {
	WebsiteID    id.WebsiteID     `json:"website_id"`
	Strategy     Strategy         `json:"strategy"`
	Status       ComparisonStatus `json:"status"`
	DerivedPrice *types.Money     `json:"derived_price,omitempty"`
	CurrentPrice *types.Money     `json:"current_price,omitempty"`
	Difference   *int64           `json:"difference,omitempty"`
	CalculatedAt time.Time        `json:"calculated_at"`
}

// Classify compares a derived price with the current price.
func Classify(derived, current *types.Money) (ComparisonStatus, *int64) {
	switch {
	case derived == nil && current == nil:
		return ComparisonBothNull, nil
	case derived == nil:
		return ComparisonDerivedNull, nil
	case current == nil:
		return ComparisonCurrentNull, nil
	case !derived.SameCurrency(*current):
		return ComparisonMismatch, nil
	}

	diff := derived.Amount - current.Amount
	if diff == 0 {
		return ComparisonMatch, &diff
	}
	return ComparisonMismatch, &diff
}
