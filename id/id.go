// Package id defines TypeID-based identity types for all placement entities.
//
// Every entity uses a single ID struct with a prefix that identifies
// the entity type. IDs are K-sortable (UUIDv7-based), globally unique,
// and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all placement entity types.
const (
	PrefixPublisher    Prefix = "pub"   // Publisher account
	PrefixWebsite      Prefix = "web"   // Website (normalized domain)
	PrefixOffering     Prefix = "off"   // Publisher offering
	PrefixRelationship Prefix = "orel"  // Offering relationship / ownership claim
	PrefixPricingRule  Prefix = "prule" // Conditional pricing rule
	PrefixOrder        Prefix = "ord"   // Client order
	PrefixLineItem     Prefix = "li"    // Order line item
	PrefixChange       Prefix = "chg"   // Change log entry
	PrefixBatch        Prefix = "batch" // Bulk operation
	PrefixApproval     Prefix = "apr"   // Manual approval request
)

// ID is the primary identifier type for all placement entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID. Optional references hold Nil when unset.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "li_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// ParseOptional is like ParseWithPrefix but maps the empty string to Nil.
// Used for nullable reference columns.
func ParseOptional(s string, expected Prefix) (ID, error) {
	if s == "" {
		return Nil, nil
	}

	return ParseWithPrefix(s, expected)
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// PublisherID is a type-safe identifier for publishers (prefix: "pub").
type PublisherID = ID

// WebsiteID is a type-safe identifier for websites (prefix: "web").
type WebsiteID = ID

// OfferingID is a type-safe identifier for offerings (prefix: "off").
type OfferingID = ID

// RelationshipID is a type-safe identifier for offering relationships (prefix: "orel").
type RelationshipID = ID

// PricingRuleID is a type-safe identifier for pricing rules (prefix: "prule").
type PricingRuleID = ID

// OrderID is a type-safe identifier for orders (prefix: "ord").
type OrderID = ID

// LineItemID is a type-safe identifier for line items (prefix: "li").
type LineItemID = ID

// ChangeID is a type-safe identifier for change log entries (prefix: "chg").
type ChangeID = ID

// BatchID is a type-safe identifier for bulk operations (prefix: "batch").
type BatchID = ID

// ApprovalID is a type-safe identifier for approval requests (prefix: "apr").
type ApprovalID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewPublisherID generates a new unique publisher ID.
func NewPublisherID() ID { return New(PrefixPublisher) }

// NewWebsiteID generates a new unique website ID.
func NewWebsiteID() ID { return New(PrefixWebsite) }

// NewOfferingID generates a new unique offering ID.
func NewOfferingID() ID { return New(PrefixOffering) }

// NewRelationshipID generates a new unique relationship ID.
func NewRelationshipID() ID { return New(PrefixRelationship) }

// NewPricingRuleID generates a new unique pricing rule ID.
func NewPricingRuleID() ID { return New(PrefixPricingRule) }

// NewOrderID generates a new unique order ID.
func NewOrderID() ID { return New(PrefixOrder) }

// NewLineItemID generates a new unique line item ID.
func NewLineItemID() ID { return New(PrefixLineItem) }

// NewChangeID generates a new unique change log entry ID.
func NewChangeID() ID { return New(PrefixChange) }

// NewBatchID generates a new unique batch ID.
func NewBatchID() ID { return New(PrefixBatch) }

// NewApprovalID generates a new unique approval request ID.
func NewApprovalID() ID { return New(PrefixApproval) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParsePublisherID parses a string and validates the "pub" prefix.
func ParsePublisherID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPublisher) }

// ParseWebsiteID parses a string and validates the "web" prefix.
func ParseWebsiteID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWebsite) }

// ParseOfferingID parses a string and validates the "off" prefix.
func ParseOfferingID(s string) (ID, error) { return ParseWithPrefix(s, PrefixOffering) }

// ParseRelationshipID parses a string and validates the "orel" prefix.
func ParseRelationshipID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRelationship) }

// ParsePricingRuleID parses a string and validates the "prule" prefix.
func ParsePricingRuleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPricingRule) }

// ParseOrderID parses a string and validates the "ord" prefix.
func ParseOrderID(s string) (ID, error) { return ParseWithPrefix(s, PrefixOrder) }

// ParseLineItemID parses a string and validates the "li" prefix.
func ParseLineItemID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLineItem) }

// ParseChangeID parses a string and validates the "chg" prefix.
func ParseChangeID(s string) (ID, error) { return ParseWithPrefix(s, PrefixChange) }

// ParseBatchID parses a string and validates the "batch" prefix.
func ParseBatchID(s string) (ID, error) { return ParseWithPrefix(s, PrefixBatch) }

// ParseApprovalID parses a string and validates the "apr" prefix.
func ParseApprovalID(s string) (ID, error) { return ParseWithPrefix(s, PrefixApproval) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

// Compare orders two IDs by their string form. IDs generated with the same
// prefix therefore sort by creation time.
func (i ID) Compare(other ID) int {
	return strings.Compare(i.String(), other.String())
}
