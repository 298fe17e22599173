package placement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/placement/id"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("placement: not found")
	ErrAlreadyExists = errors.New("placement: already exists")
	ErrInvalidInput  = errors.New("placement: invalid input")

	// Entity errors
	ErrPublisherNotFound    = errors.New("placement: publisher not found")
	ErrWebsiteNotFound      = errors.New("placement: website not found")
	ErrDomainTaken          = errors.New("placement: domain already registered")
	ErrOfferingNotFound     = errors.New("placement: offering not found")
	ErrRelationshipNotFound = errors.New("placement: relationship not found")
	ErrPricingRuleNotFound  = errors.New("placement: pricing rule not found")
	ErrLineItemNotFound     = errors.New("placement: line item not found")

	// Error classes. Typed errors unwrap to one of these.
	ErrConflict        = errors.New("placement: conflict")
	ErrPolicyViolation = errors.New("placement: policy violation")
	ErrComputation     = errors.New("placement: computation failed")

	// Conflict causes
	ErrVersionConflict   = errors.New("placement: version conflict")
	ErrOwnershipConflict = errors.New("placement: ownership conflict")

	// Policy causes
	ErrIllegalTransition = errors.New("placement: illegal transition")
	ErrNotAClaimant      = errors.New("placement: publisher is not a current claimant")
	ErrImmutableField    = errors.New("placement: field is immutable")

	// Computation causes
	ErrNoEligibleOffering = errors.New("placement: no eligible offering")
	ErrCurrencyMismatch   = errors.New("placement: currency mismatch")
	ErrArithmetic         = errors.New("placement: arithmetic overflow")

	// Store errors
	ErrStoreNotReady     = errors.New("placement: store not ready")
	ErrStoreClosed       = errors.New("placement: store is closed")
	ErrTransactionFailed = errors.New("placement: transaction failed")
	ErrMigrationFailed   = errors.New("placement: migration failed")
)

// ValidationError represents malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("placement: validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// ConflictError reports a stale version or competing ownership claims.
// Version conflicts are retryable after the caller refetches.
type ConflictError struct {
	Resource string
	ID       string
	Expected int64
	Actual   int64
	Detail   string
	Err      error
}

func (e *ConflictError) Error() string {
	if errors.Is(e.Err, ErrVersionConflict) {
		return fmt.Sprintf("placement: conflict on %s %s: expected version %d, found %d",
			e.Resource, e.ID, e.Expected, e.Actual)
	}
	if e.Detail != "" {
		return fmt.Sprintf("placement: conflict on %s %s: %s", e.Resource, e.ID, e.Detail)
	}
	return fmt.Sprintf("placement: conflict on %s %s", e.Resource, e.ID)
}

func (e *ConflictError) Unwrap() []error { return []error{ErrConflict, e.Err} }

func versionConflict(resource string, resourceID id.ID, expected, actual int64) *ConflictError {
	return &ConflictError{
		Resource: resource,
		ID:       resourceID.String(),
		Expected: expected,
		Actual:   actual,
		Err:      ErrVersionConflict,
	}
}

// PolicyViolationError rejects an operation the current state does not
// allow. It aborts only the requested operation.
type PolicyViolationError struct {
	Operation string
	Reason    string
	Err       error
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("placement: %s not allowed: %s", e.Operation, e.Reason)
}

func (e *PolicyViolationError) Unwrap() []error { return []error{ErrPolicyViolation, e.Err} }

// ComputationError reports that a price could not be derived.
type ComputationError struct {
	WebsiteID string
	Reason    string
	Err       error
}

func (e *ComputationError) Error() string {
	if e.WebsiteID == "" {
		return fmt.Sprintf("placement: computation failed: %s", e.Reason)
	}
	return fmt.Sprintf("placement: computation failed for website %s: %s", e.WebsiteID, e.Reason)
}

func (e *ComputationError) Unwrap() []error { return []error{ErrComputation, e.Err} }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "placement: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("placement: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

func (e MultiError) Unwrap() []error { return e.Errors }

// BatchFailure identifies one failed item of a bulk operation.
type BatchFailure struct {
	Index  int
	ItemID string
	Err    error
}

// BatchError is returned when any item of a bulk operation failed. Nothing
// from the batch was applied.
type BatchError struct {
	BatchID  id.BatchID
	Failures []BatchFailure
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "placement: batch %s rolled back: %d item(s) failed", e.BatchID, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; [%d] %s: %v", f.Index, f.ItemID, f.Err)
	}
	return b.String()
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPublisherNotFound) ||
		errors.Is(err, ErrWebsiteNotFound) ||
		errors.Is(err, ErrOfferingNotFound) ||
		errors.Is(err, ErrRelationshipNotFound) ||
		errors.Is(err, ErrPricingRuleNotFound) ||
		errors.Is(err, ErrLineItemNotFound)
}

// IsValidation returns true if the error reports malformed input.
func IsValidation(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsConflict returns true for version and ownership conflicts.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsPolicyViolation returns true if the current state forbids the operation.
func IsPolicyViolation(err error) bool { return errors.Is(err, ErrPolicyViolation) }

// IsComputation returns true if a price could not be derived.
func IsComputation(err error) bool { return errors.Is(err, ErrComputation) }

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
