package placement_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/placement"
	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/types"
)

func TestLineItemLifecycle(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, placement.WithPlugin(rec))
	l := f.listing("blog.example", 50000)

	li := f.draft()
	assert.Equal(t, lineitem.StatusDraft, li.Status)
	assert.Equal(t, int64(1), li.Version)

	li = f.selected(l)
	assert.Equal(t, lineitem.StatusSelected, li.Status)
	assert.Equal(t, "blog.example", li.AssignedDomain)
	assert.Equal(t, l.website.ID, li.WebsiteID)
	assert.Equal(t, l.offering.ID, li.OfferingID)
	assert.Equal(t, l.publisher.ID, li.PublisherID)
	assert.Equal(t, types.USD(50000), *li.EstimatedPrice)
	assert.Equal(t, types.USD(50000), *li.WholesalePrice)
	assert.Equal(t, "min_price", li.Metadata[placement.MetaPricingStrategy])
	assert.NotNil(t, li.Metadata[placement.MetaDerivedPrice])

	li = f.step(li, lineitem.ActionApprove, placement.Payload{Actor: "client@example.com"})
	assert.Equal(t, lineitem.StatusApproved, li.Status)
	assert.Equal(t, types.USD(50000), *li.ApprovedPrice)
	assert.Equal(t, "client@example.com", li.ApprovedBy)
	assert.Equal(t, lineitem.ReviewApproved, li.ClientReviewStatus)
	assert.Equal(t, lineitem.PublisherNotified, li.PublisherStatus)

	accepted := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	li = f.step(li, lineitem.ActionAccept, placement.Payload{PublisherAcceptedAt: &accepted})
	assert.Equal(t, lineitem.StatusInProgress, li.Status)
	assert.Equal(t, lineitem.PublisherAccepted, li.PublisherStatus)

	delivered := accepted.Add(48 * time.Hour)
	li = f.step(li, lineitem.ActionDeliver, placement.Payload{
		DeliveryURL: "https://blog.example/posts/pricing",
		DeliveredAt: &delivered,
	})
	assert.Equal(t, lineitem.StatusDelivered, li.Status)

	li = f.step(li, lineitem.ActionComplete, placement.Payload{})
	assert.Equal(t, lineitem.StatusCompleted, li.Status)
	assert.Equal(t, types.USD(50000), *li.FinalPrice)
	assert.NotNil(t, li.CompletedAt)
	assert.Equal(t, int64(7), li.Version)

	history, err := f.e.History(f.ctx, li.ID)
	require.NoError(t, err)
	require.Len(t, history, 7)

	want := []changelog.Type{"created", "submit", "assign", "approve", "accept", "deliver", "complete"}
	for i, c := range history {
		assert.Equal(t, want[i], c.Type)
		assert.Equal(t, int64(i+1), c.Sequence)
		if i > 0 {
			assert.False(t, c.Timestamp.Before(history[i-1].Timestamp), "timestamps never go backwards")
		}
	}
	assert.Len(t, rec.transitions, 6)
}

func TestTransitionStaleVersion(t *testing.T) {
	f := newFixture(t)
	li := f.approved(f.listing("blog.example", 50000))

	before, err := f.e.History(f.ctx, li.ID)
	require.NoError(t, err)

	_, err = f.e.TransitionLineItem(f.ctx, li.ID, li.Version-1, lineitem.ActionDeliver, placement.Payload{Actor: "ops"})
	require.Error(t, err)
	assert.True(t, placement.IsConflict(err))
	assert.True(t, placement.IsRetryable(err))

	var cerr *placement.ConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, li.Version-1, cerr.Expected)
	assert.Equal(t, li.Version, cerr.Actual)

	got, err := f.e.GetLineItem(f.ctx, li.ID)
	require.NoError(t, err)
	assert.Equal(t, lineitem.StatusApproved, got.Status)
	assert.Equal(t, li.Version, got.Version)

	after, err := f.e.History(f.ctx, li.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestConcurrentTransitionsOnOneVersion(t *testing.T) {
	f := newFixture(t)
	li := f.draft()

	const writers = 16
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.e.TransitionLineItem(f.ctx, li.ID, li.Version, lineitem.ActionCancel, placement.Payload{
				Actor:  "ops@example.com",
				Reason: "client withdrew",
			})
		}()
	}
	wg.Wait()

	var won, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case placement.IsConflict(err):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, writers-1, conflicts)

	got, err := f.e.GetLineItem(f.ctx, li.ID)
	require.NoError(t, err)
	assert.Equal(t, li.Version+1, got.Version)
	assert.Equal(t, lineitem.StatusCancelled, got.Status)

	history, err := f.e.History(f.ctx, li.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "created plus exactly one cancellation")
}

func TestTransitionChecksVersionFirst(t *testing.T) {
	f := newFixture(t)
	li := f.draft()

	// Stale version and illegal action: the version wins.
	_, err := f.e.TransitionLineItem(f.ctx, li.ID, 7, lineitem.ActionComplete, placement.Payload{})
	assert.True(t, placement.IsConflict(err))

	// Illegal action and missing payload: legality wins.
	_, err = f.e.TransitionLineItem(f.ctx, li.ID, li.Version, lineitem.ActionComplete, placement.Payload{})
	assert.True(t, placement.IsPolicyViolation(err))
	assert.ErrorIs(t, err, placement.ErrIllegalTransition)
}

func TestTransitionRejections(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, placement.WithPlugin(rec))
	l := f.listing("blog.example", 50000)

	tests := []struct {
		name   string
		setup  func() *lineitem.LineItem
		action lineitem.Action
		p      placement.Payload
		check  func(error) bool
	}{
		{"submit needs anchor text", f.draft, lineitem.ActionSubmit,
			placement.Payload{Actor: "ops", TargetPageURL: "https://client.example.org"}, placement.IsValidation},
		{"submit needs an http url", f.draft, lineitem.ActionSubmit,
			placement.Payload{Actor: "ops", TargetPageURL: "client page", AnchorText: "x"}, placement.IsValidation},
		{"cancel needs a reason", f.draft, lineitem.ActionCancel,
			placement.Payload{Actor: "ops"}, placement.IsValidation},
		{"actor is required", f.draft, lineitem.ActionCancel,
			placement.Payload{Reason: "dup"}, placement.IsValidation},
		{"unknown action", f.draft, "publish",
			placement.Payload{Actor: "ops"}, placement.IsValidation},
		{"approve from draft", f.draft, lineitem.ActionApprove,
			placement.Payload{Actor: "ops"}, placement.IsPolicyViolation},
		{"accept needs a timestamp", func() *lineitem.LineItem { return f.approved(l) }, lineitem.ActionAccept,
			placement.Payload{Actor: "ops"}, placement.IsValidation},
		{"approved cannot be approved again", func() *lineitem.LineItem { return f.approved(l) }, lineitem.ActionApprove,
			placement.Payload{Actor: "ops"}, placement.IsPolicyViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			li := tt.setup()
			_, err := f.e.TransitionLineItem(f.ctx, li.ID, li.Version, tt.action, tt.p)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error class: %v", err)

			got, err := f.e.GetLineItem(f.ctx, li.ID)
			require.NoError(t, err)
			assert.Equal(t, li.Version, got.Version)
			assert.Equal(t, li.Status, got.Status)
		})
	}
	assert.Len(t, rec.rejected, len(tests))
}

func TestCancelAndExceptions(t *testing.T) {
	f := newFixture(t)
	l := f.listing("blog.example", 50000)

	li := f.step(f.draft(), lineitem.ActionCancel, placement.Payload{Reason: "client withdrew"})
	assert.Equal(t, lineitem.StatusCancelled, li.Status)
	assert.Equal(t, "client withdrew", li.CancellationReason)
	assert.NotNil(t, li.CancelledAt)

	_, err := f.e.TransitionLineItem(f.ctx, li.ID, li.Version, lineitem.ActionCancel, placement.Payload{Actor: "ops", Reason: "again"})
	assert.True(t, placement.IsPolicyViolation(err), "terminal items cannot be cancelled")

	accepted := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	done := f.approved(l)
	done = f.step(done, lineitem.ActionAccept, placement.Payload{PublisherAcceptedAt: &accepted})
	done = f.step(done, lineitem.ActionDeliver, placement.Payload{DeliveryURL: "https://blog.example/p", DeliveredAt: &accepted})
	done = f.step(done, lineitem.ActionComplete, placement.Payload{})

	_, err = f.e.TransitionLineItem(f.ctx, done.ID, done.Version, lineitem.ActionRefund, placement.Payload{Actor: "ops"})
	assert.True(t, placement.IsValidation(err))

	refunded := f.step(done, lineitem.ActionRefund, placement.Payload{Reason: "link removed after 30 days"})
	assert.Equal(t, lineitem.StatusRefunded, refunded.Status)
	assert.Equal(t, "link removed after 30 days", refunded.ExceptionReason)
}

func TestAssignReprices(t *testing.T) {
	f := newFixture(t)
	cheap := f.listing("cheap.example", 20000)
	premium := f.listing("premium.example", 50000)
	f.rule(premium.offering, pricingrule.Rule{
		Name:       "Volume Discount",
		Type:       pricingrule.TypeDiscount,
		Conditions: pricingrule.Conditions{MinQuantity: 5},
		Actions:    pricingrule.Actions{Percent: types.Percent(10)},
		AutoApply:  true,
		IsActive:   true,
	})
	custom := types.USD(30000)
	rel := premium.relationship
	rel.CustomPrice = &custom
	require.NoError(t, f.e.UpdateRelationship(f.ctx, rel))

	li := f.selected(cheap)
	assert.Equal(t, types.USD(20000), *li.EstimatedPrice)

	li = f.step(li, lineitem.ActionAssign, placement.Payload{
		Domain:     "https://www.Premium.example/about",
		OfferingID: premium.offering.ID,
		Quantity:   5,
	})
	assert.Equal(t, lineitem.StatusSelected, li.Status)
	assert.Equal(t, "premium.example", li.AssignedDomain)
	assert.Equal(t, types.USD(45000), *li.EstimatedPrice)
	assert.Equal(t, types.USD(30000), *li.WholesalePrice)
	assert.Equal(t, []string{"Volume Discount"}, li.Metadata[placement.MetaAppliedRules])

	_, err := f.e.TransitionLineItem(f.ctx, li.ID, li.Version, lineitem.ActionAssign, placement.Payload{
		Actor:      "ops",
		Domain:     "cheap.example",
		OfferingID: premium.offering.ID,
	})
	assert.True(t, placement.IsValidation(err), "the offering is not sold on that website")
}

func TestApprovedPriceIsImmutable(t *testing.T) {
	f := newFixture(t)
	l := f.listing("blog.example", 50000)
	li := f.approved(l)

	o := l.offering
	o.BasePrice = types.USD(99000).Ptr()
	require.NoError(t, f.e.UpdateOffering(f.ctx, o))

	li, err := f.e.SetClientReviewStatus(f.ctx, li.ID, li.Version, lineitem.ReviewChangesRequested, "client@example.com", "tone")
	require.NoError(t, err)
	assert.Equal(t, lineitem.ReviewChangesRequested, li.ClientReviewStatus)
	assert.Equal(t, lineitem.StatusApproved, li.Status)

	accepted := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	li = f.step(li, lineitem.ActionAccept, placement.Payload{PublisherAcceptedAt: &accepted})
	assert.Equal(t, types.USD(50000), *li.ApprovedPrice)

	got, err := f.e.GetLineItem(f.ctx, li.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(50000), *got.ApprovedPrice)

	history, err := f.e.History(f.ctx, li.ID)
	require.NoError(t, err)
	assert.Equal(t, changelog.TypeClientReview, history[len(history)-2].Type)
}

func TestOrthogonalStatuses(t *testing.T) {
	f := newFixture(t)
	li := f.selected(f.listing("blog.example", 50000))

	li, err := f.e.SetPublisherStatus(f.ctx, li.ID, li.Version, lineitem.PublisherRejected, "publisher@example.com", "topic mismatch")
	require.NoError(t, err)
	assert.Equal(t, lineitem.PublisherRejected, li.PublisherStatus)
	assert.Equal(t, lineitem.StatusSelected, li.Status)

	_, err = f.e.SetPublisherStatus(f.ctx, li.ID, li.Version-1, lineitem.PublisherAccepted, "publisher@example.com", "")
	assert.True(t, placement.IsConflict(err))

	_, err = f.e.SetClientReviewStatus(f.ctx, li.ID, li.Version, "maybe", "client", "")
	assert.True(t, placement.IsValidation(err))
}

func TestAssignRequiresActivePublisher(t *testing.T) {
	f := newFixture(t)
	l := f.listing("blog.example", 50000)

	pub := l.publisher
	pub.AccountStatus = "suspended"
	require.NoError(t, f.e.UpdatePublisher(f.ctx, pub))

	li := f.step(f.draft(), lineitem.ActionSubmit, placement.Payload{
		TargetPageURL: "https://client.example.org",
		AnchorText:    "client",
	})
	_, err := f.e.TransitionLineItem(f.ctx, li.ID, li.Version, lineitem.ActionAssign, placement.Payload{
		Actor:      "ops",
		Domain:     "blog.example",
		OfferingID: l.offering.ID,
	})
	assert.True(t, placement.IsPolicyViolation(err))

}
