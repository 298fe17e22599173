package placement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/placement"
	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/store"
	"github.com/xraph/placement/store/memory"
	"github.com/xraph/placement/types"
)

func TestBulkTransitionCommits(t *testing.T) {
	f := newFixture(t)
	l := f.listing("blog.example", 50000)
	a, b := f.selected(l), f.selected(l)

	res, err := f.e.BulkTransition(f.ctx, []placement.TransitionRequest{
		{LineItemID: a.ID, ExpectedVersion: a.Version, Action: lineitem.ActionApprove},
		{LineItemID: b.ID, ExpectedVersion: b.Version, Action: lineitem.ActionApprove},
	}, placement.BulkOpts{Actor: "client@example.com"})
	require.NoError(t, err)
	require.Len(t, res.LineItems, 2)
	for _, li := range res.LineItems {
		assert.Equal(t, lineitem.StatusApproved, li.Status)
		assert.Equal(t, "client@example.com", li.ApprovedBy)
	}

	changes, err := f.e.ByBatch(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, res.BatchID, c.BatchID)
		assert.Equal(t, changelog.Type(lineitem.ActionApprove), c.Type)
	}
}

func TestBulkTransitionRollsBack(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, placement.WithPlugin(rec))
	l := f.listing("blog.example", 50000)
	good, stale, draft := f.selected(l), f.selected(l), f.draft()

	_, err := f.e.BulkTransition(f.ctx, []placement.TransitionRequest{
		{LineItemID: good.ID, ExpectedVersion: good.Version, Action: lineitem.ActionApprove},
		{LineItemID: stale.ID, ExpectedVersion: stale.Version - 1, Action: lineitem.ActionApprove},
		{LineItemID: draft.ID, ExpectedVersion: draft.Version, Action: lineitem.ActionApprove},
	}, placement.BulkOpts{Actor: "client@example.com"})
	require.Error(t, err)

	var berr *placement.BatchError
	require.True(t, errors.As(err, &berr))
	require.Len(t, berr.Failures, 2)
	assert.Equal(t, 1, berr.Failures[0].Index)
	assert.Equal(t, stale.ID.String(), berr.Failures[0].ItemID)
	assert.True(t, placement.IsConflict(berr.Failures[0].Err))
	assert.Equal(t, 2, berr.Failures[1].Index)
	assert.True(t, placement.IsPolicyViolation(berr.Failures[1].Err))

	// The item that succeeded inside the batch was rolled back too.
	got, err := f.e.GetLineItem(f.ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, lineitem.StatusSelected, got.Status)
	assert.Equal(t, good.Version, got.Version)

	changes, err := f.e.ByBatch(f.ctx, berr.BatchID)
	require.NoError(t, err)
	assert.Empty(t, changes)

	require.Len(t, rec.batches, 1)
	assert.Error(t, rec.batches[0])
}

var errConnReset = errors.New("connection reset by peer")

// brokenWrites fails writes to one line item with a driver error and has no
// savepoints, like a backend whose transaction is dead after any failure.
type brokenWrites struct {
	store.Store
	failOn *id.LineItemID
}

func (s brokenWrites) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return s.Store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, brokenWrites{Store: tx, failOn: s.failOn})
	})
}

func (s brokenWrites) UpdateLineItem(ctx context.Context, li *lineitem.LineItem, expectedVersion int64) error {
	if li.ID == *s.failOn {
		return errConnReset
	}
	return s.Store.UpdateLineItem(ctx, li, expectedVersion)
}

func TestBulkTransitionStopsAtWriteFailureWithoutSavepoints(t *testing.T) {
	failOn := id.Nil
	f := newFixtureOn(t, brokenWrites{Store: memory.New(), failOn: &failOn})
	l := f.listing("blog.example", 50000)
	good, broken, stale := f.selected(l), f.selected(l), f.selected(l)
	failOn = broken.ID

	_, err := f.e.BulkTransition(f.ctx, []placement.TransitionRequest{
		{LineItemID: good.ID, ExpectedVersion: good.Version, Action: lineitem.ActionApprove},
		{LineItemID: broken.ID, ExpectedVersion: broken.Version, Action: lineitem.ActionApprove},
		{LineItemID: stale.ID, ExpectedVersion: stale.Version - 1, Action: lineitem.ActionApprove},
	}, placement.BulkOpts{Actor: "client@example.com"})

	var berr *placement.BatchError
	require.True(t, errors.As(err, &berr))
	require.Len(t, berr.Failures, 1, "items after a failed write are not attempted")
	assert.Equal(t, 1, berr.Failures[0].Index)
	assert.ErrorIs(t, err, errConnReset)

	got, err := f.e.GetLineItem(f.ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, good.Version, got.Version)
}

func TestBulkTransitionRejectionsDoNotStopBatchWithoutSavepoints(t *testing.T) {
	failOn := id.Nil
	f := newFixtureOn(t, brokenWrites{Store: memory.New(), failOn: &failOn})
	l := f.listing("blog.example", 50000)
	stale, draft := f.selected(l), f.draft()

	_, err := f.e.BulkTransition(f.ctx, []placement.TransitionRequest{
		{LineItemID: stale.ID, ExpectedVersion: stale.Version - 1, Action: lineitem.ActionApprove},
		{LineItemID: draft.ID, ExpectedVersion: draft.Version, Action: lineitem.ActionApprove},
	}, placement.BulkOpts{Actor: "client@example.com"})

	var berr *placement.BatchError
	require.True(t, errors.As(err, &berr))
	require.Len(t, berr.Failures, 2)
	assert.True(t, placement.IsConflict(berr.Failures[0].Err))
	assert.True(t, placement.IsPolicyViolation(berr.Failures[1].Err))
}

func TestAddDomainsToOrder(t *testing.T) {
	f := newFixture(t)
	blog := f.listing("blog.example", 50000)
	f.listing("news.example", 30000)
	orderID := id.NewOrderID()

	res, err := f.e.AddDomainsToOrder(f.ctx, orderID, "client_9", []placement.DomainSelection{
		{Domain: "blog.example", OfferingID: blog.offering.ID, TargetPageURL: "https://client.example.org/a", AnchorText: "a"},
		{Domain: "www.news.example", TargetPageURL: "https://client.example.org/b", AnchorText: "b"},
	}, placement.BulkOpts{Actor: "sales@example.com"})
	require.NoError(t, err)
	require.Len(t, res.LineItems, 2)

	news := res.LineItems[1]
	assert.Equal(t, lineitem.StatusSelected, news.Status)
	assert.Equal(t, "news.example", news.AssignedDomain)
	assert.Equal(t, types.USD(30000), *news.EstimatedPrice)
	assert.Equal(t, orderID, news.OrderID)
	assert.Equal(t, int64(3), news.Version)

	changes, err := f.e.ByBatch(f.ctx, res.BatchID)
	require.NoError(t, err)
	assert.Len(t, changes, 6, "created, submit and assign for each domain")

	items, err := f.e.ListLineItems(f.ctx, lineitem.ListOpts{OrderID: orderID})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestAddDomainsToOrderIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.listing("blog.example", 50000)
	orderID := id.NewOrderID()
	opts := placement.BulkOpts{Actor: "sales@example.com"}

	_, err := f.e.AddDomainsToOrder(f.ctx, orderID, "client_9", []placement.DomainSelection{
		{Domain: "blog.example", TargetPageURL: "https://client.example.org/a", AnchorText: "a"},
		{Domain: "unknown.example", TargetPageURL: "https://client.example.org/b", AnchorText: "b"},
		{Domain: "blog.example", AnchorText: "missing target"},
	}, opts)

	var berr *placement.BatchError
	require.True(t, errors.As(err, &berr))
	require.Len(t, berr.Failures, 2)
	assert.Equal(t, "unknown.example", berr.Failures[0].ItemID)
	assert.True(t, placement.IsNotFound(berr.Failures[0].Err))
	assert.Equal(t, 2, berr.Failures[1].Index)

	items, err := f.e.ListLineItems(f.ctx, lineitem.ListOpts{OrderID: orderID})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.e.AddDomainsToOrder(f.ctx, orderID, "client_9", []placement.DomainSelection{
		{Domain: "blog.example", TargetPageURL: "https://client.example.org/a", AnchorText: "a"},
		{Domain: "blog.example", TargetPageURL: "https://client.example.org/a", AnchorText: "a"},
	}, opts)
	require.True(t, errors.As(err, &berr))
	require.Len(t, berr.Failures, 1)
	assert.True(t, placement.IsPolicyViolation(berr.Failures[0].Err), "a domain is placed once per order")
}

func TestVerifyRelationships(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.publisher("a"), f.publisher("b"), f.publisher("c")
	solo := f.website("solo.example", nil)
	shared := f.website("shared.example", nil)

	soloClaim := f.relate(a, nil, solo, offering.VerificationClaimed)
	contact := &offering.Relationship{PublisherID: c.ID, WebsiteID: shared.ID, Type: offering.RelationshipContact}
	require.NoError(t, f.e.CreateRelationship(f.ctx, contact))

	res, err := f.e.VerifyRelationships(f.ctx, []id.RelationshipID{soloClaim.ID, contact.ID}, placement.BulkOpts{Actor: "ops@example.com"})
	require.NoError(t, err)
	require.Len(t, res.Relationships, 2)
	for _, r := range res.Relationships {
		assert.Equal(t, offering.VerificationVerified, r.VerificationStatus)
	}

	changes, err := f.e.ByBatch(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, changelog.TypeRelationshipVerified, changes[0].Type)

	// Two publishers claim the shared website: verifying either is a conflict
	// that must go through ResolveConflict.
	claimA := f.relate(a, nil, shared, offering.VerificationClaimed)
	f.relate(b, nil, shared, offering.VerificationClaimed)

	_, err = f.e.VerifyRelationships(f.ctx, []id.RelationshipID{claimA.ID}, placement.BulkOpts{Actor: "ops@example.com"})
	var berr *placement.BatchError
	require.True(t, errors.As(err, &berr))
	assert.True(t, placement.IsConflict(berr.Failures[0].Err))
	assert.ErrorIs(t, err, placement.ErrOwnershipConflict)

	got, err := f.e.GetRelationship(f.ctx, claimA.ID)
	require.NoError(t, err)
	assert.Equal(t, offering.VerificationClaimed, got.VerificationStatus)

	_, err = f.e.VerifyRelationships(f.ctx, nil, placement.BulkOpts{Actor: "ops@example.com"})
	assert.True(t, placement.IsValidation(err))
}
