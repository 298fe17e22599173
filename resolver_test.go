package placement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/placement"
	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

func TestResolveOfferingsForWebsite(t *testing.T) {
	f := newFixture(t)

	alice, bob := f.publisher("alice"), f.publisher("bob")
	w := f.website("example.com", nil)

	live := f.offering(alice, offering.TypeGuestPost, types.USD(1500).Ptr())
	retired := f.offering(bob, offering.TypeGuestPost, types.USD(1200).Ptr())
	insertion := f.offering(bob, offering.TypeLinkInsertion, types.USD(800).Ptr())

	f.relate(alice, live, w, offering.VerificationVerified)
	f.relate(bob, retired, w, offering.VerificationClaimed)
	f.relate(bob, insertion, w, offering.VerificationClaimed)
	f.relate(bob, nil, w, offering.VerificationClaimed)
	require.NoError(t, f.e.DeactivateOffering(f.ctx, retired.ID))

	pairs, err := f.e.ResolveOfferingsForWebsite(f.ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, live.ID, pairs[0].Offering.ID)
	assert.Equal(t, insertion.ID, pairs[1].Offering.ID)

	_, err = f.e.ResolveOfferingsForWebsite(f.ctx, id.NewWebsiteID())
	assert.True(t, placement.IsNotFound(err))
}

func TestOwnershipConflict(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, placement.WithPlugin(rec))

	a, b := f.publisher("a"), f.publisher("b")
	w := f.website("contested.example", nil)
	relA := f.relate(a, f.offering(a, offering.TypeGuestPost, types.USD(1000).Ptr()), w, offering.VerificationVerified)
	relB := f.relate(b, f.offering(b, offering.TypeGuestPost, types.USD(900).Ptr()), w, offering.VerificationClaimed)

	report, err := f.e.DetectConflicts(f.ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, report.Conflicted)
	require.Len(t, report.Claimants, 2)
	assert.NotNil(t, report.Claimant(a.ID))
	assert.NotNil(t, report.Claimant(b.ID))

	// Detection is a pure read: nothing was resolved.
	again, err := f.e.DetectConflicts(f.ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, again.Claimants, 2)
	assert.Len(t, rec.conflicts, 2)

	after, err := f.e.ResolveConflict(f.ctx, w.ID, a.ID, placement.ResolveOpts{Actor: "ops@example.com", Notes: "DNS TXT record"})
	require.NoError(t, err)
	assert.False(t, after.Conflicted)
	require.Len(t, after.Claimants, 1)
	assert.Equal(t, relA.ID, after.Claimants[0].ID)

	gotA, err := f.e.GetRelationship(f.ctx, relA.ID)
	require.NoError(t, err)
	assert.Equal(t, offering.VerificationVerified, gotA.VerificationStatus)
	gotB, err := f.e.GetRelationship(f.ctx, relB.ID)
	require.NoError(t, err)
	assert.Equal(t, offering.VerificationRejected, gotB.VerificationStatus)

	history, err := f.e.WebsiteHistory(f.ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, changelog.TypeOwnershipResolved, history[0].Type)
	assert.Equal(t, "ops@example.com", history[0].Actor)
	assert.Equal(t, "DNS TXT record", history[0].Reason)
	assert.Equal(t, []id.PublisherID{a.ID}, rec.resolved)

	report, err = f.e.DetectConflicts(f.ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, report.Conflicted)
}

func TestResolveConflictRejectsNonClaimant(t *testing.T) {
	f := newFixture(t)

	a, b, outsider := f.publisher("a"), f.publisher("b"), f.publisher("c")
	w := f.website("contested.example", nil)
	relA := f.relate(a, nil, w, offering.VerificationClaimed)
	f.relate(b, nil, w, offering.VerificationClaimed)

	_, err := f.e.ResolveConflict(f.ctx, w.ID, outsider.ID, placement.ResolveOpts{Actor: "ops@example.com"})
	assert.True(t, placement.IsPolicyViolation(err))
	assert.ErrorIs(t, err, placement.ErrNotAClaimant)

	// Nothing changed and nothing was recorded.
	got, err := f.e.GetRelationship(f.ctx, relA.ID)
	require.NoError(t, err)
	assert.Equal(t, offering.VerificationClaimed, got.VerificationStatus)
	history, err := f.e.WebsiteHistory(f.ctx, w.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = f.e.ResolveConflict(f.ctx, w.ID, a.ID, placement.ResolveOpts{})
	assert.True(t, placement.IsValidation(err))
}

func TestSecondVerifiedOwnerIsConflict(t *testing.T) {
	f := newFixture(t)

	a := f.publisher("a")
	w := f.website("example.com", nil)
	f.relate(a, f.offering(a, offering.TypeGuestPost, types.USD(100).Ptr()), w, offering.VerificationVerified)

	dup := &offering.Relationship{
		PublisherID:        a.ID,
		WebsiteID:          w.ID,
		OfferingID:         f.offering(a, offering.TypeHomepageLink, types.USD(300).Ptr()).ID,
		Type:               offering.RelationshipOwner,
		VerificationStatus: offering.VerificationVerified,
	}
	err := f.e.CreateRelationship(f.ctx, dup)
	assert.True(t, placement.IsConflict(err))
	assert.ErrorIs(t, err, placement.ErrOwnershipConflict)

	dup.VerificationStatus = offering.VerificationClaimed
	require.NoError(t, f.e.CreateRelationship(f.ctx, dup))
}

func TestOnePublisherDoesNotConflictWithItself(t *testing.T) {
	f := newFixture(t)

	a, b := f.publisher("a"), f.publisher("b")
	w := f.website("own.example", nil)
	post := f.offering(a, offering.TypeGuestPost, types.USD(1000).Ptr())
	premium := f.offering(a, offering.TypeGuestPost, types.USD(2500).Ptr())
	relPost := f.relate(a, post, w, offering.VerificationVerified)
	relPremium := f.relate(a, premium, w, offering.VerificationClaimed)

	report, err := f.e.DetectConflicts(f.ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, report.Conflicted)
	assert.Len(t, report.Claimants, 2)
	assert.Equal(t, []id.PublisherID{a.ID}, report.Publishers())

	relB := f.relate(b, nil, w, offering.VerificationClaimed)
	report, err = f.e.DetectConflicts(f.ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, report.Conflicted)
	assert.Equal(t, []id.PublisherID{a.ID, b.ID}, report.Publishers())

	after, err := f.e.ResolveConflict(f.ctx, w.ID, a.ID, placement.ResolveOpts{Actor: "ops@example.com"})
	require.NoError(t, err)
	assert.False(t, after.Conflicted)
	require.Len(t, after.Claimants, 2)
	assert.Equal(t, relPost.ID, after.Claimants[0].ID)
	assert.Equal(t, relPremium.ID, after.Claimants[1].ID)

	// The winner's second claim is untouched and still prices the site.
	got, err := f.e.GetRelationship(f.ctx, relPremium.ID)
	require.NoError(t, err)
	assert.Equal(t, offering.VerificationClaimed, got.VerificationStatus)
	got, err = f.e.GetRelationship(f.ctx, relB.ID)
	require.NoError(t, err)
	assert.Equal(t, offering.VerificationRejected, got.VerificationStatus)

	d, err := f.e.CalculateDerivedPrice(f.ctx, w.ID, website.StrategyMaxPrice, id.Nil)
	require.NoError(t, err)
	assert.Equal(t, premium.ID, d.OfferingID)

	history, err := f.e.WebsiteHistory(f.ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{relB.ID.String()}, history[0].NewValue["rejected"])
}

func TestUpdateRelationshipKeepsOwnershipState(t *testing.T) {
	f := newFixture(t)

	a, b := f.publisher("a"), f.publisher("b")
	w := f.website("contested.example", nil)
	f.relate(a, nil, w, offering.VerificationVerified)
	relB := f.relate(b, nil, w, offering.VerificationClaimed)

	rejected := *relB
	rejected.VerificationStatus = offering.VerificationRejected
	err := f.e.UpdateRelationship(f.ctx, &rejected)
	assert.True(t, placement.IsPolicyViolation(err))
	assert.ErrorIs(t, err, placement.ErrImmutableField)

	contact := *relB
	contact.Type = offering.RelationshipContact
	err = f.e.UpdateRelationship(f.ctx, &contact)
	assert.True(t, placement.IsPolicyViolation(err))

	report, err := f.e.DetectConflicts(f.ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, report.Conflicted, "the conflict is still open")
	history, err := f.e.WebsiteHistory(f.ctx, w.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Descriptive fields still update.
	priced := *relB
	priced.CustomPrice = types.USD(700).Ptr()
	priced.PriorityRank = 2
	require.NoError(t, f.e.UpdateRelationship(f.ctx, &priced))
	got, err := f.e.GetRelationship(f.ctx, relB.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(700), *got.CustomPrice)
	assert.Equal(t, offering.VerificationClaimed, got.VerificationStatus)
}
