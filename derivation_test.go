package placement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/placement"
	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// twoOfferings builds a website with guest posts priced 1500 and 1200 by
// two publishers and a current price of 1500.
func twoOfferings(f *fixture) (*website.Website, *offering.Offering, *offering.Offering) {
	f.t.Helper()
	a, b := f.publisher("a"), f.publisher("b")
	w := f.website("example.com", types.USD(1500).Ptr())
	high := f.offering(a, offering.TypeGuestPost, types.USD(1500).Ptr())
	low := f.offering(b, offering.TypeGuestPost, types.USD(1200).Ptr())
	f.relate(a, high, w, offering.VerificationVerified)
	f.relate(b, low, w, offering.VerificationClaimed)
	return w, high, low
}

func TestCalculateDerivedPrice(t *testing.T) {
	f := newFixture(t)
	w, high, low := twoOfferings(f)

	d, err := f.e.CalculateDerivedPrice(f.ctx, w.ID, website.StrategyMinPrice, id.Nil)
	require.NoError(t, err)
	require.NotNil(t, d.Price)
	assert.Equal(t, types.USD(1200), *d.Price)
	assert.Equal(t, low.ID, d.OfferingID)
	assert.Len(t, d.Candidates, 2)

	cmp, err := f.e.CompareToCurrent(f.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, website.ComparisonMismatch, cmp.Status)
	require.NotNil(t, cmp.Difference)
	assert.Equal(t, int64(-300), *cmp.Difference)
	assert.Equal(t, website.StrategyMinPrice, cmp.Strategy)

	d, err = f.e.CalculateDerivedPrice(f.ctx, w.ID, website.StrategyMaxPrice, id.Nil)
	require.NoError(t, err)
	assert.Equal(t, types.USD(1500), *d.Price)
	assert.Equal(t, high.ID, d.OfferingID)

	d, err = f.e.CalculateDerivedPrice(f.ctx, w.ID, website.StrategyOverride, high.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(1500), *d.Price)

	// The current price is never touched by derivation.
	got, err := f.e.GetWebsite(f.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(1500), *got.CurrentPrice)
	assert.Equal(t, types.USD(1500), *got.DerivedPrice)
	assert.Equal(t, website.StrategyOverride, got.PriceCalculationMethod)
	assert.NotNil(t, got.PriceCalculatedAt)
}

func TestCalculateDerivedPriceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	w, _, _ := twoOfferings(f)

	first, err := f.e.CalculateDerivedPrice(f.ctx, w.ID, website.StrategyMinPrice, id.Nil)
	require.NoError(t, err)
	second, err := f.e.CalculateDerivedPrice(f.ctx, w.ID, website.StrategyMinPrice, id.Nil)
	require.NoError(t, err)

	assert.Equal(t, first.Price, second.Price)
	assert.Equal(t, first.Strategy, second.Strategy)
	assert.Equal(t, first.OfferingID, second.OfferingID)
}

func TestCalculateDerivedPriceAppliesRules(t *testing.T) {
	f := newFixture(t)
	w, high, _ := twoOfferings(f)
	f.rule(high, pricingrule.Rule{
		Name:      "Launch",
		Type:      pricingrule.TypeDiscount,
		Actions:   pricingrule.Actions{Percent: types.Percent(30)},
		AutoApply: true,
		IsActive:  true,
	})

	d, err := f.e.CalculateDerivedPrice(f.ctx, w.ID, website.StrategyMinPrice, id.Nil)
	require.NoError(t, err)
	assert.Equal(t, types.USD(1050), *d.Price)
	assert.Equal(t, high.ID, d.OfferingID)
}

func TestCalculateDerivedPriceWithoutOfferings(t *testing.T) {
	f := newFixture(t)
	bare := f.website("bare.example", nil)
	priced := f.website("priced.example", types.USD(900).Ptr())

	// One verified owner claim; the publisher's second offering rides on a
	// claimed relationship of its own.
	pub := f.publisher("p")
	f.relate(pub, f.offering(pub, offering.TypeLinkInsertion, types.USD(500).Ptr()), priced, offering.VerificationVerified)
	f.relate(pub, f.offering(pub, offering.TypeGuestPost, nil), priced, offering.VerificationClaimed)

	d, err := f.e.CalculateDerivedPrice(f.ctx, priced.ID, website.StrategyMinPrice, id.Nil)
	require.NoError(t, err)
	assert.Nil(t, d.Price, "no eligible offering is a null price, not zero")

	cmp, err := f.e.CompareToCurrent(f.ctx, bare.ID)
	require.NoError(t, err)
	assert.Equal(t, website.ComparisonBothNull, cmp.Status)
	assert.Nil(t, cmp.Difference)

	cmp, err = f.e.CompareToCurrent(f.ctx, priced.ID)
	require.NoError(t, err)
	assert.Equal(t, website.ComparisonDerivedNull, cmp.Status)

	l := f.listing("new.example", 700)
	cmp, err = f.e.CompareToCurrent(f.ctx, l.website.ID)
	require.NoError(t, err)
	assert.Equal(t, website.ComparisonCurrentNull, cmp.Status)
}

func TestCalculateDerivedPriceOverrideErrors(t *testing.T) {
	f := newFixture(t)
	w, _, _ := twoOfferings(f)

	_, err := f.e.CalculateDerivedPrice(f.ctx, w.ID, website.StrategyOverride, id.Nil)
	assert.True(t, placement.IsValidation(err))

	pub := f.publisher("elsewhere")
	foreign := f.offering(pub, offering.TypeGuestPost, types.USD(10).Ptr())

	d, err := f.e.CalculateDerivedPrice(f.ctx, w.ID, website.StrategyOverride, foreign.ID)
	assert.True(t, placement.IsComputation(err))
	assert.ErrorIs(t, err, placement.ErrNoEligibleOffering)
	require.NotNil(t, d)
	assert.Nil(t, d.Price)

	got, err := f.e.GetWebsite(f.ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DerivedPrice, "a failed derivation stamps a null derived price")
	assert.Equal(t, website.StrategyOverride, got.PriceCalculationMethod)
	assert.Equal(t, types.USD(1500), *got.CurrentPrice)

	_, err = f.e.CalculateDerivedPrice(f.ctx, w.ID, "cheapest", id.Nil)
	assert.True(t, placement.IsValidation(err))
}

func TestCalculateDerivedPriceCurrencyMismatch(t *testing.T) {
	f := newFixture(t)
	a, b := f.publisher("a"), f.publisher("b")
	w := f.website("mixed.example", types.USD(1000).Ptr())
	f.relate(a, f.offering(a, offering.TypeGuestPost, types.USD(1000).Ptr()), w, offering.VerificationVerified)
	f.relate(b, f.offering(b, offering.TypeGuestPost, types.EUR(900).Ptr()), w, offering.VerificationClaimed)

	_, err := f.e.CalculateDerivedPrice(f.ctx, w.ID, website.StrategyMinPrice, id.Nil)
	assert.ErrorIs(t, err, placement.ErrCurrencyMismatch)

	// Shadow comparison records the failure instead of escalating it.
	cmp, err := f.e.CompareToCurrent(f.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, website.ComparisonDerivedNull, cmp.Status)
}

func TestPromoteDerivedPrice(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, placement.WithPlugin(rec))
	w, _, _ := twoOfferings(f)

	opts := placement.PromoteOpts{Actor: "pricing@example.com", Reason: "quarterly review"}
	got, err := f.e.PromoteDerivedPrice(f.ctx, w.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, types.USD(1200), *got.CurrentPrice)

	again, err := f.e.PromoteDerivedPrice(f.ctx, w.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, types.USD(1200), *again.CurrentPrice)

	history, err := f.e.WebsiteHistory(f.ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, history, 1, "promoting an equal price records nothing")
	assert.Equal(t, changelog.TypePricePromoted, history[0].Type)
	assert.Equal(t, "quarterly review", history[0].Reason)
	assert.Equal(t, 1, rec.promoted)

	_, err = f.e.PromoteDerivedPrice(f.ctx, w.ID, placement.PromoteOpts{})
	assert.True(t, placement.IsValidation(err))

	bare := f.website("bare.example", types.USD(50).Ptr())
	_, err = f.e.PromoteDerivedPrice(f.ctx, bare.ID, opts)
	assert.ErrorIs(t, err, placement.ErrNoEligibleOffering)
	got, err = f.e.GetWebsite(f.ctx, bare.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(50), *got.CurrentPrice)
}

func TestRecalculateDerivedPrices(t *testing.T) {
	f := newFixture(t, placement.WithRecalculateConcurrency(2))
	w, _, _ := twoOfferings(f)
	l := f.listing("solo.example", 800)
	missing := id.NewWebsiteID()

	results, err := f.e.RecalculateDerivedPrices(f.ctx, []id.WebsiteID{w.ID, missing, l.website.ID}, "")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, w.ID, results[0].WebsiteID)
	require.NoError(t, results[0].Err)
	assert.Equal(t, website.ComparisonMismatch, results[0].Comparison.Status)

	assert.True(t, placement.IsNotFound(results[1].Err))
	assert.Nil(t, results[1].Comparison)

	require.NoError(t, results[2].Err)
	assert.Equal(t, website.ComparisonCurrentNull, results[2].Comparison.Status)
	assert.Equal(t, types.USD(800), *results[2].Comparison.DerivedPrice)

	_, err = f.e.RecalculateDerivedPrices(f.ctx, []id.WebsiteID{w.ID}, "cheapest")
	assert.True(t, placement.IsValidation(err))
}
