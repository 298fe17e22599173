package placement_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/placement"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/publisher"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

func TestCreatePublisher(t *testing.T) {
	f := newFixture(t)

	p := &publisher.Publisher{Email: "  Editor@Blog.Example ", Name: "Editor"}
	require.NoError(t, f.e.CreatePublisher(f.ctx, p))
	assert.Equal(t, "editor@blog.example", p.Email)
	assert.Equal(t, publisher.AccountActive, p.AccountStatus)
	assert.False(t, p.ID.IsNil())

	got, err := f.e.GetPublisherByEmail(f.ctx, "EDITOR@blog.example")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	err = f.e.CreatePublisher(f.ctx, &publisher.Publisher{Email: "editor@BLOG.example"})
	assert.ErrorIs(t, err, placement.ErrAlreadyExists)

	err = f.e.CreatePublisher(f.ctx, &publisher.Publisher{Name: "no email"})
	assert.True(t, placement.IsValidation(err))

	err = f.e.CreatePublisher(f.ctx, &publisher.Publisher{Email: "not-an-address"})
	assert.True(t, placement.IsValidation(err))

	shadow := &publisher.Publisher{Name: "imported", IsShadow: true}
	assert.NoError(t, f.e.CreatePublisher(f.ctx, shadow))
}

func TestWebsiteDomains(t *testing.T) {
	f := newFixture(t)

	w := &website.Website{Domain: "https://WWW.Blog.Example/posts?page=2"}
	require.NoError(t, f.e.CreateWebsite(f.ctx, w))
	assert.Equal(t, "blog.example", w.Domain)

	for _, spelling := range []string{"blog.example", "BLOG.EXAMPLE.", "http://www.blog.example:8080/x"} {
		got, err := f.e.GetWebsiteByDomain(f.ctx, spelling)
		require.NoError(t, err, spelling)
		assert.Equal(t, w.ID, got.ID)
	}

	err := f.e.CreateWebsite(f.ctx, &website.Website{Domain: "www.blog.example"})
	assert.ErrorIs(t, err, placement.ErrDomainTaken)

	err = f.e.CreateWebsite(f.ctx, &website.Website{Domain: "localhost"})
	assert.True(t, placement.IsValidation(err))

	_, err = f.e.GetWebsiteByDomain(f.ctx, "missing.example")
	assert.True(t, placement.IsNotFound(err))
}

func TestUpdateWebsiteKeepsPrices(t *testing.T) {
	f := newFixture(t)
	w := f.website("blog.example", types.USD(40000).Ptr())

	edit := *w
	edit.CurrentPrice = types.USD(1).Ptr()
	edit.Domain = "Blog.Example"
	require.NoError(t, f.e.UpdateWebsite(f.ctx, &edit))

	got, err := f.e.GetWebsite(f.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(40000), *got.CurrentPrice)
	assert.Equal(t, "blog.example", got.Domain)
}

func TestOfferingValidation(t *testing.T) {
	f := newFixture(t)
	pub := f.publisher("a")

	tests := []struct {
		name string
		o    offering.Offering
	}{
		{"unknown type", offering.Offering{Type: "press_release"}},
		{"negative price", offering.Offering{Type: offering.TypeGuestPost, BasePrice: types.USD(-1).Ptr()}},
		{"word bounds", offering.Offering{Type: offering.TypeGuestPost, MinWords: 900, MaxWords: 500}},
		{"availability", offering.Offering{Type: offering.TypeGuestPost, Availability: "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.o
			o.PublisherID = pub.ID
			assert.True(t, placement.IsValidation(f.e.CreateOffering(f.ctx, &o)))
		})
	}

	err := f.e.CreateOffering(f.ctx, &offering.Offering{PublisherID: id.NewPublisherID(), Type: offering.TypeGuestPost})
	assert.True(t, placement.IsNotFound(err))
}

func TestDeactivatedOfferingStaysInactive(t *testing.T) {
	f := newFixture(t)
	o := f.offering(f.publisher("a"), offering.TypeGuestPost, types.USD(100).Ptr())

	require.NoError(t, f.e.DeactivateOffering(f.ctx, o.ID))
	require.NoError(t, f.e.DeactivateOffering(f.ctx, o.ID))

	got, err := f.e.GetOffering(f.ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	got.IsActive = true
	err = f.e.UpdateOffering(f.ctx, got)
	assert.True(t, placement.IsPolicyViolation(err))
	assert.ErrorIs(t, err, placement.ErrImmutableField)
}

func TestCreateRelationship(t *testing.T) {
	f := newFixture(t)
	pub := f.publisher("a")
	w := f.website("blog.example", nil)

	r := &offering.Relationship{PublisherID: pub.ID, WebsiteID: w.ID}
	require.NoError(t, f.e.CreateRelationship(f.ctx, r))
	assert.Equal(t, offering.RelationshipOwner, r.Type)
	assert.Equal(t, offering.VerificationClaimed, r.VerificationStatus)
	assert.True(t, r.IsActive)

	err := f.e.CreateRelationship(f.ctx, &offering.Relationship{PublisherID: pub.ID, WebsiteID: id.NewWebsiteID()})
	assert.True(t, placement.IsNotFound(err))

	err = f.e.CreateRelationship(f.ctx, &offering.Relationship{
		PublisherID: pub.ID,
		WebsiteID:   w.ID,
		CustomPrice: types.USD(-5).Ptr(),
	})
	assert.True(t, placement.IsValidation(err))

	require.NoError(t, f.e.DeactivateRelationship(f.ctx, r.ID))
	got, err := f.e.GetRelationship(f.ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestPricingRuleValidation(t *testing.T) {
	f := newFixture(t)
	o := f.offering(f.publisher("a"), offering.TypeGuestPost, types.USD(100).Ptr())

	tests := []struct {
		name string
		r    pricingrule.Rule
	}{
		{"no name", pricingrule.Rule{Type: pricingrule.TypeDiscount, Actions: pricingrule.Actions{Percent: 10}}},
		{"unknown type", pricingrule.Rule{Name: "x", Type: "bonus", Actions: pricingrule.Actions{Percent: 10}}},
		{"no action", pricingrule.Rule{Name: "x", Type: pricingrule.TypeDiscount}},
		{"negative action", pricingrule.Rule{Name: "x", Type: pricingrule.TypeDiscount, Actions: pricingrule.Actions{Amount: -100}}},
		{"quantity bounds", pricingrule.Rule{
			Name:       "x",
			Type:       pricingrule.TypeDiscount,
			Actions:    pricingrule.Actions{Percent: 10},
			Conditions: pricingrule.Conditions{MinQuantity: 10, MaxQuantity: 5},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.r
			r.OfferingID = o.ID
			err := f.e.CreatePricingRule(f.ctx, &r)
			var verr placement.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}
