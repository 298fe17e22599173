package placement_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/placement"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/publisher"
	"github.com/xraph/placement/store/memory"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation compile and behave as described.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Memory store for the demo, PostgreSQL in production
		store := memory.New()

		e := placement.New(store, placement.WithLogger(slog.Default()))

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop(ctx)

		pub := &publisher.Publisher{Email: "editor@blog.example", Name: "Blog Editor"}
		if err := e.CreatePublisher(ctx, pub); err != nil {
			t.Fatal(err)
		}

		w := &website.Website{Domain: "https://www.blog.example/", CurrentPrice: types.USD(45000).Ptr()}
		if err := e.CreateWebsite(ctx, w); err != nil {
			t.Fatal(err)
		}

		o := &offering.Offering{
			PublisherID: pub.ID,
			Type:        offering.TypeGuestPost,
			BasePrice:   types.USD(50000).Ptr(), // $500.00
		}
		if err := e.CreateOffering(ctx, o); err != nil {
			t.Fatal(err)
		}

		if err := e.CreateRelationship(ctx, &offering.Relationship{
			PublisherID:        pub.ID,
			WebsiteID:          w.ID,
			OfferingID:         o.ID,
			VerificationStatus: offering.VerificationVerified,
		}); err != nil {
			t.Fatal(err)
		}

		// Shadow mode: derive and compare, current price untouched
		cmp, err := e.CompareToCurrent(ctx, w.ID)
		if err != nil {
			t.Fatal(err)
		}
		if cmp.Status != website.ComparisonMismatch || *cmp.Difference != 5000 {
			t.Fatalf("comparison = %s %v", cmp.Status, cmp.Difference)
		}

		w, err = e.PromoteDerivedPrice(ctx, w.ID, placement.PromoteOpts{Actor: "ops@example.com"})
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("current price promoted to %s\n", w.CurrentPrice)

		// Order a placement on the website
		li := &lineitem.LineItem{OrderID: id.NewOrderID(), ClientID: "client_123"}
		if err := e.CreateLineItem(ctx, li, "sales@example.com"); err != nil {
			t.Fatal(err)
		}
		li, err = e.TransitionLineItem(ctx, li.ID, li.Version, lineitem.ActionSubmit, placement.Payload{
			Actor:         "client@example.com",
			TargetPageURL: "https://client.example.org/pricing",
			AnchorText:    "pricing guide",
		})
		if err != nil {
			t.Fatal(err)
		}
		li, err = e.TransitionLineItem(ctx, li.ID, li.Version, lineitem.ActionAssign, placement.Payload{
			Actor:      "ops@example.com",
			Domain:     "blog.example",
			OfferingID: o.ID,
		})
		if err != nil {
			t.Fatal(err)
		}

		// A stale version is a retryable conflict
		_, err = e.TransitionLineItem(ctx, li.ID, li.Version-1, lineitem.ActionApprove, placement.Payload{Actor: "client@example.com"})
		if !placement.IsConflict(err) || !placement.IsRetryable(err) {
			t.Fatalf("expected a retryable conflict, got %v", err)
		}

		li, err = e.TransitionLineItem(ctx, li.ID, li.Version, lineitem.ActionApprove, placement.Payload{Actor: "client@example.com"})
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("line item %s approved at %s (v%d)\n", li.ID, li.ApprovedPrice, li.Version)

		history, err := e.History(ctx, li.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 4 {
			t.Fatalf("history has %d entries, want 4", len(history))
		}
	})

	t.Run("PricingExample", func(t *testing.T) {
		rules := []*pricingrule.Rule{{
			Name:       "Volume Discount",
			Type:       pricingrule.TypeDiscount,
			Conditions: pricingrule.Conditions{MinQuantity: 5},
			Actions:    pricingrule.Actions{Percent: types.Percent(10)},
			AutoApply:  true,
			IsActive:   true,
		}}

		res, err := placement.ApplyRules(types.USD(50000), rules, pricingrule.Context{Quantity: 5})
		if err != nil {
			t.Fatal(err)
		}
		if !res.FinalPrice.Equal(types.USD(45000)) {
			t.Fatalf("final price = %s, want $450.00", res.FinalPrice)
		}
		if names := res.RuleNames(); len(names) != 1 || names[0] != "Volume Discount" {
			t.Fatalf("applied rules = %v", names)
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4900)   // $49.00
		_ = types.EUR(9900)   // €99.00
		_ = types.Zero("usd") // $0.00

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)     // $3.00
		_ = m1.Multiply(3) // $3.00

		// Rates are basis points, rounded half up
		discounted, err := types.USD(333).ApplyRate(-types.Percent(27))
		if err != nil {
			t.Fatal(err)
		}
		_ = discounted // $2.43

		// Comparison
		if !m1.LessThan(m2) {
			t.Fatal("expected $1.00 < $2.00")
		}

		// Formatting
		_ = m1.String()      // "$1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}
