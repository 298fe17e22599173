// Package placement prices publisher offerings and drives order line items
// through fulfillment.
//
// Placement is designed as a library, not a service. Construct an Engine
// over a store and call it from request handlers; it holds no entity data
// of its own. It provides:
//
//   - Offering resolution and explicit ownership-conflict reporting
//   - A conditional pricing rule engine with priority and stacking rules
//   - Derived website prices (min, max or override) compared in shadow mode
//     against the manually maintained current price
//   - A versioned line-item state machine with an append-only change log
//   - All-or-nothing bulk operations tagged with one batch ID
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/placement"
//	    "github.com/xraph/placement/store/postgres"
//	)
//
//	e := placement.New(postgres.New(db))
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop(ctx)
//
// # Pricing
//
// Rules are evaluated in ascending priority. Within one rule type only the
// first non-cumulative rule applies; cumulative rules stack on the running
// price, rounding half up after every step:
//
//	res, err := placement.ApplyRules(types.USD(50000), rules, pricingrule.Context{Quantity: 5})
//	// res.FinalPrice == $450.00, res.RuleNames() == ["Volume Discount"]
//
// Derivation never changes a website's current price. Promotion is a
// separate, audited call:
//
//	cmp, _ := e.CompareToCurrent(ctx, websiteID)      // match, mismatch, ...
//	w, _ := e.PromoteDerivedPrice(ctx, websiteID, placement.PromoteOpts{Actor: "ops@example.com"})
//
// # Line items
//
// Every transition names the version it expects. A stale version fails with
// a retryable ConflictError and changes nothing:
//
//	li, err := e.TransitionLineItem(ctx, li.ID, li.Version, lineitem.ActionApprove,
//	    placement.Payload{Actor: "client@example.com"})
//	if placement.IsConflict(err) {
//	    // refetch and retry
//	}
//
// # Ownership
//
// Competing owner claims on one website are reported by DetectConflicts and
// are never resolved automatically. A human picks the winner:
//
//	report, err := e.ResolveConflict(ctx, websiteID, publisherID,
//	    placement.ResolveOpts{Actor: "ops@example.com", Notes: "DNS verified"})
//
// All monetary calculations use integer arithmetic in the smallest currency
// unit. Currency is an opaque tag and is never converted.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	web_01h2xcejqtf2nbrexx3vqjhp41   // Website ID
//	li_01h455vb4pex5vsknk084sn02q    // Line item ID
//	batch_01h455vb4pex5vsknk084sn02q // Bulk operation ID
package placement
