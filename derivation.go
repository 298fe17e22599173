package placement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/store"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// PromoteOpts describes an explicit promotion of a derived price.
type PromoteOpts struct {
	Actor  string
	Reason string
	// Strategy overrides the website's stored strategy.
	Strategy website.Strategy
}

// Recalculation is the shadow-mode outcome for one website. Err holds a
// per-site failure; it never fails the whole run.
type Recalculation struct {
	WebsiteID  id.WebsiteID        `json:"website_id"`
	Comparison *website.Comparison `json:"comparison,omitempty"`
	Err        error               `json:"-"`
}

// storedStrategy is the strategy a website prices with when none is named.
func (e *Engine) storedStrategy(w *website.Website) website.Strategy {
	if !w.OverrideOfferingID.IsNil() {
		return website.StrategyOverride
	}
	if w.PriceCalculationMethod.Valid() && w.PriceCalculationMethod != website.StrategyOverride {
		return w.PriceCalculationMethod
	}
	return e.defaultStrategy
}

// candidates prices every eligible guest-post offering on a website with a
// single-unit context. Rejected claims do not price a website.
func candidates(ctx context.Context, s store.Store, websiteID id.WebsiteID, at time.Time) ([]website.Candidate, error) {
	pairs, err := activePairings(ctx, s, websiteID)
	if err != nil {
		return nil, err
	}

	seen := make(map[id.OfferingID]bool)
	out := make([]website.Candidate, 0, len(pairs))
	for _, p := range pairs {
		o, r := p.Offering, p.Relationship
		if o.Type != offering.TypeGuestPost || !o.Priced() || seen[o.ID] {
			continue
		}
		if r.VerificationStatus == offering.VerificationRejected {
			continue
		}
		seen[o.ID] = true

		res, err := evaluateOffering(ctx, s, o, pricingrule.Context{Quantity: 1, At: at})
		if err != nil {
			return nil, err
		}
		out = append(out, website.Candidate{
			OfferingID:     o.ID,
			PublisherID:    r.PublisherID,
			RelationshipID: r.ID,
			BasePrice:      res.BasePrice,
			EffectivePrice: res.FinalPrice,
			AppliedRules:   res.RuleNames(),
		})
	}
	return out, nil
}

// derive selects a price without persisting anything. A nil Price with a
// nil error means no offering qualified.
func derive(ctx context.Context, s store.Store, w *website.Website, strategy website.Strategy, override id.OfferingID, at time.Time) (*website.Derivation, error) {
	d := &website.Derivation{WebsiteID: w.ID, Strategy: strategy, CalculatedAt: at}

	cands, err := candidates(ctx, s, w.ID, at)
	if err != nil {
		return d, err
	}
	d.Candidates = cands

	var pick *website.Candidate
	switch strategy {
	case website.StrategyOverride:
		if override.IsNil() {
			override = w.OverrideOfferingID
		}
		if override.IsNil() {
			return d, ValidationError{Field: "override_offering_id", Message: "override strategy needs an offering"}
		}
		for i := range cands {
			if cands[i].OfferingID == override {
				pick = &cands[i]
				break
			}
		}
		if pick == nil {
			return d, &ComputationError{
				WebsiteID: w.ID.String(),
				Reason:    fmt.Sprintf("override offering %s is not an eligible offering on this website", override),
				Err:       ErrNoEligibleOffering,
			}
		}

	case website.StrategyMinPrice, website.StrategyMaxPrice:
		for i := range cands {
			c := &cands[i]
			if pick == nil {
				pick = c
				continue
			}
			if !c.EffectivePrice.SameCurrency(pick.EffectivePrice) {
				return d, &ComputationError{
					WebsiteID: w.ID.String(),
					Reason:    fmt.Sprintf("offerings priced in %s and %s", pick.EffectivePrice.Currency, c.EffectivePrice.Currency),
					Err:       ErrCurrencyMismatch,
				}
			}
			lower := c.EffectivePrice.Amount < pick.EffectivePrice.Amount
			higher := c.EffectivePrice.Amount > pick.EffectivePrice.Amount
			if (strategy == website.StrategyMinPrice && lower) || (strategy == website.StrategyMaxPrice && higher) {
				pick = c
			}
		}

	default:
		return d, ValidationError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", strategy)}
	}

	if pick != nil {
		d.Price = pick.EffectivePrice.Ptr()
		d.OfferingID = pick.OfferingID
	}
	return d, nil
}

// CalculateDerivedPrice derives a website's price with the given strategy,
// or the website's stored strategy when strategy is empty. Every call
// stamps the derived price, method and time on the website; the current
// price is never touched. When no price can be computed the derived price
// is stamped null and the ComputationError is returned.
func (e *Engine) CalculateDerivedPrice(ctx context.Context, websiteID id.WebsiteID, strategy website.Strategy, overrideOfferingID id.OfferingID) (*website.Derivation, error) {
	w, err := e.store.GetWebsite(ctx, websiteID)
	if err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = e.storedStrategy(w)
	}
	if !strategy.Valid() {
		return nil, ValidationError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", strategy)}
	}
	return e.calculate(ctx, e.store, w, strategy, overrideOfferingID)
}

func (e *Engine) calculate(ctx context.Context, s store.Store, w *website.Website, strategy website.Strategy, override id.OfferingID) (*website.Derivation, error) {
	start := time.Now()
	at := e.now()

	d, derr := derive(ctx, s, w, strategy, override, at)
	if derr != nil && !IsComputation(derr) {
		return nil, derr
	}
	if derr != nil {
		d.Price, d.OfferingID = nil, id.Nil
	}

	if err := s.StampDerivation(ctx, w.ID, d.Price, strategy, at); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	e.plugins.EmitPriceDerived(ctx, d, elapsed, derr)
	if derr != nil {
		e.logger.Warn("price derivation failed",
			"website_id", w.ID,
			"strategy", strategy,
			"error", derr,
		)
		return d, derr
	}

	e.logger.Debug("price derived",
		"website_id", w.ID,
		"strategy", strategy,
		"price", d.Price,
		"candidates", len(d.Candidates),
	)
	return d, nil
}

// CompareToCurrent derives a website's price with its stored strategy and
// classifies it against the manually maintained current price. A failed
// derivation is reported as derived_null, not as an error.
func (e *Engine) CompareToCurrent(ctx context.Context, websiteID id.WebsiteID) (*website.Comparison, error) {
	w, err := e.store.GetWebsite(ctx, websiteID)
	if err != nil {
		return nil, err
	}
	return e.compare(ctx, w, e.storedStrategy(w))
}

func (e *Engine) compare(ctx context.Context, w *website.Website, strategy website.Strategy) (*website.Comparison, error) {
	d, err := e.calculate(ctx, e.store, w, strategy, id.Nil)
	if err != nil && !IsComputation(err) {
		return nil, err
	}

	status, diff := website.Classify(d.Price, w.CurrentPrice)
	return &website.Comparison{
		WebsiteID:    w.ID,
		Strategy:     strategy,
		Status:       status,
		DerivedPrice: d.Price,
		CurrentPrice: w.CurrentPrice,
		Difference:   diff,
		CalculatedAt: d.CalculatedAt,
	}, nil
}

// RecalculateDerivedPrices runs shadow-mode derivation and comparison for
// many websites with bounded concurrency. Results keep the input order.
// An empty strategy uses each website's stored strategy.
func (e *Engine) RecalculateDerivedPrices(ctx context.Context, websiteIDs []id.WebsiteID, strategy website.Strategy) ([]Recalculation, error) {
	if strategy != "" && !strategy.Valid() {
		return nil, ValidationError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", strategy)}
	}

	results := make([]Recalculation, len(websiteIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.recalcConcurrency)

	for i, wid := range websiteIDs {
		results[i].WebsiteID = wid
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w, err := e.store.GetWebsite(gctx, wid)
			if err != nil {
				results[i].Err = err
				return nil
			}
			s := strategy
			if s == "" {
				s = e.storedStrategy(w)
			}
			results[i].Comparison, results[i].Err = e.compare(gctx, w, s)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	mismatched := 0
	for _, r := range results {
		if r.Comparison != nil && r.Comparison.Status != website.ComparisonMatch {
			mismatched++
		}
	}
	e.logger.Info("derived prices recalculated",
		"websites", len(websiteIDs),
		"not_matching", mismatched,
	)
	return results, nil
}

func moneyValue(m *types.Money) any {
	if m == nil {
		return nil
	}
	return map[string]any{"amount": m.Amount, "currency": m.Currency}
}

// PromoteDerivedPrice recomputes a website's derived price and makes it the
// current price, recording a price_promoted change. Promoting a price that
// already equals the current one changes nothing and records nothing.
func (e *Engine) PromoteDerivedPrice(ctx context.Context, websiteID id.WebsiteID, opts PromoteOpts) (*website.Website, error) {
	if strings.TrimSpace(opts.Actor) == "" {
		return nil, ValidationError{Field: "actor", Message: "is required"}
	}
	if opts.Strategy != "" && !opts.Strategy.Valid() {
		return nil, ValidationError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", opts.Strategy)}
	}

	var (
		promoted bool
		previous *types.Money
		result   *website.Website
	)
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		w, err := tx.GetWebsite(ctx, websiteID)
		if err != nil {
			return err
		}
		strategy := opts.Strategy
		if strategy == "" {
			strategy = e.storedStrategy(w)
		}

		at := e.now()
		d, err := derive(ctx, tx, w, strategy, id.Nil, at)
		if err != nil {
			return err
		}
		if d.Price == nil {
			return &ComputationError{WebsiteID: websiteID.String(), Reason: "no eligible offering to promote", Err: ErrNoEligibleOffering}
		}
		if err := tx.StampDerivation(ctx, websiteID, d.Price, strategy, at); err != nil {
			return err
		}

		previous = w.CurrentPrice
		if !types.EqualPtr(w.CurrentPrice, d.Price) {
			promoted = true
			if err := tx.SetCurrentPrice(ctx, websiteID, d.Price, at); err != nil {
				return err
			}
			err := appendChange(ctx, tx, &changelog.Change{
				WebsiteID:     websiteID,
				Type:          changelog.TypePricePromoted,
				PreviousValue: map[string]any{"current_price": moneyValue(w.CurrentPrice)},
				NewValue: map[string]any{
					"current_price": moneyValue(d.Price),
					"strategy":      string(strategy),
					"offering_id":   d.OfferingID.String(),
				},
				Actor:     opts.Actor,
				Reason:    opts.Reason,
				Timestamp: latest(at, w.UpdatedAt),
			})
			if err != nil {
				return err
			}
		}

		result, err = tx.GetWebsite(ctx, websiteID)
		return err
	})
	if err != nil {
		if IsComputation(err) {
			e.logger.Warn("derived price not promoted", "website_id", websiteID, "error", err)
		}
		return nil, err
	}

	if promoted {
		e.logger.Info("derived price promoted",
			"website_id", websiteID,
			"previous", previous,
			"current", result.CurrentPrice,
			"actor", opts.Actor,
		)
		e.plugins.EmitPricePromoted(ctx, result, previous)
	}
	return result, nil
}
