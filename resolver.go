package placement

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/placement/changelog"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/store"
)

// ResolveOpts describes who resolved an ownership conflict and why.
type ResolveOpts struct {
	Actor string
	Notes string
}

// ResolveOfferingsForWebsite returns every (offering, relationship) pair on
// a website where both are active, in relationship creation order.
func (e *Engine) ResolveOfferingsForWebsite(ctx context.Context, websiteID id.WebsiteID) ([]offering.Pairing, error) {
	if _, err := e.store.GetWebsite(ctx, websiteID); err != nil {
		return nil, err
	}
	return activePairings(ctx, e.store, websiteID)
}

func activePairings(ctx context.Context, s store.Store, websiteID id.WebsiteID) ([]offering.Pairing, error) {
	rels, err := s.ListRelationships(ctx, offering.RelationshipListOpts{
		WebsiteID:  websiteID,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	offerings := make(map[id.OfferingID]*offering.Offering)
	pairs := make([]offering.Pairing, 0, len(rels))
	for _, r := range rels {
		if r.OfferingID.IsNil() {
			continue
		}
		o, ok := offerings[r.OfferingID]
		if !ok {
			o, err = s.GetOffering(ctx, r.OfferingID)
			if err != nil {
				return nil, fmt.Errorf("relationship %s: %w", r.ID, err)
			}
			offerings[r.OfferingID] = o
		}
		if !o.IsActive {
			continue
		}
		pairs = append(pairs, offering.Pairing{Offering: o, Relationship: r})
	}
	return pairs, nil
}

// DetectConflicts reports every live ownership claim on a website. It never
// picks a winner.
func (e *Engine) DetectConflicts(ctx context.Context, websiteID id.WebsiteID) (*offering.ConflictReport, error) {
	if _, err := e.store.GetWebsite(ctx, websiteID); err != nil {
		return nil, err
	}

	report, err := detectConflicts(ctx, e.store, websiteID)
	if err != nil {
		return nil, err
	}

	if report.Conflicted {
		e.logger.Warn("ownership conflict detected",
			"website_id", websiteID,
			"claimants", len(report.Claimants),
			"publishers", len(report.Publishers()),
		)
		e.plugins.EmitConflictDetected(ctx, report)
	}
	return report, nil
}

func detectConflicts(ctx context.Context, s store.Store, websiteID id.WebsiteID) (*offering.ConflictReport, error) {
	owners, err := s.ListRelationships(ctx, offering.RelationshipListOpts{
		WebsiteID:  websiteID,
		Type:       offering.RelationshipOwner,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	report := &offering.ConflictReport{WebsiteID: websiteID, Claimants: make([]*offering.Relationship, 0, len(owners))}
	for _, r := range owners {
		if r.IsClaim() {
			report.Claimants = append(report.Claimants, r)
		}
	}
	report.Conflicted = len(report.Publishers()) > 1
	return report, nil
}

// winningClaim picks which of the winner's claims becomes verified when the
// winner holds several: an already verified one, then a primary one, then
// the lowest priority rank. Claimants arrive in creation order.
func winningClaim(report *offering.ConflictReport, winner id.PublisherID) *offering.Relationship {
	var best *offering.Relationship
	for _, r := range report.Claimants {
		if r.PublisherID != winner {
			continue
		}
		switch {
		case best == nil:
			best = r
		case (r.VerificationStatus == offering.VerificationVerified) != (best.VerificationStatus == offering.VerificationVerified):
			if r.VerificationStatus == offering.VerificationVerified {
				best = r
			}
		case r.IsPrimary != best.IsPrimary:
			if r.IsPrimary {
				best = r
			}
		case r.PriorityRank < best.PriorityRank:
			best = r
		}
	}
	return best
}

func claimSummary(r *offering.Relationship) map[string]any {
	return map[string]any{
		"relationship_id":     r.ID.String(),
		"publisher_id":        r.PublisherID.String(),
		"verification_status": string(r.VerificationStatus),
	}
}

// ResolveConflict makes winner the verified owner of a website and rejects
// every other publisher's live claim, in one transaction with one
// ownership_resolved change. The returned report reflects the state after
// resolution.
func (e *Engine) ResolveConflict(ctx context.Context, websiteID id.WebsiteID, winner id.PublisherID, opts ResolveOpts) (*offering.ConflictReport, error) {
	if winner.IsNil() {
		return nil, ValidationError{Field: "winning_publisher_id", Message: "is required"}
	}
	if strings.TrimSpace(opts.Actor) == "" {
		return nil, ValidationError{Field: "actor", Message: "is required"}
	}

	var before, after *offering.ConflictReport
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetWebsite(ctx, websiteID); err != nil {
			return err
		}

		var err error
		before, err = detectConflicts(ctx, tx, websiteID)
		if err != nil {
			return err
		}

		win := winningClaim(before, winner)
		if win == nil {
			return &PolicyViolationError{
				Operation: "resolve conflict",
				Reason:    fmt.Sprintf("publisher %s holds no live ownership claim on website %s", winner, websiteID),
				Err:       ErrNotAClaimant,
			}
		}

		now := e.now()
		previous := make([]map[string]any, 0, len(before.Claimants))
		rejected := make([]string, 0, len(before.Claimants))
		after = &offering.ConflictReport{WebsiteID: websiteID}
		for _, r := range before.Claimants {
			previous = append(previous, claimSummary(r))

			// The winner's other claims list its own offerings on the site
			// and stay as they are.
			if r.PublisherID == winner && r.ID != win.ID {
				after.Claimants = append(after.Claimants, r)
				continue
			}

			next := *r
			if r.ID == win.ID {
				next.VerificationStatus = offering.VerificationVerified
				after.Claimants = append(after.Claimants, &next)
			} else {
				next.VerificationStatus = offering.VerificationRejected
				rejected = append(rejected, r.ID.String())
			}
			if next.VerificationStatus == r.VerificationStatus {
				continue
			}
			next.TouchAt(now)
			if err := tx.UpdateRelationship(ctx, &next); err != nil {
				return wrapOwnershipErr(&next, err)
			}
		}

		return appendChange(ctx, tx, &changelog.Change{
			WebsiteID:     websiteID,
			Type:          changelog.TypeOwnershipResolved,
			PreviousValue: map[string]any{"claimants": previous},
			NewValue: map[string]any{
				"winner_publisher_id":    winner.String(),
				"winner_relationship_id": win.ID.String(),
				"rejected":               rejected,
			},
			Actor:     opts.Actor,
			Reason:    opts.Notes,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("ownership conflict resolved",
		"website_id", websiteID,
		"winner", winner,
		"claimants", len(before.Claimants),
		"actor", opts.Actor,
	)
	e.plugins.EmitOwnershipResolved(ctx, before, winner, opts.Actor)

	return after, nil
}
