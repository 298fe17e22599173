package placement_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/placement"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/publisher"
	"github.com/xraph/placement/store"
	"github.com/xraph/placement/store/memory"
	"github.com/xraph/placement/types"
	"github.com/xraph/placement/website"
)

// stepClock advances one second per reading so creation order is visible
// in timestamps.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	e   *placement.Engine
	n   int
}

func newFixture(t *testing.T, opts ...placement.Option) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.New(), opts...)
}

func newFixtureOn(t *testing.T, s store.Store, opts ...placement.Option) *fixture {
	t.Helper()

	clock := &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	base := []placement.Option{
		placement.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		placement.WithClock(clock.Now),
	}
	e := placement.New(s, append(base, opts...)...)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	t.Cleanup(func() { _ = e.Stop(context.Background()) })

	return &fixture{t: t, ctx: ctx, e: e}
}

func (f *fixture) publisher(name string) *publisher.Publisher {
	f.t.Helper()
	p := &publisher.Publisher{Email: name + "@example.com", Name: name}
	require.NoError(f.t, f.e.CreatePublisher(f.ctx, p))
	return p
}

func (f *fixture) website(domain string, current *types.Money) *website.Website {
	f.t.Helper()
	w := &website.Website{Domain: domain, CurrentPrice: current}
	require.NoError(f.t, f.e.CreateWebsite(f.ctx, w))
	return w
}

func (f *fixture) offering(pub *publisher.Publisher, typ offering.Type, price *types.Money) *offering.Offering {
	f.t.Helper()
	o := &offering.Offering{PublisherID: pub.ID, Type: typ, BasePrice: price, TurnaroundDays: 5}
	require.NoError(f.t, f.e.CreateOffering(f.ctx, o))
	return o
}

func (f *fixture) relate(pub *publisher.Publisher, o *offering.Offering, w *website.Website, status offering.VerificationStatus) *offering.Relationship {
	f.t.Helper()
	r := &offering.Relationship{
		PublisherID:        pub.ID,
		WebsiteID:          w.ID,
		Type:               offering.RelationshipOwner,
		VerificationStatus: status,
	}
	if o != nil {
		r.OfferingID = o.ID
	}
	require.NoError(f.t, f.e.CreateRelationship(f.ctx, r))
	return r
}

func (f *fixture) rule(o *offering.Offering, r pricingrule.Rule) *pricingrule.Rule {
	f.t.Helper()
	r.OfferingID = o.ID
	require.NoError(f.t, f.e.CreatePricingRule(f.ctx, &r))
	return &r
}

// listing is one verified publisher selling a guest post on a new website.
type listing struct {
	website      *website.Website
	publisher    *publisher.Publisher
	offering     *offering.Offering
	relationship *offering.Relationship
}

func (f *fixture) listing(domain string, price int64) listing {
	f.t.Helper()
	f.n++
	pub := f.publisher(fmt.Sprintf("pub%d", f.n))
	w := f.website(domain, nil)
	o := f.offering(pub, offering.TypeGuestPost, types.USD(price).Ptr())
	r := f.relate(pub, o, w, offering.VerificationVerified)
	return listing{website: w, publisher: pub, offering: o, relationship: r}
}

func (f *fixture) draft() *lineitem.LineItem {
	f.t.Helper()
	li := &lineitem.LineItem{OrderID: id.NewOrderID(), ClientID: "client_1"}
	require.NoError(f.t, f.e.CreateLineItem(f.ctx, li, "sales@example.com"))
	return li
}

func (f *fixture) step(li *lineitem.LineItem, action lineitem.Action, p placement.Payload) *lineitem.LineItem {
	f.t.Helper()
	if p.Actor == "" {
		p.Actor = "ops@example.com"
	}
	next, err := f.e.TransitionLineItem(f.ctx, li.ID, li.Version, action, p)
	require.NoError(f.t, err)
	return next
}

func (f *fixture) selected(l listing) *lineitem.LineItem {
	f.t.Helper()
	li := f.draft()
	li = f.step(li, lineitem.ActionSubmit, placement.Payload{
		TargetPageURL: "https://client.example.org/pricing",
		AnchorText:    "pricing guide",
	})
	return f.step(li, lineitem.ActionAssign, placement.Payload{
		Domain:     l.website.Domain,
		OfferingID: l.offering.ID,
	})
}

func (f *fixture) approved(l listing) *lineitem.LineItem {
	f.t.Helper()
	return f.step(f.selected(l), lineitem.ActionApprove, placement.Payload{Actor: "client@example.com"})
}

// recorder is a plugin that records every event it receives.
type recorder struct {
	mu          sync.Mutex
	conflicts   []*offering.ConflictReport
	resolved    []id.PublisherID
	transitions []lineitem.Action
	rejected    []error
	batches     []error
	promoted    int
	derived     int
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnConflictDetected(_ context.Context, report *offering.ConflictReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = append(r.conflicts, report)
	return nil
}

func (r *recorder) OnOwnershipResolved(_ context.Context, _ *offering.ConflictReport, winner id.PublisherID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, winner)
	return nil
}

func (r *recorder) OnLineItemTransitioned(_ context.Context, _ *lineitem.LineItem, action lineitem.Action, _ lineitem.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, action)
	return nil
}

func (r *recorder) OnTransitionRejected(_ context.Context, _ id.LineItemID, _ lineitem.Action, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, err)
	return nil
}

func (r *recorder) OnBatchCompleted(_ context.Context, _ id.BatchID, _ string, _ int, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, err)
	return nil
}

func (r *recorder) OnPricePromoted(_ context.Context, _ *website.Website, _ *types.Money) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promoted++
	return nil
}

func (r *recorder) OnPriceDerived(_ context.Context, _ *website.Derivation, _ time.Duration, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.derived++
	return nil
}

func TestEngineStartStop(t *testing.T) {
	rec := &recorder{}
	e := placement.New(memory.New(), placement.WithPlugin(rec))

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	require.Equal(t, 1, e.Plugins().Count())
	require.NoError(t, e.Stop(ctx))
}
