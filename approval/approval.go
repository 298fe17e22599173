// Package approval queues pricing rules that matched a calculation but
// require a human decision before they may change a price.
package approval

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/xraph/placement/id"
	"github.com/xraph/placement/types"
)

// ErrNotFound is returned by Resolve for an unknown request.
var ErrNotFound = errors.New("approval: request not found")

// Request asks a human to decide whether a rule should apply to one
// calculation.
type Request struct {
	ID          id.ApprovalID    `json:"id"`
	RuleID      id.PricingRuleID `json:"rule_id"`
	RuleName    string           `json:"rule_name"`
	OfferingID  id.OfferingID    `json:"offering_id"`
	Quantity    int              `json:"quantity"`
	ClientID    string           `json:"client_id,omitempty"`
	BasePrice   types.Money      `json:"base_price"`
	RequestedAt time.Time        `json:"requested_at"`
}

// Key identifies requests that describe the same decision. Enqueueing a
// request whose key is already pending is a no-op.
func (r *Request) Key() string {
	return fmt.Sprintf("%s|%s|%s|%d", r.RuleID, r.OfferingID, r.ClientID, r.Quantity)
}

// Queue holds pending approval requests.
type Queue interface {
	// Enqueue adds req unless an equivalent request is pending. It reports
	// whether req was added.
	Enqueue(ctx context.Context, req *Request) (bool, error)
	// Pending returns pending requests, oldest first.
	Pending(ctx context.Context) ([]*Request, error)
	// Resolve removes a request once a human has decided on it.
	Resolve(ctx context.Context, approvalID id.ApprovalID) error
}

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	mu    sync.Mutex
	byKey map[string]*Request
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{byKey: make(map[string]*Request)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, req *Request) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	k := req.Key()
	if _, ok := q.byKey[k]; ok {
		return false, nil
	}
	cp := *req
	q.byKey[k] = &cp
	return true, nil
}

func (q *MemoryQueue) Pending(_ context.Context) ([]*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Request, 0, len(q.byKey))
	for _, r := range q.byKey {
		cp := *r
		out = append(out, &cp)
	}
	sortRequests(out)
	return out, nil
}

func (q *MemoryQueue) Resolve(_ context.Context, approvalID id.ApprovalID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for k, r := range q.byKey {
		if r.ID == approvalID {
			delete(q.byKey, k)
			return nil
		}
	}
	return ErrNotFound
}

func sortRequests(reqs []*Request) {
	slices.SortFunc(reqs, func(a, b *Request) int {
		if c := a.RequestedAt.Compare(b.RequestedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
}
