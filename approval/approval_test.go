package approval

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/placement/id"
	"github.com/xraph/placement/types"
)

func newRequest(at time.Time, qty int) *Request {
	return &Request{
		ID:          id.NewApprovalID(),
		RuleID:      id.NewPricingRuleID(),
		RuleName:    "Agency Rate",
		OfferingID:  id.NewOfferingID(),
		Quantity:    qty,
		ClientID:    "client-1",
		BasePrice:   types.USD(50000),
		RequestedAt: at,
	}
}

func queues(t *testing.T) map[string]Queue {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Queue{
		"memory": NewMemoryQueue(),
		"redis":  NewRedisQueue(client, ""),
	}
}

func TestQueueEnqueueDeduplicates(t *testing.T) {
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			req := newRequest(time.Now().UTC(), 5)

			added, err := q.Enqueue(ctx, req)
			require.NoError(t, err)
			assert.True(t, added)

			dup := *req
			dup.ID = id.NewApprovalID()
			added, err = q.Enqueue(ctx, &dup)
			require.NoError(t, err)
			assert.False(t, added, "equivalent request must not be queued twice")

			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, req.ID, pending[0].ID)
			assert.Equal(t, req.BasePrice, pending[0].BasePrice)
		})
	}
}

func TestQueuePendingOrderAndResolve(t *testing.T) {
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
			later := newRequest(t0.Add(time.Minute), 2)
			earlier := newRequest(t0, 3)

			for _, r := range []*Request{later, earlier} {
				_, err := q.Enqueue(ctx, r)
				require.NoError(t, err)
			}

			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, earlier.ID, pending[0].ID)
			assert.Equal(t, later.ID, pending[1].ID)

			require.NoError(t, q.Resolve(ctx, earlier.ID))
			assert.ErrorIs(t, q.Resolve(ctx, earlier.ID), ErrNotFound)

			pending, err = q.Pending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, later.ID, pending[0].ID)
		})
	}
}
