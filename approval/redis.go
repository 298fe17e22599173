package approval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/placement/id"
)

// DefaultRedisKey is the hash holding pending requests.
const DefaultRedisKey = "placement:approvals"

// RedisQueue keeps pending requests in a Redis hash keyed by Request.Key,
// so concurrent engines deduplicate through HSETNX.
type RedisQueue struct {
	client *redis.Client
	key    string
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue returns a queue stored under key, or DefaultRedisKey when
// key is empty.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, req *Request) (bool, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return false, fmt.Errorf("approval: marshal request: %w", err)
	}

	added, err := q.client.HSetNX(ctx, q.key, req.Key(), data).Result()
	if err != nil {
		return false, fmt.Errorf("approval: enqueue: %w", err)
	}
	return added, nil
}

func (q *RedisQueue) Pending(ctx context.Context) ([]*Request, error) {
	vals, err := q.client.HVals(ctx, q.key).Result()
	if err != nil {
		return nil, fmt.Errorf("approval: list pending: %w", err)
	}

	out := make([]*Request, 0, len(vals))
	for _, v := range vals {
		var r Request
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("approval: decode request: %w", err)
		}
		out = append(out, &r)
	}
	sortRequests(out)
	return out, nil
}

func (q *RedisQueue) Resolve(ctx context.Context, approvalID id.ApprovalID) error {
	all, err := q.client.HGetAll(ctx, q.key).Result()
	if err != nil {
		return fmt.Errorf("approval: resolve: %w", err)
	}

	for field, v := range all {
		var r Request
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			continue
		}
		if r.ID != approvalID {
			continue
		}

		n, err := q.client.HDel(ctx, q.key, field).Result()
		if err != nil {
			return fmt.Errorf("approval: resolve: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	}
	return ErrNotFound
}
