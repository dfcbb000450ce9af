// Package queue implements the Redis-backed work queue: a FIFO action
// list, a retry sorted set scored by future wall-clock epoch, a
// dead-letter list, dedup markers, rate-window sorted sets, and webhook
// idempotency markers. Grounded on the teacher's redis.NewScript atomic
// Lua pattern (pkg/kernel/limiter_redis.go) for the rate-limit rail.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyActions = "cacp:actions"
	keyRetry   = "cacp:retry"
	keyDLQ     = "cacp:dlq"
)

func keyDedup(appointmentID, channel string) string {
	return fmt.Sprintf("cacp:sent:%s:%s", appointmentID, channel)
}

func keyRateWindow(patientID, channel string) string {
	return fmt.Sprintf("cacp:rate:%s:%s", patientID, channel)
}

func keyWebhookDelivery(deliveryID string) string {
	return fmt.Sprintf("cacp:webhook:delivery:%s", deliveryID)
}

// Queue wraps a Redis client with the control plane's queue primitives.
type Queue struct {
	client *redis.Client
}

// New constructs a Queue over an existing Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Push enqueues envelope onto the main FIFO (push at right).
func (q *Queue) Push(ctx context.Context, envelope map[string]any) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return q.client.RPush(ctx, keyActions, data).Err()
}

// BlockingPop dequeues from the main FIFO (pop at left), blocking up to
// timeout. Returns nil, nil on timeout with no item available.
func (q *Queue) BlockingPop(ctx context.Context, timeout time.Duration) (map[string]any, error) {
	result, err := q.client.BLPop(ctx, timeout, keyActions).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: blocking pop: %w", err)
	}
	// BLPop returns [key, value].
	if len(result) != 2 {
		return nil, fmt.Errorf("queue: unexpected BLPOP result shape")
	}
	var envelope map[string]any
	if err := json.Unmarshal([]byte(result[1]), &envelope); err != nil {
		return nil, fmt.Errorf("queue: unmarshal envelope: %w", err)
	}
	return envelope, nil
}

// ScheduleRetry adds envelope to the retry sorted set, scored by the future
// epoch at which it becomes eligible for promotion.
func (q *Queue) ScheduleRetry(ctx context.Context, envelope map[string]any, at time.Time) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return q.client.ZAdd(ctx, keyRetry, redis.Z{
		Score:  float64(at.Unix()),
		Member: data,
	}).Err()
}

// PromoteDueRetries moves every retry entry whose score is <= now from the
// retry set back onto the main queue. Returns the number promoted.
func (q *Queue) PromoteDueRetries(ctx context.Context, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, keyRetry, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: range due retries: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	pipe := q.client.TxPipeline()
	for _, member := range due {
		pipe.RPush(ctx, keyActions, member)
	}
	pipe.ZRem(ctx, keyRetry, toInterfaceSlice(due)...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("queue: promote due retries: %w", err)
	}
	return len(due), nil
}

// DeadLetter pushes envelope onto the DLQ list.
func (q *Queue) DeadLetter(ctx context.Context, envelope map[string]any) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return q.client.RPush(ctx, keyDLQ, data).Err()
}

// ReplayDLQ pops up to n items from the DLQ, resets their _retry_count to
// 0, and pushes them back onto the main queue. Returns the number replayed.
func (q *Queue) ReplayDLQ(ctx context.Context, n int) (int, error) {
	replayed := 0
	for i := 0; i < n; i++ {
		raw, err := q.client.LPop(ctx, keyDLQ).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return replayed, fmt.Errorf("queue: pop dlq: %w", err)
		}
		var envelope map[string]any
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			return replayed, fmt.Errorf("queue: unmarshal dlq entry: %w", err)
		}
		envelope["_retry_count"] = 0
		if err := q.Push(ctx, envelope); err != nil {
			return replayed, fmt.Errorf("queue: repush dlq entry: %w", err)
		}
		replayed++
	}
	return replayed, nil
}

func toInterfaceSlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
