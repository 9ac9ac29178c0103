// Package queue implements the durable delayed work queue between the
// dispatcher and the delivery executor, backed by a Redis sorted set. Each
// work item is scored by its not-before timestamp; pollers never claim an
// item before that time, which is what makes backoff delays stick.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DeliveryQueueKey is the sorted set holding pending delivery work items.
const DeliveryQueueKey = "webhook_relay:delivery_queue"

// WorkItem references one pending execution of a delivery record. The nonce
// keeps re-enqueued retries distinct as sorted-set members.
type WorkItem struct {
	Nonce          string `json:"nonce"`
	RecordID       string `json:"record_id"`
	SubscriptionID string `json:"subscription_id"`
}

// NewWorkItem builds a work item with a fresh nonce.
func NewWorkItem(recordID, subscriptionID string) WorkItem {
	return WorkItem{
		Nonce:          uuid.NewString(),
		RecordID:       recordID,
		SubscriptionID: subscriptionID,
	}
}

// Queue is the Redis-backed delayed queue.
type Queue struct {
	client *redis.Client
	key    string
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client, key: DeliveryQueueKey}
}

// Enqueue schedules the item to run no earlier than notBefore.
func (q *Queue) Enqueue(ctx context.Context, item WorkItem, notBefore time.Time) error {
	member, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling work item: %w", err)
	}

	err = q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(notBefore.UnixMicro()),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueuing work item: %w", err)
	}
	return nil
}

// ClaimDue fetches up to batch items whose not-before time has passed and
// removes them from the set. ZRem is the claim: if another instance already
// took a member, ZRem returns 0 and the item is skipped here.
func (q *Queue) ClaimDue(ctx context.Context, now time.Time, batch int64) ([]WorkItem, error) {
	results, err := q.client.ZRangeByScoreWithScores(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatFloat(float64(now.UnixMicro())),
		Count: batch,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("polling delivery queue: %w", err)
	}

	var items []WorkItem
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}

		removed, err := q.client.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return items, fmt.Errorf("claiming work item: %w", err)
		}
		if removed == 0 {
			continue
		}

		var item WorkItem
		if err := json.Unmarshal([]byte(member), &item); err != nil {
			return items, fmt.Errorf("unmarshaling work item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

// Depth returns the number of items waiting in the queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
