package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupQueue(t *testing.T) *Queue {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client)
}

func TestQueue_EnqueueAndClaim(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	item := NewWorkItem("rec-1", "sub-1")
	if err := q.Enqueue(ctx, item, time.Now()); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	items, err := q.ClaimDue(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].RecordID != "rec-1" || items[0].SubscriptionID != "sub-1" {
		t.Errorf("unexpected item: %+v", items[0])
	}
}

func TestQueue_DelayedItemNotClaimableEarly(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	now := time.Now()
	notBefore := now.Add(2 * time.Second)

	if err := q.Enqueue(ctx, NewWorkItem("rec-1", "sub-1"), notBefore); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	// Before the not-before time the item is invisible.
	items, err := q.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no due items, got %d", len(items))
	}

	// Once the clock passes it, the item becomes claimable.
	items, err = q.ClaimDue(ctx, notBefore.Add(time.Millisecond), 10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 due item, got %d", len(items))
	}
}

func TestQueue_ClaimIsRemoval(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, NewWorkItem("rec-1", "sub-1"), time.Now()); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	first, err := q.ClaimDue(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 item, got %d", len(first))
	}

	// Claimed items are gone; a second poll gets nothing.
	second, err := q.ClaimDue(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("item claimed twice: %+v", second)
	}
}

func TestQueue_RetriesOfSameRecordAreDistinctMembers(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	// The nonce keeps two enqueues of the same record from collapsing
	// into one sorted-set member.
	if err := q.Enqueue(ctx, NewWorkItem("rec-1", "sub-1"), time.Now()); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, NewWorkItem("rec-1", "sub-1"), time.Now().Add(time.Second)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("depth failed: %v", err)
	}
	if depth != 2 {
		t.Errorf("expected depth 2, got %d", depth)
	}
}

func TestQueue_ClaimRespectsBatchSize(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, NewWorkItem("rec", "sub"), time.Now()); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	items, err := q.ClaimDue(ctx, time.Now(), 3)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	depth, _ := q.Depth(ctx)
	if depth != 2 {
		t.Errorf("expected 2 remaining, got %d", depth)
	}
}

func TestQueue_Depth(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("depth failed: %v", err)
	}
	if depth != 0 {
		t.Errorf("expected empty queue, got %d", depth)
	}

	if err := q.Enqueue(ctx, NewWorkItem("rec-1", "sub-1"), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	depth, err = q.Depth(ctx)
	if err != nil {
		t.Fatalf("depth failed: %v", err)
	}
	if depth != 1 {
		t.Errorf("expected depth 1, got %d", depth)
	}
}
