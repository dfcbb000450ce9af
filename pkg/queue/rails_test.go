package queue

import (
	"context"
	"testing"
	"time"
)

func TestAllowRate_LimitsWithinWindow(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		allowed, err := q.AllowRate(ctx, "p1", "sms", 3, time.Minute, now)
		if err != nil {
			t.Fatalf("AllowRate failed: %v", err)
		}
		if !allowed {
			t.Fatalf("expected call %d to be allowed under limit 3", i+1)
		}
	}

	allowed, err := q.AllowRate(ctx, "p1", "sms", 3, time.Minute, now)
	if err != nil {
		t.Fatalf("AllowRate failed: %v", err)
	}
	if allowed {
		t.Errorf("expected 4th call within the window to be denied")
	}
}

func TestAllowRate_WindowExpiryResetsCount(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	q.AllowRate(ctx, "p1", "sms", 1, time.Second, now)
	allowed, err := q.AllowRate(ctx, "p1", "sms", 1, time.Second, now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("AllowRate failed: %v", err)
	}
	if !allowed {
		t.Errorf("expected a fresh window to allow again")
	}
}

func TestMarkSent_DedupTTL(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.MarkSent(ctx, "appt-1", "sms", time.Minute)
	if err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}
	if !first {
		t.Error("expected first dedup attempt to win")
	}

	second, err := q.MarkSent(ctx, "appt-1", "sms", time.Minute)
	if err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}
	if second {
		t.Error("expected second dedup attempt within TTL to lose")
	}
}

func TestMarkWebhookDelivery_IdempotencyReplay(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.MarkWebhookDelivery(ctx, "delivery-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("MarkWebhookDelivery failed: %v", err)
	}
	if !first {
		t.Error("expected first delivery to be accepted as new")
	}

	second, err := q.MarkWebhookDelivery(ctx, "delivery-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("MarkWebhookDelivery failed: %v", err)
	}
	if second {
		t.Error("expected replayed delivery id to be recognized as duplicate")
	}
}
