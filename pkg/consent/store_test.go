package consent

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_GrantThenActive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Grant(ctx, "p1", "sms", time.Now()); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	active, err := s.IsActive(ctx, "p1", "sms")
	if err != nil {
		t.Fatalf("IsActive failed: %v", err)
	}
	if !active {
		t.Error("expected active consent after grant")
	}
}

func TestMemoryStore_MissingRecordIsNotActive(t *testing.T) {
	s := NewMemoryStore()
	active, err := s.IsActive(context.Background(), "p1", "sms")
	if err != nil {
		t.Fatalf("IsActive failed: %v", err)
	}
	if active {
		t.Error("expected no consent for unknown pair")
	}
}

func TestMemoryStore_RevokeThenInactive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Grant(ctx, "p1", "sms", time.Now())
	if err := s.Revoke(ctx, "p1", "sms", time.Now()); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	active, _ := s.IsActive(ctx, "p1", "sms")
	if active {
		t.Error("expected inactive consent after revoke")
	}
}

func TestMemoryStore_RegrantAfterRevokeReplacesRecord(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Grant(ctx, "p1", "sms", time.Now())
	s.Revoke(ctx, "p1", "sms", time.Now())
	s.Grant(ctx, "p1", "sms", time.Now())

	record, ok, err := s.Get(ctx, "p1", "sms")
	if err != nil || !ok {
		t.Fatalf("expected a record to exist")
	}
	if record.RevokedAt != nil {
		t.Error("expected re-grant to clear revoked_at")
	}
}

func TestMemoryStore_ChannelsAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Grant(ctx, "p1", "sms", time.Now())

	active, _ := s.IsActive(ctx, "p1", "whatsapp")
	if active {
		t.Error("expected whatsapp consent to be independent of sms")
	}
}
