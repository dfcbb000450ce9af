package audit

import (
	"context"
	"testing"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

func TestExport_ProducesVerifiableBundle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Append(ctx, contracts.Event{AggregateID: "a1", EventType: "tick", Payload: i})
	}

	bundle, err := Export(ctx, s, QueryFilter{AggregateID: "a1"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if bundle.EntryCount != 3 {
		t.Errorf("expected 3 entries, got %d", bundle.EntryCount)
	}
	if err := VerifyBundle(bundle); err != nil {
		t.Errorf("expected bundle to verify, got %v", err)
	}
}

func TestExport_EmptyFilterErrors(t *testing.T) {
	s := NewMemoryStore()
	_, err := Export(context.Background(), s, QueryFilter{AggregateID: "nonexistent"})
	if err == nil {
		t.Error("expected error when no entries match filter")
	}
}

func TestVerifyBundle_DetectsTamperedHash(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Append(ctx, contracts.Event{AggregateID: "a1", EventType: "tick"})
	bundle, err := Export(ctx, s, QueryFilter{AggregateID: "a1"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	bundle.BundleHash = "tampered"
	if err := VerifyBundle(bundle); err == nil {
		t.Error("expected VerifyBundle to detect a tampered hash")
	}
}
