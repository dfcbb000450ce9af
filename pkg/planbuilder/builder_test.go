package planbuilder

import (
	"testing"
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

func TestBuild_PlanIDEqualsProposalID(t *testing.T) {
	b := NewBuilder()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	plan := b.Build("prop-123", "prod", "clinic-1", nil, contracts.RiskMedium, now)

	if plan.PlanID != "prop-123" {
		t.Errorf("expected plan_id to equal proposal_id, got %s", plan.PlanID)
	}
	if plan.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", plan.Version)
	}
	if plan.HMACSignature != "" {
		t.Errorf("expected empty signature placeholder, got %s", plan.HMACSignature)
	}
	if plan.CreatedAt != now.Format(time.RFC3339) {
		t.Errorf("expected created_at to match build time")
	}
}

func TestBuild_CarriesActionsAndRiskLevel(t *testing.T) {
	b := NewBuilder()
	actions := []contracts.Action{
		{ActionType: "send_reminder", PatientID: "p1", AppointmentID: "a1"},
	}
	plan := b.Build("prop-1", "dev", "clinic-1", actions, contracts.RiskHigh, time.Now())

	if len(plan.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(plan.Actions))
	}
	if plan.RiskLevel != contracts.RiskHigh {
		t.Errorf("expected risk_level high, got %s", plan.RiskLevel)
	}
}
