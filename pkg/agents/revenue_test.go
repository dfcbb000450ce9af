package agents

import (
	"testing"
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

func TestBuildActions_LowRisk(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	scheduled := now.Add(72 * time.Hour)
	a := contracts.Appointment{PatientID: "p1", AppointmentID: "a1", ScheduledAt: scheduled.Format(time.RFC3339)}
	profile := contracts.DefaultClinicProfile("c1")

	agent := NewRevenueAgent()
	actions := agent.BuildActions(a, contracts.RiskLow, profile, now)

	if len(actions) != 1 {
		t.Fatalf("expected 1 action for low risk, got %d", len(actions))
	}
	if actions[0].ActionType != "send_reminder" {
		t.Errorf("expected send_reminder, got %s", actions[0].ActionType)
	}
	want := scheduled.Add(-24 * time.Hour).Format(time.RFC3339)
	if actions[0].ScheduledAt != want {
		t.Errorf("expected scheduled_at %s, got %s", want, actions[0].ScheduledAt)
	}
	if actions[0].Channel != "whatsapp" {
		t.Errorf("expected default channel whatsapp, got %s", actions[0].Channel)
	}
}

func TestBuildActions_HighRiskSequenceOrder(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	scheduled := now.Add(96 * time.Hour)
	a := contracts.Appointment{PatientID: "p1", AppointmentID: "a1", ScheduledAt: scheduled.Format(time.RFC3339)}
	profile := contracts.ClinicProfile{PreferredChannel: "sms"}

	agent := NewRevenueAgent()
	actions := agent.BuildActions(a, contracts.RiskHigh, profile, now)

	wantTypes := []string{"send_reminder", "send_confirmation", "reschedule"}
	if len(actions) != len(wantTypes) {
		t.Fatalf("expected %d actions, got %d", len(wantTypes), len(actions))
	}
	for i, want := range wantTypes {
		if actions[i].ActionType != want {
			t.Errorf("action %d: expected %s, got %s", i, want, actions[i].ActionType)
		}
		if actions[i].Channel != "sms" {
			t.Errorf("action %d: expected channel sms, got %s", i, actions[i].Channel)
		}
		if actions[i].PatientID != "p1" || actions[i].AppointmentID != "a1" {
			t.Errorf("action %d: missing enrichment", i)
		}
	}
}

func TestBuildActions_UnparseableScheduledAtFallsBackToNowPlus24h(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := contracts.Appointment{PatientID: "p1", AppointmentID: "a1", ScheduledAt: "not-a-time"}
	profile := contracts.DefaultClinicProfile("c1")

	agent := NewRevenueAgent()
	actions := agent.BuildActions(a, contracts.RiskLow, profile, now)

	want := now.Add(24 * time.Hour).Add(-24 * time.Hour).Format(time.RFC3339)
	if actions[0].ScheduledAt != want {
		t.Errorf("expected fallback anchor now+24h, got scheduled_at %s want %s", actions[0].ScheduledAt, want)
	}
}

func TestExpectedLift(t *testing.T) {
	agent := NewRevenueAgent()
	if agent.ExpectedLift(contracts.RiskLow) != 0.05 {
		t.Errorf("unexpected low lift")
	}
	if agent.ExpectedLift(contracts.RiskMedium) != 0.15 {
		t.Errorf("unexpected medium lift")
	}
	if agent.ExpectedLift(contracts.RiskHigh) != 0.25 {
		t.Errorf("unexpected high lift")
	}
}
