package scoring

import (
	"testing"
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

func TestScore_Bounds(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	appts := []contracts.Appointment{
		{ScheduledAt: now.Add(48 * time.Hour).Format(time.RFC3339)},
		{ScheduledAt: "not-a-time", PreviousNoShows: 9},
		{ScheduledAt: now.Add(30 * 24 * time.Hour).Format(time.RFC3339), PatientPhone: "+1", PatientWhatsApp: true},
	}
	for _, a := range appts {
		r := Score(a, now)
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score out of bounds: %v", r.Score)
		}
		switch {
		case r.Score < 0.3 && r.Level != contracts.RiskLow:
			t.Errorf("expected low level for score %v, got %v", r.Score, r.Level)
		case r.Score >= 0.3 && r.Score < 0.6 && r.Level != contracts.RiskMedium:
			t.Errorf("expected medium level for score %v, got %v", r.Score, r.Level)
		case r.Score >= 0.6 && r.Level != contracts.RiskHigh:
			t.Errorf("expected high level for score %v, got %v", r.Score, r.Level)
		}
	}
}

func TestScore_MonotonicInPreviousNoShows(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC) // Monday
	base := contracts.Appointment{
		AppointmentID: "a1",
		ScheduledAt:   now.Add(20 * 24 * time.Hour).Format(time.RFC3339),
		PatientPhone:  "+34123",
	}

	var prev float64 = -1
	for n := 0; n <= 5; n++ {
		a := base
		a.PreviousNoShows = n
		r := Score(a, now)
		if r.Score < prev {
			t.Fatalf("score decreased when previous_no_shows increased to %d: %v < %v", n, r.Score, prev)
		}
		prev = r.Score
	}
}

func TestScore_HighRiskScenario(t *testing.T) {
	// Monday 08:00, eight hours after now, so the lead-time factor is the < 1 day bucket.
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	scheduled := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC) // same-day, Monday 08:00
	a := contracts.Appointment{
		AppointmentID:   "high-1",
		PreviousNoShows: 3,
		IsFirstVisit:    true,
		ScheduledAt:     scheduled.Format(time.RFC3339),
		PatientPhone:    "",
		PatientWhatsApp: false,
	}
	r := Score(a, now)
	if r.Level != contracts.RiskHigh {
		t.Errorf("expected high risk, got %v (score %v, factors %+v)", r.Level, r.Score, r.Factors)
	}
}

func TestScore_LowRiskScenario(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	scheduled := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC) // Wednesday 10:00, 6 days out
	a := contracts.Appointment{
		AppointmentID:   "low-1",
		PreviousNoShows: 0,
		IsFirstVisit:    false,
		ScheduledAt:     scheduled.Format(time.RFC3339),
		PatientPhone:    "+34600000000",
		PatientWhatsApp: true,
	}
	r := Score(a, now)
	if r.Level != contracts.RiskLow {
		t.Errorf("expected low risk, got %v (score %v, factors %+v)", r.Level, r.Score, r.Factors)
	}
}

func TestScore_TimeOfDayFactorIndependentOfHostTimezone(t *testing.T) {
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	// The same scheduled_at string, with its own offset, scored under two
	// different host timezones.
	scheduled := contracts.Appointment{ScheduledAt: "2026-01-06T10:00:00+01:00"}
	origLocal := time.Local
	defer func() { time.Local = origLocal }()

	time.Local = time.UTC
	utc := Score(scheduled, now)
	time.Local = time.FixedZone("UTC+9", 9*60*60)
	offset := Score(scheduled, now)

	if utc.Factors["time_of_day"] != offset.Factors["time_of_day"] {
		t.Errorf("time_of_day factor depends on host timezone: utc=%v tokyo=%v", utc.Factors["time_of_day"], offset.Factors["time_of_day"])
	}
	if utc.Factors["day_of_week"] != offset.Factors["day_of_week"] {
		t.Errorf("day_of_week factor depends on host timezone: utc=%v tokyo=%v", utc.Factors["day_of_week"], offset.Factors["day_of_week"])
	}
	if utc.Score != offset.Score {
		t.Errorf("score changed with host timezone for the same scheduled_at: %v vs %v", utc.Score, offset.Score)
	}
}

func TestLeadTimeFactor_ExactlyFourteenDaysScoresLow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exactlyFourteen := leadTimeFactor(now.Add(14*24*time.Hour).Format(time.RFC3339), now)
	if exactlyFourteen != 0.1 {
		t.Errorf("expected exactly-14-days lead time to score 0.1, got %v", exactlyFourteen)
	}
	overFourteen := leadTimeFactor(now.Add(14*24*time.Hour+time.Second).Format(time.RFC3339), now)
	if overFourteen != 0.5 {
		t.Errorf("expected over-14-days lead time to score 0.5, got %v", overFourteen)
	}
}

func TestScore_FactorsSumMatchesScore(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := contracts.Appointment{
		ScheduledAt:     now.Add(5 * 24 * time.Hour).Format(time.RFC3339),
		PreviousNoShows: 1,
	}
	r := Score(a, now)
	var sum float64
	for _, fw := range weights {
		sum += fw.weight * r.Factors[fw.name]
	}
	sum = clamp01(round4(sum))
	if sum != r.Score {
		t.Errorf("score %v does not match weighted factor sum %v", r.Score, sum)
	}
}
