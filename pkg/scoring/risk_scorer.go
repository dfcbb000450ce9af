// Package scoring implements the deterministic, rule-based no-show risk
// scorer. It is pure and auditable by design: no machine learning, every
// factor and weight is named and inspectable in the returned RiskResult.
package scoring

import (
	"math"
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

// factorWeight pairs a named factor with its contribution weight. Weights
// sum to 1.0.
type factorWeight struct {
	name   string
	weight float64
}

var weights = []factorWeight{
	{"no_show_history", 0.40},
	{"first_visit", 0.15},
	{"lead_time", 0.15},
	{"time_of_day", 0.10},
	{"day_of_week", 0.10},
	{"contact", 0.10},
}

// Score computes the RiskResult for an appointment. now is injected so the
// scorer remains pure and deterministic in tests.
func Score(a contracts.Appointment, now time.Time) contracts.RiskResult {
	factors := map[string]float64{
		"no_show_history": noShowHistoryFactor(a.PreviousNoShows),
		"first_visit":     firstVisitFactor(a.IsFirstVisit),
		"lead_time":       leadTimeFactor(a.ScheduledAt, now),
		"time_of_day":     timeOfDayFactor(a.ScheduledAt),
		"day_of_week":     dayOfWeekFactor(a.ScheduledAt),
		"contact":         contactFactor(a.PatientPhone, a.PatientWhatsApp),
	}

	var sum float64
	for _, fw := range weights {
		sum += fw.weight * factors[fw.name]
	}
	score := clamp01(round4(sum))

	return contracts.RiskResult{
		Score:   score,
		Level:   levelFor(score),
		Factors: factors,
	}
}

func levelFor(score float64) contracts.RiskLevel {
	switch {
	case score < 0.3:
		return contracts.RiskLow
	case score < 0.6:
		return contracts.RiskMedium
	default:
		return contracts.RiskHigh
	}
}

// noShowHistoryFactor maps previous no-show count to a contribution. Strictly
// non-decreasing in count, which is what gives the scorer its monotonicity
// property (spec.md §4.1).
func noShowHistoryFactor(count int) float64 {
	switch {
	case count <= 0:
		return 0.0
	case count == 1:
		return 0.5
	case count == 2:
		return 0.75
	default:
		return 1.0
	}
}

func firstVisitFactor(isFirst bool) float64 {
	if isFirst {
		return 0.6
	}
	return 0.0
}

func leadTimeFactor(scheduledAt string, now time.Time) float64 {
	t, err := time.Parse(time.RFC3339, scheduledAt)
	if err != nil {
		return 0.3
	}
	lead := t.Sub(now)
	switch {
	case lead < 24*time.Hour:
		return 0.7
	case lead < 3*24*time.Hour:
		return 0.3
	case lead <= 14*24*time.Hour:
		return 0.1
	default:
		return 0.5
	}
}

func timeOfDayFactor(scheduledAt string) float64 {
	t, err := time.Parse(time.RFC3339, scheduledAt)
	if err != nil {
		return 0.3
	}
	hour := t.Hour()
	switch {
	case hour < 9 || hour >= 17:
		return 0.6
	case hour < 11:
		return 0.2
	default:
		return 0.1
	}
}

func dayOfWeekFactor(scheduledAt string) float64 {
	t, err := time.Parse(time.RFC3339, scheduledAt)
	if err != nil {
		return 0.3
	}
	switch t.Weekday() {
	case time.Monday, time.Friday:
		return 0.6
	case time.Saturday, time.Sunday:
		return 0.4
	default:
		return 0.1
	}
}

func contactFactor(phone string, whatsapp bool) float64 {
	hasPhone := phone != ""
	switch {
	case hasPhone && whatsapp:
		return 0.0
	case hasPhone || whatsapp:
		return 0.3
	default:
		return 0.8
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
