// Package agents implements the Revenue Agent and Compliance Agent: the two
// decision points between a scored appointment and a signable execution
// plan.
package agents

import (
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

// ActionTemplate is an unresolved action: an offset from the appointment
// time rather than an absolute timestamp.
type ActionTemplate struct {
	ActionType  string
	HoursBefore float64
}

// Sequence is the Revenue Agent's proposed action templates for a risk
// level, plus the expected outcome lift the sequence is modeled to produce.
type Sequence struct {
	Templates    []ActionTemplate
	ExpectedLift float64
}

var sequences = map[contracts.RiskLevel]Sequence{
	contracts.RiskLow: {
		Templates: []ActionTemplate{
			{ActionType: "send_reminder", HoursBefore: 24},
		},
		ExpectedLift: 0.05,
	},
	contracts.RiskMedium: {
		Templates: []ActionTemplate{
			{ActionType: "send_reminder", HoursBefore: 48},
			{ActionType: "send_confirmation", HoursBefore: 24},
		},
		ExpectedLift: 0.15,
	},
	contracts.RiskHigh: {
		Templates: []ActionTemplate{
			{ActionType: "send_reminder", HoursBefore: 48},
			{ActionType: "send_confirmation", HoursBefore: 24},
			{ActionType: "reschedule", HoursBefore: 2},
		},
		ExpectedLift: 0.25,
	},
}

// SequenceFor returns the ordered action sequence for a risk level. Unknown
// risk levels fall back to the low-risk sequence.
func SequenceFor(level contracts.RiskLevel) Sequence {
	if s, ok := sequences[level]; ok {
		return s
	}
	return sequences[contracts.RiskLow]
}

// RevenueAgent maps a scored appointment to an ordered, absolute-time
// action list, reading the preferred contact channel from the clinic
// profile.
type RevenueAgent struct{}

// NewRevenueAgent constructs a RevenueAgent. Stateless; exported as a type
// for symmetry with ComplianceAgent and to leave room for future per-clinic
// overrides.
func NewRevenueAgent() *RevenueAgent {
	return &RevenueAgent{}
}

// BuildActions resolves the risk level's action sequence into concrete
// Actions for one appointment. If appointment.ScheduledAt cannot be parsed,
// now+24h is substituted as the anchor instant (spec.md §4.2).
func (r *RevenueAgent) BuildActions(a contracts.Appointment, level contracts.RiskLevel, profile contracts.ClinicProfile, now time.Time) []contracts.Action {
	anchor, err := time.Parse(time.RFC3339, a.ScheduledAt)
	if err != nil {
		anchor = now.Add(24 * time.Hour)
	}

	channel := profile.PreferredChannel
	if channel == "" {
		channel = "whatsapp"
	}

	seq := SequenceFor(level)
	actions := make([]contracts.Action, 0, len(seq.Templates))
	for _, tmpl := range seq.Templates {
		offset := time.Duration(tmpl.HoursBefore * float64(time.Hour))
		actions = append(actions, contracts.Action{
			ActionType:    tmpl.ActionType,
			Channel:       channel,
			Template:      tmpl.ActionType,
			ScheduledAt:   anchor.Add(-offset).Format(time.RFC3339),
			PatientID:     a.PatientID,
			AppointmentID: a.AppointmentID,
		})
	}
	return actions
}

// ExpectedLift returns the modeled outcome lift for a risk level's sequence.
func (r *RevenueAgent) ExpectedLift(level contracts.RiskLevel) float64 {
	return SequenceFor(level).ExpectedLift
}
