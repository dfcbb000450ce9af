// Package contracts defines the shared data types that flow through the
// clinical agentic control plane: appointments, risk results, actions,
// execution plans, audit events, and consent records.
package contracts

import "time"

// Appointment is the inbound record scored for no-show risk.
type Appointment struct {
	AppointmentID    string `json:"appointment_id"`
	PatientID        string `json:"patient_id"`
	ClinicID         string `json:"clinic_id"`
	ScheduledAt      string `json:"scheduled_at"`
	TreatmentType    string `json:"treatment_type,omitempty"`
	IsFirstVisit     bool   `json:"is_first_visit"`
	PreviousNoShows  int    `json:"previous_no_shows"`
	PatientPhone     string `json:"patient_phone,omitempty"`
	PatientWhatsApp  bool   `json:"patient_whatsapp"`
	ConsentGiven     bool   `json:"consent_given"`
}

// Validate checks that the required fields are present. Called on ingest.
func (a Appointment) Validate() []string {
	var missing []string
	if a.AppointmentID == "" {
		missing = append(missing, "appointment_id")
	}
	if a.PatientID == "" {
		missing = append(missing, "patient_id")
	}
	if a.ClinicID == "" {
		missing = append(missing, "clinic_id")
	}
	if a.ScheduledAt == "" {
		missing = append(missing, "scheduled_at")
	}
	return missing
}

// RiskLevel is the discretized risk bucket.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskResult is the deterministic output of the risk scorer. Immutable once created.
type RiskResult struct {
	Score   float64            `json:"score"`
	Level   RiskLevel          `json:"level"`
	Factors map[string]float64 `json:"factors"`
}

// Action is a single channel-bound patient-contact operation.
type Action struct {
	ActionType    string `json:"action_type"`
	Channel       string `json:"channel"`
	Template      string `json:"template"`
	ScheduledAt   string `json:"scheduled_at"`
	PatientID     string `json:"patient_id"`
	AppointmentID string `json:"appointment_id"`
}

// ExecutionPlan is the signable bundle of actions submitted for human review.
type ExecutionPlan struct {
	PlanID        string    `json:"plan_id"`
	Version       string    `json:"version"`
	Environment   string    `json:"environment"`
	ClinicID      string    `json:"clinic_id"`
	Actions       []Action  `json:"actions"`
	RiskLevel     RiskLevel `json:"risk_level"`
	CreatedAt     string    `json:"created_at"`
	HMACSignature string    `json:"hmac_signature"`
}

// Event is an immutable, append-only audit record.
type Event struct {
	EventID        string          `json:"event_id"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        any             `json:"payload"`
	Actor          string          `json:"actor"`
	CreatedAt      time.Time       `json:"created_at"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// ConsentRecord tracks grant/revoke history for a (patient_id, channel) pair.
type ConsentRecord struct {
	PatientID string     `json:"patient_id"`
	Channel   string     `json:"channel"`
	GrantedAt time.Time  `json:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// IsActive reports whether the consent record is currently in force.
func (c ConsentRecord) IsActive() bool {
	return c.RevokedAt == nil
}

// PromotedFields are the queue-envelope keys the worker understands even
// though envelopes are otherwise opaque JSON blobs.
type PromotedFields struct {
	ActionType    string `json:"action_type"`
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	Channel       string `json:"channel"`
	RetryCount    int    `json:"_retry_count"`
}

// EventType constants, matching spec.md §6.
const (
	EventAppointmentReceived  = "appointment_received"
	EventRiskScored           = "risk_scored"
	EventProposalCreated      = "proposal_created"
	EventProposalSigned       = "proposal_signed"
	EventPRMerged             = "pr_merged"
	EventPROpened             = "pr_opened"
	EventActionExecuted       = "action_executed"
	EventActionFailed         = "action_failed"
	EventActionBlocked        = "action_blocked"
	EventActionRetryScheduled = "action_retry_scheduled"
	EventActionDeadLettered   = "action_dead_lettered"
	EventSMSQueued            = "sms_queued"
	EventSMSSent              = "sms_sent"
	EventSMSDelivered         = "sms_delivered"
	EventSMSUndelivered       = "sms_undelivered"
	EventSMSFailed            = "sms_failed"
)

// DefaultActor is used for system-generated events with no human principal.
const DefaultActor = "system"

// MessagingProfile bounds per-patient contact frequency for a clinic.
type MessagingProfile struct {
	MaxMessagesPerPatientPerDay int `yaml:"max_messages_per_patient_per_day"`
}

// QuietHours is the clinic-local window during which no actions may be sent.
type QuietHours struct {
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

// ClinicProfile is clinic-specific configuration loaded once at startup and
// consulted by the Revenue Agent and Compliance Agent. The worker rails do
// not read it; they take quiet hours and timezone from process configuration.
type ClinicProfile struct {
	ClinicID         string           `yaml:"clinic_id"`
	PreferredChannel string           `yaml:"preferred_channel"`
	Messaging        MessagingProfile `yaml:"messaging"`
	QuietHours       QuietHours       `yaml:"quiet_hours"`
	Timezone         string           `yaml:"timezone"`
}

// DefaultClinicProfile returns the fallback profile applied when no
// clinic-specific entry is configured.
func DefaultClinicProfile(clinicID string) ClinicProfile {
	return ClinicProfile{
		ClinicID:         clinicID,
		PreferredChannel: "whatsapp",
		Messaging:        MessagingProfile{MaxMessagesPerPatientPerDay: 3},
		QuietHours:       QuietHours{StartHour: 21, EndHour: 8},
		Timezone:         "UTC",
	}
}
