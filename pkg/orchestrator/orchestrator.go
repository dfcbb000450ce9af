// Package orchestrator sequences the Risk Scorer, Revenue Agent,
// Compliance Agent, Plan Builder, Signer, and GitOps PR Submitter into the
// per-appointment state machine: received → scored → sequenced →
// validated → built → signed → {submitted | skipped-pr}, with a
// compliance failure short-circuiting to rejected.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/agents"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/audit"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/crypto"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/gitops"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/observability"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/planbuilder"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/scoring"
)

// Result is the orchestrator's per-appointment return value.
type Result struct {
	ProposalID    string            `json:"proposal_id"`
	RiskLevel     contracts.RiskLevel `json:"risk_level"`
	RiskScore     float64           `json:"risk_score"`
	Actions       []contracts.Action `json:"actions"`
	HMACSignature string            `json:"hmac_signature"`
	PRURL         *string           `json:"pr_url,omitempty"`
	Compliant     bool              `json:"compliant"`
	Violations    []string          `json:"violations,omitempty"`
}

// ProfileResolver returns the clinic profile for a clinic ID, falling back
// to contracts.DefaultClinicProfile when no specific entry is configured.
type ProfileResolver func(clinicID string) contracts.ClinicProfile

// GitOpsSubmitter is the subset of gitops.Submitter the orchestrator needs,
// narrowed to an interface so it can be stubbed in tests.
type GitOpsSubmitter interface {
	Submit(ctx context.Context, plan contracts.ExecutionPlan, environment string) (*gitops.Result, error)
}

// Orchestrator wires the pipeline components together.
type Orchestrator struct {
	Revenue     *agents.RevenueAgent
	Compliance  *agents.ComplianceAgent
	Builder     *planbuilder.Builder
	Signer      *crypto.Signer
	GitOps      GitOpsSubmitter // nil disables PR submission (skipped-pr)
	Profiles    ProfileResolver
	AuditLog    *audit.Logger
	Environment string
	Role        string
	Mode        string
	Now         func() time.Time
	Tracer      *observability.Provider // nil disables span emission
	log         *slog.Logger
}

// New constructs an Orchestrator. log may be nil to use slog.Default().
// tracer may be nil to disable span emission (e.g. in unit tests).
func New(revenue *agents.RevenueAgent, compliance *agents.ComplianceAgent, signer *crypto.Signer, gitOps GitOpsSubmitter, profiles ProfileResolver, auditLog *audit.Logger, environment, role, mode string, tracer *observability.Provider, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		Revenue:     revenue,
		Compliance:  compliance,
		Builder:     planbuilder.NewBuilder(),
		Signer:      signer,
		GitOps:      gitOps,
		Profiles:    profiles,
		AuditLog:    auditLog,
		Environment: environment,
		Role:        role,
		Mode:        mode,
		Now:         time.Now,
		Tracer:      tracer,
		log:         log,
	}
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, appointmentID string) (context.Context, func()) {
	if o.Tracer == nil {
		return ctx, func() {}
	}
	ctx, span := o.Tracer.StartSpan(ctx, name, attribute.String("cacp.appointment_id", appointmentID))
	return ctx, func() { span.End() }
}

// Process runs one appointment through the full pipeline: scoring,
// sequencing, compliance validation, plan building, signing, and
// (optionally) PR submission.
func (o *Orchestrator) Process(ctx context.Context, appt contracts.Appointment) Result {
	ctx, endPipelineSpan := o.startSpan(ctx, "orchestrator.process", appt.AppointmentID)
	defer endPipelineSpan()

	now := o.Now()

	o.AuditLog.Record(ctx, appt.AppointmentID, contracts.EventAppointmentReceived, appt)

	_, endScoreSpan := o.startSpan(ctx, "orchestrator.score", appt.AppointmentID)
	risk := scoring.Score(appt, now)
	endScoreSpan()
	o.AuditLog.Record(ctx, appt.AppointmentID, contracts.EventRiskScored, risk)

	profile := o.resolveProfile(appt.ClinicID)

	_, endSequenceSpan := o.startSpan(ctx, "orchestrator.sequence_actions", appt.AppointmentID)
	actions := o.Revenue.BuildActions(appt, risk.Level, profile, now)
	endSequenceSpan()

	_, endComplianceSpan := o.startSpan(ctx, "orchestrator.validate_compliance", appt.AppointmentID)
	compliance := o.Compliance.Evaluate(ctx, actions, o.Role, o.Mode, profile, risk.Level)
	endComplianceSpan()
	if !compliance.Compliant {
		return Result{
			ProposalID: uuid.New().String(),
			RiskLevel:  risk.Level,
			RiskScore:  risk.Score,
			Actions:    actions,
			Compliant:  false,
			Violations: compliance.Violations,
		}
	}

	proposalID := uuid.New().String()
	plan := o.Builder.Build(proposalID, o.Environment, appt.ClinicID, actions, risk.Level, now)
	o.AuditLog.Record(ctx, appt.AppointmentID, contracts.EventProposalCreated, plan)

	if o.Signer != nil && o.Signer.Configured() {
		sig, err := o.Signer.Sign(plan)
		if err != nil {
			o.log.WarnContext(ctx, "failed to sign execution plan", "plan_id", plan.PlanID, "error", err)
		} else {
			plan.HMACSignature = sig
		}
	}
	o.AuditLog.Record(ctx, appt.AppointmentID, contracts.EventProposalSigned, plan)

	result := Result{
		ProposalID:    plan.PlanID,
		RiskLevel:     risk.Level,
		RiskScore:     risk.Score,
		Actions:       actions,
		HMACSignature: plan.HMACSignature,
		Compliant:     true,
	}

	if o.GitOps != nil {
		prResult, err := o.GitOps.Submit(ctx, plan, o.Environment)
		if err != nil {
			o.log.WarnContext(ctx, "PR submission failed, continuing without a PR", "plan_id", plan.PlanID, "error", err)
		} else {
			result.PRURL = &prResult.PRURL
			o.AuditLog.Record(ctx, appt.AppointmentID, contracts.EventPROpened, map[string]string{
				"plan_id": plan.PlanID,
				"pr_url":  prResult.PRURL,
				"branch":  prResult.Branch,
			})
		}
	}

	return result
}

func (o *Orchestrator) resolveProfile(clinicID string) contracts.ClinicProfile {
	if o.Profiles == nil {
		return contracts.DefaultClinicProfile(clinicID)
	}
	return o.Profiles(clinicID)
}
