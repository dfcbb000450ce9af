// Package planbuilder assembles the signable ExecutionPlan record from the
// outputs of the risk scorer, the Revenue Agent, and the Compliance Agent.
package planbuilder

import (
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

// PlanVersion is the fixed ExecutionPlan schema version stamped onto every
// built plan.
const PlanVersion = "1.0.0"

// Builder assembles ExecutionPlan records.
type Builder struct{}

// NewBuilder constructs a Builder. Stateless.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles an ExecutionPlan. proposalID becomes the plan's PlanID
// (spec.md §4.5: plan_id = proposal_id). The signature field is left empty;
// signing happens in a later orchestrator step.
func (b *Builder) Build(proposalID, environment, clinicID string, actions []contracts.Action, level contracts.RiskLevel, now time.Time) contracts.ExecutionPlan {
	return contracts.ExecutionPlan{
		PlanID:        proposalID,
		Version:       PlanVersion,
		Environment:   environment,
		ClinicID:      clinicID,
		Actions:       actions,
		RiskLevel:     level,
		CreatedAt:     now.Format(time.RFC3339),
		HMACSignature: "",
	}
}
